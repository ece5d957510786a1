package core

// Message is the domain model for a relayed chat message.
// TS is kept as the sender's ISO-8601 string so the relay never reformats it.
type Message struct {
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Text   string `json:"text"`
	TS     string `json:"ts"`
	Seq    uint64 `json:"seq,omitempty"`
}
