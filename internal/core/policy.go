package core

// Policy decides whether the sender receives its own message.
type Policy int

const (
	// PolicyEcho delivers to every session including the sender.
	PolicyEcho Policy = iota
	// PolicyExcludeSender delivers to every session except the sender.
	PolicyExcludeSender
)

// PolicyFromEcho maps the echo config flag to a policy.
func PolicyFromEcho(echo bool) Policy {
	if echo {
		return PolicyEcho
	}
	return PolicyExcludeSender
}

func (p Policy) String() string {
	switch p {
	case PolicyEcho:
		return "echo"
	case PolicyExcludeSender:
		return "exclude_sender"
	default:
		return "unknown"
	}
}

func (p Policy) includes(origin, target string) bool {
	return p == PolicyEcho || origin != target
}
