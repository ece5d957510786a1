package client

import (
	"fmt"
	"sync"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

// Key identifies a transcript entry. Position makes it unique even when one user
// sends twice within the timestamp resolution.
type Key struct {
	UserID   string
	TS       string
	Position int
}

func (k Key) String() string {
	return fmt.Sprintf("%s-%s-%d", k.UserID, k.TS, k.Position)
}

// Entry is one message in the transcript.
type Entry struct {
	Key     Key
	Message proto.Message
}

// Transcript accumulates messages in arrival order. The zero value is a transcript
// that has not been loaded; NewTranscript returns a loaded, empty one.
type Transcript struct {
	mu      sync.RWMutex
	entries []Entry
	loaded  bool
}

// NewTranscript returns an empty, loaded transcript.
func NewTranscript() *Transcript {
	return &Transcript{
		entries: make([]Entry, 0),
		loaded:  true,
	}
}

// Append adds msg at the end. Arrival order is kept regardless of ts.
func (t *Transcript) Append(msg proto.Message) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.loaded = true

	entry := Entry{
		Key:     Key{UserID: msg.UserID, TS: msg.TS, Position: len(t.entries)},
		Message: msg,
	}
	t.entries = append(t.entries, entry)
	return entry
}

// List returns a snapshot of all entries. It is nil only for a transcript that
// was never loaded; a loaded empty transcript yields an empty, non-nil slice.
func (t *Transcript) List() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.loaded {
		return nil
	}
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Loaded reports whether the transcript holds a definitive (possibly empty) view.
func (t *Transcript) Loaded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loaded
}

// Contains reports whether an entry with the given key exists. Position is the
// entry's index, so the key resolves without a separate index.
func (t *Transcript) Contains(k Key) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if k.Position < 0 || k.Position >= len(t.entries) {
		return false
	}
	return t.entries[k.Position].Key == k
}

// Follow appends every message the channel delivers. Cancel the subscription to stop.
func (t *Transcript) Follow(ch *Channel) *Subscription {
	return ch.OnMessage(func(msg proto.Message) {
		t.Append(msg)
	})
}
