package client

import "github.com/vovakirdan/wirechat-relay/internal/utils"

// Identity is the author identity of one client session. It survives reconnects.
type Identity struct {
	UserID string
	Role   string
}

// NewIdentity generates a fresh user id for the given role.
func NewIdentity(role string) Identity {
	return Identity{UserID: utils.NewUserID(), Role: role}
}

// Draft builds an outgoing draft authored by this identity.
func (i Identity) Draft(text string) Draft {
	return Draft{UserID: i.UserID, Role: i.Role, Text: text}
}
