package utils

import (
	"strings"

	"github.com/google/uuid"
)

const userIDSuffixLen = 9

// NewID returns a unique identifier for a relay session.
func NewID() string {
	return uuid.NewString()
}

// NewUserID returns a client user id of the form user_xxxxxxxxx
// (nine lowercase alphanumerics), generated once per client process.
func NewUserID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "user_" + raw[:userIDSuffixLen]
}
