package core

import (
	"strings"

	"github.com/google/uuid"
)

// NewMessageID creates a collision-resistant client-side message id.
// Optimistic sends mint ids locally, so uniqueness cannot depend on the
// server; a random UUID keeps echo deduplication id-based.
func NewMessageID() string {
	return "msg-" + uuid.NewString()
}

// IsMessageID reports whether the value looks like a message id.
func IsMessageID(value string) bool {
	if !strings.HasPrefix(value, "msg-") {
		return false
	}
	_, err := uuid.Parse(strings.TrimPrefix(value, "msg-"))
	return err == nil
}
