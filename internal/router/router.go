// Package router maps messages to logical conversations and derives the
// visible subset for the active one. Conversations are not stored
// anywhere: the key is a pure function of (recipient, author, local user).
package router

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/teamdeck/teamdeck/internal/types"
)

// Broadcast is the key of the shared conversation with no recipient.
const Broadcast = "broadcast"

// KeyOf returns the conversation key for a message: Broadcast when there
// is no recipient, otherwise the counterpart's user id.
func KeyOf(msg types.Message, localUserID string) string {
	if msg.To == nil {
		return Broadcast
	}
	if msg.From == localUserID {
		return *msg.To
	}
	return msg.From
}

// Filter returns the chronological subsequence of messages visible in
// the given conversation. Soft-deleted messages are excluded everywhere.
func Filter(all []types.Message, key, localUserID string) []types.Message {
	out := make([]types.Message, 0, len(all))
	for _, msg := range all {
		if msg.Deleted() {
			continue
		}
		if visibleIn(msg, key, localUserID) {
			out = append(out, msg)
		}
	}
	return out
}

func visibleIn(msg types.Message, key, localUserID string) bool {
	if key == Broadcast {
		return msg.To == nil
	}
	if msg.To == nil {
		return false
	}
	return (msg.From == localUserID && *msg.To == key) ||
		(msg.From == key && *msg.To == localUserID)
}

// Search narrows a filtered view to messages whose body or author
// matches the query, case-insensitively.
func Search(msgs []types.Message, query string) []types.Message {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return msgs
	}
	out := make([]types.Message, 0, len(msgs))
	for _, msg := range msgs {
		if strings.Contains(strings.ToLower(msg.Body), q) ||
			strings.Contains(strings.ToLower(msg.From), q) {
			out = append(out, msg)
		}
	}
	return out
}

// SearchAuthor narrows a view to authors matching a glob pattern, e.g.
// "support-*". Invalid patterns match nothing.
func SearchAuthor(msgs []types.Message, pattern string) []types.Message {
	g, err := glob.Compile(strings.ToLower(pattern))
	if err != nil {
		return nil
	}
	out := make([]types.Message, 0, len(msgs))
	for _, msg := range msgs {
		if g.Match(strings.ToLower(msg.From)) {
			out = append(out, msg)
		}
	}
	return out
}

// Pinned returns the pinned messages of a view, preserving order.
func Pinned(msgs []types.Message) []types.Message {
	out := make([]types.Message, 0)
	for _, msg := range msgs {
		if msg.Pin != nil {
			out = append(out, msg)
		}
	}
	return out
}

// Keys returns the distinct conversation keys present in a message set,
// in first-appearance order.
func Keys(all []types.Message, localUserID string) []string {
	seen := map[string]struct{}{}
	keys := make([]string, 0)
	for _, msg := range all {
		key := KeyOf(msg, localUserID)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys
}
