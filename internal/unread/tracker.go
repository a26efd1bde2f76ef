// Package unread maintains per-conversation unread counters and the
// first-unread marker. Counting is replay-safe: each message id is
// counted at most once regardless of reconnects or duplicated events.
package unread

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/teamdeck/teamdeck/internal/core"
	"github.com/teamdeck/teamdeck/internal/types"
)

// Tracker holds unread state for one local user. Not safe for concurrent
// use; the owning session serializes all mutation entry points.
type Tracker struct {
	localUserID string
	counts      map[string]int
	mentions    map[string]int
	firstUnread map[string]string
	counted     map[string]struct{}
	mutes       []mutePattern
}

type mutePattern struct {
	raw string
	g   glob.Glob
}

// New returns a tracker for the given local user.
func New(localUserID string) *Tracker {
	return &Tracker{
		localUserID: localUserID,
		counts:      make(map[string]int),
		mentions:    make(map[string]int),
		firstUnread: make(map[string]string),
		counted:     make(map[string]struct{}),
	}
}

// OnInbound considers one inbound message for the given conversation and
// returns true when it incremented the counter. A message qualifies only
// if it was authored by someone else, is not deleted, has not already
// been read by the local user, its conversation is not muted, and it has
// not been counted before.
func (t *Tracker) OnInbound(key string, msg types.Message) bool {
	if msg.From == t.localUserID {
		return false
	}
	if msg.Deleted() {
		return false
	}
	if msg.ReadByUser(t.localUserID) {
		return false
	}
	if t.Muted(key) {
		return false
	}
	if _, dup := t.counted[msg.ID]; dup {
		return false
	}
	t.counted[msg.ID] = struct{}{}
	t.counts[key]++
	if core.MentionsUser(msg.Mentions, t.localUserID) {
		t.mentions[key]++
	}
	if _, ok := t.firstUnread[key]; !ok {
		t.firstUnread[key] = msg.ID
	}
	return true
}

// OnDeleted retracts a previously counted message that was deleted
// before the user saw it, so counters never overstate the backlog.
func (t *Tracker) OnDeleted(key, msgID string) {
	if _, ok := t.counted[msgID]; !ok {
		return
	}
	delete(t.counted, msgID)
	if t.counts[key] > 0 {
		t.counts[key]--
	}
	if t.counts[key] == 0 {
		delete(t.counts, key)
		delete(t.firstUnread, key)
		delete(t.mentions, key)
	} else if t.firstUnread[key] == msgID {
		delete(t.firstUnread, key)
	}
}

// MarkViewed resets a conversation to clean. Called when the user is
// actively viewing it scrolled to the bottom.
func (t *Tracker) MarkViewed(key string) {
	delete(t.counts, key)
	delete(t.mentions, key)
	delete(t.firstUnread, key)
}

// Count returns the unread counter for a conversation. Never negative;
// conversations with no qualifying inbound messages have no entry.
func (t *Tracker) Count(key string) int {
	return t.counts[key]
}

// MentionCount returns how many unread messages mention the local user.
func (t *Tracker) MentionCount(key string) int {
	return t.mentions[key]
}

// FirstUnread returns the id of the oldest unread message, if any.
func (t *Tracker) FirstUnread(key string) (string, bool) {
	id, ok := t.firstUnread[key]
	return id, ok
}

// Counts returns a copy of all non-zero counters.
func (t *Tracker) Counts() map[string]int {
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// Mute suppresses unread counting for conversations matching the glob
// pattern ("equipment-*" or an exact key). Invalid patterns are rejected.
func (t *Tracker) Mute(pattern string) error {
	g, err := glob.Compile(strings.ToLower(pattern))
	if err != nil {
		return err
	}
	for _, m := range t.mutes {
		if m.raw == pattern {
			return nil
		}
	}
	t.mutes = append(t.mutes, mutePattern{raw: pattern, g: g})
	return nil
}

// Unmute removes a previously added mute pattern.
func (t *Tracker) Unmute(pattern string) {
	for i, m := range t.mutes {
		if m.raw == pattern {
			t.mutes = append(t.mutes[:i], t.mutes[i+1:]...)
			return
		}
	}
}

// Muted reports whether a conversation key matches any mute pattern.
func (t *Tracker) Muted(key string) bool {
	lower := strings.ToLower(key)
	for _, m := range t.mutes {
		if m.g.Match(lower) {
			return true
		}
	}
	return false
}
