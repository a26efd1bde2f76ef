package types

// PresenceStatus represents a participant's availability.
type PresenceStatus string

const (
	PresenceOnline  PresenceStatus = "online"
	PresenceAway    PresenceStatus = "away"
	PresenceDND     PresenceStatus = "dnd"
	PresenceOffline PresenceStatus = "offline"
)

// ReplyRef references a message being replied to, with a denormalized
// preview so the reply renders without a second lookup.
type ReplyRef struct {
	ID      string `json:"id"`
	Author  string `json:"author,omitempty"`
	Preview string `json:"preview,omitempty"`
}

// Pin records who pinned a message and when.
type Pin struct {
	By string `json:"by"`
	At int64  `json:"at"`
}

// Message represents one chat message. Timestamps are unix milliseconds.
type Message struct {
	ID        string            `json:"id"`
	TS        int64             `json:"ts"`
	From      string            `json:"from"`
	To        *string           `json:"to,omitempty"` // nil = broadcast
	Body      string            `json:"body"`
	ReplyTo   *ReplyRef         `json:"reply_to,omitempty"`
	Mentions  []string          `json:"mentions,omitempty"`
	Reactions map[string]string `json:"reactions,omitempty"` // user -> reaction kind
	ReadBy    []string          `json:"read_by,omitempty"`
	Pin       *Pin              `json:"pin,omitempty"`
	TaskID    *string           `json:"task_id,omitempty"` // opaque related-task link
	ClientTag string            `json:"client_tag,omitempty"`
	EditedAt  *int64            `json:"edited_at,omitempty"`
	DeletedAt *int64            `json:"deleted_at,omitempty"`
}

// Deleted reports whether the message is soft-deleted.
func (m Message) Deleted() bool {
	return m.DeletedAt != nil
}

// ReadByUser reports whether the given user appears in the read-by list.
func (m Message) ReadByUser(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// OptionalPin represents a pin update: Set=false leaves the pin alone,
// Set=true with nil Value clears it.
type OptionalPin struct {
	Set   bool
	Value *Pin
}

// MessagePatch is an update applied to a stored message. Each non-nil
// field group replaces the previous value wholesale; AddReadBy is the
// append-only exception so concurrent readers touch disjoint entries.
type MessagePatch struct {
	Body      *string           `json:"body,omitempty"`
	EditedAt  *int64            `json:"edited_at,omitempty"`
	Reactions map[string]string `json:"reactions,omitempty"`
	ReadBy    []string          `json:"read_by,omitempty"`
	AddReadBy []string          `json:"add_read_by,omitempty"`
	Pin       OptionalPin       `json:"-"`
}

// MessageCursor is a stable paging cursor over (ts, id).
type MessageCursor struct {
	ID string `json:"id"`
	TS int64  `json:"ts"`
}

// Heartbeat is the presence broadcast payload.
type Heartbeat struct {
	UserID string         `json:"user_id"`
	Status PresenceStatus `json:"status"`
	TS     int64          `json:"ts"`
}

// PresenceRecord is the client-local projection of a peer's presence.
type PresenceRecord struct {
	UserID   string         `json:"user_id"`
	Status   PresenceStatus `json:"status"`
	LastSeen int64          `json:"last_seen"`
}

// TypingSignal is the typing broadcast payload.
type TypingSignal struct {
	UserID string `json:"user_id"`
	Typing bool   `json:"typing"`
	TS     int64  `json:"ts"`
}

// Participant is roster display metadata, read-only to the engine.
type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Identity is the local user plus the participant roster.
type Identity struct {
	UserID string
	Name   string
	Roster []Participant
}
