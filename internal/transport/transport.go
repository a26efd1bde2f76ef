// Package transport defines the narrow interfaces the sync engine
// consumes: a mutation event stream, a topic broadcast channel, and a
// persistence writer. Delivery is assumed at-least-once with no ordering
// guarantee across topics; the engine is built to tolerate that.
package transport

import (
	"context"

	"github.com/teamdeck/teamdeck/internal/types"
)

// Broadcast topics used by the engine.
const (
	TopicPresence = "presence"
	TopicTyping   = "typing"
)

// EventStream yields insert/update/delete notifications for the message
// collection the session is subscribed to.
type EventStream interface {
	// Events returns the push channel. The channel closes when the
	// stream shuts down.
	Events() <-chan types.Event
}

// Broadcast is a publish/subscribe channel keyed by topic, used for
// presence heartbeats and typing signals.
type Broadcast interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe registers a handler and returns a cancel function.
	// Handlers must be fast; slow work belongs on the caller's loop.
	Subscribe(topic string, fn func(payload []byte)) (cancel func())
}

// MessageWriter persists message mutations. Per-call atomicity only; no
// transactionality is assumed.
type MessageWriter interface {
	Insert(ctx context.Context, msg types.Message) error
	Update(ctx context.Context, id string, patch types.MessagePatch) error
	// AppendRead appends one reader to a message's read-by set. Kept as
	// its own call so concurrent readers never overwrite each other.
	AppendRead(ctx context.Context, id, userID string) error
}
