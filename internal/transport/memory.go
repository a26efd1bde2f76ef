package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/teamdeck/teamdeck/internal/types"
)

// ErrWriteFailed is returned by MemoryWriter when failure injection is on.
var ErrWriteFailed = errors.New("write failed")

// MemoryBroadcast is an in-process Broadcast for tests and single-node
// deployments. Publishes are delivered synchronously to local
// subscribers.
type MemoryBroadcast struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]func(payload []byte)
}

// NewMemoryBroadcast returns an empty broadcast hub.
func NewMemoryBroadcast() *MemoryBroadcast {
	return &MemoryBroadcast{subs: make(map[string]map[int]func(payload []byte))}
}

// Publish delivers the payload to every subscriber of the topic.
func (b *MemoryBroadcast) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	handlers := make([]func(payload []byte), 0, len(b.subs[topic]))
	for _, fn := range b.subs[topic] {
		handlers = append(handlers, fn)
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(payload)
	}
	return nil
}

// Subscribe registers a topic handler.
func (b *MemoryBroadcast) Subscribe(topic string, fn func(payload []byte)) (cancel func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]func(payload []byte))
	}
	id := b.nextID
	b.nextID++
	b.subs[topic][id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
	}
}

// MemoryStream is an in-process EventStream fed by tests.
type MemoryStream struct {
	ch chan types.Event
}

// NewMemoryStream returns a stream with a small buffer.
func NewMemoryStream() *MemoryStream {
	return &MemoryStream{ch: make(chan types.Event, 64)}
}

// Events implements EventStream.
func (s *MemoryStream) Events() <-chan types.Event {
	return s.ch
}

// Push enqueues an event.
func (s *MemoryStream) Push(ev types.Event) {
	s.ch <- ev
}

// Close closes the stream.
func (s *MemoryStream) Close() {
	close(s.ch)
}

// MemoryWriter records writes in memory with optional failure injection.
type MemoryWriter struct {
	mu       sync.Mutex
	fail     bool
	Inserts  []types.Message
	Updates  map[string][]types.MessagePatch
	ReadsFor map[string][]string
}

// NewMemoryWriter returns an empty writer.
func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{
		Updates:  make(map[string][]types.MessagePatch),
		ReadsFor: make(map[string][]string),
	}
}

// SetFail toggles failure injection for all subsequent calls.
func (w *MemoryWriter) SetFail(fail bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fail = fail
}

// Insert implements MessageWriter.
func (w *MemoryWriter) Insert(ctx context.Context, msg types.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return ErrWriteFailed
	}
	w.Inserts = append(w.Inserts, msg)
	return nil
}

// Update implements MessageWriter.
func (w *MemoryWriter) Update(ctx context.Context, id string, patch types.MessagePatch) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return ErrWriteFailed
	}
	w.Updates[id] = append(w.Updates[id], patch)
	return nil
}

// AppendRead implements MessageWriter.
func (w *MemoryWriter) AppendRead(ctx context.Context, id, userID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return ErrWriteFailed
	}
	w.ReadsFor[id] = append(w.ReadsFor[id], userID)
	return nil
}

// InsertCount returns the number of recorded inserts.
func (w *MemoryWriter) InsertCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.Inserts)
}

// Reads returns a copy of the readers recorded for a message.
func (w *MemoryWriter) Reads(id string) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.ReadsFor[id]...)
}
