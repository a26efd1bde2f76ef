// Package store holds the canonical ordered message collection for a
// chat session. Mutations never fail: duplicate inserts and patches for
// unknown ids are silently ignored, which makes the store safe against
// replayed, duplicated, or out-of-order push events.
package store

import (
	"sort"

	"github.com/teamdeck/teamdeck/internal/types"
)

// Store is an ordered collection of messages keyed by id. Ordering is by
// (ts, id) so equal timestamps stay stable. Not safe for concurrent use;
// the owning session serializes all mutation entry points.
type Store struct {
	messages []types.Message
	ids      map[string]struct{}
}

// New returns an empty store.
func New() *Store {
	return &Store{ids: make(map[string]struct{})}
}

// Len returns the number of messages, including soft-deleted ones.
func (s *Store) Len() int {
	return len(s.messages)
}

// All returns the messages in chronological order. The returned slice is
// a copy; callers may not mutate stored messages through it.
func (s *Store) All() []types.Message {
	out := make([]types.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Get returns a copy of the message with the given id.
func (s *Store) Get(id string) (types.Message, bool) {
	i := s.find(id)
	if i < 0 {
		return types.Message{}, false
	}
	return s.messages[i], true
}

// Insert adds a message in timestamp order. Inserting an id that already
// exists is a no-op; this is what de-duplicates an optimistic message
// against its own server echo.
func (s *Store) Insert(msg types.Message) bool {
	if msg.ID == "" {
		return false
	}
	if _, ok := s.ids[msg.ID]; ok {
		return false
	}
	pos := sort.Search(len(s.messages), func(i int) bool {
		m := s.messages[i]
		if m.TS != msg.TS {
			return m.TS > msg.TS
		}
		return m.ID > msg.ID
	})
	s.messages = append(s.messages, types.Message{})
	copy(s.messages[pos+1:], s.messages[pos:])
	s.messages[pos] = msg
	s.ids[msg.ID] = struct{}{}
	return true
}

// Prepend inserts a batch of older messages, skipping ids already
// present. Returns the number actually added.
func (s *Store) Prepend(older []types.Message) int {
	added := 0
	for _, msg := range older {
		if s.Insert(msg) {
			added++
		}
	}
	return added
}

// ApplyUpdate patches a message in place. Unknown ids are ignored: the
// event may target a message outside this client's loaded window.
func (s *Store) ApplyUpdate(id string, patch types.MessagePatch) bool {
	i := s.find(id)
	if i < 0 {
		return false
	}
	msg := &s.messages[i]
	if patch.Body != nil {
		msg.Body = *patch.Body
	}
	if patch.EditedAt != nil {
		msg.EditedAt = patch.EditedAt
	}
	if patch.Reactions != nil {
		msg.Reactions = cloneReactions(patch.Reactions)
	}
	if patch.ReadBy != nil {
		msg.ReadBy = append([]string(nil), patch.ReadBy...)
	}
	for _, reader := range patch.AddReadBy {
		if !msg.ReadByUser(reader) {
			msg.ReadBy = append(msg.ReadBy, reader)
		}
	}
	if patch.Pin.Set {
		msg.Pin = patch.Pin.Value
	}
	return true
}

// ApplyDelete soft-deletes a message. The row is retained so a replayed
// insert for the same id stays a no-op.
func (s *Store) ApplyDelete(id string, deletedAt int64) bool {
	i := s.find(id)
	if i < 0 {
		return false
	}
	if s.messages[i].DeletedAt != nil {
		return true
	}
	s.messages[i].DeletedAt = &deletedAt
	return true
}

// SetReaction records one user's reaction, last-write-wins per user.
// An empty kind clears the user's reaction.
func (s *Store) SetReaction(id, userID, kind string) bool {
	i := s.find(id)
	if i < 0 {
		return false
	}
	msg := &s.messages[i]
	if kind == "" {
		delete(msg.Reactions, userID)
		return true
	}
	if msg.Reactions == nil {
		msg.Reactions = make(map[string]string)
	}
	msg.Reactions[userID] = kind
	return true
}

// Remove hard-removes a message. Only the optimistic-send rollback path
// uses this; remote deletes always go through ApplyDelete.
func (s *Store) Remove(id string) bool {
	i := s.find(id)
	if i < 0 {
		return false
	}
	s.messages = append(s.messages[:i], s.messages[i+1:]...)
	delete(s.ids, id)
	return true
}

// FindByClientTag returns the message carrying the given correlation tag.
// Used when the server assigns its own id to an optimistic send.
func (s *Store) FindByClientTag(tag string) (types.Message, bool) {
	if tag == "" {
		return types.Message{}, false
	}
	for _, msg := range s.messages {
		if msg.ClientTag == tag {
			return msg, true
		}
	}
	return types.Message{}, false
}

// Oldest returns the cursor of the oldest loaded message, or nil when
// the store is empty.
func (s *Store) Oldest() *types.MessageCursor {
	if len(s.messages) == 0 {
		return nil
	}
	m := s.messages[0]
	return &types.MessageCursor{ID: m.ID, TS: m.TS}
}

func (s *Store) find(id string) int {
	if _, ok := s.ids[id]; !ok {
		return -1
	}
	for i := range s.messages {
		if s.messages[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneReactions(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
