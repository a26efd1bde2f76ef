package chat

import (
	"context"

	"github.com/teamdeck/teamdeck/internal/logger"
	"github.com/teamdeck/teamdeck/internal/router"
	"github.com/teamdeck/teamdeck/internal/types"
)

// HandleEvent merges one remote mutation into the store. Events are
// assumed at-least-once and possibly out of order: inserts are
// idempotent, update/delete for unknown ids are no-ops, and unknown
// event shapes are logged and dropped, never fatal.
func (s *Session) HandleEvent(ctx context.Context, ev types.Event) {
	switch ev.Kind {
	case types.EventInsert:
		s.handleInsert(ctx, ev)
	case types.EventUpdate:
		s.handleUpdate(ctx, ev)
	case types.EventDelete:
		s.handleDelete(ctx, ev)
	default:
		logger.Warn("dropping unrecognized event", "kind", string(ev.Kind))
	}
}

// HandleRaw decodes a loosely-typed push payload and merges it.
// Malformed payloads are logged and dropped.
func (s *Session) HandleRaw(ctx context.Context, payload []byte) {
	ev, err := types.ParseEvent(payload)
	if err != nil {
		logger.Warn("dropping malformed event", "error", err)
		return
	}
	s.HandleEvent(ctx, ev)
}

func (s *Session) handleInsert(ctx context.Context, ev types.Event) {
	if ev.Message == nil {
		logger.Warn("dropping insert event without message")
		return
	}
	msg := *ev.Message

	s.mu.Lock()
	// A server that assigns its own ids echoes the client tag back;
	// replace the optimistic copy instead of duplicating it.
	var supersededID string
	if msg.ClientTag != "" && msg.ClientTag != msg.ID {
		if prior, ok := s.store.FindByClientTag(msg.ClientTag); ok && prior.ID != msg.ID {
			s.store.Remove(prior.ID)
			supersededID = prior.ID
		}
	}

	inserted := s.store.Insert(msg)
	key := router.KeyOf(msg, s.identity.UserID)

	counted := false
	if inserted {
		counted = s.unread.OnInbound(key, msg)
	}

	// Inbound message for the conversation the user is actively viewing
	// at the bottom: it is read the moment it lands.
	readImmediately := counted && key == s.active && s.atBottom
	if readImmediately {
		s.unread.MarkViewed(key)
		s.store.ApplyUpdate(msg.ID, types.MessagePatch{AddReadBy: []string{s.identity.UserID}})
	}
	s.mu.Unlock()

	if readImmediately {
		s.propagateRead(ctx, msg.ID)
	}
	// The optimistic send already persisted a row under the client id;
	// drop it so pagination after a reload sees one row per message.
	if supersededID != "" && s.deps.History != nil {
		if err := s.deps.History.Delete(ctx, supersededID); err != nil {
			logger.Debug("history cleanup failed", "message", supersededID, "error", err)
		}
	}
	if inserted {
		s.persist(ctx, key, msg)
	}
}

func (s *Session) handleUpdate(ctx context.Context, ev types.Event) {
	if ev.ID == "" || ev.Patch == nil {
		logger.Warn("dropping malformed update event", "id", ev.ID)
		return
	}
	s.mu.Lock()
	applied := s.store.ApplyUpdate(ev.ID, *ev.Patch)
	var updated types.Message
	var key string
	if applied {
		updated, _ = s.store.Get(ev.ID)
		key = router.KeyOf(updated, s.identity.UserID)
	}
	s.mu.Unlock()

	if !applied {
		// The message may sit outside this client's loaded window, e.g.
		// after a reload. Ignored, not an error.
		logger.Debug("update for unknown message", "id", ev.ID)
		return
	}
	s.persist(ctx, key, updated)
}

func (s *Session) handleDelete(ctx context.Context, ev types.Event) {
	if ev.ID == "" {
		logger.Warn("dropping malformed delete event")
		return
	}
	deletedAt := ev.TS
	if deletedAt == 0 {
		deletedAt = nowMilli()
	}

	s.mu.Lock()
	applied := s.store.ApplyDelete(ev.ID, deletedAt)
	var key string
	if applied {
		msg, _ := s.store.Get(ev.ID)
		key = router.KeyOf(msg, s.identity.UserID)
		// A delete that lands before the user saw the message retracts
		// its unread count.
		s.unread.OnDeleted(key, ev.ID)
	}
	s.mu.Unlock()

	if !applied {
		logger.Debug("delete for unknown message", "id", ev.ID)
		return
	}
	if s.deps.History != nil {
		if err := s.deps.History.MarkDeleted(ctx, ev.ID, deletedAt); err != nil {
			logger.Debug("history delete failed", "message", ev.ID, "error", err)
		}
	}
}
