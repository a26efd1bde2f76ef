package chat

import (
	"context"
	"time"

	"github.com/teamdeck/teamdeck/internal/logger"
	"github.com/teamdeck/teamdeck/internal/router"
	"github.com/teamdeck/teamdeck/internal/types"
)

// OpenConversation switches the active conversation. When the viewport
// is at the bottom the conversation is marked viewed immediately.
func (s *Session) OpenConversation(ctx context.Context, key string) {
	s.mu.Lock()
	s.active = key
	shouldMark := s.atBottom
	s.mu.Unlock()
	if shouldMark {
		s.markViewed(ctx, key)
	}
}

// SetViewport feeds in the rendering layer's "scrolled to bottom and
// visible" signal. The engine treats it as an external input.
func (s *Session) SetViewport(ctx context.Context, atBottom bool) {
	s.mu.Lock()
	s.atBottom = atBottom
	key := s.active
	s.mu.Unlock()
	if atBottom && key != "" {
		s.markViewed(ctx, key)
	}
}

// markViewed resets the unread counter and propagates read receipts for
// every visible message authored by someone else that the local user
// has not read yet. Local state updates immediately; the remote append
// is best-effort and failures are swallowed; read state self-heals on
// the next successful sync.
func (s *Session) markViewed(ctx context.Context, key string) {
	s.mu.Lock()
	var toPropagate []string
	for _, msg := range router.Filter(s.store.All(), key, s.identity.UserID) {
		if msg.From == s.identity.UserID || msg.ReadByUser(s.identity.UserID) {
			continue
		}
		s.store.ApplyUpdate(msg.ID, types.MessagePatch{AddReadBy: []string{s.identity.UserID}})
		toPropagate = append(toPropagate, msg.ID)
	}
	s.unread.MarkViewed(key)
	s.mu.Unlock()

	for _, id := range toPropagate {
		s.propagateRead(ctx, id)
	}
}

// propagateRead pushes one read receipt remotely, best-effort. The
// append-only call keeps concurrent readers from clobbering each other.
func (s *Session) propagateRead(ctx context.Context, messageID string) {
	if s.deps.Writer == nil {
		return
	}
	if err := s.deps.Writer.AppendRead(ctx, messageID, s.identity.UserID); err != nil {
		logger.Debug("read receipt propagation failed", "message", messageID, "error", err)
	}
}

func nowMilli() int64 {
	return time.Now().UnixMilli()
}
