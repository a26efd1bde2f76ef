package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/teamdeck/teamdeck/internal/core"
	"github.com/teamdeck/teamdeck/internal/logger"
	"github.com/teamdeck/teamdeck/internal/router"
	"github.com/teamdeck/teamdeck/internal/types"
)

// ErrSendFailed wraps a network failure on the optimistic send path.
// The store has already been rolled back when it is returned.
var ErrSendFailed = errors.New("message not sent")

// SendOptions carries per-send metadata beyond the body text.
type SendOptions struct {
	Conversation string          // defaults to the active conversation
	ReplyTo      *types.ReplyRef // optional reply reference
	TaskID       *string         // optional related-task link
}

// SendOutcome reports what happened to a send attempt.
type SendOutcome struct {
	// Message is the accepted message, nil when throttled or rejected.
	Message *types.Message
	// RetryAfter is non-zero when the send-rate guard deferred the send.
	RetryAfter time.Duration
}

// Send validates, paces, and optimistically appends a message, then
// issues the network write. On write failure the optimistic copy is
// rolled back and the compose buffer restored so the user can retry.
//
// The caller is expected to run Send off its render loop (the network
// write awaits the transport); the optimistic insert happens before the
// write, so views refresh immediately.
func (s *Session) Send(ctx context.Context, text string, opts SendOptions) (SendOutcome, error) {
	body, err := core.ValidateBody(text, s.cfg.MaxBodyLength)
	if err != nil {
		return SendOutcome{}, err
	}

	if wait, ok := s.guard.Allow(); !ok {
		// Throttled sends must not touch the store or compose buffer.
		return SendOutcome{RetryAfter: wait}, nil
	}

	s.mu.Lock()
	conversation := opts.Conversation
	if conversation == "" {
		conversation = s.active
	}

	msg := types.Message{
		ID:       core.NewMessageID(),
		TS:       time.Now().UnixMilli(),
		From:     s.identity.UserID,
		Body:     body,
		ReplyTo:  opts.ReplyTo,
		Mentions: core.ExtractMentions(body, s.rosterBases()),
		ReadBy:   []string{s.identity.UserID},
		TaskID:   opts.TaskID,
	}
	msg.ClientTag = msg.ID
	if conversation != router.Broadcast {
		to := conversation
		msg.To = &to
	}

	s.store.Insert(msg)
	s.compose = ""
	s.mu.Unlock()

	if s.typing != nil {
		s.typing.NotifyStopped(ctx)
	}

	if s.deps.Writer != nil {
		if err := s.deps.Writer.Insert(ctx, msg); err != nil {
			// The one case where a local mutation is rolled back rather
			// than merged: never leave a phantom message behind.
			s.mu.Lock()
			s.store.Remove(msg.ID)
			if s.compose == "" {
				s.compose = text
			}
			s.mu.Unlock()
			logger.Warn("send failed", "message", msg.ID, "error", err)
			return SendOutcome{}, fmt.Errorf("%w: %v", ErrSendFailed, err)
		}
	}

	s.persist(ctx, conversation, msg)
	return SendOutcome{Message: &msg}, nil
}

// React records the local user's reaction and pushes it remotely,
// best-effort. An empty kind clears the reaction.
func (s *Session) React(ctx context.Context, messageID, kind string) {
	s.mu.Lock()
	if !s.store.SetReaction(messageID, s.identity.UserID, kind) {
		s.mu.Unlock()
		return
	}
	msg, _ := s.store.Get(messageID)
	s.mu.Unlock()

	if s.deps.Writer != nil {
		patch := types.MessagePatch{Reactions: msg.Reactions}
		if err := s.deps.Writer.Update(ctx, messageID, patch); err != nil {
			// Swallowed: reaction state self-heals on the next sync.
			logger.Debug("reaction update failed", "message", messageID, "error", err)
		}
	}
}

// persist mirrors a confirmed message into the history store.
func (s *Session) persist(ctx context.Context, conversation string, msg types.Message) {
	if s.deps.History == nil {
		return
	}
	if err := s.deps.History.Append(ctx, conversation, msg); err != nil {
		logger.Debug("history append failed", "message", msg.ID, "error", err)
	}
}
