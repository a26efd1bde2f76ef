// Package chat wires the synchronization engine together: one Session
// owns the message store and dispatches every mutation entry point
// (sends, remote events, viewport changes) from a single point, so
// derived state (conversation views, unread counts) is always computed
// from a consistent store.
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/teamdeck/teamdeck/internal/history"
	"github.com/teamdeck/teamdeck/internal/logger"
	"github.com/teamdeck/teamdeck/internal/presence"
	"github.com/teamdeck/teamdeck/internal/router"
	"github.com/teamdeck/teamdeck/internal/store"
	"github.com/teamdeck/teamdeck/internal/transport"
	"github.com/teamdeck/teamdeck/internal/typing"
	"github.com/teamdeck/teamdeck/internal/types"
	"github.com/teamdeck/teamdeck/internal/unread"
)

// Config tunes a session. Zero values take defaults.
type Config struct {
	MaxBodyLength int
	RateWindow    time.Duration
	RateCeiling   int
	PageSize      int
	Presence      presence.Config
	Typing        typing.Config
}

// Deps are the external collaborators a session consumes. History is
// optional; without it pagination is disabled.
type Deps struct {
	Stream    transport.EventStream
	Broadcast transport.Broadcast
	Writer    transport.MessageWriter
	History   *history.Store
}

// Session is the per-client synchronization engine. All mutation entry
// points run under one mutex, mirroring a single-threaded event loop:
// each runs to completion, so the store never observes a torn update.
type Session struct {
	mu sync.Mutex

	identity types.Identity
	cfg      Config

	store    *store.Store
	unread   *unread.Tracker
	presence *presence.Tracker
	typing   *typing.Coordinator
	guard    *SendGuard
	loader   *history.Loader

	deps Deps

	compose  string
	active   string
	atBottom bool

	done      chan struct{}
	closeOnce sync.Once
	loopEnded chan struct{}
}

// New assembles a session for the given identity. Call Start to begin
// consuming the event stream and broadcasting presence.
func New(identity types.Identity, deps Deps, cfg Config) *Session {
	s := &Session{
		identity: identity,
		cfg:      cfg,
		store:    store.New(),
		unread:   unread.New(identity.UserID),
		guard:    NewSendGuard(cfg.RateWindow, cfg.RateCeiling),
		deps:     deps,
		active:   router.Broadcast,
		atBottom: true,
	}
	if deps.Broadcast != nil {
		s.presence = presence.New(identity.UserID, deps.Broadcast, cfg.Presence)
		s.typing = typing.New(identity.UserID, deps.Broadcast, cfg.Typing)
	}
	if deps.History != nil {
		s.loader = history.NewLoader(deps.History, identity.UserID, cfg.PageSize)
	}
	return s
}

// Start launches the presence tracker and the event consumption loop.
func (s *Session) Start(ctx context.Context) {
	if s.presence != nil {
		s.presence.Start(ctx)
	}
	if s.deps.Stream == nil {
		return
	}
	s.done = make(chan struct{})
	s.loopEnded = make(chan struct{})
	go func() {
		defer close(s.loopEnded)
		events := s.deps.Stream.Events()
		for {
			select {
			case <-s.done:
				return
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				s.HandleEvent(ctx, ev)
			}
		}
	}()
}

// Close tears down timers and subscriptions. The store stays readable:
// closing the chat surface must not drop session state.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.done != nil {
			close(s.done)
			<-s.loopEnded
		}
		if s.presence != nil {
			s.presence.Stop()
		}
		if s.typing != nil {
			s.typing.Close()
		}
	})
}

// View returns the active conversation's visible messages.
func (s *Session) View() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return router.Filter(s.store.All(), s.active, s.identity.UserID)
}

// ViewOf returns another conversation's visible messages without
// switching to it.
func (s *Session) ViewOf(key string) []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return router.Filter(s.store.All(), key, s.identity.UserID)
}

// Messages returns the full store contents, deleted rows included.
func (s *Session) Messages() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.All()
}

// ActiveConversation returns the current conversation key.
func (s *Session) ActiveConversation() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ComposeBuffer returns the compose field contents.
func (s *Session) ComposeBuffer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compose
}

// SetCompose replaces the compose field, forwarding a throttled typing
// broadcast when text is present.
func (s *Session) SetCompose(ctx context.Context, text string) {
	s.mu.Lock()
	s.compose = text
	s.mu.Unlock()
	if text != "" && s.typing != nil {
		s.typing.NotifyLocal(ctx)
	}
}

// Unread returns the unread counter for a conversation.
func (s *Session) Unread(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread.Count(key)
}

// UnreadCounts returns all non-zero unread counters.
func (s *Session) UnreadCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread.Counts()
}

// FirstUnread returns the first-unread marker for a conversation.
func (s *Session) FirstUnread(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread.FirstUnread(key)
}

// Mute suppresses unread accounting for conversations matching the
// pattern.
func (s *Session) Mute(pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread.Mute(pattern)
}

// Unmute removes a mute pattern.
func (s *Session) Unmute(pattern string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unread.Unmute(pattern)
}

// Presence returns the presence tracker, nil without a broadcast channel.
func (s *Session) Presence() *presence.Tracker {
	return s.presence
}

// Typing returns the typing coordinator, nil without a broadcast channel.
func (s *Session) Typing() *typing.Coordinator {
	return s.typing
}

// LoadOlder pages older history into the store for the given
// conversation. Returns history.ErrFetchInFlight when a fetch for that
// conversation is already running.
func (s *Session) LoadOlder(ctx context.Context, key string) (int, error) {
	if s.loader == nil {
		return 0, nil
	}
	// The loader carries its own single-flight state; the session mutex
	// is only taken around store access, not across the fetch, so a slow
	// page never stalls event handling.
	added, err := s.loader.LoadOlder(ctx, key, lockedTarget{s})
	if err != nil {
		logger.Warn("history load failed", "conversation", key, "error", err)
	}
	return added, err
}

// lockedTarget exposes the session store to the loader under the
// session mutex.
type lockedTarget struct {
	s *Session
}

func (t lockedTarget) All() []types.Message {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.store.All()
}

func (t lockedTarget) Prepend(older []types.Message) int {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return t.s.store.Prepend(older)
}

// HistoryExhausted reports whether a conversation has no more pages.
func (s *Session) HistoryExhausted(key string) bool {
	if s.loader == nil {
		return true
	}
	return s.loader.Exhausted(key)
}

func (s *Session) rosterBases() map[string]struct{} {
	bases := make(map[string]struct{}, len(s.identity.Roster))
	for _, p := range s.identity.Roster {
		bases[p.ID] = struct{}{}
	}
	return bases
}
