package history

import (
	"context"
	"errors"
	"sync"

	"github.com/teamdeck/teamdeck/internal/router"
	"github.com/teamdeck/teamdeck/internal/types"
)

// ErrFetchInFlight is returned when a conversation already has a page
// fetch in progress. The single-flight guard keeps a fast scroll from
// issuing overlapping fetches.
var ErrFetchInFlight = errors.New("history fetch already in flight")

// DefaultPageSize is the backward-fetch page size.
const DefaultPageSize = 50

// Target is the destination a loader prepends pages into. *store.Store
// satisfies it; the session supplies a mutex-wrapped adapter instead so
// a slow fetch never mutates the store unguarded.
type Target interface {
	All() []types.Message
	Prepend(older []types.Message) int
}

// Loader pages older history into the message store, one conversation
// at a time.
type Loader struct {
	store       *Store
	localUserID string
	pageSize    int

	mu    sync.Mutex
	state map[string]*convState
}

type convState struct {
	oldest    *types.MessageCursor
	exhausted bool
	inflight  bool
}

// NewLoader returns a loader over the given history store. pageSize <= 0
// applies the default.
func NewLoader(store *Store, localUserID string, pageSize int) *Loader {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Loader{
		store:       store,
		localUserID: localUserID,
		pageSize:    pageSize,
		state:       make(map[string]*convState),
	}
}

// LoadOlder fetches one page of messages strictly older than the oldest
// loaded one and prepends it to dst. Returns the number of messages
// added. A short page marks the conversation exhausted; a fetch error
// leaves the exhausted flag unset so a retry is possible.
func (l *Loader) LoadOlder(ctx context.Context, conversation string, dst Target) (int, error) {
	l.mu.Lock()
	st := l.stateFor(conversation)
	if st.inflight {
		l.mu.Unlock()
		return 0, ErrFetchInFlight
	}
	if st.exhausted {
		l.mu.Unlock()
		return 0, nil
	}
	cursor := st.oldest
	if cursor == nil {
		cursor = oldestInConversation(dst, conversation, l.localUserID)
	}
	st.inflight = true
	l.mu.Unlock()

	page, err := l.store.PageBefore(ctx, conversation, cursor, l.pageSize)

	l.mu.Lock()
	defer l.mu.Unlock()
	st.inflight = false
	if err != nil {
		return 0, err
	}
	if len(page) < l.pageSize {
		st.exhausted = true
	}
	if len(page) == 0 {
		return 0, nil
	}
	st.oldest = &types.MessageCursor{ID: page[0].ID, TS: page[0].TS}
	return dst.Prepend(page), nil
}

// Exhausted reports whether a conversation has no more history.
func (l *Loader) Exhausted(conversation string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stateFor(conversation).exhausted
}

// Reset forgets cursor state for a conversation, forcing the next load
// to re-derive it from the message store.
func (l *Loader) Reset(conversation string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.state, conversation)
}

func (l *Loader) stateFor(conversation string) *convState {
	st, ok := l.state[conversation]
	if !ok {
		st = &convState{}
		l.state[conversation] = st
	}
	return st
}

// oldestInConversation finds the oldest loaded message belonging to the
// conversation, soft-deleted ones included.
func oldestInConversation(dst Target, conversation, localUserID string) *types.MessageCursor {
	for _, msg := range dst.All() {
		if router.KeyOf(msg, localUserID) == conversation {
			return &types.MessageCursor{ID: msg.ID, TS: msg.TS}
		}
	}
	return nil
}
