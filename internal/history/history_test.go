package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/teamdeck/teamdeck/internal/store"
	"github.com/teamdeck/teamdeck/internal/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}

func seed(t *testing.T, s *Store, conversation string, n int) []types.Message {
	t.Helper()
	ctx := context.Background()
	msgs := make([]types.Message, 0, n)
	for i := 0; i < n; i++ {
		msg := types.Message{
			ID:   fmt.Sprintf("msg-%04d", i),
			TS:   int64(1000 + i*10),
			From: "bob",
			Body: fmt.Sprintf("message %d", i),
		}
		if err := s.Append(ctx, conversation, msg); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func TestAppendIsIdempotentByID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	msg := types.Message{ID: "msg-1", TS: 100, From: "bob", Body: "hello"}
	if err := s.Append(ctx, "broadcast", msg); err != nil {
		t.Fatalf("append: %v", err)
	}
	msg.Body = "hello edited"
	if err := s.Append(ctx, "broadcast", msg); err != nil {
		t.Fatalf("replayed append: %v", err)
	}

	n, err := s.Count(ctx, "broadcast")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}

	page, err := s.PageBefore(ctx, "broadcast", nil, 10)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page) != 1 || page[0].Body != "hello edited" {
		t.Fatalf("expected upserted payload, got %+v", page)
	}
}

func TestPageBeforeReturnsChronologicalPages(t *testing.T) {
	s := openTestStore(t)
	msgs := seed(t, s, "broadcast", 7)
	ctx := context.Background()

	page, err := s.PageBefore(ctx, "broadcast", nil, 3)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(page))
	}
	// Newest page, chronological order.
	if page[0].ID != msgs[4].ID || page[2].ID != msgs[6].ID {
		t.Fatalf("unexpected page: %s..%s", page[0].ID, page[2].ID)
	}

	cursor := &types.MessageCursor{ID: page[0].ID, TS: page[0].TS}
	older, err := s.PageBefore(ctx, "broadcast", cursor, 3)
	if err != nil {
		t.Fatalf("older page: %v", err)
	}
	if len(older) != 3 || older[0].ID != msgs[1].ID || older[2].ID != msgs[3].ID {
		t.Fatalf("unexpected older page: %+v", older)
	}
}

func TestPageBeforeSeparatesConversations(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, "broadcast", 3)
	seed(t, s, "bob", 2)
	ctx := context.Background()

	page, err := s.PageBefore(ctx, "bob", nil, 10)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 messages in bob conversation, got %d", len(page))
	}
}

func TestMarkDeletedPersistsSoftDelete(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, "broadcast", 1)
	ctx := context.Background()

	if err := s.MarkDeleted(ctx, "msg-0000", 9999); err != nil {
		t.Fatalf("mark deleted: %v", err)
	}
	// Unknown ids are ignored.
	if err := s.MarkDeleted(ctx, "msg-missing", 9999); err != nil {
		t.Fatalf("mark deleted unknown: %v", err)
	}

	page, err := s.PageBefore(ctx, "broadcast", nil, 10)
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(page) != 1 {
		t.Fatal("soft-deleted row should remain in history")
	}
	if page[0].DeletedAt == nil || *page[0].DeletedAt != 9999 {
		t.Fatalf("expected delete timestamp, got %+v", page[0].DeletedAt)
	}
}

func TestLoaderPagesUntilExhausted(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, "broadcast", 62)
	loader := NewLoader(s, "alice", 50)
	dst := store.New()
	ctx := context.Background()

	added, err := loader.LoadOlder(ctx, "broadcast", dst)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if added != 50 {
		t.Fatalf("expected full page of 50, got %d", added)
	}
	if loader.Exhausted("broadcast") {
		t.Fatal("exhausted must stay false after a full page")
	}

	added, err = loader.LoadOlder(ctx, "broadcast", dst)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if added != 12 {
		t.Fatalf("expected partial page of 12, got %d", added)
	}
	if !loader.Exhausted("broadcast") {
		t.Fatal("exhausted must be true after a partial page")
	}

	// Further loads are no-ops.
	added, err = loader.LoadOlder(ctx, "broadcast", dst)
	if err != nil || added != 0 {
		t.Fatalf("expected no-op load, got %d, %v", added, err)
	}
	if dst.Len() != 62 {
		t.Fatalf("expected 62 messages loaded, got %d", dst.Len())
	}
}

func TestLoaderStartsFromStoreCursor(t *testing.T) {
	s := openTestStore(t)
	msgs := seed(t, s, "broadcast", 10)
	loader := NewLoader(s, "alice", 4)
	dst := store.New()

	// The session already holds the latest two messages.
	dst.Insert(msgs[8])
	dst.Insert(msgs[9])

	added, err := loader.LoadOlder(context.Background(), "broadcast", dst)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if added != 4 {
		t.Fatalf("expected 4 older messages, got %d", added)
	}
	all := dst.All()
	if all[0].ID != msgs[4].ID {
		t.Fatalf("expected page to start at msg 4, got %s", all[0].ID)
	}
}

func TestLoaderSingleFlight(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, "broadcast", 5)
	loader := NewLoader(s, "alice", 50)

	loader.mu.Lock()
	loader.stateFor("broadcast").inflight = true
	loader.mu.Unlock()

	if _, err := loader.LoadOlder(context.Background(), "broadcast", store.New()); err != ErrFetchInFlight {
		t.Fatalf("expected ErrFetchInFlight, got %v", err)
	}
}

func TestLoaderFetchFailureLeavesRetryPossible(t *testing.T) {
	s := openTestStore(t)
	seed(t, s, "broadcast", 5)
	loader := NewLoader(s, "alice", 50)
	dst := store.New()
	ctx := context.Background()

	_ = s.Close()
	if _, err := loader.LoadOlder(ctx, "broadcast", dst); err == nil {
		t.Fatal("expected fetch error on closed store")
	}
	if loader.Exhausted("broadcast") {
		t.Fatal("fetch failure must leave exhausted unset")
	}

	// A retry against a healthy store succeeds.
	reopened, err := Open(filepath.Join(t.TempDir(), "history2.db"))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	seed(t, reopened, "broadcast", 5)
	loader.store = reopened
	added, err := loader.LoadOlder(ctx, "broadcast", dst)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if added != 5 {
		t.Fatalf("expected 5 messages on retry, got %d", added)
	}
}
