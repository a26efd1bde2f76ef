package router

import (
	"testing"

	"github.com/teamdeck/teamdeck/internal/types"
)

const local = "alice"

func strPtr(v string) *string { return &v }

func fixture() []types.Message {
	deletedAt := int64(500)
	return []types.Message{
		{ID: "msg-1", TS: 100, From: "bob", Body: "hi everyone"},
		{ID: "msg-2", TS: 200, From: "alice", To: strPtr("bob"), Body: "hey bob"},
		{ID: "msg-3", TS: 300, From: "bob", To: strPtr("alice"), Body: "hey alice"},
		{ID: "msg-4", TS: 400, From: "carol", To: strPtr("alice"), Body: "lunch?"},
		{ID: "msg-5", TS: 500, From: "alice", Body: "announcement"},
		{ID: "msg-6", TS: 600, From: "bob", Body: "deleted one", DeletedAt: &deletedAt},
	}
}

func TestKeyOf(t *testing.T) {
	msgs := fixture()
	cases := []struct {
		id   string
		want string
	}{
		{"msg-1", Broadcast},
		{"msg-2", "bob"},
		{"msg-3", "bob"},
		{"msg-4", "carol"},
		{"msg-5", Broadcast},
	}
	byID := map[string]types.Message{}
	for _, m := range msgs {
		byID[m.ID] = m
	}
	for _, tc := range cases {
		if got := KeyOf(byID[tc.id], local); got != tc.want {
			t.Fatalf("%s: expected key %q, got %q", tc.id, tc.want, got)
		}
	}
}

func TestFilterBroadcastExcludesDirectAndDeleted(t *testing.T) {
	got := Filter(fixture(), Broadcast, local)
	if len(got) != 2 {
		t.Fatalf("expected 2 broadcast messages, got %d", len(got))
	}
	if got[0].ID != "msg-1" || got[1].ID != "msg-5" {
		t.Fatalf("unexpected broadcast view: %s %s", got[0].ID, got[1].ID)
	}
}

func TestFilterDirectConversation(t *testing.T) {
	got := Filter(fixture(), "bob", local)
	if len(got) != 2 {
		t.Fatalf("expected 2 messages with bob, got %d", len(got))
	}
	if got[0].ID != "msg-2" || got[1].ID != "msg-3" {
		t.Fatalf("unexpected 1:1 view: %s %s", got[0].ID, got[1].ID)
	}
}

func TestFilterPartitionsNonDeletedMessages(t *testing.T) {
	msgs := fixture()
	keys := Keys(msgs, local)

	seen := map[string]string{}
	total := 0
	for _, key := range keys {
		for _, msg := range Filter(msgs, key, local) {
			if prev, dup := seen[msg.ID]; dup {
				t.Fatalf("message %s in both %q and %q", msg.ID, prev, key)
			}
			seen[msg.ID] = key
			total++
		}
	}

	nonDeleted := 0
	for _, msg := range msgs {
		if !msg.Deleted() {
			nonDeleted++
		}
	}
	if total != nonDeleted {
		t.Fatalf("partition covered %d messages, expected %d", total, nonDeleted)
	}
}

func TestSearchMatchesBodyAndAuthorCaseInsensitive(t *testing.T) {
	msgs := Filter(fixture(), Broadcast, local)
	if got := Search(msgs, "EVERYONE"); len(got) != 1 || got[0].ID != "msg-1" {
		t.Fatalf("unexpected body search result: %v", got)
	}
	if got := Search(msgs, "ALICE"); len(got) != 1 || got[0].ID != "msg-5" {
		t.Fatalf("unexpected author search result: %v", got)
	}
	if got := Search(msgs, "  "); len(got) != len(msgs) {
		t.Fatal("blank query should return the input view")
	}
}

func TestSearchAuthorGlob(t *testing.T) {
	msgs := fixture()
	if got := SearchAuthor(msgs, "b*"); len(got) != 3 {
		t.Fatalf("expected 3 messages from b*, got %d", len(got))
	}
	if got := SearchAuthor(msgs, "[bad"); got != nil {
		t.Fatal("invalid pattern should match nothing")
	}
}

func TestPinned(t *testing.T) {
	msgs := fixture()
	msgs[0].Pin = &types.Pin{By: "alice", At: 900}
	got := Pinned(msgs)
	if len(got) != 1 || got[0].ID != "msg-1" {
		t.Fatalf("unexpected pinned set: %v", got)
	}
}
