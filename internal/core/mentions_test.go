package core

import (
	"reflect"
	"testing"
)

func TestExtractMentionsWithRoster(t *testing.T) {
	roster := map[string]struct{}{"alice": {}, "bob": {}}

	mentions := ExtractMentions("hey @alice and @carol, ping @bob", roster)
	if !reflect.DeepEqual(mentions, []string{"alice", "bob"}) {
		t.Fatalf("unexpected mentions: %v", mentions)
	}
}

func TestExtractMentionsAll(t *testing.T) {
	roster := map[string]struct{}{"alice": {}}
	mentions := ExtractMentions("@all standup in 5", roster)
	if !reflect.DeepEqual(mentions, []string{"all"}) {
		t.Fatalf("unexpected mentions: %v", mentions)
	}
}

func TestExtractMentionsSkipsEmailLikeText(t *testing.T) {
	mentions := ExtractMentions("mail me at alice@example.com", map[string]struct{}{"example": {}})
	if len(mentions) != 0 {
		t.Fatalf("expected no mentions, got %v", mentions)
	}
}

func TestExtractMentionsDeduplicates(t *testing.T) {
	roster := map[string]struct{}{"alice": {}}
	mentions := ExtractMentions("@alice @alice @alice", roster)
	if !reflect.DeepEqual(mentions, []string{"alice"}) {
		t.Fatalf("unexpected mentions: %v", mentions)
	}
}

func TestMentionsUser(t *testing.T) {
	if !MentionsUser([]string{"bob", "alice"}, "alice") {
		t.Fatal("expected direct mention to match")
	}
	if !MentionsUser([]string{"all"}, "carol") {
		t.Fatal("expected @all to match any user")
	}
	if MentionsUser([]string{"bob"}, "alice") {
		t.Fatal("expected no match")
	}
}
