package typing

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/teamdeck/teamdeck/internal/transport"
	"github.com/teamdeck/teamdeck/internal/types"
)

func newTestCoordinator(cfg Config) (*Coordinator, *transport.MemoryBroadcast) {
	hub := transport.NewMemoryBroadcast()
	return New("alice", hub, cfg), hub
}

func TestNotifyLocalThrottles(t *testing.T) {
	c, hub := newTestCoordinator(Config{Cooldown: time.Minute, Decay: time.Minute})
	defer c.Close()

	sent := 0
	cancel := hub.Subscribe(transport.TopicTyping, func([]byte) { sent++ })
	defer cancel()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		c.NotifyLocal(ctx)
	}
	if sent != 1 {
		t.Fatalf("expected exactly 1 broadcast within the cooldown, got %d", sent)
	}

	// After the cooldown elapses a new broadcast goes out.
	c.mu.Lock()
	c.lastSent = c.lastSent.Add(-2 * time.Minute)
	c.mu.Unlock()
	if !c.NotifyLocal(ctx) {
		t.Fatal("expected broadcast after cooldown")
	}
	if sent != 2 {
		t.Fatalf("expected 2 broadcasts, got %d", sent)
	}
}

func TestRemoteTypingSetsAndExplicitStopClears(t *testing.T) {
	c, _ := newTestCoordinator(Config{Cooldown: time.Minute, Decay: time.Minute})
	defer c.Close()

	c.OnRemote(types.TypingSignal{UserID: "bob", Typing: true})
	c.OnRemote(types.TypingSignal{UserID: "carol", Typing: true})
	if got := c.ActiveTypers(); !reflect.DeepEqual(got, []string{"bob", "carol"}) {
		t.Fatalf("unexpected typers: %v", got)
	}

	c.OnRemote(types.TypingSignal{UserID: "bob", Typing: false})
	if got := c.ActiveTypers(); !reflect.DeepEqual(got, []string{"carol"}) {
		t.Fatalf("expected carol only, got %v", got)
	}
}

func TestLocalEchoIgnored(t *testing.T) {
	c, _ := newTestCoordinator(Config{Cooldown: time.Minute, Decay: time.Minute})
	defer c.Close()

	c.OnRemote(types.TypingSignal{UserID: "alice", Typing: true})
	if got := c.ActiveTypers(); len(got) != 0 {
		t.Fatalf("local echo should be ignored, got %v", got)
	}
}

func TestTypingDecaysWithoutRenewal(t *testing.T) {
	c, _ := newTestCoordinator(Config{Cooldown: time.Minute, Decay: 20 * time.Millisecond})
	defer c.Close()

	c.OnRemote(types.TypingSignal{UserID: "bob", Typing: true})
	if got := c.ActiveTypers(); len(got) != 1 {
		t.Fatalf("expected bob typing, got %v", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(c.ActiveTypers()) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("typing flag did not decay")
}

func TestRenewalExtendsDecay(t *testing.T) {
	c, _ := newTestCoordinator(Config{Cooldown: time.Minute, Decay: 200 * time.Millisecond})
	defer c.Close()

	c.OnRemote(types.TypingSignal{UserID: "bob", Typing: true})
	time.Sleep(100 * time.Millisecond)
	c.OnRemote(types.TypingSignal{UserID: "bob", Typing: true})
	time.Sleep(100 * time.Millisecond)

	// Past the original expiry, but only halfway through the renewed one.
	if got := c.ActiveTypers(); len(got) != 1 {
		t.Fatalf("expected renewal to extend the flag, got %v", got)
	}
}

func TestBroadcastRoundTrip(t *testing.T) {
	hub := transport.NewMemoryBroadcast()
	alice := New("alice", hub, Config{Cooldown: time.Minute, Decay: time.Minute})
	defer alice.Close()
	bob := New("bob", hub, Config{Cooldown: time.Minute, Decay: time.Minute})
	defer bob.Close()

	alice.NotifyLocal(context.Background())
	if got := bob.ActiveTypers(); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Fatalf("expected bob to see alice typing, got %v", got)
	}

	alice.NotifyStopped(context.Background())
	if got := bob.ActiveTypers(); len(got) != 0 {
		t.Fatalf("expected stop signal to clear, got %v", got)
	}
}
