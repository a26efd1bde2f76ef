// Package typing throttles outbound typing broadcasts and decays
// inbound ones. No explicit "stopped typing" message is required: each
// remote flag expires unless a renewal broadcast arrives first.
package typing

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/teamdeck/teamdeck/internal/logger"
	"github.com/teamdeck/teamdeck/internal/transport"
	"github.com/teamdeck/teamdeck/internal/types"
)

// Config tunes the coordinator. Zero values take defaults.
type Config struct {
	Cooldown time.Duration // minimum gap between outbound broadcasts
	Decay    time.Duration // lifetime of a remote flag without renewal
}

func (c *Config) applyDefaults() {
	if c.Cooldown <= 0 {
		c.Cooldown = 3 * time.Second
	}
	if c.Decay <= 0 {
		c.Decay = 6 * time.Second
	}
}

// Coordinator owns local throttle state and remote typing flags.
type Coordinator struct {
	cfg         Config
	localUserID string
	broadcast   transport.Broadcast

	mu       sync.Mutex
	lastSent time.Time
	typers   map[string]int64 // user -> expiry, unix millis
	timers   map[string]*time.Timer

	now   func() time.Time
	unsub func()
}

// New returns a coordinator and subscribes it to the typing topic.
func New(localUserID string, broadcast transport.Broadcast, cfg Config) *Coordinator {
	cfg.applyDefaults()
	c := &Coordinator{
		cfg:         cfg,
		localUserID: localUserID,
		broadcast:   broadcast,
		typers:      make(map[string]int64),
		timers:      make(map[string]*time.Timer),
		now:         time.Now,
	}
	c.unsub = broadcast.Subscribe(transport.TopicTyping, func(payload []byte) {
		var sig types.TypingSignal
		if err := json.Unmarshal(payload, &sig); err != nil {
			logger.Debug("typing: dropping malformed signal", "error", err)
			return
		}
		c.OnRemote(sig)
	})
	return c
}

// NotifyLocal broadcasts that the local user is typing, at most once per
// cooldown window regardless of keystroke frequency. Returns true when
// a broadcast was actually sent.
func (c *Coordinator) NotifyLocal(ctx context.Context) bool {
	c.mu.Lock()
	now := c.now()
	if now.Sub(c.lastSent) < c.cfg.Cooldown {
		c.mu.Unlock()
		return false
	}
	c.lastSent = now
	c.mu.Unlock()

	payload, err := json.Marshal(types.TypingSignal{
		UserID: c.localUserID,
		Typing: true,
		TS:     now.UnixMilli(),
	})
	if err != nil {
		return false
	}
	if err := c.broadcast.Publish(ctx, transport.TopicTyping, payload); err != nil {
		logger.Debug("typing: publish failed", "error", err)
	}
	return true
}

// NotifyStopped broadcasts an explicit stop, used when the compose
// buffer is cleared by a send. Bypasses the cooldown.
func (c *Coordinator) NotifyStopped(ctx context.Context) {
	payload, err := json.Marshal(types.TypingSignal{
		UserID: c.localUserID,
		Typing: false,
		TS:     c.now().UnixMilli(),
	})
	if err != nil {
		return
	}
	if err := c.broadcast.Publish(ctx, transport.TopicTyping, payload); err != nil {
		logger.Debug("typing: publish failed", "error", err)
	}
}

// OnRemote applies a peer's typing signal: set restarts the decay timer,
// an explicit stop clears immediately. Local echoes are ignored.
func (c *Coordinator) OnRemote(sig types.TypingSignal) {
	if sig.UserID == "" || sig.UserID == c.localUserID {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !sig.Typing {
		c.clearLocked(sig.UserID)
		return
	}

	c.typers[sig.UserID] = c.now().Add(c.cfg.Decay).UnixMilli()
	if timer, ok := c.timers[sig.UserID]; ok {
		timer.Reset(c.cfg.Decay)
		return
	}
	user := sig.UserID
	c.timers[user] = time.AfterFunc(c.cfg.Decay, func() {
		c.expire(user)
	})
}

func (c *Coordinator) expire(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	expiry, ok := c.typers[userID]
	if !ok {
		return
	}
	// A renewal may have raced the timer; only clear if truly expired.
	if c.now().UnixMilli() >= expiry {
		c.clearLocked(userID)
	}
}

func (c *Coordinator) clearLocked(userID string) {
	delete(c.typers, userID)
	if timer, ok := c.timers[userID]; ok {
		timer.Stop()
		delete(c.timers, userID)
	}
}

// ActiveTypers returns the users currently typing, sorted for stable
// rendering.
func (c *Coordinator) ActiveTypers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now().UnixMilli()
	out := make([]string, 0, len(c.typers))
	for user, expiry := range c.typers {
		if expiry > now {
			out = append(out, user)
		}
	}
	sort.Strings(out)
	return out
}

// Close stops all timers and the topic subscription.
func (c *Coordinator) Close() {
	if c.unsub != nil {
		c.unsub()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for user, timer := range c.timers {
		timer.Stop()
		delete(c.timers, user)
	}
	c.typers = make(map[string]int64)
}
