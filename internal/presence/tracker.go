// Package presence projects peer availability from a heartbeat
// broadcast stream. Peers never announce going offline; absence is
// inferred by a staleness sweep. The broadcast interval is much shorter
// than the staleness window so a missed heartbeat does not flap status.
package presence

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/teamdeck/teamdeck/internal/logger"
	"github.com/teamdeck/teamdeck/internal/transport"
	"github.com/teamdeck/teamdeck/internal/types"
)

// Config tunes the tracker. Zero values take defaults.
type Config struct {
	HeartbeatInterval time.Duration // how often the local status is broadcast
	StalenessWindow   time.Duration // silence after which a peer is offline
	SweepInterval     time.Duration // how often the sweep runs
}

func (c *Config) applyDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 10 * time.Second
	}
	if c.StalenessWindow <= 0 {
		c.StalenessWindow = 45 * time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = 15 * time.Second
	}
}

// Tracker maintains per-peer presence records and broadcasts the local
// user's own status.
type Tracker struct {
	cfg         Config
	localUserID string
	broadcast   transport.Broadcast

	mu          sync.Mutex
	peers       map[string]types.PresenceRecord
	localStatus types.PresenceStatus

	now       func() time.Time
	done      chan struct{}
	stopOnce  sync.Once
	unsub     func()
	loopEnded chan struct{}
}

// New returns a stopped tracker. Call Start to begin broadcasting and
// sweeping.
func New(localUserID string, broadcast transport.Broadcast, cfg Config) *Tracker {
	cfg.applyDefaults()
	return &Tracker{
		cfg:         cfg,
		localUserID: localUserID,
		broadcast:   broadcast,
		peers:       make(map[string]types.PresenceRecord),
		localStatus: types.PresenceOnline,
		now:         time.Now,
	}
}

// Start subscribes to the presence topic and launches the heartbeat and
// sweep timers. It is not safe to call Start twice without Stop.
func (t *Tracker) Start(ctx context.Context) {
	t.done = make(chan struct{})
	t.loopEnded = make(chan struct{})
	t.stopOnce = sync.Once{}
	t.unsub = t.broadcast.Subscribe(transport.TopicPresence, func(payload []byte) {
		var hb types.Heartbeat
		if err := json.Unmarshal(payload, &hb); err != nil {
			logger.Debug("presence: dropping malformed heartbeat", "error", err)
			return
		}
		t.OnHeartbeat(hb)
	})

	t.publishHeartbeat(ctx)
	go t.run(ctx)
}

func (t *Tracker) run(ctx context.Context) {
	defer close(t.loopEnded)
	heartbeat := time.NewTicker(t.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	sweep := time.NewTicker(t.cfg.SweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			t.publishHeartbeat(ctx)
		case <-sweep.C:
			t.Sweep()
		}
	}
}

// Stop tears down timers and the topic subscription. Safe to call more
// than once.
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() {
		if t.unsub != nil {
			t.unsub()
		}
		if t.done != nil {
			close(t.done)
			<-t.loopEnded
		}
	})
}

// SetLocalStatus changes what the heartbeat advertises (e.g. dnd when
// the user enables focus mode) and broadcasts immediately.
func (t *Tracker) SetLocalStatus(ctx context.Context, status types.PresenceStatus) {
	t.mu.Lock()
	t.localStatus = status
	t.mu.Unlock()
	t.publishHeartbeat(ctx)
}

func (t *Tracker) publishHeartbeat(ctx context.Context) {
	t.mu.Lock()
	hb := types.Heartbeat{
		UserID: t.localUserID,
		Status: t.localStatus,
		TS:     t.now().UnixMilli(),
	}
	t.mu.Unlock()

	payload, err := json.Marshal(hb)
	if err != nil {
		return
	}
	if err := t.broadcast.Publish(ctx, transport.TopicPresence, payload); err != nil {
		// Transient; the next tick self-heals.
		logger.Debug("presence: heartbeat publish failed", "error", err)
	}
}

// OnHeartbeat records a peer's broadcast. The local user's own echoes
// are ignored.
func (t *Tracker) OnHeartbeat(hb types.Heartbeat) {
	if hb.UserID == "" || hb.UserID == t.localUserID {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers[hb.UserID] = types.PresenceRecord{
		UserID:   hb.UserID,
		Status:   hb.Status,
		LastSeen: t.now().UnixMilli(),
	}
}

// Sweep marks peers silent for longer than the staleness window as
// offline. Re-sweeping an already-offline peer is a no-op.
func (t *Tracker) Sweep() {
	cutoff := t.now().UnixMilli() - t.cfg.StalenessWindow.Milliseconds()
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, rec := range t.peers {
		if rec.Status == types.PresenceOffline {
			continue
		}
		if rec.LastSeen < cutoff {
			rec.Status = types.PresenceOffline
			t.peers[id] = rec
		}
	}
}

// Status returns a peer's current status; unknown peers are offline.
func (t *Tracker) Status(userID string) types.PresenceStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.peers[userID]; ok {
		return rec.Status
	}
	return types.PresenceOffline
}

// Snapshot returns a copy of all peer records.
func (t *Tracker) Snapshot() map[string]types.PresenceRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]types.PresenceRecord, len(t.peers))
	for k, v := range t.peers {
		out[k] = v
	}
	return out
}
