package chat

import (
	"time"

	"golang.org/x/time/rate"
)

// Send-rate defaults: at most 10 sends per rolling 10-second window.
const (
	DefaultRateWindow  = 10 * time.Second
	DefaultRateCeiling = 10
)

// SendGuard paces local sends. It is advisory and local-only, a
// defense against accidental flooding, not a security boundary.
type SendGuard struct {
	limiter *rate.Limiter
}

// NewSendGuard builds a guard admitting ceiling sends per window.
// Non-positive arguments take defaults.
func NewSendGuard(window time.Duration, ceiling int) *SendGuard {
	if window <= 0 {
		window = DefaultRateWindow
	}
	if ceiling <= 0 {
		ceiling = DefaultRateCeiling
	}
	return &SendGuard{
		limiter: rate.NewLimiter(rate.Every(window/time.Duration(ceiling)), ceiling),
	}
}

// Allow consumes one send slot. When the quota is exceeded it reports
// false with the wait until the next slot frees up, without consuming
// anything.
func (g *SendGuard) Allow() (time.Duration, bool) {
	r := g.limiter.Reserve()
	if !r.OK() {
		return DefaultRateWindow, false
	}
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return delay, false
	}
	return 0, true
}
