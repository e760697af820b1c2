package signal

import (
	"sync"

	"github.com/dkeye/polyglot/internal/domain"
	"golang.org/x/time/rate"
)

// RoomRateLimiter throttles room messages per identity, across all of the
// identity's devices. A non-positive rate disables it.
type RoomRateLimiter struct {
	mu       sync.Mutex
	limiters map[domain.UserID]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func NewRoomRateLimiter(perSecond float64, burst int) *RoomRateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RoomRateLimiter{
		limiters: make(map[domain.UserID]*rate.Limiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
	}
}

func (rl *RoomRateLimiter) Allow(uid domain.UserID) bool {
	if rl == nil || rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	l, ok := rl.limiters[uid]
	if !ok {
		l = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[uid] = l
	}
	rl.mu.Unlock()
	return l.Allow()
}
