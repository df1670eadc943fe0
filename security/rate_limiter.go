package security

import (
	"errors"
	"sync"
	"time"
)

var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// RateLimiter allows at most max commands in any trailing window.
type RateLimiter struct {
	max        int
	window     time.Duration
	timestamps []time.Time
	now        func() time.Time
	mu         sync.Mutex
}

func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:        max,
		window:     window,
		timestamps: make([]time.Time, 0, max),
		now:        time.Now,
	}
}

// CanExecute records the call and returns true when the window has room.
// A rejected call leaves the window untouched.
func (rl *RateLimiter) CanExecute() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.prune(now)

	if len(rl.timestamps) >= rl.max {
		return false
	}

	rl.timestamps = append(rl.timestamps, now)

	return true
}

func (rl *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-rl.window)

	keep := 0
	for keep < len(rl.timestamps) && rl.timestamps[keep].Before(cutoff) {
		keep++
	}

	if keep > 0 {
		rl.timestamps = append(rl.timestamps[:0], rl.timestamps[keep:]...)
	}
}
