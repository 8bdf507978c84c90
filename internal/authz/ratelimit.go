package authz

import (
	"context"
	"sync"
	"time"
)

const limiterShards = 32

// MutationLimiter bounds mutation-class requests per principal inside a fixed
// rolling window. Counters are sharded by principal id so concurrent requests
// for different principals never contend on one lock, and increments for the
// same principal are atomic under the shard lock.
//
// Counters are ephemeral: a counter whose window has elapsed is reset in
// place on the next hit and swept periodically.
type MutationLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time
	shards [limiterShards]limiterShard
}

type limiterShard struct {
	mu       sync.Mutex
	counters map[int64]*windowCounter
}

type windowCounter struct {
	start time.Time
	count int
}

// NewMutationLimiter allows limit mutations per principal per window.
func NewMutationLimiter(limit int, window time.Duration) *MutationLimiter {
	l := &MutationLimiter{limit: limit, window: window, now: time.Now}
	for i := range l.shards {
		l.shards[i].counters = make(map[int64]*windowCounter)
	}
	return l
}

// Allow consumes one slot for the principal and reports whether the request
// stays under the limit.
func (l *MutationLimiter) Allow(principalID int64) bool {
	if l == nil || l.limit <= 0 {
		return true
	}
	shard := &l.shards[uint64(principalID)%limiterShards]
	now := l.now()

	shard.mu.Lock()
	defer shard.mu.Unlock()
	c, ok := shard.counters[principalID]
	if !ok || now.Sub(c.start) >= l.window {
		shard.counters[principalID] = &windowCounter{start: now, count: 1}
		return true
	}
	if c.count >= l.limit {
		return false
	}
	c.count++
	return true
}

// Janitor sweeps expired counters every interval until the context ends.
// Counters live in process memory, so the sweep has to run in the same
// process that serves requests; the API binary starts one per limiter.
func (l *MutationLimiter) Janitor(ctx context.Context, interval time.Duration) {
	if l == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}

// Sweep drops counters whose window has fully elapsed so idle principals do
// not pin memory.
func (l *MutationLimiter) Sweep() int {
	if l == nil {
		return 0
	}
	now := l.now()
	removed := 0
	for i := range l.shards {
		shard := &l.shards[i]
		shard.mu.Lock()
		for id, c := range shard.counters {
			if now.Sub(c.start) >= l.window {
				delete(shard.counters, id)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}
