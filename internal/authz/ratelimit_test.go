package authz

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLimiterFixedWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewMutationLimiter(3, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !l.Allow(1) {
			t.Fatalf("request %d should pass", i)
		}
	}
	if l.Allow(1) {
		t.Fatal("fourth request inside window should be limited")
	}
	// Another principal is unaffected.
	if !l.Allow(2) {
		t.Fatal("independent principal throttled")
	}

	// Window expiry is the only recovery path.
	now = now.Add(time.Minute)
	if !l.Allow(1) {
		t.Fatal("request after window expiry should pass")
	}
}

func TestLimiterCountsAtomicallyUnderConcurrency(t *testing.T) {
	l := NewMutationLimiter(500, time.Minute)
	var allowed atomic.Int64
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if l.Allow(7) {
					allowed.Add(1)
				}
			}
		}()
	}
	wg.Wait()
	if got := allowed.Load(); got != 500 {
		t.Fatalf("expected exactly 500 allowed, got %d", got)
	}
}

func TestLimiterSweepDropsExpiredCounters(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewMutationLimiter(10, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow(1)
	l.Allow(2)
	if removed := l.Sweep(); removed != 0 {
		t.Fatalf("nothing should expire yet, removed %d", removed)
	}
	now = now.Add(2 * time.Minute)
	if removed := l.Sweep(); removed != 2 {
		t.Fatalf("expected 2 expired counters, removed %d", removed)
	}
}

func TestJanitorEvictsWithoutExternalTrigger(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	l := NewMutationLimiter(10, time.Minute)
	l.now = func() time.Time { return now }

	l.Allow(1)
	l.Allow(2)
	now = now.Add(2 * time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Janitor(ctx, time.Millisecond)

	deadline := time.After(time.Second)
	for counterCount(l) > 0 {
		select {
		case <-deadline:
			t.Fatalf("expired counters still resident: %d", counterCount(l))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func counterCount(l *MutationLimiter) int {
	total := 0
	for i := range l.shards {
		l.shards[i].mu.Lock()
		total += len(l.shards[i].counters)
		l.shards[i].mu.Unlock()
	}
	return total
}

func TestNilLimiterAllowsEverything(t *testing.T) {
	var l *MutationLimiter
	if !l.Allow(1) {
		t.Fatal("nil limiter must be a no-op")
	}
}
