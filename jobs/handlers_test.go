package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	jobmetrics "github.com/compasshq/compass/internal/jobs"
)

type stubLocker struct {
	locked int
	err    error
}

func (s *stubLocker) AutoLockExpired(ctx context.Context, now time.Time) (int, error) {
	return s.locked, s.err
}

type stubPruner struct {
	removed      int64
	gotRetention time.Duration
}

func (s *stubPruner) Prune(ctx context.Context, retention time.Duration, now time.Time) (int64, error) {
	s.gotRetention = retention
	return s.removed, nil
}

func newHandlerSet(locker *stubLocker, pruner *stubPruner) *HandlerSet {
	return &HandlerSet{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:        jobmetrics.NewMetrics(prometheus.NewRegistry()),
		Cycles:         locker,
		Audit:          pruner,
		AuditRetention: 90 * 24 * time.Hour,
	}
}

func TestHandleCycleAutoLock(t *testing.T) {
	locker := &stubLocker{locked: 2}
	h := newHandlerSet(locker, &stubPruner{})
	task, err := NewCycleAutoLockTask(time.Now())
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if err := h.HandleCycleAutoLock(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}

	locker.err = errors.New("db down")
	if err := h.HandleCycleAutoLock(context.Background(), task); err == nil {
		t.Fatal("expected error to propagate for retry")
	}
}

func TestHandleCycleAutoLockBadPayload(t *testing.T) {
	h := newHandlerSet(&stubLocker{}, &stubPruner{})
	task := asynq.NewTask(TaskCycleAutoLock, []byte("{not json"))
	if err := h.HandleCycleAutoLock(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestHandleAuditRetentionPassesWindow(t *testing.T) {
	pruner := &stubPruner{removed: 5}
	h := newHandlerSet(&stubLocker{}, pruner)
	task, err := NewAuditRetentionTask(time.Now())
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if err := h.HandleAuditRetention(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if pruner.gotRetention != 90*24*time.Hour {
		t.Fatalf("expected configured retention, got %v", pruner.gotRetention)
	}
}
