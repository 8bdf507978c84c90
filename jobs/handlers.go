package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/compasshq/compass/internal/jobs"
)

// CycleLocker locks expired active cycles.
type CycleLocker interface {
	AutoLockExpired(ctx context.Context, now time.Time) (int, error)
}

// AuditPruner removes audit entries past the retention horizon.
type AuditPruner interface {
	Prune(ctx context.Context, retention time.Duration, now time.Time) (int64, error)
}

// HandlerSet binds the maintenance tasks to their collaborators. The mutation
// rate limiter is absent on purpose: its counters live in the API process and
// are swept there.
type HandlerSet struct {
	Logger         *slog.Logger
	Metrics        *jobmetrics.Metrics
	Cycles         CycleLocker
	Audit          AuditPruner
	AuditRetention time.Duration
}

// HandleCycleAutoLock processes TaskCycleAutoLock.
func (h *HandlerSet) HandleCycleAutoLock(ctx context.Context, t *asynq.Task) error {
	tracker := h.Metrics.Track(TaskCycleAutoLock)
	var payload ScheduledPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	locked, err := h.Cycles.AutoLockExpired(ctx, time.Now())
	if err != nil {
		h.Logger.Error("cycle auto lock", slog.Any("error", err))
		return tracker.End(err)
	}
	h.Metrics.AddProcessed(TaskCycleAutoLock, locked)
	if locked > 0 {
		h.Logger.Info("cycle auto lock", slog.Int("locked", locked))
	}
	return tracker.End(nil)
}

// HandleAuditRetention processes TaskAuditRetention.
func (h *HandlerSet) HandleAuditRetention(ctx context.Context, t *asynq.Task) error {
	tracker := h.Metrics.Track(TaskAuditRetention)
	var payload ScheduledPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	removed, err := h.Audit.Prune(ctx, h.AuditRetention, time.Now())
	if err != nil {
		h.Logger.Error("audit retention", slog.Any("error", err))
		return tracker.End(err)
	}
	h.Metrics.AddProcessed(TaskAuditRetention, int(removed))
	if removed > 0 {
		h.Logger.Info("audit retention", slog.Int64("removed", removed))
	}
	return tracker.End(nil)
}
