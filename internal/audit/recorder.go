package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/compasshq/compass/internal/authz"
)

// Recorder persists engine decision events. Recording is best effort: a
// failed insert is logged and dropped, it never fails the request that
// produced the event.
type Recorder struct {
	repo    Repository
	logger  *slog.Logger
	timeout time.Duration
}

// NewRecorder constructs a Recorder.
func NewRecorder(repo Repository, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{repo: repo, logger: logger, timeout: 2 * time.Second}
}

// RecordDecision implements authz.DecisionRecorder. The insert runs under its
// own deadline detached from the request context, so a cancelled request
// still leaves its denial in the trail.
func (r *Recorder) RecordDecision(ctx context.Context, ev authz.DecisionEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	err := r.repo.Insert(ctx, Entry{
		At:          ev.At,
		PrincipalID: ev.PrincipalID,
		TenantID:    ev.TenantID,
		Action:      string(ev.Action),
		ResourceID:  ev.ResourceID,
		Decision:    ev.Decision,
		Reason:      ev.Reason,
	})
	if err != nil {
		r.logger.Warn("record decision", slog.Any("error", err))
	}
}

var _ authz.DecisionRecorder = (*Recorder)(nil)
