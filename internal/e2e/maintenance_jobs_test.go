package e2e

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	jobmetrics "github.com/compasshq/compass/internal/jobs"
	"github.com/compasshq/compass/jobs"
)

type stubLocker struct {
	locked int
	calls  int
}

func (s *stubLocker) AutoLockExpired(_ context.Context, _ time.Time) (int, error) {
	s.calls++
	return s.locked, nil
}

type stubPruner struct {
	removed      int64
	gotRetention time.Duration
}

func (s *stubPruner) Prune(_ context.Context, retention time.Duration, _ time.Time) (int64, error) {
	s.gotRetention = retention
	return s.removed, nil
}

func TestMaintenanceJobsRecordMetrics(t *testing.T) {
	locker := &stubLocker{locked: 3}
	pruner := &stubPruner{removed: 12}
	reg := prometheus.NewRegistry()

	handlers := &jobs.HandlerSet{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:        jobmetrics.NewMetrics(reg),
		Cycles:         locker,
		Audit:          pruner,
		AuditRetention: 90 * 24 * time.Hour,
	}

	now := time.Now()
	autoLock, err := jobs.NewCycleAutoLockTask(now)
	if err != nil {
		t.Fatalf("create auto-lock task: %v", err)
	}
	retention, err := jobs.NewAuditRetentionTask(now)
	if err != nil {
		t.Fatalf("create retention task: %v", err)
	}

	ctx := context.Background()
	if err := handlers.HandleCycleAutoLock(ctx, autoLock); err != nil {
		t.Fatalf("auto-lock handle: %v", err)
	}
	if err := handlers.HandleAuditRetention(ctx, retention); err != nil {
		t.Fatalf("retention handle: %v", err)
	}

	if locker.calls != 1 {
		t.Fatalf("expected one auto-lock pass, got %d", locker.calls)
	}
	if pruner.gotRetention != 90*24*time.Hour {
		t.Fatalf("expected configured retention, got %v", pruner.gotRetention)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, task := range []string{jobs.TaskCycleAutoLock, jobs.TaskAuditRetention} {
		if !assertCounter(families, "compass_jobs_total", map[string]string{"job": task, "status": "success"}, 1) {
			t.Fatalf("expected compass_jobs_total increment for %s", task)
		}
	}
	if !assertCounter(families, "compass_jobs_processed_total", map[string]string{"job": jobs.TaskCycleAutoLock}, 3) {
		t.Fatalf("expected 3 locked cycles counted")
	}
	if !assertCounter(families, "compass_jobs_processed_total", map[string]string{"job": jobs.TaskAuditRetention}, 12) {
		t.Fatalf("expected 12 pruned entries counted")
	}
	if !metricExists(families, "compass_job_duration_seconds") {
		t.Fatalf("expected compass_job_duration_seconds to be recorded")
	}
}

func assertCounter(families []*dto.MetricFamily, name string, labels map[string]string, expected float64) bool {
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if matchLabels(metric.GetLabel(), labels) {
				if metric.GetCounter() == nil {
					return false
				}
				if metric.GetCounter().GetValue() == expected {
					return true
				}
			}
		}
	}
	return false
}

func metricExists(families []*dto.MetricFamily, name string) bool {
	for _, fam := range families {
		if fam.GetName() == name {
			return true
		}
	}
	return false
}

func matchLabels(pairs []*dto.LabelPair, expected map[string]string) bool {
	if len(expected) == 0 {
		return true
	}
	seen := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		seen[pair.GetName()] = pair.GetValue()
	}
	for k, v := range expected {
		if seen[k] != v {
			return false
		}
	}
	return true
}
