package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCycleAutoLock locks ACTIVE cycles whose end date has passed.
	TaskCycleAutoLock = "cycles:auto_lock"
	// TaskAuditRetention prunes decision audit entries past retention.
	TaskAuditRetention = "audit:retention"
)

// ScheduledPayload carries the wall clock time a cron fire was aimed at.
type ScheduledPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewCycleAutoLockTask constructs the auto-lock task.
func NewCycleAutoLockTask(at time.Time) (*asynq.Task, error) {
	return newScheduledTask(TaskCycleAutoLock, at)
}

// NewAuditRetentionTask constructs the audit retention task.
func NewAuditRetentionTask(at time.Time) (*asynq.Task, error) {
	return newScheduledTask(TaskAuditRetention, at)
}

func newScheduledTask(taskType string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScheduledPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault)), nil
}
