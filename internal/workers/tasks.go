// internal/workers/tasks.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// Task types
const (
	TypeArchiveSales = "sales:archive"
	TypeSweepImages  = "images:sweep"
)

// QueueMaintenance is the queue both maintenance tasks run on.
const QueueMaintenance = "maintenance"

// ArchivePayload selects the sales to archive. A zero Cutoff means "now
// minus RetentionDays"; a zero RetentionDays uses the worker default.
type ArchivePayload struct {
	Cutoff        time.Time `json:"cutoff,omitempty"`
	RetentionDays int       `json:"retention_days,omitempty"`
}

// NewArchiveTask builds a sales:archive task.
func NewArchiveTask(p ArchivePayload, opts ...asynq.Option) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal archive payload: %w", err)
	}
	return asynq.NewTask(TypeArchiveSales, b, withDefaults(opts)...), nil
}

// NewSweepTask builds an images:sweep task.
func NewSweepTask(opts ...asynq.Option) *asynq.Task {
	return asynq.NewTask(TypeSweepImages, nil, withDefaults(opts)...)
}

func withDefaults(opts []asynq.Option) []asynq.Option {
	defaults := []asynq.Option{
		asynq.Queue(QueueMaintenance),
		asynq.MaxRetry(3),
		asynq.Timeout(10 * time.Minute),
		asynq.Retention(24 * time.Hour),
	}
	return append(defaults, opts...)
}

// Enqueuer is the part of *asynq.Client used to queue tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskClient queues maintenance tasks for the worker.
type TaskClient struct {
	client Enqueuer
}

// NewTaskClient wraps an asynq client
func NewTaskClient(client Enqueuer) *TaskClient {
	return &TaskClient{client: client}
}

// EnqueueArchive queues an archive of sales older than cutoff and returns
// the task id.
func (c *TaskClient) EnqueueArchive(ctx context.Context, cutoff time.Time) (string, error) {
	task, err := NewArchiveTask(ArchivePayload{Cutoff: cutoff})
	if err != nil {
		return "", err
	}
	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s: %w", TypeArchiveSales, err)
	}
	return info.ID, nil
}

// EnqueueSweep queues an image sweep and returns the task id. Only one sweep
// may be pending at a time.
func (c *TaskClient) EnqueueSweep(ctx context.Context) (string, error) {
	info, err := c.client.EnqueueContext(ctx, NewSweepTask(asynq.Unique(time.Hour)))
	if err != nil {
		return "", fmt.Errorf("failed to enqueue %s: %w", TypeSweepImages, err)
	}
	return info.ID, nil
}
