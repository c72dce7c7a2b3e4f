// internal/workers/scheduler.go
package workers

import (
	"fmt"

	"github.com/hibiken/asynq"
)

// Registrar is the part of *asynq.Scheduler used to register periodic tasks.
type Registrar interface {
	Register(cronspec string, task *asynq.Task, opts ...asynq.Option) (string, error)
}

// Schedule holds the cron specs of the periodic maintenance tasks. An empty
// spec disables that task.
type Schedule struct {
	Archive       string
	Sweep         string
	RetentionDays int
}

// RegisterSchedule registers the periodic archive and sweep and returns the
// scheduler entry ids.
func RegisterSchedule(r Registrar, s Schedule) ([]string, error) {
	var ids []string

	if s.Archive != "" {
		task, err := NewArchiveTask(ArchivePayload{RetentionDays: s.RetentionDays})
		if err != nil {
			return nil, err
		}
		id, err := r.Register(s.Archive, task)
		if err != nil {
			return nil, fmt.Errorf("failed to schedule %s at %q: %w", TypeArchiveSales, s.Archive, err)
		}
		ids = append(ids, id)
	}

	if s.Sweep != "" {
		id, err := r.Register(s.Sweep, NewSweepTask())
		if err != nil {
			return nil, fmt.Errorf("failed to schedule %s at %q: %w", TypeSweepImages, s.Sweep, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}
