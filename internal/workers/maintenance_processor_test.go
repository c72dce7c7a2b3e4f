// internal/workers/maintenance_processor_test.go
package workers_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
	"github.com/ammerola/stockbook/internal/core/services"
	"github.com/ammerola/stockbook/internal/workers"
	"github.com/ammerola/stockbook/test/helpers"
	"github.com/ammerola/stockbook/test/mocks"
)

var fixedNow = time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)

func newProcessor(t *testing.T) (*workers.MaintenanceProcessor, *mocks.MockMaintenanceService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockMaintenanceService(ctrl)
	p := workers.NewMaintenanceProcessor(svc, 30, helpers.TestLogger()).
		WithClock(func() time.Time { return fixedNow })
	return p, svc
}

func archiveTask(t *testing.T, p workers.ArchivePayload) *asynq.Task {
	t.Helper()
	task, err := workers.NewArchiveTask(p)
	require.NoError(t, err)
	return task
}

func TestMaintenanceProcessor_ArchiveSales(t *testing.T) {
	explicit := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		payload    workers.ArchivePayload
		setupMocks func(*mocks.MockMaintenanceService)
		skipRetry  bool
		wantErr    bool
	}{
		{
			name:    "default_retention_from_processor",
			payload: workers.ArchivePayload{},
			setupMocks: func(svc *mocks.MockMaintenanceService) {
				gomock.InOrder(
					svc.EXPECT().Reload(gomock.Any(), domain.CollectionInventory, domain.CollectionSales).Return(nil),
					svc.EXPECT().Archive(gomock.Any(), fixedNow.AddDate(0, 0, -30)).
						Return(&ports.ArchiveResult{Archived: 4, Path: "archive/x.json"}, nil),
				)
			},
		},
		{
			name:    "payload_retention_wins",
			payload: workers.ArchivePayload{RetentionDays: 7},
			setupMocks: func(svc *mocks.MockMaintenanceService) {
				svc.EXPECT().Reload(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
				svc.EXPECT().Archive(gomock.Any(), fixedNow.AddDate(0, 0, -7)).Return(&ports.ArchiveResult{}, nil)
			},
		},
		{
			name:    "explicit_cutoff",
			payload: workers.ArchivePayload{Cutoff: explicit, RetentionDays: 7},
			setupMocks: func(svc *mocks.MockMaintenanceService) {
				svc.EXPECT().Reload(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
				svc.EXPECT().Archive(gomock.Any(), explicit).Return(&ports.ArchiveResult{}, nil)
			},
		},
		{
			name: "conflict_is_retried",
			setupMocks: func(svc *mocks.MockMaintenanceService) {
				svc.EXPECT().Reload(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
				svc.EXPECT().Archive(gomock.Any(), gomock.Any()).
					Return(nil, &ports.ConflictError{Path: "sales.json", Expected: "v1"})
			},
			wantErr: true,
		},
		{
			name: "reload_transport_failure_is_retried",
			setupMocks: func(svc *mocks.MockMaintenanceService) {
				svc.EXPECT().Reload(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(&ports.TransportError{Op: "load", Path: "sales.json", StatusCode: 502})
			},
			wantErr: true,
		},
		{
			name: "partial_commit_is_not_retried",
			setupMocks: func(svc *mocks.MockMaintenanceService) {
				svc.EXPECT().Reload(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
				svc.EXPECT().Archive(gomock.Any(), gomock.Any()).Return(nil, &services.PartialCommitError{
					Committed: []domain.CollectionName{domain.CollectionSales},
					Failed:    domain.CollectionInventory,
					Err:       &ports.TransportError{Op: "save", StatusCode: 503},
				})
			},
			wantErr:   true,
			skipRetry: true,
		},
		{
			name: "local_only_is_not_retried",
			setupMocks: func(svc *mocks.MockMaintenanceService) {
				svc.EXPECT().Reload(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
				svc.EXPECT().Archive(gomock.Any(), gomock.Any()).Return(nil, services.ErrNoStore)
			},
			wantErr:   true,
			skipRetry: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, svc := newProcessor(t)
			tt.setupMocks(svc)

			err := p.ArchiveSales(context.Background(), archiveTask(t, tt.payload))

			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.skipRetry, errors.Is(err, asynq.SkipRetry))
		})
	}
}

func TestMaintenanceProcessor_BadPayload(t *testing.T) {
	p, _ := newProcessor(t)

	err := p.ArchiveSales(context.Background(), asynq.NewTask(workers.TypeArchiveSales, []byte("{")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestMaintenanceProcessor_SweepImages(t *testing.T) {
	t.Run("sweeps_after_reload", func(t *testing.T) {
		p, svc := newProcessor(t)
		gomock.InOrder(
			svc.EXPECT().Reload(gomock.Any(), domain.CollectionInventory).Return(nil),
			svc.EXPECT().SweepImages(gomock.Any()).Return(&ports.SweepResult{Scanned: 3, Deleted: []string{"images/a.png"}}, nil),
		)
		require.NoError(t, p.SweepImages(context.Background(), workers.NewSweepTask()))
	})

	t.Run("fatal_error_skips_retry", func(t *testing.T) {
		p, svc := newProcessor(t)
		svc.EXPECT().Reload(gomock.Any(), gomock.Any()).Return(nil)
		svc.EXPECT().SweepImages(gomock.Any()).Return(nil, errors.New("list images: corrupt listing"))

		err := p.SweepImages(context.Background(), workers.NewSweepTask())
		assert.ErrorIs(t, err, asynq.SkipRetry)
	})
}

func TestMaintenanceProcessor_Register(t *testing.T) {
	p, svc := newProcessor(t)
	svc.EXPECT().Reload(gomock.Any(), gomock.Any()).Return(nil)
	svc.EXPECT().SweepImages(gomock.Any()).Return(&ports.SweepResult{}, nil)

	mux := asynq.NewServeMux()
	p.Register(mux)

	require.NoError(t, mux.ProcessTask(context.Background(), workers.NewSweepTask()))
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Type: task.Type(), Queue: workers.QueueMaintenance}, nil
}

func TestTaskClient(t *testing.T) {
	ctx := context.Background()
	cutoff := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("enqueue_archive", func(t *testing.T) {
		f := &fakeEnqueuer{}
		id, err := workers.NewTaskClient(f).EnqueueArchive(ctx, cutoff)
		require.NoError(t, err)
		assert.Equal(t, "task-1", id)
		require.Len(t, f.tasks, 1)
		assert.Equal(t, workers.TypeArchiveSales, f.tasks[0].Type())

		var payload workers.ArchivePayload
		require.NoError(t, json.Unmarshal(f.tasks[0].Payload(), &payload))
		assert.True(t, cutoff.Equal(payload.Cutoff))
	})

	t.Run("enqueue_sweep", func(t *testing.T) {
		f := &fakeEnqueuer{}
		_, err := workers.NewTaskClient(f).EnqueueSweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, workers.TypeSweepImages, f.tasks[0].Type())
	})

	t.Run("broker_failure", func(t *testing.T) {
		f := &fakeEnqueuer{err: errors.New("redis: connection refused")}
		_, err := workers.NewTaskClient(f).EnqueueSweep(ctx)
		assert.ErrorContains(t, err, "images:sweep")
	})
}

type fakeRegistrar struct {
	specs []string
	types []string
}

func (f *fakeRegistrar) Register(spec string, task *asynq.Task, _ ...asynq.Option) (string, error) {
	f.specs = append(f.specs, spec)
	f.types = append(f.types, task.Type())
	return "entry-" + task.Type(), nil
}

func TestRegisterSchedule(t *testing.T) {
	t.Run("both_tasks", func(t *testing.T) {
		r := &fakeRegistrar{}
		ids, err := workers.RegisterSchedule(r, workers.Schedule{Archive: "0 3 1 * *", Sweep: "30 3 * * 0", RetentionDays: 60})
		require.NoError(t, err)
		assert.Equal(t, []string{"entry-sales:archive", "entry-images:sweep"}, ids)
		assert.Equal(t, []string{"0 3 1 * *", "30 3 * * 0"}, r.specs)
	})

	t.Run("empty_spec_disables", func(t *testing.T) {
		r := &fakeRegistrar{}
		ids, err := workers.RegisterSchedule(r, workers.Schedule{Sweep: "@daily"})
		require.NoError(t, err)
		assert.Len(t, ids, 1)
		assert.Equal(t, []string{workers.TypeSweepImages}, r.types)
	})
}
