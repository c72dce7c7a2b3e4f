// internal/handlers/maintenance_handler_test.go
package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
	"github.com/ammerola/stockbook/internal/core/services"
	"github.com/ammerola/stockbook/internal/handlers"
	"github.com/ammerola/stockbook/test/helpers"
	"github.com/ammerola/stockbook/test/mocks"
)

type fakeTasks struct {
	archived []time.Time
	sweeps   int
	err      error
}

func (f *fakeTasks) EnqueueArchive(_ context.Context, cutoff time.Time) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.archived = append(f.archived, cutoff)
	return "archive-1", nil
}

func (f *fakeTasks) EnqueueSweep(_ context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.sweeps++
	return "sweep-1", nil
}

func TestMaintenanceHandler_Archive(t *testing.T) {
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("explicit_cutoff_runs_inline", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockMaintenanceService(ctrl)
		svc.EXPECT().Archive(gomock.Any(), cutoff).
			Return(&ports.ArchiveResult{Archived: 2, Path: "archive/sales-a-b-1.json", Cutoff: cutoff}, nil)
		handler := handlers.NewMaintenanceHandler(svc, nil, 90, helpers.TestLogger())

		w := httptest.NewRecorder()
		handler.Archive(w, httptest.NewRequest(http.MethodPost, "/api/v1/archive",
			strings.NewReader(`{"cutoff":"2024-01-01T00:00:00Z"}`)))

		require.Equal(t, http.StatusOK, w.Code)
		var result ports.ArchiveResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
		assert.Equal(t, 2, result.Archived)
	})

	t.Run("empty_body_uses_retention", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockMaintenanceService(ctrl)
		svc.EXPECT().Archive(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ any, c time.Time) (*ports.ArchiveResult, error) {
				want := time.Now().UTC().AddDate(0, 0, -30)
				assert.WithinDuration(t, want, c, time.Minute)
				return &ports.ArchiveResult{}, nil
			})
		handler := handlers.NewMaintenanceHandler(svc, nil, 30, helpers.TestLogger())

		w := httptest.NewRecorder()
		handler.Archive(w, httptest.NewRequest(http.MethodPost, "/api/v1/archive", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("async_queues_task", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		tasks := &fakeTasks{}
		handler := handlers.NewMaintenanceHandler(mocks.NewMockMaintenanceService(ctrl), tasks, 90, helpers.TestLogger())

		w := httptest.NewRecorder()
		handler.Archive(w, httptest.NewRequest(http.MethodPost, "/api/v1/archive?async=true",
			strings.NewReader(`{"cutoff":"2024-01-01T00:00:00Z"}`)))

		require.Equal(t, http.StatusAccepted, w.Code)
		assert.JSONEq(t, `{"task_id":"archive-1","status":"queued"}`, w.Body.String())
		require.Len(t, tasks.archived, 1)
		assert.True(t, cutoff.Equal(tasks.archived[0]))
	})

	t.Run("async_without_worker", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		handler := handlers.NewMaintenanceHandler(mocks.NewMockMaintenanceService(ctrl), nil, 90, helpers.TestLogger())

		w := httptest.NewRecorder()
		handler.Archive(w, httptest.NewRequest(http.MethodPost, "/api/v1/archive?async=1", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("broker_down", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		tasks := &fakeTasks{err: errors.New("dial tcp: connection refused")}
		handler := handlers.NewMaintenanceHandler(mocks.NewMockMaintenanceService(ctrl), tasks, 90, helpers.TestLogger())

		w := httptest.NewRecorder()
		handler.Archive(w, httptest.NewRequest(http.MethodPost, "/api/v1/archive?async=true", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.True(t, decodeError(t, w.Body.Bytes()).Retry)
	})

	t.Run("partial_archive", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockMaintenanceService(ctrl)
		svc.EXPECT().Archive(gomock.Any(), gomock.Any()).Return(nil, &services.PartialCommitError{
			Committed: []domain.CollectionName{domain.CollectionSales},
			Failed:    domain.CollectionInventory,
			Err:       &ports.ConflictError{Path: "inventory.json", Expected: "v1"},
		})
		handler := handlers.NewMaintenanceHandler(svc, nil, 90, helpers.TestLogger())

		w := httptest.NewRecorder()
		handler.Archive(w, httptest.NewRequest(http.MethodPost, "/api/v1/archive", nil))

		assert.Equal(t, http.StatusConflict, w.Code)
		resp := decodeError(t, w.Body.Bytes())
		assert.True(t, resp.Partial)
		assert.True(t, resp.Reload)
	})
}

func TestMaintenanceHandler_Sweep(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockMaintenanceService(ctrl)
		svc.EXPECT().SweepImages(gomock.Any()).
			Return(&ports.SweepResult{Scanned: 2, Deleted: []string{"images/old.png"}}, nil)
		handler := handlers.NewMaintenanceHandler(svc, nil, 90, helpers.TestLogger())

		w := httptest.NewRecorder()
		handler.Sweep(w, httptest.NewRequest(http.MethodPost, "/api/v1/images/sweep", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "images/old.png")
	})

	t.Run("async", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		tasks := &fakeTasks{}
		handler := handlers.NewMaintenanceHandler(mocks.NewMockMaintenanceService(ctrl), tasks, 90, helpers.TestLogger())

		w := httptest.NewRecorder()
		handler.Sweep(w, httptest.NewRequest(http.MethodPost, "/api/v1/images/sweep?async=true", nil))

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, 1, tasks.sweeps)
	})

	t.Run("bad_async_flag", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		handler := handlers.NewMaintenanceHandler(mocks.NewMockMaintenanceService(ctrl), &fakeTasks{}, 90, helpers.TestLogger())

		w := httptest.NewRecorder()
		handler.Sweep(w, httptest.NewRequest(http.MethodPost, "/api/v1/images/sweep?async=soon", nil))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestMaintenanceHandler_BackupRestore(t *testing.T) {
	exported := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	bundle := &ports.Bundle{
		Version:    1,
		ExportedAt: exported,
		Inventory:  domain.Inventory{Items: []domain.Item{helpers.CreateTestItem()}},
		Sales:      domain.Sales{},
		Suppliers:  domain.Suppliers{helpers.CreateTestSupplier()},
		AuditLog:   domain.AuditLog{},
	}

	ctrl := gomock.NewController(t)
	svc := mocks.NewMockMaintenanceService(ctrl)
	svc.EXPECT().Backup(gomock.Any()).Return(bundle, nil)
	svc.EXPECT().Restore(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, b *ports.Bundle) error {
			assert.Equal(t, 1, b.Version)
			require.Len(t, b.Inventory.Items, 1)
			assert.Equal(t, bundle.Inventory.Items[0].ID, b.Inventory.Items[0].ID)
			assert.Len(t, b.Suppliers, 1)
			return nil
		})
	handler := handlers.NewMaintenanceHandler(svc, nil, 90, helpers.TestLogger())

	w := httptest.NewRecorder()
	handler.Backup(w, httptest.NewRequest(http.MethodGet, "/api/v1/backup", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "stockbook-backup-20240501-083000.json")

	restore := httptest.NewRecorder()
	handler.Restore(restore, httptest.NewRequest(http.MethodPost, "/api/v1/restore", strings.NewReader(w.Body.String())))
	assert.Equal(t, http.StatusOK, restore.Code)
}

func TestMaintenanceHandler_Reload(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		setupMocks     func(*mocks.MockMaintenanceService)
		expectedStatus int
	}{
		{
			name:  "all_collections",
			query: "",
			setupMocks: func(m *mocks.MockMaintenanceService) {
				m.EXPECT().Reload(gomock.Any(),
					domain.CollectionInventory, domain.CollectionSales,
					domain.CollectionSuppliers, domain.CollectionAuditLog).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:  "one_collection",
			query: "?collection=sales",
			setupMocks: func(m *mocks.MockMaintenanceService) {
				m.EXPECT().Reload(gomock.Any(), domain.CollectionSales).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "unknown_collection",
			query:          "?collection=orders",
			setupMocks:     func(m *mocks.MockMaintenanceService) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:  "remote_unreachable",
			query: "?collection=inventory",
			setupMocks: func(m *mocks.MockMaintenanceService) {
				m.EXPECT().Reload(gomock.Any(), domain.CollectionInventory).
					Return(&ports.TransportError{Op: "load", Path: "inventory.json", RateLimited: true, RetryAfter: 1500 * time.Millisecond})
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			svc := mocks.NewMockMaintenanceService(ctrl)
			tt.setupMocks(svc)
			handler := handlers.NewMaintenanceHandler(svc, nil, 90, helpers.TestLogger())

			w := httptest.NewRecorder()
			handler.Reload(w, httptest.NewRequest(http.MethodPost, "/api/v1/reload"+tt.query, nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.name == "remote_unreachable" {
				assert.Equal(t, "2", w.Header().Get("Retry-After"))
			}
		})
	}

	t.Run("message_keeps_percent_signs", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		handler := handlers.NewMaintenanceHandler(mocks.NewMockMaintenanceService(ctrl), nil, 90, helpers.TestLogger())

		w := httptest.NewRecorder()
		handler.Reload(w, httptest.NewRequest(http.MethodPost, "/api/v1/reload?collection=100%25done", nil))

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, `collection: unknown collection "100%done"`, decodeError(t, w.Body.Bytes()).Error)
	})
}
