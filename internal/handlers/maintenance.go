// internal/handlers/maintenance.go
package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
)

// TaskEnqueuer queues maintenance work for the background worker.
type TaskEnqueuer interface {
	EnqueueArchive(ctx context.Context, cutoff time.Time) (string, error)
	EnqueueSweep(ctx context.Context) (string, error)
}

// MaintenanceHandler handles archive, sweep, backup, restore and reload.
type MaintenanceHandler struct {
	service       ports.MaintenanceService
	tasks         TaskEnqueuer
	retentionDays int
	now           func() time.Time
	logger        *slog.Logger
}

// NewMaintenanceHandler creates a new maintenance handler. tasks may be nil,
// in which case ?async=true requests are refused.
func NewMaintenanceHandler(service ports.MaintenanceService, tasks TaskEnqueuer, retentionDays int, logger *slog.Logger) *MaintenanceHandler {
	return &MaintenanceHandler{
		service:       service,
		tasks:         tasks,
		retentionDays: retentionDays,
		now:           time.Now,
		logger:        logger.With(slog.String("handler", "maintenance")),
	}
}

// ArchiveRequest is the optional body of POST /api/v1/archive.
type ArchiveRequest struct {
	Cutoff time.Time `json:"cutoff"`
}

// TaskResponse is returned when work was queued instead of run inline.
type TaskResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// Archive handles POST /api/v1/archive[?async=true]
func (h *MaintenanceHandler) Archive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ArchiveRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return
	}
	cutoff := req.Cutoff
	if cutoff.IsZero() {
		cutoff = h.now().UTC().AddDate(0, 0, -h.retentionDays)
	}

	async, ok := h.asyncRequested(w, r)
	if !ok {
		return
	}
	if async {
		id, err := h.tasks.EnqueueArchive(ctx, cutoff)
		h.respondQueued(w, r, id, err)
		return
	}

	result, err := h.service.Archive(ctx, cutoff)
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, result)
}

// Sweep handles POST /api/v1/images/sweep[?async=true]
func (h *MaintenanceHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	async, ok := h.asyncRequested(w, r)
	if !ok {
		return
	}
	if async {
		id, err := h.tasks.EnqueueSweep(r.Context())
		h.respondQueued(w, r, id, err)
		return
	}

	result, err := h.service.SweepImages(r.Context())
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, result)
}

// Backup handles GET /api/v1/backup
func (h *MaintenanceHandler) Backup(w http.ResponseWriter, r *http.Request) {
	bundle, err := h.service.Backup(r.Context())
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}

	filename := "stockbook-backup-" + bundle.ExportedAt.UTC().Format("20060102-150405") + ".json"
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	respondJSON(h.logger, w, http.StatusOK, bundle)
}

// Restore handles POST /api/v1/restore
func (h *MaintenanceHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var bundle ports.Bundle
	if err := decodeJSON(r, &bundle); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid backup bundle")
		return
	}

	if err := h.service.Restore(r.Context(), &bundle); err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, map[string]string{"message": "Backup restored"})
}

// Reload handles POST /api/v1/reload[?collection=]
func (h *MaintenanceHandler) Reload(w http.ResponseWriter, r *http.Request) {
	names := domain.AllCollections()
	if v := r.URL.Query().Get("collection"); v != "" {
		name := domain.CollectionName(v)
		if !name.Valid() {
			respondServiceError(h.logger, w, r, domain.NewValidationError("collection", "unknown collection %q", v))
			return
		}
		names = []domain.CollectionName{name}
	}

	if err := h.service.Reload(r.Context(), names...); err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, map[string]any{"reloaded": names})
}

func (h *MaintenanceHandler) asyncRequested(w http.ResponseWriter, r *http.Request) (bool, bool) {
	v := r.URL.Query().Get("async")
	if v == "" {
		return false, true
	}
	async, err := strconv.ParseBool(v)
	if err != nil {
		respondServiceError(h.logger, w, r, domain.NewValidationError("async", "must be a boolean"))
		return false, false
	}
	if async && h.tasks == nil {
		respondError(h.logger, w, http.StatusServiceUnavailable, "Background worker is not configured")
		return false, false
	}
	return async, true
}

func (h *MaintenanceHandler) respondQueued(w http.ResponseWriter, r *http.Request, id string, err error) {
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to enqueue task",
			slog.String("error", err.Error()))
		respondJSON(h.logger, w, http.StatusServiceUnavailable, ErrorResponse{Error: "Failed to queue task", Retry: true})
		return
	}
	respondJSON(h.logger, w, http.StatusAccepted, TaskResponse{TaskID: id, Status: "queued"})
}
