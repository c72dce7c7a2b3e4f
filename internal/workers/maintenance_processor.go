// internal/workers/maintenance_processor.go
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/outcome"
	"github.com/ammerola/stockbook/internal/core/ports"
	"github.com/ammerola/stockbook/internal/core/services"
)

// DefaultRetentionDays applies when neither the payload nor the processor
// names a retention.
const DefaultRetentionDays = 90

// MaintenanceProcessor runs the scheduled archive and image sweep.
type MaintenanceProcessor struct {
	service       ports.MaintenanceService
	retentionDays int
	now           func() time.Time
	logger        *slog.Logger
}

// NewMaintenanceProcessor creates a new maintenance processor
func NewMaintenanceProcessor(service ports.MaintenanceService, retentionDays int, logger *slog.Logger) *MaintenanceProcessor {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	return &MaintenanceProcessor{
		service:       service,
		retentionDays: retentionDays,
		now:           time.Now,
		logger:        logger.With(slog.String("processor", "maintenance")),
	}
}

// WithClock replaces the clock used to derive archive cutoffs.
func (p *MaintenanceProcessor) WithClock(now func() time.Time) *MaintenanceProcessor {
	p.now = now
	return p
}

// Register adds the processor's handlers to mux.
func (p *MaintenanceProcessor) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeArchiveSales, p.ArchiveSales)
	mux.HandleFunc(TypeSweepImages, p.SweepImages)
}

// ArchiveSales handles sales:archive. The worker holds its own copy of the
// collections, so it reloads them before acting.
func (p *MaintenanceProcessor) ArchiveSales(ctx context.Context, t *asynq.Task) error {
	var payload ArchivePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	cutoff := payload.Cutoff
	if cutoff.IsZero() {
		days := payload.RetentionDays
		if days <= 0 {
			days = p.retentionDays
		}
		cutoff = p.now().UTC().AddDate(0, 0, -days)
	}

	if err := p.service.Reload(ctx, domain.CollectionInventory, domain.CollectionSales); err != nil {
		return p.taskError(ctx, TypeArchiveSales, err)
	}

	result, err := p.service.Archive(ctx, cutoff)
	if err != nil {
		return p.taskError(ctx, TypeArchiveSales, err)
	}

	p.logger.InfoContext(ctx, "archive task completed",
		slog.Time("cutoff", cutoff),
		slog.Int("archived", result.Archived),
		slog.String("path", result.Path))
	return nil
}

// SweepImages handles images:sweep.
func (p *MaintenanceProcessor) SweepImages(ctx context.Context, t *asynq.Task) error {
	if err := p.service.Reload(ctx, domain.CollectionInventory); err != nil {
		return p.taskError(ctx, TypeSweepImages, err)
	}

	result, err := p.service.SweepImages(ctx)
	if err != nil {
		return p.taskError(ctx, TypeSweepImages, err)
	}

	p.logger.InfoContext(ctx, "sweep task completed",
		slog.Int("scanned", result.Scanned),
		slog.Int("deleted", len(result.Deleted)),
		slog.Int("failed", len(result.Failed)))
	return nil
}

// taskError decides whether asynq should retry. Conflicts and transient
// failures retry; the next attempt reloads first. Everything else, and any
// partial commit, is not retried.
func (p *MaintenanceProcessor) taskError(ctx context.Context, taskType string, err error) error {
	o := outcome.Classify(err)
	var partial *services.PartialCommitError
	retry := o.Retryable() || o.NeedsReload()
	if errors.As(err, &partial) || errors.Is(err, services.ErrNoStore) {
		retry = false
	}

	p.logger.WarnContext(ctx, "maintenance task failed",
		slog.String("type", taskType),
		slog.String("outcome", string(o)),
		slog.Bool("retry", retry),
		slog.String("error", err.Error()))

	if !retry {
		return fmt.Errorf("%s: %v: %w", taskType, err, asynq.SkipRetry)
	}
	return fmt.Errorf("%s: %w", taskType, err)
}
