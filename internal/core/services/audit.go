// internal/core/services/audit.go
package services

import (
	"context"
	"log/slog"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
)

// AuditService exposes the audit log.
type AuditService struct {
	engine *Engine
	logger *slog.Logger
}

var _ ports.AuditService = (*AuditService)(nil)

// NewAuditService creates a new audit service
func NewAuditService(engine *Engine, logger *slog.Logger) *AuditService {
	return &AuditService{
		engine: engine,
		logger: logger.With(slog.String("service", "audit")),
	}
}

// ListEntries returns up to limit entries, newest first.
func (s *AuditService) ListEntries(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	return s.engine.recorder.Entries(limit), nil
}

// Clear empties the audit log after checking the remote version has not
// moved since it was loaded.
func (s *AuditService) Clear(ctx context.Context) error {
	return s.engine.track(ctx, domain.CollectionAuditLog, "Audit log clear", func(ctx context.Context) error {
		removed, err := s.engine.recorder.Clear(ctx, s.engine.user())
		if err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "audit log cleared", slog.Int("removed", removed))
		return nil
	})
}
