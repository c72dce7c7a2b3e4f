// internal/core/services/maintenance.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/migration"
	"github.com/ammerola/stockbook/internal/core/ports"
	"github.com/ammerola/stockbook/internal/core/syncer"
)

// BundleVersion is the format version written by Backup.
const BundleVersion = 1

// MaintenanceService handles whole-collection operations: archive, image
// upload and sweep, backup and restore, reload.
type MaintenanceService struct {
	engine *Engine
	logger *slog.Logger
}

var _ ports.MaintenanceService = (*MaintenanceService)(nil)

// NewMaintenanceService creates a new maintenance service
func NewMaintenanceService(engine *Engine, logger *slog.Logger) *MaintenanceService {
	return &MaintenanceService{
		engine: engine,
		logger: logger.With(slog.String("service", "maintenance")),
	}
}

// Archive moves every sale older than cutoff into a new create-only archive
// document, then trims the sales collection and stamps the inventory with
// the archive time.
func (s *MaintenanceService) Archive(ctx context.Context, cutoff time.Time) (*ports.ArchiveResult, error) {
	if s.engine.store == nil {
		return nil, ErrNoStore
	}
	cutoff = cutoff.UTC()
	older, _ := s.engine.sales.View().SplitBefore(cutoff)
	result := &ports.ArchiveResult{Cutoff: cutoff}
	if len(older) == 0 {
		s.logger.InfoContext(ctx, "nothing to archive", slog.Time("cutoff", cutoff))
		return result, nil
	}

	now := s.engine.now().UTC()
	result.Path = archivePath(older, now)
	result.Archived = len(older)

	data, err := syncer.Encode(older)
	if err != nil {
		return nil, err
	}
	if _, err := s.engine.store.Save(ctx, result.Path, data, ports.NoVersion,
		fmt.Sprintf("Archive %d sales before %s", len(older), cutoff.Format(time.DateOnly))); err != nil {
		return nil, fmt.Errorf("write archive %s: %w", result.Path, err)
	}

	archived := make(map[string]struct{}, len(older))
	for _, sale := range older {
		archived[sale.SaleID] = struct{}{}
	}

	err = s.engine.track(ctx, domain.CollectionSales, "Archive", func(ctx context.Context) error {
		_, err := s.engine.sales.Mutate(ctx, func(sales *domain.Sales) error {
			kept := domain.Sales{}
			for _, sale := range *sales {
				if _, ok := archived[sale.SaleID]; !ok {
					kept = append(kept, sale)
				}
			}
			*sales = kept
			return nil
		}, syncer.WithMessage(fmt.Sprintf("Remove %d archived sales", len(older))))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("archive %s written but sales not trimmed: %w", result.Path, err)
	}

	err = s.engine.track(ctx, domain.CollectionInventory, "Archive timestamp", func(ctx context.Context) error {
		_, err := s.engine.inventory.Mutate(ctx, func(inv *domain.Inventory) error {
			inv.LastArchiveTimestamp = &now
			return nil
		}, syncer.WithMessage("Record archive time"))
		return err
	})
	if err != nil {
		return nil, &PartialCommitError{
			Committed: []domain.CollectionName{domain.CollectionSales},
			Failed:    domain.CollectionInventory,
			Err:       err,
		}
	}

	s.engine.record(ctx, domain.ActionSalesArchived, "", result.Path, domain.ArchiveDetails{
		Path:   result.Path,
		Count:  result.Archived,
		Cutoff: cutoff,
	})
	s.logger.InfoContext(ctx, "archived sales",
		slog.String("path", result.Path),
		slog.Int("count", result.Archived))
	return result, nil
}

func archivePath(sales domain.Sales, now time.Time) string {
	from, to := sales[0].SoldAt, sales[0].SoldAt
	for _, sale := range sales[1:] {
		if sale.SoldAt.Before(from) {
			from = sale.SoldAt
		}
		if sale.SoldAt.After(to) {
			to = sale.SoldAt
		}
	}
	return domain.ArchivePath(fmt.Sprintf("sales-%s-%s-%d.json",
		from.UTC().Format("20060102"), to.UTC().Format("20060102"), now.Unix()))
}

// SweepImages deletes image blobs that no item references. Failures are
// collected and never roll anything back.
func (s *MaintenanceService) SweepImages(ctx context.Context) (*ports.SweepResult, error) {
	if s.engine.store == nil {
		return nil, ErrNoStore
	}
	entries, err := s.engine.store.List(ctx, domain.ImagesDir)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}

	inv := s.engine.inventory.View()
	result := &ports.SweepResult{Scanned: len(entries), Deleted: []string{}}
	for _, entry := range entries {
		if inv.ReferencesImage(entry.Path) {
			continue
		}
		if err := s.engine.store.Delete(ctx, entry.Path, entry.Version, "Remove unused image "+path.Base(entry.Path)); err != nil {
			if errors.Is(err, context.Canceled) {
				return result, err
			}
			s.logger.WarnContext(ctx, "failed to delete unused image",
				slog.String("path", entry.Path),
				slog.String("error", err.Error()))
			result.Failed = append(result.Failed, entry.Path)
			continue
		}
		result.Deleted = append(result.Deleted, entry.Path)
	}

	s.logger.InfoContext(ctx, "image sweep finished",
		slog.Int("scanned", result.Scanned),
		slog.Int("deleted", len(result.Deleted)),
		slog.Int("failed", len(result.Failed)))
	return result, nil
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// UploadImage stores data under images/ and points the item at it. The blob
// is create-only. If the inventory commit fails the blob is left for the
// sweep.
func (s *MaintenanceService) UploadImage(ctx context.Context, itemID, filename string, data []byte) (domain.Item, error) {
	if s.engine.store == nil {
		return domain.Item{}, ErrNoStore
	}
	if len(data) == 0 {
		return domain.Item{}, domain.NewValidationError("image", "is empty")
	}
	ext, ok := imageExtensions[http.DetectContentType(data)]
	if !ok {
		return domain.Item{}, domain.NewValidationError("image", "unsupported content type %s", http.DetectContentType(data))
	}
	inv := s.engine.inventory.View()
	if _, ok := inv.Find(itemID); !ok {
		return domain.Item{}, fmt.Errorf("%w: %s", domain.ErrItemNotFound, itemID)
	}

	now := s.engine.now().UTC()
	blobPath := domain.ImagePath(fmt.Sprintf("%s-%d%s", itemID, now.Unix(), ext))
	if _, err := s.engine.store.Save(ctx, blobPath, data, ports.NoVersion, "Upload image "+path.Base(filename)); err != nil {
		return domain.Item{}, fmt.Errorf("upload image: %w", err)
	}

	var updated domain.Item
	err := s.engine.track(ctx, domain.CollectionInventory, "Image", func(ctx context.Context) error {
		_, err := s.engine.inventory.Mutate(ctx, func(inv *domain.Inventory) error {
			item, ok := inv.Find(itemID)
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrItemNotFound, itemID)
			}
			item.ImagePath = blobPath
			item.UpdatedAt = now
			updated = item.Clone()
			return nil
		}, syncer.WithMessage("Set image of "+itemID))
		return err
	})
	if err != nil {
		return domain.Item{}, err
	}

	s.engine.record(ctx, domain.ActionImageUploaded, updated.ID, updated.Name,
		domain.ImageDetails{Path: blobPath, Size: len(data)})
	return updated, nil
}

// Backup exports every collection as one bundle.
func (s *MaintenanceService) Backup(ctx context.Context) (*ports.Bundle, error) {
	return &ports.Bundle{
		Version:    BundleVersion,
		ExportedAt: s.engine.now().UTC(),
		Inventory:  s.engine.inventory.View(),
		Sales:      s.engine.sales.View(),
		Suppliers:  s.engine.suppliers.View(),
		AuditLog:   s.engine.auditLog.View(),
	}, nil
}

// Restore replaces each collection with the bundle's copy, one committed
// mutation per collection in the fixed commit order. The bundle is migrated
// first so older exports restore in the current shape.
func (s *MaintenanceService) Restore(ctx context.Context, bundle *ports.Bundle) error {
	if bundle == nil {
		return domain.NewValidationError("bundle", "is required")
	}
	if bundle.Version < 0 || bundle.Version > BundleVersion {
		return domain.NewValidationError("version", "unsupported bundle version %d", bundle.Version)
	}

	inv, sales, suppliers, log := bundle.Inventory.Clone(), bundle.Sales.Clone(), bundle.Suppliers.Clone(), bundle.AuditLog.Clone()
	migration.Inventory(&inv)
	migration.Sales(&sales)
	migration.Suppliers(&suppliers)
	migration.AuditLog(&log)
	for i := range inv.Items {
		if err := inv.Items[i].Validate(); err != nil {
			return fmt.Errorf("item %s: %w", inv.Items[i].ID, err)
		}
	}

	steps := []struct {
		name domain.CollectionName
		run  func(ctx context.Context) error
	}{
		{domain.CollectionInventory, func(ctx context.Context) error {
			_, err := s.engine.inventory.Replace(ctx, inv, syncer.WithMessage("Restore inventory"))
			return err
		}},
		{domain.CollectionSales, func(ctx context.Context) error {
			_, err := s.engine.sales.Replace(ctx, sales, syncer.WithMessage("Restore sales"))
			return err
		}},
		{domain.CollectionSuppliers, func(ctx context.Context) error {
			_, err := s.engine.suppliers.Replace(ctx, suppliers, syncer.WithMessage("Restore suppliers"))
			return err
		}},
		{domain.CollectionAuditLog, func(ctx context.Context) error {
			_, err := s.engine.auditLog.Replace(ctx, log, syncer.WithMessage("Restore audit log"))
			return err
		}},
	}

	var committed []domain.CollectionName
	for _, step := range steps {
		if err := s.engine.track(ctx, step.name, "Restore", step.run); err != nil {
			if len(committed) == 0 {
				return err
			}
			return &PartialCommitError{Committed: committed, Failed: step.name, Err: err}
		}
		committed = append(committed, step.name)
	}

	names := make([]string, len(committed))
	for i, c := range committed {
		names[i] = string(c)
	}
	s.engine.record(ctx, domain.ActionBackupRestored, "", "backup", domain.RestoreDetails{Collections: names})
	s.logger.InfoContext(ctx, "restored backup",
		slog.String("collections", strings.Join(names, ",")),
		slog.Time("exported_at", bundle.ExportedAt))
	return nil
}

// Reload re-runs the startup load for the named collections, or all of
// them. It is the action offered after a conflict.
func (s *MaintenanceService) Reload(ctx context.Context, names ...domain.CollectionName) error {
	results, err := s.engine.Load(ctx, names...)
	if err != nil {
		return err
	}
	for _, res := range results {
		s.logger.InfoContext(ctx, "reloaded collection",
			slog.String("collection", string(res.Collection)),
			slog.String("source", string(res.Source)),
			slog.String("version", string(res.Version)))
	}
	return nil
}
