// internal/core/services/sales.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
	"github.com/ammerola/stockbook/internal/core/syncer"
)

// SalesService records sales against inventory. A sale touches two
// collections which commit independently: inventory first, then sales.
type SalesService struct {
	engine *Engine
	logger *slog.Logger
}

var _ ports.SalesService = (*SalesService)(nil)

// NewSalesService creates a new sales service
func NewSalesService(engine *Engine, logger *slog.Logger) *SalesService {
	return &SalesService{
		engine: engine,
		logger: logger.With(slog.String("service", "sales")),
	}
}

// RecordSale takes quantity units off the item and appends the sale record.
// If the sales commit fails after the inventory commit succeeded the result
// is a *PartialCommitError and the inventory stays decremented remotely.
func (s *SalesService) RecordSale(ctx context.Context, req ports.SaleRequest) (domain.SaleRecord, error) {
	if req.Quantity <= 0 {
		return domain.SaleRecord{}, domain.NewValidationError("quantity", "must be positive")
	}

	settings := s.engine.Settings()
	var record domain.SaleRecord

	err := s.engine.track(ctx, domain.CollectionInventory, "Sale", func(ctx context.Context) error {
		_, err := s.engine.inventory.Mutate(ctx, func(inv *domain.Inventory) error {
			item, ok := inv.Find(req.ItemID)
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrItemNotFound, req.ItemID)
			}
			if req.Quantity > item.Quantity {
				return domain.NewValidationError("quantity", "only %d of %s on hand", item.Quantity, item.Name)
			}
			now := s.engine.now().UTC()
			record = domain.NewSaleRecord(*item, req.Quantity, settings.ExchangeRate, settings.UserLabel, now)
			item.Quantity -= req.Quantity
			item.UpdatedAt = now
			return nil
		}, syncer.WithMessage(fmt.Sprintf("Sell %d of %s", req.Quantity, req.ItemID)))
		return err
	})
	if err != nil {
		return domain.SaleRecord{}, err
	}

	err = s.engine.track(ctx, domain.CollectionSales, "Sale record", func(ctx context.Context) error {
		_, err := s.engine.sales.Mutate(ctx, func(sales *domain.Sales) error {
			*sales = append(*sales, record)
			return nil
		}, syncer.WithMessage("Record sale "+record.SaleID))
		return err
	})
	if err != nil {
		s.logger.WarnContext(ctx, "sale recorded in inventory only",
			slog.String("sale_id", record.SaleID),
			slog.String("item_id", record.ItemID),
			slog.String("error", err.Error()))
		s.engine.reporter.Info(ctx, domain.CollectionSales,
			"Stock was reduced but the sale was not recorded. Reload to reconcile.")
		return domain.SaleRecord{}, &PartialCommitError{
			Committed: []domain.CollectionName{domain.CollectionInventory},
			Failed:    domain.CollectionSales,
			Err:       err,
		}
	}

	s.engine.record(ctx, domain.ActionSaleRecorded, record.ItemID, record.ItemName, domain.SaleDetails{
		SaleID:   record.SaleID,
		Quantity: record.Quantity,
		Total:    record.Total.String(),
	})
	s.logger.InfoContext(ctx, "recorded sale",
		slog.String("sale_id", record.SaleID),
		slog.String("item_id", record.ItemID),
		slog.Int("quantity", record.Quantity))
	return record, nil
}

// DeleteSale removes a sale and optionally puts the units back on the item.
// The sales commit runs first. A restock for an item that no longer exists
// is skipped.
func (s *SalesService) DeleteSale(ctx context.Context, saleID string, restock bool) error {
	var removed domain.SaleRecord

	err := s.engine.track(ctx, domain.CollectionSales, "Sale delete", func(ctx context.Context) error {
		_, err := s.engine.sales.Mutate(ctx, func(sales *domain.Sales) error {
			sale, ok := sales.Remove(saleID)
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrSaleNotFound, saleID)
			}
			removed = sale
			return nil
		}, syncer.WithMessage("Delete sale "+saleID))
		return err
	})
	if err != nil {
		return err
	}

	restocked := false
	if restock {
		err = s.engine.track(ctx, domain.CollectionInventory, "Restock", func(ctx context.Context) error {
			_, err := s.engine.inventory.Mutate(ctx, func(inv *domain.Inventory) error {
				item, ok := inv.Find(removed.ItemID)
				if !ok {
					return fmt.Errorf("%w: %s", domain.ErrItemNotFound, removed.ItemID)
				}
				item.Quantity += removed.Quantity
				item.UpdatedAt = s.engine.now().UTC()
				return nil
			}, syncer.WithMessage(fmt.Sprintf("Restock %d of %s", removed.Quantity, removed.ItemID)))
			return err
		})
		switch {
		case err == nil:
			restocked = true
		case errors.Is(err, domain.ErrItemNotFound):
			s.logger.InfoContext(ctx, "restock skipped, item no longer exists",
				slog.String("item_id", removed.ItemID))
		default:
			return &PartialCommitError{
				Committed: []domain.CollectionName{domain.CollectionSales},
				Failed:    domain.CollectionInventory,
				Err:       err,
			}
		}
	}

	s.engine.record(ctx, domain.ActionSaleDeleted, removed.ItemID, removed.ItemName, domain.SaleDetails{
		SaleID:   removed.SaleID,
		Quantity: removed.Quantity,
		Total:    removed.Total.String(),
		Restock:  restocked,
	})
	return nil
}

// ListSales returns matching sales, newest first.
func (s *SalesService) ListSales(ctx context.Context, filter ports.SalesFilter) ([]domain.SaleRecord, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, domain.NewValidationError("to", "must not be before from")
	}

	sales := s.engine.sales.View()
	out := make([]domain.SaleRecord, 0, len(sales))
	for _, sale := range sales {
		if filter.ItemID != "" && sale.ItemID != filter.ItemID {
			continue
		}
		if !filter.From.IsZero() && sale.SoldAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !sale.SoldAt.Before(filter.To) {
			continue
		}
		out = append(out, sale)
	}
	slices.SortStableFunc(out, func(a, b domain.SaleRecord) int {
		return b.SoldAt.Compare(a.SoldAt)
	})
	return out, nil
}
