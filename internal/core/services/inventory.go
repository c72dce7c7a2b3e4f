// internal/core/services/inventory.go
package services

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
	"github.com/ammerola/stockbook/internal/core/syncer"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// InventoryService handles inventory business logic
type InventoryService struct {
	engine *Engine
	logger *slog.Logger
}

// Statically assert that *InventoryService implements the InventoryService interface.
var _ ports.InventoryService = (*InventoryService)(nil)

// NewInventoryService creates a new inventory service
func NewInventoryService(engine *Engine, logger *slog.Logger) *InventoryService {
	return &InventoryService{
		engine: engine,
		logger: logger.With(slog.String("service", "inventory")),
	}
}

// CreateItem adds a new item
func (s *InventoryService) CreateItem(ctx context.Context, item domain.Item) (domain.Item, error) {
	item.PrepareForCreate(s.engine.now().UTC())
	if err := item.Validate(); err != nil {
		return domain.Item{}, fmt.Errorf("validation failed: %w", err)
	}

	err := s.engine.track(ctx, domain.CollectionInventory, "Item "+item.Name, func(ctx context.Context) error {
		_, err := s.engine.inventory.Mutate(ctx, func(inv *domain.Inventory) error {
			if _, exists := inv.Find(item.ID); exists {
				return domain.NewValidationError("id", "item %s already exists", item.ID)
			}
			inv.Items = append(inv.Items, item.Clone())
			return nil
		}, syncer.WithMessage("Add item "+item.Name))
		return err
	})
	if err != nil {
		return domain.Item{}, err
	}

	s.engine.record(ctx, domain.ActionItemCreated, item.ID, item.Name, snapshotDetails(item))
	s.logger.InfoContext(ctx, "created inventory item",
		slog.String("item_id", item.ID),
		slog.String("name", item.Name))
	return item, nil
}

// UpdateItem applies patch to an existing item
func (s *InventoryService) UpdateItem(ctx context.Context, id string, patch ports.ItemPatch) (domain.Item, error) {
	var (
		updated domain.Item
		changes []domain.FieldChange
	)

	err := s.engine.track(ctx, domain.CollectionInventory, "Item update", func(ctx context.Context) error {
		_, err := s.engine.inventory.Mutate(ctx, func(inv *domain.Inventory) error {
			item, ok := inv.Find(id)
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrItemNotFound, id)
			}

			draft := item.Clone()
			changes = applyPatch(&draft, patch)
			if len(changes) == 0 {
				updated = draft
				return syncer.ErrNoChange
			}
			if err := draft.Validate(); err != nil {
				return err
			}
			draft.UpdatedAt = s.engine.now().UTC()
			*item = draft
			updated = draft.Clone()
			return nil
		}, syncer.WithMessage("Update item "+id))
		return err
	})
	if err != nil {
		return domain.Item{}, err
	}

	if len(changes) > 0 {
		s.engine.record(ctx, domain.ActionItemUpdated, updated.ID, updated.Name, domain.ItemUpdatedDetails{Changes: changes})
	}
	return updated, nil
}

// DeleteItem removes an item. Its image blob is left in place for the sweep.
func (s *InventoryService) DeleteItem(ctx context.Context, id string) error {
	var removed domain.Item

	err := s.engine.track(ctx, domain.CollectionInventory, "Item delete", func(ctx context.Context) error {
		_, err := s.engine.inventory.Mutate(ctx, func(inv *domain.Inventory) error {
			item, ok := inv.Remove(id)
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrItemNotFound, id)
			}
			removed = item
			return nil
		}, syncer.WithMessage("Delete item "+id))
		return err
	})
	if err != nil {
		return err
	}

	s.engine.record(ctx, domain.ActionItemDeleted, removed.ID, removed.Name, snapshotDetails(removed))
	s.logger.InfoContext(ctx, "deleted inventory item", slog.String("item_id", id))
	return nil
}

// AdjustQuantity changes the on-hand quantity by delta. Results below zero
// are rejected before anything changes.
func (s *InventoryService) AdjustQuantity(ctx context.Context, id string, delta int, reason string) (domain.Item, error) {
	var (
		updated  domain.Item
		from, to int
	)

	err := s.engine.track(ctx, domain.CollectionInventory, "Stock adjustment", func(ctx context.Context) error {
		_, err := s.engine.inventory.Mutate(ctx, func(inv *domain.Inventory) error {
			item, ok := inv.Find(id)
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrItemNotFound, id)
			}
			from, to = item.Quantity, item.Quantity+delta
			if to < 0 {
				return domain.NewValidationError("quantity", "adjustment of %d would leave %d on hand", delta, to)
			}
			if delta == 0 {
				updated = item.Clone()
				return syncer.ErrNoChange
			}
			item.Quantity = to
			item.UpdatedAt = s.engine.now().UTC()
			updated = item.Clone()
			return nil
		}, syncer.WithMessage(fmt.Sprintf("Adjust stock of %s by %d", id, delta)))
		return err
	})
	if err != nil {
		return domain.Item{}, err
	}

	if delta != 0 {
		s.engine.record(ctx, domain.ActionStockAdjusted, updated.ID, updated.Name,
			domain.StockAdjustedDetails{From: from, To: to, Reason: reason})
	}
	return updated, nil
}

// RenameCategory renames a category on every item in one mutation, so the
// rename persists or rolls back as a whole.
func (s *InventoryService) RenameCategory(ctx context.Context, from, to string) (int, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" {
		return 0, domain.NewValidationError("from", "is required")
	}
	if to == "" {
		return 0, domain.NewValidationError("to", "is required")
	}
	if from == to {
		return 0, nil
	}

	var affected int
	err := s.engine.track(ctx, domain.CollectionInventory, "Category rename", func(ctx context.Context) error {
		affected = 0
		_, err := s.engine.inventory.Mutate(ctx, func(inv *domain.Inventory) error {
			now := s.engine.now().UTC()
			for i := range inv.Items {
				item := &inv.Items[i]
				if !item.HasCategory(from) {
					continue
				}
				renamed := slices.Clone(item.Categories)
				for j, c := range renamed {
					if c == from {
						renamed[j] = to
					}
				}
				item.Categories = domain.NormalizeCategories(renamed)
				item.UpdatedAt = now
				affected++
			}
			if affected == 0 {
				return syncer.ErrNoChange
			}
			return nil
		}, syncer.WithMessage(fmt.Sprintf("Rename category %s to %s", from, to)))
		return err
	})
	if err != nil {
		return 0, err
	}

	if affected > 0 {
		s.engine.record(ctx, domain.ActionCategoryRenamed, "", from,
			domain.CategoryRenamedDetails{From: from, To: to, Affected: affected})
	}
	s.logger.InfoContext(ctx, "renamed category",
		slog.String("from", from),
		slog.String("to", to),
		slog.Int("affected", affected))
	return affected, nil
}

// BulkUpdate applies one change to many items in a single mutation. An
// unknown id aborts the whole update.
func (s *InventoryService) BulkUpdate(ctx context.Context, update ports.BulkUpdate) (int, error) {
	if len(update.IDs) == 0 {
		return 0, domain.NewValidationError("ids", "at least one item is required")
	}
	if update.SalePrice == nil && update.SupplierID == nil &&
		strings.TrimSpace(update.AddCategory) == "" && strings.TrimSpace(update.RemoveCategory) == "" {
		return 0, domain.NewValidationError("update", "no change requested")
	}
	if update.SalePrice != nil && update.SalePrice.IsNegative() {
		return 0, domain.NewValidationError("salePrice", "cannot be negative")
	}

	var touched []string
	err := s.engine.track(ctx, domain.CollectionInventory, "Bulk update", func(ctx context.Context) error {
		touched = nil
		_, err := s.engine.inventory.Mutate(ctx, func(inv *domain.Inventory) error {
			now := s.engine.now().UTC()
			for _, id := range update.IDs {
				item, ok := inv.Find(id)
				if !ok {
					return fmt.Errorf("%w: %s", domain.ErrItemNotFound, id)
				}
				if len(applyBulk(item, update)) == 0 {
					continue
				}
				item.UpdatedAt = now
				touched = append(touched, id)
			}
			if len(touched) == 0 {
				return syncer.ErrNoChange
			}
			return nil
		}, syncer.WithMessage(fmt.Sprintf("Bulk update %d items", len(update.IDs))))
		return err
	})
	if err != nil {
		return 0, err
	}

	if len(touched) > 0 {
		s.engine.record(ctx, domain.ActionBulkUpdated, "", fmt.Sprintf("%d items", len(touched)),
			domain.BulkUpdatedDetails{ItemIDs: touched, Changes: bulkSummary(update)})
	}
	return len(touched), nil
}

// GetItem returns one item
func (s *InventoryService) GetItem(ctx context.Context, id string) (domain.Item, error) {
	inv := s.engine.inventory.View()
	item, ok := inv.Find(id)
	if !ok {
		return domain.Item{}, fmt.Errorf("%w: %s", domain.ErrItemNotFound, id)
	}
	return *item, nil
}

// List retrieves inventory items with filtering and pagination
func (s *InventoryService) List(ctx context.Context, params ports.ListParams) (*ports.ListResult, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize <= 0 {
		params.PageSize = defaultPageSize
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}

	inv := s.engine.inventory.View()
	items := filterItems(inv.Items, params)
	if err := sortItems(items, params.SortBy, params.SortOrder); err != nil {
		return nil, err
	}

	totalCount := len(items)
	totalPages := totalCount / params.PageSize
	if totalCount%params.PageSize > 0 {
		totalPages++
	}

	start := min((params.Page-1)*params.PageSize, totalCount)
	end := min(start+params.PageSize, totalCount)

	return &ports.ListResult{
		Items:      items[start:end],
		Page:       params.Page,
		PageSize:   params.PageSize,
		TotalCount: int64(totalCount),
		TotalPages: totalPages,
	}, nil
}

func filterItems(items []domain.Item, params ports.ListParams) []domain.Item {
	search := strings.ToLower(strings.TrimSpace(params.Search))
	out := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if search != "" &&
			!strings.Contains(strings.ToLower(item.Name), search) &&
			!strings.Contains(strings.ToLower(item.SKU), search) &&
			!strings.Contains(strings.ToLower(item.Notes), search) {
			continue
		}
		if params.Category != "" && !item.HasCategory(params.Category) {
			continue
		}
		if params.SupplierID != "" && item.SupplierID != params.SupplierID {
			continue
		}
		if params.LowStock != nil && item.Quantity > *params.LowStock {
			continue
		}
		out = append(out, item)
	}
	return out
}

func sortItems(items []domain.Item, sortBy, order string) error {
	var less func(a, b domain.Item) int
	switch sortBy {
	case "", "createdAt":
		less = func(a, b domain.Item) int { return a.CreatedAt.Compare(b.CreatedAt) }
		if sortBy == "" && order == "" {
			order = "desc"
		}
	case "updatedAt":
		less = func(a, b domain.Item) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	case "name":
		less = func(a, b domain.Item) int { return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)) }
	case "quantity":
		less = func(a, b domain.Item) int { return cmp.Compare(a.Quantity, b.Quantity) }
	case "salePrice":
		less = func(a, b domain.Item) int { return a.SalePrice.Cmp(b.SalePrice) }
	default:
		return domain.NewValidationError("sortBy", "unsupported sort field %q", sortBy)
	}

	desc := order == "desc"
	slices.SortStableFunc(items, func(a, b domain.Item) int {
		if desc {
			return less(b, a)
		}
		return less(a, b)
	})
	return nil
}

func applyPatch(item *domain.Item, patch ports.ItemPatch) []domain.FieldChange {
	var changes []domain.FieldChange
	setString := func(field string, dst *string, src *string) {
		if src != nil && *src != *dst {
			changes = append(changes, domain.FieldChange{Field: field, From: *dst, To: *src})
			*dst = *src
		}
	}
	setDecimal := func(field string, dst *decimal.Decimal, src *decimal.Decimal) {
		if src != nil && !src.Equal(*dst) {
			changes = append(changes, domain.FieldChange{Field: field, From: dst.String(), To: src.String()})
			*dst = *src
		}
	}

	setString("name", &item.Name, patch.Name)
	setString("sku", &item.SKU, patch.SKU)
	if patch.Quantity != nil && *patch.Quantity != item.Quantity {
		changes = append(changes, domain.FieldChange{
			Field: "quantity",
			From:  strconv.Itoa(item.Quantity),
			To:    strconv.Itoa(*patch.Quantity),
		})
		item.Quantity = *patch.Quantity
	}
	setDecimal("purchasePrice", &item.PurchasePrice, patch.PurchasePrice)
	setDecimal("salePrice", &item.SalePrice, patch.SalePrice)
	if patch.Categories != nil {
		next := domain.NormalizeCategories(patch.Categories)
		if !slices.Equal(next, item.Categories) {
			changes = append(changes, domain.FieldChange{
				Field: "categories",
				From:  strings.Join(item.Categories, ", "),
				To:    strings.Join(next, ", "),
			})
			item.Categories = next
		}
	}
	setString("supplierId", &item.SupplierID, patch.SupplierID)
	setString("notes", &item.Notes, patch.Notes)
	return changes
}

func applyBulk(item *domain.Item, update ports.BulkUpdate) []domain.FieldChange {
	patch := ports.ItemPatch{SalePrice: update.SalePrice, SupplierID: update.SupplierID}

	categories := slices.Clone(item.Categories)
	if add := strings.TrimSpace(update.AddCategory); add != "" {
		categories = append(categories, add)
	}
	if remove := strings.TrimSpace(update.RemoveCategory); remove != "" {
		categories = slices.DeleteFunc(categories, func(c string) bool { return c == remove })
	}
	if update.AddCategory != "" || update.RemoveCategory != "" {
		patch.Categories = categories
	}
	return applyPatch(item, patch)
}

func bulkSummary(update ports.BulkUpdate) []domain.FieldChange {
	var changes []domain.FieldChange
	if update.SalePrice != nil {
		changes = append(changes, domain.FieldChange{Field: "salePrice", To: update.SalePrice.String()})
	}
	if update.AddCategory != "" {
		changes = append(changes, domain.FieldChange{Field: "categories", To: "+" + update.AddCategory})
	}
	if update.RemoveCategory != "" {
		changes = append(changes, domain.FieldChange{Field: "categories", To: "-" + update.RemoveCategory})
	}
	if update.SupplierID != nil {
		changes = append(changes, domain.FieldChange{Field: "supplierId", To: *update.SupplierID})
	}
	return changes
}

func snapshotDetails(item domain.Item) domain.ItemSnapshotDetails {
	return domain.ItemSnapshotDetails{
		Quantity:   item.Quantity,
		SalePrice:  item.SalePrice.String(),
		Categories: slices.Clone(item.Categories),
	}
}
