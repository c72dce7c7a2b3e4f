// internal/core/services/suppliers.go
package services

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
	"github.com/ammerola/stockbook/internal/core/syncer"
)

// SupplierService manages suppliers. Items reference suppliers by id only;
// deleting a supplier leaves those references dangling.
type SupplierService struct {
	engine *Engine
	logger *slog.Logger
}

var _ ports.SupplierService = (*SupplierService)(nil)

// NewSupplierService creates a new supplier service
func NewSupplierService(engine *Engine, logger *slog.Logger) *SupplierService {
	return &SupplierService{
		engine: engine,
		logger: logger.With(slog.String("service", "suppliers")),
	}
}

// CreateSupplier adds a supplier
func (s *SupplierService) CreateSupplier(ctx context.Context, supplier domain.Supplier) (domain.Supplier, error) {
	supplier.Name = strings.TrimSpace(supplier.Name)
	if err := supplier.Validate(); err != nil {
		return domain.Supplier{}, fmt.Errorf("validation failed: %w", err)
	}
	supplier.PrepareForCreate(s.engine.now().UTC())

	err := s.engine.track(ctx, domain.CollectionSuppliers, "Supplier "+supplier.Name, func(ctx context.Context) error {
		_, err := s.engine.suppliers.Mutate(ctx, func(list *domain.Suppliers) error {
			if _, exists := list.Find(supplier.ID); exists {
				return domain.NewValidationError("id", "supplier %s already exists", supplier.ID)
			}
			*list = append(*list, supplier)
			return nil
		}, syncer.WithMessage("Add supplier "+supplier.Name))
		return err
	})
	if err != nil {
		return domain.Supplier{}, err
	}

	s.engine.record(ctx, domain.ActionSupplierCreated, supplier.ID, supplier.Name, nil)
	return supplier, nil
}

// UpdateSupplier replaces the editable fields of a supplier
func (s *SupplierService) UpdateSupplier(ctx context.Context, id string, supplier domain.Supplier) (domain.Supplier, error) {
	supplier.Name = strings.TrimSpace(supplier.Name)
	if err := supplier.Validate(); err != nil {
		return domain.Supplier{}, fmt.Errorf("validation failed: %w", err)
	}

	var (
		updated domain.Supplier
		changes []domain.FieldChange
	)
	err := s.engine.track(ctx, domain.CollectionSuppliers, "Supplier update", func(ctx context.Context) error {
		_, err := s.engine.suppliers.Mutate(ctx, func(list *domain.Suppliers) error {
			current, ok := list.Find(id)
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrSupplierNotFound, id)
			}
			changes = supplierChanges(*current, supplier)
			if len(changes) == 0 {
				updated = *current
				return syncer.ErrNoChange
			}
			current.Name = supplier.Name
			current.Contact = supplier.Contact
			current.Phone = supplier.Phone
			current.Email = supplier.Email
			current.Notes = supplier.Notes
			updated = *current
			return nil
		}, syncer.WithMessage("Update supplier "+id))
		return err
	})
	if err != nil {
		return domain.Supplier{}, err
	}

	if len(changes) > 0 {
		s.engine.record(ctx, domain.ActionSupplierUpdated, updated.ID, updated.Name, domain.SupplierDetails{Changes: changes})
	}
	return updated, nil
}

// DeleteSupplier removes a supplier
func (s *SupplierService) DeleteSupplier(ctx context.Context, id string) error {
	var removed domain.Supplier
	err := s.engine.track(ctx, domain.CollectionSuppliers, "Supplier delete", func(ctx context.Context) error {
		_, err := s.engine.suppliers.Mutate(ctx, func(list *domain.Suppliers) error {
			sup, ok := list.Remove(id)
			if !ok {
				return fmt.Errorf("%w: %s", domain.ErrSupplierNotFound, id)
			}
			removed = sup
			return nil
		}, syncer.WithMessage("Delete supplier "+id))
		return err
	})
	if err != nil {
		return err
	}

	s.engine.record(ctx, domain.ActionSupplierDeleted, removed.ID, removed.Name, nil)
	return nil
}

// ListSuppliers returns every supplier sorted by name
func (s *SupplierService) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	list := s.engine.suppliers.View()
	out := make([]domain.Supplier, len(list))
	copy(out, list)
	slices.SortStableFunc(out, func(a, b domain.Supplier) int {
		return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out, nil
}

// Resolve follows a weak supplier reference. Unknown ids resolve to
// domain.MissingSupplier.
func (s *SupplierService) Resolve(ctx context.Context, id string) domain.Supplier {
	sup, _ := s.engine.suppliers.View().Resolve(id)
	return sup
}

func supplierChanges(from, to domain.Supplier) []domain.FieldChange {
	var changes []domain.FieldChange
	add := func(field, a, b string) {
		if a != b {
			changes = append(changes, domain.FieldChange{Field: field, From: a, To: b})
		}
	}
	add("name", from.Name, to.Name)
	add("contact", from.Contact, to.Contact)
	add("phone", from.Phone, to.Phone)
	add("email", from.Email, to.Email)
	add("notes", from.Notes, to.Notes)
	return changes
}
