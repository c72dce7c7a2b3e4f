// internal/core/domain/supplier.go
package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Supplier is referenced by items through a weak id reference.
type Supplier struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// MissingSupplier is returned when an item references a supplier that no
// longer exists.
var MissingSupplier = Supplier{Name: "(deleted supplier)"}

// Validate performs domain validation on the supplier
func (s *Supplier) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return NewValidationError("name", "is required")
	}
	return nil
}

// PrepareForCreate assigns identity and creation time.
func (s *Supplier) PrepareForCreate(now time.Time) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	s.CreatedAt = now
}

// Suppliers is the suppliers collection document.
type Suppliers []Supplier

// Clone returns a deep copy of the suppliers list.
func (s Suppliers) Clone() Suppliers {
	if s == nil {
		return nil
	}
	return slices.Clone(s)
}

// Find returns a pointer into the live slice for the supplier with id.
func (s Suppliers) Find(id string) (*Supplier, bool) {
	for i := range s {
		if s[i].ID == id {
			return &s[i], true
		}
	}
	return nil, false
}

// Resolve looks up id and falls back to MissingSupplier for dangling ids.
func (s Suppliers) Resolve(id string) (Supplier, bool) {
	if sup, ok := s.Find(id); ok {
		return *sup, true
	}
	missing := MissingSupplier
	missing.ID = id
	return missing, false
}

// Remove deletes the supplier with id and returns it.
func (s *Suppliers) Remove(id string) (Supplier, bool) {
	for i, sup := range *s {
		if sup.ID == id {
			*s = slices.Delete(*s, i, i+1)
			return sup, true
		}
	}
	return Supplier{}, false
}
