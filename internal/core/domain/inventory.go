// internal/core/domain/inventory.go
package domain

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item represents a single inventory record
type Item struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku,omitempty"`
	Quantity      int             `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	SalePrice     decimal.Decimal `json:"salePrice"`
	Categories    []string        `json:"categories"`
	SupplierID    string          `json:"supplierId,omitempty"`
	ImagePath     string          `json:"imagePath,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`

	// LegacyCategory is the single-category field of older documents. The
	// migration pass folds it into Categories and clears it.
	LegacyCategory string `json:"category,omitempty"`
}

// Validate performs domain validation on the item
func (i *Item) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return NewValidationError("name", "is required")
	}
	if i.Quantity < 0 {
		return NewValidationError("quantity", "cannot be negative")
	}
	if i.PurchasePrice.IsNegative() {
		return NewValidationError("purchasePrice", "cannot be negative")
	}
	if i.SalePrice.IsNegative() {
		return NewValidationError("salePrice", "cannot be negative")
	}
	return nil
}

// PrepareForCreate assigns identity and timestamps to a new item.
func (i *Item) PrepareForCreate(now time.Time) {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	i.Categories = NormalizeCategories(i.Categories)
	i.CreatedAt = now
	i.UpdatedAt = now
}

// HasCategory reports whether the item belongs to category.
func (i *Item) HasCategory(category string) bool {
	return slices.Contains(i.Categories, category)
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	i.Categories = slices.Clone(i.Categories)
	return i
}

// NormalizeCategories trims, de-duplicates and sorts a category set. The
// result is never nil.
func NormalizeCategories(categories []string) []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		c = strings.TrimSpace(c)
		if c == "" || slices.Contains(out, c) {
			continue
		}
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Inventory is the inventory collection document.
type Inventory struct {
	Items                []Item     `json:"items"`
	LastArchiveTimestamp *time.Time `json:"lastArchiveTimestamp"`

	// legacyShape is set when the document was stored as a bare item array.
	legacyShape bool
}

// NewInventory returns the empty inventory document.
func NewInventory() Inventory {
	return Inventory{Items: []Item{}}
}

// UnmarshalJSON accepts both the current object shape and the legacy bare
// array of items.
func (inv *Inventory) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []Item
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*inv = Inventory{Items: items, legacyShape: true}
		return nil
	}

	type alias Inventory
	var a alias
	if err := json.Unmarshal(trimmed, &a); err != nil {
		return err
	}
	*inv = Inventory(a)
	return nil
}

// LegacyShape reports whether the document was loaded from the bare array form.
func (inv *Inventory) LegacyShape() bool {
	return inv.legacyShape
}

// ClearLegacyShape marks the document as upgraded to the object form.
func (inv *Inventory) ClearLegacyShape() {
	inv.legacyShape = false
}

// Clone returns a deep copy of the inventory.
func (inv Inventory) Clone() Inventory {
	out := Inventory{legacyShape: inv.legacyShape}
	if inv.Items != nil {
		out.Items = make([]Item, len(inv.Items))
		for i := range inv.Items {
			out.Items[i] = inv.Items[i].Clone()
		}
	}
	if inv.LastArchiveTimestamp != nil {
		ts := *inv.LastArchiveTimestamp
		out.LastArchiveTimestamp = &ts
	}
	return out
}

// Find returns a pointer into the live slice for the item with id.
func (inv *Inventory) Find(id string) (*Item, bool) {
	for i := range inv.Items {
		if inv.Items[i].ID == id {
			return &inv.Items[i], true
		}
	}
	return nil, false
}

// Remove deletes the item with id and returns it.
func (inv *Inventory) Remove(id string) (Item, bool) {
	for i := range inv.Items {
		if inv.Items[i].ID == id {
			removed := inv.Items[i]
			inv.Items = slices.Delete(inv.Items, i, i+1)
			return removed, true
		}
	}
	return Item{}, false
}

// Categories returns the sorted set of categories in use.
func (inv *Inventory) Categories() []string {
	var all []string
	for _, item := range inv.Items {
		all = append(all, item.Categories...)
	}
	return NormalizeCategories(all)
}

// ReferencesImage reports whether any item points at imagePath.
func (inv *Inventory) ReferencesImage(imagePath string) bool {
	for _, item := range inv.Items {
		if item.ImagePath == imagePath {
			return true
		}
	}
	return false
}
