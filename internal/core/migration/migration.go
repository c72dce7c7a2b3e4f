// internal/core/migration/migration.go

// Package migration upgrades loaded collection documents to the current
// schema. Every function rewrites in place, is idempotent and reports
// whether it changed anything.
package migration

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ammerola/stockbook/internal/core/domain"
)

// idNamespace derives stable ids for legacy records that never had one, so
// the same input always migrates to the same output.
var idNamespace = uuid.MustParse("6f1c2d8e-4b1a-4c55-9a53-2f0b7c9e31d4")

func derivedID(kind string, index int, parts ...string) string {
	key := fmt.Sprintf("%s/%d/%s", kind, index, strings.Join(parts, "/"))
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

// Inventory upgrades the inventory document.
func Inventory(inv *domain.Inventory) bool {
	changed := false
	if inv.LegacyShape() {
		inv.ClearLegacyShape()
		changed = true
	}
	if inv.Items == nil {
		inv.Items = []domain.Item{}
		changed = true
	}
	for i := range inv.Items {
		if item(&inv.Items[i], i) {
			changed = true
		}
	}
	return changed
}

func item(it *domain.Item, index int) bool {
	changed := false

	if it.ID == "" {
		it.ID = derivedID("item", index, it.Name, it.SKU)
		changed = true
	}

	categories := it.Categories
	if it.LegacyCategory != "" {
		categories = append(slices.Clone(categories), strings.Split(it.LegacyCategory, ",")...)
		it.LegacyCategory = ""
		changed = true
	}
	normalized := domain.NormalizeCategories(categories)
	if it.Categories == nil || !slices.Equal(normalized, it.Categories) {
		it.Categories = normalized
		changed = true
	}

	if it.Quantity < 0 {
		it.Quantity = 0
		changed = true
	}
	return changed
}

// Sales upgrades the sales document.
func Sales(sales *domain.Sales) bool {
	changed := false
	if *sales == nil {
		*sales = domain.Sales{}
		changed = true
	}
	for i := range *sales {
		if sale(&(*sales)[i], i) {
			changed = true
		}
	}
	return changed
}

func sale(r *domain.SaleRecord, index int) bool {
	changed := false

	if r.LegacyID != "" {
		if r.SaleID == "" {
			r.SaleID = r.LegacyID
		}
		r.LegacyID = ""
		changed = true
	}
	if r.SaleID == "" {
		r.SaleID = derivedID("sale", index, r.ItemID, r.SoldAt.UTC().Format("20060102T150405.000000000"))
		changed = true
	}

	if r.Total.IsZero() && !r.UnitPrice.IsZero() && r.Quantity > 0 {
		r.Total = r.UnitPrice.Mul(decimal.NewFromInt(int64(r.Quantity)))
		changed = true
	}
	if r.TotalConverted.IsZero() && !r.Total.IsZero() && r.ExchangeRate.IsPositive() {
		r.TotalConverted = r.Total.Mul(r.ExchangeRate).Round(2)
		changed = true
	}
	return changed
}

// Suppliers upgrades the suppliers document.
func Suppliers(suppliers *domain.Suppliers) bool {
	changed := false
	if *suppliers == nil {
		*suppliers = domain.Suppliers{}
		changed = true
	}
	for i := range *suppliers {
		s := &(*suppliers)[i]
		if trimmed := strings.TrimSpace(s.Name); trimmed != s.Name {
			s.Name = trimmed
			changed = true
		}
		if s.ID == "" {
			s.ID = derivedID("supplier", i, s.Name)
			changed = true
		}
	}
	return changed
}

// AuditLog upgrades the audit log document.
func AuditLog(log *domain.AuditLog) bool {
	changed := false
	if *log == nil {
		*log = domain.AuditLog{}
		changed = true
	}
	for i := range *log {
		e := &(*log)[i]
		if e.LegacyType != "" {
			if e.Action == "" {
				e.Action = e.LegacyType
			}
			e.LegacyType = ""
			changed = true
		}
		if e.ID == "" {
			e.ID = derivedID("audit", i, string(e.Action), e.TargetID, e.Timestamp.UTC().Format("20060102T150405.000000000"))
			changed = true
		}
	}
	return changed
}
