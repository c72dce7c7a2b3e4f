// internal/core/domain/sale.go
package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleRecord is an immutable record of one sale. The item name and price are
// snapshotted so the record stays meaningful after the item changes.
type SaleRecord struct {
	SaleID         string          `json:"saleId"`
	ItemID         string          `json:"itemId"`
	ItemName       string          `json:"itemName"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Total          decimal.Decimal `json:"total"`
	ExchangeRate   decimal.Decimal `json:"exchangeRate"`
	TotalConverted decimal.Decimal `json:"totalConverted"`
	SoldBy         string          `json:"soldBy,omitempty"`
	SoldAt         time.Time       `json:"soldAt"`

	// LegacyID is the identity field of older documents.
	LegacyID string `json:"id,omitempty"`
}

// NewSaleRecord snapshots item into a sale of quantity units.
func NewSaleRecord(item Item, quantity int, rate decimal.Decimal, user string, at time.Time) SaleRecord {
	total := item.SalePrice.Mul(decimal.NewFromInt(int64(quantity)))
	return SaleRecord{
		SaleID:         uuid.NewString(),
		ItemID:         item.ID,
		ItemName:       item.Name,
		Quantity:       quantity,
		UnitPrice:      item.SalePrice,
		Total:          total,
		ExchangeRate:   rate,
		TotalConverted: total.Mul(rate).Round(2),
		SoldBy:         user,
		SoldAt:         at,
	}
}

// Sales is the sales collection document.
type Sales []SaleRecord

// Clone returns a copy of the sales list. Records hold no reference types
// apart from immutable decimals, so a shallow element copy is a deep copy.
func (s Sales) Clone() Sales {
	if s == nil {
		return nil
	}
	return slices.Clone(s)
}

// Find returns the sale with id.
func (s Sales) Find(id string) (SaleRecord, bool) {
	for _, sale := range s {
		if sale.SaleID == id {
			return sale, true
		}
	}
	return SaleRecord{}, false
}

// Remove deletes the sale with id and returns it.
func (s *Sales) Remove(id string) (SaleRecord, bool) {
	for i, sale := range *s {
		if sale.SaleID == id {
			*s = slices.Delete(*s, i, i+1)
			return sale, true
		}
	}
	return SaleRecord{}, false
}

// SplitBefore partitions the sales into those sold strictly before cutoff and
// the rest, preserving order.
func (s Sales) SplitBefore(cutoff time.Time) (older, newer Sales) {
	older, newer = Sales{}, Sales{}
	for _, sale := range s {
		if sale.SoldAt.Before(cutoff) {
			older = append(older, sale)
		} else {
			newer = append(newer, sale)
		}
	}
	return older, newer
}
