// internal/core/domain/audit.go
package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// AuditAction names a logged business action.
type AuditAction string

// Audit actions
const (
	ActionItemCreated     AuditAction = "item.created"
	ActionItemUpdated     AuditAction = "item.updated"
	ActionItemDeleted     AuditAction = "item.deleted"
	ActionStockAdjusted   AuditAction = "item.stock_adjusted"
	ActionBulkUpdated     AuditAction = "item.bulk_updated"
	ActionCategoryRenamed AuditAction = "category.renamed"
	ActionSaleRecorded    AuditAction = "sale.recorded"
	ActionSaleDeleted     AuditAction = "sale.deleted"
	ActionSupplierCreated AuditAction = "supplier.created"
	ActionSupplierUpdated AuditAction = "supplier.updated"
	ActionSupplierDeleted AuditAction = "supplier.deleted"
	ActionSalesArchived   AuditAction = "sales.archived"
	ActionBackupRestored  AuditAction = "backup.restored"
	ActionImageUploaded   AuditAction = "image.uploaded"
	ActionAuditLogCleared AuditAction = "audit.cleared"
)

// AuditEntry is one record in the audit log. Details carries an
// action-specific payload, see DecodeDetails.
type AuditEntry struct {
	ID         string          `json:"id"`
	Action     AuditAction     `json:"action"`
	TargetID   string          `json:"targetId,omitempty"`
	TargetName string          `json:"targetName,omitempty"`
	User       string          `json:"user,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Details    json.RawMessage `json:"details,omitempty"`

	// LegacyType is the action field of older documents.
	LegacyType AuditAction `json:"type,omitempty"`
}

// FieldChange records one field transition of an update.
type FieldChange struct {
	Field string `json:"field"`
	From  string `json:"from"`
	To    string `json:"to"`
}

// ItemSnapshotDetails is attached to item create and delete entries.
type ItemSnapshotDetails struct {
	Quantity   int      `json:"quantity"`
	SalePrice  string   `json:"salePrice"`
	Categories []string `json:"categories"`
}

// ItemUpdatedDetails is attached to item update entries.
type ItemUpdatedDetails struct {
	Changes []FieldChange `json:"changes"`
}

// StockAdjustedDetails is attached to quantity adjustments.
type StockAdjustedDetails struct {
	From   int    `json:"from"`
	To     int    `json:"to"`
	Reason string `json:"reason,omitempty"`
}

// BulkUpdatedDetails is attached to bulk edits.
type BulkUpdatedDetails struct {
	ItemIDs []string      `json:"itemIds"`
	Changes []FieldChange `json:"changes"`
}

// CategoryRenamedDetails is attached to category renames.
type CategoryRenamedDetails struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Affected int    `json:"affected"`
}

// SaleDetails is attached to sale entries.
type SaleDetails struct {
	SaleID   string `json:"saleId"`
	Quantity int    `json:"quantity"`
	Total    string `json:"total"`
	Restock  bool   `json:"restock,omitempty"`
}

// SupplierDetails is attached to supplier entries.
type SupplierDetails struct {
	Changes []FieldChange `json:"changes,omitempty"`
}

// ArchiveDetails is attached to archive entries.
type ArchiveDetails struct {
	Path   string    `json:"path"`
	Count  int       `json:"count"`
	Cutoff time.Time `json:"cutoff"`
}

// RestoreDetails is attached to restore entries.
type RestoreDetails struct {
	Collections []string `json:"collections"`
}

// ImageDetails is attached to image uploads.
type ImageDetails struct {
	Path string `json:"path"`
	Size int    `json:"size"`
}

// NewAuditEntry builds an entry and encodes details.
func NewAuditEntry(action AuditAction, targetID, targetName, user string, details any, at time.Time) (AuditEntry, error) {
	entry := AuditEntry{
		ID:         uuid.NewString(),
		Action:     action,
		TargetID:   targetID,
		TargetName: targetName,
		User:       user,
		Timestamp:  at,
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return AuditEntry{}, fmt.Errorf("encode %s details: %w", action, err)
		}
		entry.Details = raw
	}
	return entry, nil
}

// DecodeDetails decodes the payload into the type registered for the action.
// Entries without details decode to nil.
func (e AuditEntry) DecodeDetails() (any, error) {
	if len(e.Details) == 0 {
		return nil, nil
	}

	var target any
	switch e.Action {
	case ActionItemCreated, ActionItemDeleted:
		target = &ItemSnapshotDetails{}
	case ActionItemUpdated:
		target = &ItemUpdatedDetails{}
	case ActionStockAdjusted:
		target = &StockAdjustedDetails{}
	case ActionBulkUpdated:
		target = &BulkUpdatedDetails{}
	case ActionCategoryRenamed:
		target = &CategoryRenamedDetails{}
	case ActionSaleRecorded, ActionSaleDeleted:
		target = &SaleDetails{}
	case ActionSupplierCreated, ActionSupplierUpdated, ActionSupplierDeleted:
		target = &SupplierDetails{}
	case ActionSalesArchived:
		target = &ArchiveDetails{}
	case ActionBackupRestored:
		target = &RestoreDetails{}
	case ActionImageUploaded:
		target = &ImageDetails{}
	default:
		var generic map[string]any
		if err := json.Unmarshal(e.Details, &generic); err != nil {
			return nil, fmt.Errorf("decode %s details: %w", e.Action, err)
		}
		return generic, nil
	}

	if err := json.Unmarshal(e.Details, target); err != nil {
		return nil, fmt.Errorf("decode %s details: %w", e.Action, err)
	}
	return target, nil
}

// Clone returns a deep copy of the entry.
func (e AuditEntry) Clone() AuditEntry {
	e.Details = slices.Clone(e.Details)
	return e
}

// AuditLog is the audit log collection document, oldest entry first.
type AuditLog []AuditEntry

// Clone returns a deep copy of the log.
func (l AuditLog) Clone() AuditLog {
	if l == nil {
		return nil
	}
	out := make(AuditLog, len(l))
	for i := range l {
		out[i] = l[i].Clone()
	}
	return out
}
