// internal/core/ports/inventory_service.go
package ports

import (
	"context"
	"time"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/shopspring/decimal"
)

// InventoryService defines the application service port for inventory.
// This interface is implemented by the application service.
type InventoryService interface {
	CreateItem(ctx context.Context, item domain.Item) (domain.Item, error)
	UpdateItem(ctx context.Context, id string, patch ItemPatch) (domain.Item, error)
	DeleteItem(ctx context.Context, id string) error
	AdjustQuantity(ctx context.Context, id string, delta int, reason string) (domain.Item, error)
	RenameCategory(ctx context.Context, from, to string) (int, error)
	BulkUpdate(ctx context.Context, update BulkUpdate) (int, error)
	GetItem(ctx context.Context, id string) (domain.Item, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

// SalesService records and removes sales.
type SalesService interface {
	RecordSale(ctx context.Context, req SaleRequest) (domain.SaleRecord, error)
	DeleteSale(ctx context.Context, saleID string, restock bool) error
	ListSales(ctx context.Context, filter SalesFilter) ([]domain.SaleRecord, error)
}

// SupplierService manages suppliers.
type SupplierService interface {
	CreateSupplier(ctx context.Context, supplier domain.Supplier) (domain.Supplier, error)
	UpdateSupplier(ctx context.Context, id string, supplier domain.Supplier) (domain.Supplier, error)
	DeleteSupplier(ctx context.Context, id string) error
	ListSuppliers(ctx context.Context) ([]domain.Supplier, error)
	Resolve(ctx context.Context, id string) domain.Supplier
}

// AuditService reads and clears the audit log.
type AuditService interface {
	ListEntries(ctx context.Context, limit int) ([]domain.AuditEntry, error)
	Clear(ctx context.Context) error
}

// MaintenanceService covers whole-collection operations.
type MaintenanceService interface {
	Archive(ctx context.Context, cutoff time.Time) (*ArchiveResult, error)
	SweepImages(ctx context.Context) (*SweepResult, error)
	UploadImage(ctx context.Context, itemID, filename string, data []byte) (domain.Item, error)
	Backup(ctx context.Context) (*Bundle, error)
	Restore(ctx context.Context, bundle *Bundle) error
	Reload(ctx context.Context, names ...domain.CollectionName) error
}

// ItemPatch carries the fields of an update. Nil fields are left unchanged.
type ItemPatch struct {
	Name          *string          `json:"name,omitempty"`
	SKU           *string          `json:"sku,omitempty"`
	Quantity      *int             `json:"quantity,omitempty"`
	PurchasePrice *decimal.Decimal `json:"purchasePrice,omitempty"`
	SalePrice     *decimal.Decimal `json:"salePrice,omitempty"`
	Categories    []string         `json:"categories,omitempty"`
	SupplierID    *string          `json:"supplierId,omitempty"`
	Notes         *string          `json:"notes,omitempty"`
}

// BulkUpdate applies the same change to many items in one mutation.
type BulkUpdate struct {
	IDs            []string         `json:"ids"`
	SalePrice      *decimal.Decimal `json:"salePrice,omitempty"`
	AddCategory    string           `json:"addCategory,omitempty"`
	RemoveCategory string           `json:"removeCategory,omitempty"`
	SupplierID     *string          `json:"supplierId,omitempty"`
}

// SaleRequest asks to sell quantity units of an item.
type SaleRequest struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

// SalesFilter narrows a sales listing. Zero times are open bounds.
type SalesFilter struct {
	ItemID string
	From   time.Time
	To     time.Time
}

// ListParams holds parameters for listing inventory
type ListParams struct {
	Search     string
	Category   string
	SupplierID string
	LowStock   *int
	SortBy     string
	SortOrder  string
	Page       int
	PageSize   int
}

// ListResult holds the result of listing inventory
type ListResult struct {
	Items      []domain.Item `json:"items"`
	Page       int           `json:"page"`
	PageSize   int           `json:"page_size"`
	TotalCount int64         `json:"total_count"`
	TotalPages int           `json:"total_pages"`
}

// ArchiveResult describes one archive run.
type ArchiveResult struct {
	Path     string    `json:"path"`
	Archived int       `json:"archived"`
	Cutoff   time.Time `json:"cutoff"`
}

// SweepResult describes one image sweep.
type SweepResult struct {
	Scanned int      `json:"scanned"`
	Deleted []string `json:"deleted"`
	Failed  []string `json:"failed,omitempty"`
}

// Bundle is a full backup of every collection.
type Bundle struct {
	Version    int              `json:"version"`
	ExportedAt time.Time        `json:"exportedAt"`
	Inventory  domain.Inventory `json:"inventory"`
	Sales      domain.Sales     `json:"sales"`
	Suppliers  domain.Suppliers `json:"suppliers"`
	AuditLog   domain.AuditLog  `json:"auditLog"`
}
