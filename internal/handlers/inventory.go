// internal/handlers/inventory.go
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
)

// InventoryHandler handles inventory-related HTTP requests
type InventoryHandler struct {
	service     ports.InventoryService
	maintenance ports.MaintenanceService
	maxUpload   int64
	logger      *slog.Logger
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(service ports.InventoryService, maintenance ports.MaintenanceService, maxUpload int64, logger *slog.Logger) *InventoryHandler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &InventoryHandler{
		service:     service,
		maintenance: maintenance,
		maxUpload:   maxUpload,
		logger:      logger.With(slog.String("handler", "inventory")),
	}
}

// ListItems handles GET /api/v1/items
func (h *InventoryHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}

	result, err := h.service.List(r.Context(), params)
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, result)
}

// GetItem handles GET /api/v1/items/{id}
func (h *InventoryHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, item)
}

// CreateItem handles POST /api/v1/items
func (h *InventoryHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	item, err := h.service.CreateItem(ctx, req.ToDomain())
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "item created",
		slog.String("item_id", item.ID),
		slog.String("name", item.Name))
	respondJSON(h.logger, w, http.StatusCreated, item)
}

// UpdateItem handles PATCH /api/v1/items/{id}
func (h *InventoryHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var patch ports.ItemPatch
	if err := decodeJSON(r, &patch); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	item, err := h.service.UpdateItem(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, item)
}

// DeleteItem handles DELETE /api/v1/items/{id}
func (h *InventoryHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.DeleteItem(r.Context(), id); err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, map[string]any{
		"message": "Item deleted",
		"id":      id,
	})
}

// AdjustQuantity handles POST /api/v1/items/{id}/adjust
func (h *InventoryHandler) AdjustQuantity(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	item, err := h.service.AdjustQuantity(r.Context(), r.PathValue("id"), req.Delta, req.Reason)
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, item)
}

// RenameCategory handles POST /api/v1/categories/rename
func (h *InventoryHandler) RenameCategory(w http.ResponseWriter, r *http.Request) {
	var req RenameCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	n, err := h.service.RenameCategory(r.Context(), req.From, req.To)
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, map[string]int{"affected": n})
}

// BulkUpdate handles POST /api/v1/items/bulk
func (h *InventoryHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req ports.BulkUpdate
	if err := decodeJSON(r, &req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	n, err := h.service.BulkUpdate(r.Context(), req)
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, map[string]int{"affected": n})
}

// UploadImage handles POST /api/v1/items/{id}/image as multipart form data
// with the file under "image".
func (h *InventoryHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(h.logger, w, http.StatusRequestEntityTooLarge, "Image is too large")
			return
		}
		respondError(h.logger, w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "image is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Failed to read image")
		return
	}

	item, err := h.maintenance.UploadImage(r.Context(), r.PathValue("id"), header.Filename, data)
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, item)
}

// parseListParams parses query parameters for listing inventory
func parseListParams(r *http.Request) (ports.ListParams, error) {
	q := r.URL.Query()
	params := ports.ListParams{
		Page:       1,
		PageSize:   50,
		Search:     q.Get("search"),
		Category:   q.Get("category"),
		SupplierID: q.Get("supplier"),
		SortBy:     q.Get("sort"),
		SortOrder:  q.Get("order"),
	}

	if page := q.Get("page"); page != "" {
		p, err := strconv.Atoi(page)
		if err != nil {
			return params, domain.NewValidationError("page", "must be a number")
		}
		params.Page = p
	}
	if limit := q.Get("limit"); limit != "" {
		l, err := strconv.Atoi(limit)
		if err != nil {
			return params, domain.NewValidationError("limit", "must be a number")
		}
		params.PageSize = l
	}
	if low := q.Get("low_stock"); low != "" {
		n, err := strconv.Atoi(low)
		if err != nil {
			return params, domain.NewValidationError("low_stock", "must be a number")
		}
		params.LowStock = &n
	}

	return params, nil
}

// Request DTOs

// CreateItemRequest represents the request body for creating an item
type CreateItemRequest struct {
	ID            string          `json:"id,omitempty"`
	Name          string          `json:"name"`
	SKU           string          `json:"sku,omitempty"`
	Quantity      int             `json:"quantity"`
	PurchasePrice decimal.Decimal `json:"purchasePrice"`
	SalePrice     decimal.Decimal `json:"salePrice"`
	Categories    []string        `json:"categories,omitempty"`
	SupplierID    string          `json:"supplierId,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

// ToDomain converts the request to a domain model
func (r *CreateItemRequest) ToDomain() domain.Item {
	return domain.Item{
		ID:            r.ID,
		Name:          r.Name,
		SKU:           r.SKU,
		Quantity:      r.Quantity,
		PurchasePrice: r.PurchasePrice,
		SalePrice:     r.SalePrice,
		Categories:    r.Categories,
		SupplierID:    r.SupplierID,
		Notes:         r.Notes,
	}
}

// AdjustRequest moves stock by Delta units.
type AdjustRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason,omitempty"`
}

// RenameCategoryRequest renames a category on every item carrying it.
type RenameCategoryRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}
