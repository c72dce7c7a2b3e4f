// internal/handlers/suppliers.go
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
)

// SupplierHandler handles supplier and audit log requests
type SupplierHandler struct {
	suppliers ports.SupplierService
	audit     ports.AuditService
	logger    *slog.Logger
}

// NewSupplierHandler creates a new supplier handler
func NewSupplierHandler(suppliers ports.SupplierService, audit ports.AuditService, logger *slog.Logger) *SupplierHandler {
	return &SupplierHandler{
		suppliers: suppliers,
		audit:     audit,
		logger:    logger.With(slog.String("handler", "suppliers")),
	}
}

// ListSuppliers handles GET /api/v1/suppliers
func (h *SupplierHandler) ListSuppliers(w http.ResponseWriter, r *http.Request) {
	list, err := h.suppliers.ListSuppliers(r.Context())
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, list)
}

// GetSupplier handles GET /api/v1/suppliers/{id}. Unknown ids resolve to
// the placeholder supplier rather than 404, matching how items show them.
func (h *SupplierHandler) GetSupplier(w http.ResponseWriter, r *http.Request) {
	respondJSON(h.logger, w, http.StatusOK, h.suppliers.Resolve(r.Context(), r.PathValue("id")))
}

// CreateSupplier handles POST /api/v1/suppliers
func (h *SupplierHandler) CreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req domain.Supplier
	if err := decodeJSON(r, &req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s, err := h.suppliers.CreateSupplier(r.Context(), req)
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusCreated, s)
}

// UpdateSupplier handles PUT /api/v1/suppliers/{id}
func (h *SupplierHandler) UpdateSupplier(w http.ResponseWriter, r *http.Request) {
	var req domain.Supplier
	if err := decodeJSON(r, &req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s, err := h.suppliers.UpdateSupplier(r.Context(), r.PathValue("id"), req)
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, s)
}

// DeleteSupplier handles DELETE /api/v1/suppliers/{id}
func (h *SupplierHandler) DeleteSupplier(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.suppliers.DeleteSupplier(r.Context(), id); err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, map[string]string{"message": "Supplier deleted", "id": id})
}

// ListAudit handles GET /api/v1/audit?limit=
func (h *SupplierHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondServiceError(h.logger, w, r, domain.NewValidationError("limit", "must be a non-negative number"))
			return
		}
		limit = n
	}

	entries, err := h.audit.ListEntries(r.Context(), limit)
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, entries)
}

// ClearAudit handles DELETE /api/v1/audit
func (h *SupplierHandler) ClearAudit(w http.ResponseWriter, r *http.Request) {
	if err := h.audit.Clear(r.Context()); err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, map[string]string{"message": "Audit log cleared"})
}
