// internal/handlers/sales.go
package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
)

// SalesHandler handles sale-related HTTP requests
type SalesHandler struct {
	service ports.SalesService
	logger  *slog.Logger
}

// NewSalesHandler creates a new sales handler
func NewSalesHandler(service ports.SalesService, logger *slog.Logger) *SalesHandler {
	return &SalesHandler{
		service: service,
		logger:  logger.With(slog.String("handler", "sales")),
	}
}

// RecordSale handles POST /api/v1/sales
func (h *SalesHandler) RecordSale(w http.ResponseWriter, r *http.Request) {
	var req ports.SaleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sale, err := h.service.RecordSale(r.Context(), req)
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusCreated, sale)
}

// DeleteSale handles DELETE /api/v1/sales/{id}?restock=true
func (h *SalesHandler) DeleteSale(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	restock := false
	if v := r.URL.Query().Get("restock"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondServiceError(h.logger, w, r, domain.NewValidationError("restock", "must be true or false"))
			return
		}
		restock = b
	}

	if err := h.service.DeleteSale(r.Context(), id, restock); err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, map[string]any{
		"message": "Sale deleted",
		"id":      id,
		"restock": restock,
	})
}

// ListSales handles GET /api/v1/sales?item=&from=&to=
func (h *SalesHandler) ListSales(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ports.SalesFilter{ItemID: q.Get("item")}

	var err error
	if filter.From, err = parseDate(q.Get("from"), "from"); err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	if filter.To, err = parseDate(q.Get("to"), "to"); err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}

	sales, err := h.service.ListSales(r.Context(), filter)
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}
	respondJSON(h.logger, w, http.StatusOK, sales)
}

// parseDate accepts a date or an RFC 3339 timestamp. Empty is the zero time.
func parseDate(v, field string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, domain.NewValidationError(field, "must be YYYY-MM-DD or RFC 3339")
	}
	return t.UTC(), nil
}
