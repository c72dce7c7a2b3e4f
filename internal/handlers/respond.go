// internal/handlers/respond.go
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/outcome"
	"github.com/ammerola/stockbook/internal/core/ports"
	"github.com/ammerola/stockbook/internal/core/services"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string                  `json:"error"`
	Field     string                  `json:"field,omitempty"`
	Reload    bool                    `json:"reload,omitempty"`
	Retry     bool                    `json:"retry,omitempty"`
	Partial   bool                    `json:"partial,omitempty"`
	Committed []domain.CollectionName `json:"committed,omitempty"`
	Failed    domain.CollectionName   `json:"failed,omitempty"`
}

func respondJSON(logger *slog.Logger, w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response",
			slog.String("error", err.Error()))
	}
}

func respondError(logger *slog.Logger, w http.ResponseWriter, status int, message string) {
	respondJSON(logger, w, status, ErrorResponse{Error: message})
}

// respondServiceError maps a service error to its status code and body.
func respondServiceError(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status, body := errorStatus(err)

	var te *ports.TransportError
	if errors.As(err, &te) && te.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(te.RetryAfter.Seconds()))))
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, "request failed",
		slog.Int("status", status),
		slog.String("error", err.Error()))

	respondJSON(logger, w, status, body)
}

func errorStatus(err error) (int, ErrorResponse) {
	body := ErrorResponse{Error: err.Error()}

	var partial *services.PartialCommitError
	if errors.As(err, &partial) {
		body.Partial = true
		body.Committed = partial.Committed
		body.Failed = partial.Failed
	}

	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		body.Field = ve.Field
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrSaleNotFound),
		errors.Is(err, domain.ErrSupplierNotFound):
		return http.StatusNotFound, body
	case errors.Is(err, services.ErrNoStore):
		return http.StatusServiceUnavailable, body
	}

	switch outcome.Classify(err) {
	case outcome.Conflict:
		body.Reload = true
		return http.StatusConflict, body
	case outcome.Transient:
		body.Retry = true
		return http.StatusServiceUnavailable, body
	default:
		return http.StatusInternalServerError, body
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
