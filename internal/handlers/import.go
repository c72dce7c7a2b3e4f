// internal/handlers/import.go
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
)

// ImportHandler handles spreadsheet imports
type ImportHandler struct {
	service     ports.InventoryService
	maxFileSize int64
	logger      *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(service ports.InventoryService, maxFileSize int64, logger *slog.Logger) *ImportHandler {
	if maxFileSize <= 0 {
		maxFileSize = 10 << 20
	}
	return &ImportHandler{
		service:     service,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("handler", "import")),
	}
}

// RowError reports one spreadsheet row that was not imported. Row is the
// 1-based row number as shown by spreadsheet programs.
type RowError struct {
	Row   int    `json:"row"`
	Field string `json:"field,omitempty"`
	Error string `json:"error"`
}

// ImportResult is the body of a completed import.
type ImportResult struct {
	Imported int           `json:"imported"`
	Items    []domain.Item `json:"items"`
	Failed   []RowError    `json:"failed"`
}

// ImportExcel handles POST /api/v1/import/xlsx with the workbook under
// "file". Rows are read from the "Inventory" sheet, or the first sheet, using
// the export's column headers. Every valid row becomes a new item.
func (h *ImportHandler) ImportExcel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(h.maxFileSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(h.logger, w, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		respondError(h.logger, w, http.StatusBadRequest, "Failed to parse form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "File is required")
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
		respondError(h.logger, w, http.StatusBadRequest, "Only .xlsx files are allowed")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(h.logger, w, http.StatusBadRequest, "Failed to read upload")
		return
	}

	items, failed, err := parseInventorySheet(data)
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}

	result := ImportResult{Items: []domain.Item{}, Failed: failed}
	for _, row := range items {
		created, err := h.service.CreateItem(ctx, row.item)
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			result.Failed = append(result.Failed, RowError{Row: row.number, Field: verr.Field, Error: verr.Message})
			continue
		}
		if err != nil {
			// Rows before this one are committed; report how far we got.
			h.logger.WarnContext(ctx, "import stopped",
				slog.Int("row", row.number),
				slog.Int("imported", result.Imported),
				slog.String("error", err.Error()))
			respondServiceError(h.logger, w, r, fmt.Errorf("row %d (after %d imported): %w", row.number, result.Imported, err))
			return
		}
		result.Imported++
		result.Items = append(result.Items, created)
	}

	h.logger.InfoContext(ctx, "Excel import completed",
		slog.String("filename", header.Filename),
		slog.Int("imported", result.Imported),
		slog.Int("failed", len(result.Failed)))

	respondJSON(h.logger, w, http.StatusOK, result)
}

type importRow struct {
	number int
	item   domain.Item
}

// parseInventorySheet reads items from the workbook. Rows with unparseable
// cells are reported in the second return value; a workbook without a Name
// column is a validation error.
func parseInventorySheet(data []byte) ([]importRow, []RowError, error) {
	file, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, nil, domain.NewValidationError("file", "is not a readable .xlsx workbook")
	}

	sheet, ok := file.Sheet["Inventory"]
	if !ok {
		if len(file.Sheets) == 0 {
			return nil, nil, domain.NewValidationError("file", "contains no sheets")
		}
		sheet = file.Sheets[0]
	}

	value := func(row, col int) string {
		if col < 0 || col >= sheet.MaxCol {
			return ""
		}
		cell, err := sheet.Cell(row, col)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(cell.Value)
	}

	columns := make(map[string]int)
	for c := 0; c < sheet.MaxCol; c++ {
		columns[strings.ToLower(value(0, c))] = c
	}
	col := func(header string) int {
		if c, ok := columns[strings.ToLower(header)]; ok {
			return c
		}
		return -1
	}
	if col("Name") < 0 {
		return nil, nil, domain.NewValidationError("file", `missing "Name" column`)
	}

	var (
		rows   []importRow
		failed []RowError
	)
	for r := 1; r < sheet.MaxRow; r++ {
		get := func(header string) string { return value(r, col(header)) }

		blank := true
		for c := 0; c < sheet.MaxCol; c++ {
			if value(r, c) != "" {
				blank = false
				break
			}
		}
		if blank {
			continue
		}

		item := domain.Item{
			Name:       get("Name"),
			SKU:        get("SKU"),
			Categories: domain.NormalizeCategories(strings.Split(get("Categories"), ",")),
			Notes:      get("Notes"),
		}

		var rowErr *RowError
		if v := get("Quantity"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				rowErr = &RowError{Field: "quantity", Error: "must be a whole number"}
			}
			item.Quantity = n
		}
		for _, p := range []struct {
			header, field string
			dst           *decimal.Decimal
		}{
			{"Purchase Price", "purchasePrice", &item.PurchasePrice},
			{"Sale Price", "salePrice", &item.SalePrice},
		} {
			v := get(p.header)
			if v == "" || rowErr != nil {
				continue
			}
			d, err := decimal.NewFromString(v)
			if err != nil {
				rowErr = &RowError{Field: p.field, Error: "must be a number"}
				continue
			}
			*p.dst = d
		}

		if rowErr != nil {
			rowErr.Row = r + 1
			failed = append(failed, *rowErr)
			continue
		}
		rows = append(rows, importRow{number: r + 1, item: item})
	}
	return rows, failed, nil
}
