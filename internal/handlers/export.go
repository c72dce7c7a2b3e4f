// internal/handlers/export.go
package handlers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tealeg/xlsx/v3"

	"github.com/ammerola/stockbook/internal/core/domain"
)

// Spreadsheet column headers. The import reads inventory sheets by these
// names, so an export can be edited and imported back.
var (
	inventoryHeaders = []string{
		"ID", "Name", "SKU", "Quantity", "Purchase Price", "Sale Price",
		"Categories", "Supplier", "Image", "Notes", "Updated At",
	}
	salesHeaders = []string{
		"Sale ID", "Sold At", "Item ID", "Item Name", "Quantity", "Unit Price",
		"Total", "Exchange Rate", "Total Converted", "Sold By",
	}
)

// ExportSource exposes the in-memory collections to export.
type ExportSource interface {
	Inventory() domain.Inventory
	Sales() domain.Sales
	Suppliers() domain.Suppliers
}

// ExportHandler handles spreadsheet exports
type ExportHandler struct {
	source ExportSource
	now    func() time.Time
	logger *slog.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(source ExportSource, logger *slog.Logger) *ExportHandler {
	return &ExportHandler{
		source: source,
		now:    time.Now,
		logger: logger.With(slog.String("handler", "export")),
	}
}

// ExportExcel handles GET /api/v1/export/xlsx[?sheets=inventory,sales]
func (h *ExportHandler) ExportExcel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sheets, err := parseSheets(r.URL.Query().Get("sheets"))
	if err != nil {
		respondServiceError(h.logger, w, r, err)
		return
	}

	data, rows, err := h.generateExcelFile(sheets)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate Excel file", slog.String("error", err.Error()))
		respondError(h.logger, w, http.StatusInternalServerError, "Failed to generate Excel file")
		return
	}

	filename := fmt.Sprintf("stockbook_export_%s.xlsx", h.now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	if _, err := w.Write(data); err != nil {
		h.logger.ErrorContext(ctx, "failed to write Excel response", slog.String("error", err.Error()))
		return
	}

	h.logger.InfoContext(ctx, "Excel export completed",
		slog.Int("total_rows", rows),
		slog.String("filename", filename))
}

func parseSheets(v string) ([]domain.CollectionName, error) {
	if v == "" {
		return []domain.CollectionName{domain.CollectionInventory, domain.CollectionSales}, nil
	}

	var out []domain.CollectionName
	for _, s := range strings.Split(v, ",") {
		name := domain.CollectionName(strings.TrimSpace(s))
		if name != domain.CollectionInventory && name != domain.CollectionSales {
			return nil, domain.NewValidationError("sheets", "unknown sheet %q", s)
		}
		out = append(out, name)
	}
	return out, nil
}

// generateExcelFile builds the workbook in memory and returns it with the
// number of data rows written.
func (h *ExportHandler) generateExcelFile(sheets []domain.CollectionName) ([]byte, int, error) {
	file := xlsx.NewFile()
	total := 0

	for _, name := range sheets {
		var (
			n   int
			err error
		)
		switch name {
		case domain.CollectionInventory:
			n, err = h.writeInventorySheet(file)
		case domain.CollectionSales:
			n, err = h.writeSalesSheet(file)
		}
		if err != nil {
			return nil, 0, err
		}
		total += n
	}

	var buffer bytes.Buffer
	if err := file.Write(&buffer); err != nil {
		return nil, 0, fmt.Errorf("failed to write Excel file to buffer: %w", err)
	}
	return buffer.Bytes(), total, nil
}

func (h *ExportHandler) writeInventorySheet(file *xlsx.File) (int, error) {
	sheet, err := file.AddSheet("Inventory")
	if err != nil {
		return 0, fmt.Errorf("failed to add inventory worksheet: %w", err)
	}
	addHeaderRow(sheet, inventoryHeaders)

	inventory := h.source.Inventory()
	suppliers := h.source.Suppliers()
	for _, item := range inventory.Items {
		supplier := ""
		if item.SupplierID != "" {
			s, _ := suppliers.Resolve(item.SupplierID)
			supplier = s.Name
		}

		row := sheet.AddRow()
		row.AddCell().SetString(item.ID)
		row.AddCell().SetString(item.Name)
		row.AddCell().SetString(item.SKU)
		row.AddCell().SetInt(item.Quantity)
		row.AddCell().SetNumeric(item.PurchasePrice.StringFixed(2))
		row.AddCell().SetNumeric(item.SalePrice.StringFixed(2))
		row.AddCell().SetString(strings.Join(item.Categories, ", "))
		row.AddCell().SetString(supplier)
		row.AddCell().SetString(item.ImagePath)
		row.AddCell().SetString(item.Notes)
		row.AddCell().SetString(item.UpdatedAt.UTC().Format(time.RFC3339))
	}
	setColumnWidths(sheet, len(inventoryHeaders))
	return len(inventory.Items), nil
}

func (h *ExportHandler) writeSalesSheet(file *xlsx.File) (int, error) {
	sheet, err := file.AddSheet("Sales")
	if err != nil {
		return 0, fmt.Errorf("failed to add sales worksheet: %w", err)
	}
	addHeaderRow(sheet, salesHeaders)

	sales := h.source.Sales()
	for _, sale := range sales {
		row := sheet.AddRow()
		row.AddCell().SetString(sale.SaleID)
		row.AddCell().SetString(sale.SoldAt.UTC().Format(time.RFC3339))
		row.AddCell().SetString(sale.ItemID)
		row.AddCell().SetString(sale.ItemName)
		row.AddCell().SetInt(sale.Quantity)
		row.AddCell().SetNumeric(sale.UnitPrice.StringFixed(2))
		row.AddCell().SetNumeric(sale.Total.StringFixed(2))
		row.AddCell().SetNumeric(sale.ExchangeRate.String())
		row.AddCell().SetNumeric(sale.TotalConverted.StringFixed(2))
		row.AddCell().SetString(sale.SoldBy)
	}
	setColumnWidths(sheet, len(salesHeaders))
	return len(sales), nil
}

func addHeaderRow(sheet *xlsx.Sheet, headers []string) {
	row := sheet.AddRow()
	for _, header := range headers {
		cell := row.AddCell()
		cell.Value = header
		cell.GetStyle().Font.Bold = true
		cell.GetStyle().Fill.PatternType = "solid"
		cell.GetStyle().Fill.FgColor = "CCCCCC"
	}
}

func setColumnWidths(sheet *xlsx.Sheet, n int) {
	// column numbers are 1-based
	for i := 1; i <= n; i++ {
		sheet.SetColWidth(i, i, 16)
	}
}
