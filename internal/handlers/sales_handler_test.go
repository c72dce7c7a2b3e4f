// internal/handlers/sales_handler_test.go
package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
	"github.com/ammerola/stockbook/internal/core/services"
	"github.com/ammerola/stockbook/internal/handlers"
	"github.com/ammerola/stockbook/test/helpers"
	"github.com/ammerola/stockbook/test/mocks"
)

func TestSalesHandler_RecordSale(t *testing.T) {
	item := helpers.CreateTestItem()
	sale := domain.NewSaleRecord(item, 3, decimal.NewFromInt(1), "tester", time.Now())

	tests := []struct {
		name           string
		body           string
		setupMocks     func(*mocks.MockSalesService)
		expectedStatus int
		validateBody   func(*testing.T, []byte)
	}{
		{
			name: "records_sale",
			body: `{"itemId":"` + item.ID + `","quantity":3}`,
			setupMocks: func(m *mocks.MockSalesService) {
				m.EXPECT().RecordSale(gomock.Any(), ports.SaleRequest{ItemID: item.ID, Quantity: 3}).Return(sale, nil)
			},
			expectedStatus: http.StatusCreated,
			validateBody: func(t *testing.T, body []byte) {
				assert.Contains(t, string(body), sale.SaleID)
			},
		},
		{
			name: "insufficient_stock",
			body: `{"itemId":"` + item.ID + `","quantity":99}`,
			setupMocks: func(m *mocks.MockSalesService) {
				m.EXPECT().RecordSale(gomock.Any(), gomock.Any()).
					Return(domain.SaleRecord{}, domain.NewValidationError("quantity", "only 10 in stock"))
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "sales_commit_failed_after_inventory",
			body: `{"itemId":"` + item.ID + `","quantity":3}`,
			setupMocks: func(m *mocks.MockSalesService) {
				m.EXPECT().RecordSale(gomock.Any(), gomock.Any()).Return(domain.SaleRecord{}, &services.PartialCommitError{
					Committed: []domain.CollectionName{domain.CollectionInventory},
					Failed:    domain.CollectionSales,
					Err:       &ports.TransportError{Op: "save", Path: "sales.json", StatusCode: 503},
				})
			},
			expectedStatus: http.StatusServiceUnavailable,
			validateBody: func(t *testing.T, body []byte) {
				resp := decodeError(t, body)
				assert.True(t, resp.Partial)
				assert.True(t, resp.Retry)
				assert.Equal(t, []domain.CollectionName{domain.CollectionInventory}, resp.Committed)
				assert.Equal(t, domain.CollectionSales, resp.Failed)
			},
		},
		{
			name:           "malformed_body",
			body:           `{"itemId":`,
			setupMocks:     func(m *mocks.MockSalesService) {},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			svc := mocks.NewMockSalesService(ctrl)
			tt.setupMocks(svc)
			handler := handlers.NewSalesHandler(svc, helpers.TestLogger())

			w := httptest.NewRecorder()
			handler.RecordSale(w, httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(tt.body)))

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.validateBody != nil {
				tt.validateBody(t, w.Body.Bytes())
			}
		})
	}
}

func TestSalesHandler_DeleteSale(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		setupMocks     func(*mocks.MockSalesService)
		expectedStatus int
	}{
		{
			name:  "without_restock",
			query: "",
			setupMocks: func(m *mocks.MockSalesService) {
				m.EXPECT().DeleteSale(gomock.Any(), "s1", false).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:  "with_restock",
			query: "?restock=true",
			setupMocks: func(m *mocks.MockSalesService) {
				m.EXPECT().DeleteSale(gomock.Any(), "s1", true).Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "bad_restock_flag",
			query:          "?restock=maybe",
			setupMocks:     func(m *mocks.MockSalesService) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:  "unknown_sale",
			query: "",
			setupMocks: func(m *mocks.MockSalesService) {
				m.EXPECT().DeleteSale(gomock.Any(), "s1", false).Return(domain.ErrSaleNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			svc := mocks.NewMockSalesService(ctrl)
			tt.setupMocks(svc)
			handler := handlers.NewSalesHandler(svc, helpers.TestLogger())

			req := httptest.NewRequest(http.MethodDelete, "/api/v1/sales/s1"+tt.query, nil)
			req.SetPathValue("id", "s1")
			w := httptest.NewRecorder()
			handler.DeleteSale(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestSalesHandler_ListSales(t *testing.T) {
	t.Run("parses_filter", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockSalesService(ctrl)
		svc.EXPECT().ListSales(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ any, f ports.SalesFilter) ([]domain.SaleRecord, error) {
				assert.Equal(t, "i1", f.ItemID)
				assert.True(t, f.From.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
				assert.True(t, f.To.Equal(time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)))
				return []domain.SaleRecord{}, nil
			})
		handler := handlers.NewSalesHandler(svc, helpers.TestLogger())

		w := httptest.NewRecorder()
		handler.ListSales(w, httptest.NewRequest(http.MethodGet,
			"/api/v1/sales?item=i1&from=2024-01-01&to=2024-02-01T12:00:00Z", nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[]`, w.Body.String())
	})

	t.Run("bad_date", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		handler := handlers.NewSalesHandler(mocks.NewMockSalesService(ctrl), helpers.TestLogger())

		w := httptest.NewRecorder()
		handler.ListSales(w, httptest.NewRequest(http.MethodGet, "/api/v1/sales?from=yesterday", nil))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "from", decodeError(t, w.Body.Bytes()).Field)
	})
}

func TestSupplierHandler(t *testing.T) {
	supplier := helpers.CreateTestSupplier()

	t.Run("unknown_supplier_resolves_to_placeholder", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockSupplierService(ctrl)
		svc.EXPECT().Resolve(gomock.Any(), "gone").Return(domain.MissingSupplier)
		handler := handlers.NewSupplierHandler(svc, mocks.NewMockAuditService(ctrl), helpers.TestLogger())

		req := httptest.NewRequest(http.MethodGet, "/api/v1/suppliers/gone", nil)
		req.SetPathValue("id", "gone")
		w := httptest.NewRecorder()
		handler.GetSupplier(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), domain.MissingSupplier.Name)
	})

	t.Run("create_and_update", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockSupplierService(ctrl)
		svc.EXPECT().CreateSupplier(gomock.Any(), gomock.Any()).Return(supplier, nil)
		svc.EXPECT().UpdateSupplier(gomock.Any(), supplier.ID, gomock.Any()).Return(supplier, nil)
		handler := handlers.NewSupplierHandler(svc, mocks.NewMockAuditService(ctrl), helpers.TestLogger())

		w := httptest.NewRecorder()
		handler.CreateSupplier(w, httptest.NewRequest(http.MethodPost, "/api/v1/suppliers", strings.NewReader(`{"name":"Acme Parts"}`)))
		assert.Equal(t, http.StatusCreated, w.Code)

		req := httptest.NewRequest(http.MethodPut, "/api/v1/suppliers/"+supplier.ID, strings.NewReader(`{"name":"Acme"}`))
		req.SetPathValue("id", supplier.ID)
		w = httptest.NewRecorder()
		handler.UpdateSupplier(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("delete_unknown", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		svc := mocks.NewMockSupplierService(ctrl)
		svc.EXPECT().DeleteSupplier(gomock.Any(), "x").Return(domain.ErrSupplierNotFound)
		handler := handlers.NewSupplierHandler(svc, mocks.NewMockAuditService(ctrl), helpers.TestLogger())

		req := httptest.NewRequest(http.MethodDelete, "/api/v1/suppliers/x", nil)
		req.SetPathValue("id", "x")
		w := httptest.NewRecorder()
		handler.DeleteSupplier(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestSupplierHandler_Audit(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		setupMocks     func(*mocks.MockAuditService)
		expectedStatus int
	}{
		{
			name:  "list_with_limit",
			query: "?limit=5",
			setupMocks: func(m *mocks.MockAuditService) {
				m.EXPECT().ListEntries(gomock.Any(), 5).Return([]domain.AuditEntry{}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "negative_limit",
			query:          "?limit=-1",
			setupMocks:     func(m *mocks.MockAuditService) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			audit := mocks.NewMockAuditService(ctrl)
			tt.setupMocks(audit)
			handler := handlers.NewSupplierHandler(mocks.NewMockSupplierService(ctrl), audit, helpers.TestLogger())

			w := httptest.NewRecorder()
			handler.ListAudit(w, httptest.NewRequest(http.MethodGet, "/api/v1/audit"+tt.query, nil))
			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}

	t.Run("clear_conflict", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		audit := mocks.NewMockAuditService(ctrl)
		audit.EXPECT().Clear(gomock.Any()).Return(&ports.ConflictError{Path: "audit-log.json", Expected: "v1", Current: "v2"})
		handler := handlers.NewSupplierHandler(mocks.NewMockSupplierService(ctrl), audit, helpers.TestLogger())

		w := httptest.NewRecorder()
		handler.ClearAudit(w, httptest.NewRequest(http.MethodDelete, "/api/v1/audit", nil))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.True(t, decodeError(t, w.Body.Bytes()).Reload)
	})
}
