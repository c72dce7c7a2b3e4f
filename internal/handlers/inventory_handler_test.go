// internal/handlers/inventory_handler_test.go
package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

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

func decodeError(t *testing.T, body []byte) handlers.ErrorResponse {
	t.Helper()
	var resp handlers.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func newInventoryHandler(t *testing.T, maxUpload int64) (*handlers.InventoryHandler, *mocks.MockInventoryService, *mocks.MockMaintenanceService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockInventoryService(ctrl)
	maint := mocks.NewMockMaintenanceService(ctrl)
	return handlers.NewInventoryHandler(svc, maint, maxUpload, helpers.TestLogger()), svc, maint
}

func TestInventoryHandler_GetItem(t *testing.T) {
	testItem := helpers.CreateTestItem()

	tests := []struct {
		name           string
		id             string
		setupMocks     func(*mocks.MockInventoryService)
		expectedStatus int
		validateBody   func(*testing.T, []byte)
	}{
		{
			name: "successfully_retrieves_item",
			id:   testItem.ID,
			setupMocks: func(m *mocks.MockInventoryService) {
				m.EXPECT().GetItem(gomock.Any(), testItem.ID).Return(testItem, nil)
			},
			expectedStatus: http.StatusOK,
			validateBody: func(t *testing.T, body []byte) {
				var response domain.Item
				require.NoError(t, json.Unmarshal(body, &response))
				assert.Equal(t, testItem.ID, response.ID)
				assert.Equal(t, testItem.Name, response.Name)
				assert.True(t, testItem.SalePrice.Equal(response.SalePrice))
			},
		},
		{
			name: "item_not_found",
			id:   "missing",
			setupMocks: func(m *mocks.MockInventoryService) {
				m.EXPECT().GetItem(gomock.Any(), "missing").Return(domain.Item{}, domain.ErrItemNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name: "unexpected_error",
			id:   testItem.ID,
			setupMocks: func(m *mocks.MockInventoryService) {
				m.EXPECT().GetItem(gomock.Any(), testItem.ID).Return(domain.Item{}, errors.New("boom"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, svc, _ := newInventoryHandler(t, 0)
			tt.setupMocks(svc)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/items/"+tt.id, nil)
			req.SetPathValue("id", tt.id)
			w := httptest.NewRecorder()

			handler.GetItem(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.validateBody != nil {
				tt.validateBody(t, w.Body.Bytes())
			}
		})
	}
}

func TestInventoryHandler_ListItems(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		setupMocks     func(*mocks.MockInventoryService)
		expectedStatus int
	}{
		{
			name:  "defaults",
			query: "",
			setupMocks: func(m *mocks.MockInventoryService) {
				m.EXPECT().List(gomock.Any(), ports.ListParams{Page: 1, PageSize: 50}).
					Return(&ports.ListResult{Items: []domain.Item{}, Page: 1, PageSize: 50}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:  "all_filters",
			query: "?page=2&limit=10&search=pad&category=Brakes&supplier=s1&low_stock=3&sort=name&order=desc",
			setupMocks: func(m *mocks.MockInventoryService) {
				m.EXPECT().List(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ any, p ports.ListParams) (*ports.ListResult, error) {
						assert.Equal(t, 2, p.Page)
						assert.Equal(t, 10, p.PageSize)
						assert.Equal(t, "pad", p.Search)
						assert.Equal(t, "Brakes", p.Category)
						assert.Equal(t, "s1", p.SupplierID)
						require.NotNil(t, p.LowStock)
						assert.Equal(t, 3, *p.LowStock)
						assert.Equal(t, "name", p.SortBy)
						assert.Equal(t, "desc", p.SortOrder)
						return &ports.ListResult{Items: []domain.Item{}}, nil
					})
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "non_numeric_page",
			query:          "?page=two",
			setupMocks:     func(m *mocks.MockInventoryService) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:  "invalid_sort_is_rejected_by_service",
			query: "?sort=colour",
			setupMocks: func(m *mocks.MockInventoryService) {
				m.EXPECT().List(gomock.Any(), gomock.Any()).
					Return(nil, domain.NewValidationError("sort", "unknown field"))
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, svc, _ := newInventoryHandler(t, 0)
			tt.setupMocks(svc)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/items"+tt.query, nil)
			w := httptest.NewRecorder()

			handler.ListItems(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestInventoryHandler_CreateItem(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMocks     func(*mocks.MockInventoryService)
		expectedStatus int
		validateBody   func(*testing.T, []byte)
	}{
		{
			name: "creates_item",
			body: `{"name":"Rotor","quantity":4,"purchasePrice":"20.00","salePrice":"45.50","categories":["Brakes"]}`,
			setupMocks: func(m *mocks.MockInventoryService) {
				m.EXPECT().CreateItem(gomock.Any(), gomock.Any()).DoAndReturn(
					func(_ any, item domain.Item) (domain.Item, error) {
						assert.Equal(t, "Rotor", item.Name)
						assert.Equal(t, 4, item.Quantity)
						assert.True(t, decimal.RequireFromString("45.50").Equal(item.SalePrice))
						item.ID = "new-id"
						return item, nil
					})
			},
			expectedStatus: http.StatusCreated,
			validateBody: func(t *testing.T, body []byte) {
				var item domain.Item
				require.NoError(t, json.Unmarshal(body, &item))
				assert.Equal(t, "new-id", item.ID)
			},
		},
		{
			name:           "unknown_field",
			body:           `{"name":"Rotor","colour":"red"}`,
			setupMocks:     func(m *mocks.MockInventoryService) {},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "validation_error_names_field",
			body: `{"name":""}`,
			setupMocks: func(m *mocks.MockInventoryService) {
				m.EXPECT().CreateItem(gomock.Any(), gomock.Any()).
					Return(domain.Item{}, domain.NewValidationError("name", "is required"))
			},
			expectedStatus: http.StatusUnprocessableEntity,
			validateBody: func(t *testing.T, body []byte) {
				assert.Equal(t, "name", decodeError(t, body).Field)
			},
		},
		{
			name: "conflict_asks_for_reload",
			body: `{"name":"Rotor"}`,
			setupMocks: func(m *mocks.MockInventoryService) {
				m.EXPECT().CreateItem(gomock.Any(), gomock.Any()).
					Return(domain.Item{}, &ports.ConflictError{Path: "inventory.json", Expected: "abc"})
			},
			expectedStatus: http.StatusConflict,
			validateBody: func(t *testing.T, body []byte) {
				resp := decodeError(t, body)
				assert.True(t, resp.Reload)
				assert.False(t, resp.Retry)
			},
		},
		{
			name: "transport_failure_offers_retry",
			body: `{"name":"Rotor"}`,
			setupMocks: func(m *mocks.MockInventoryService) {
				m.EXPECT().CreateItem(gomock.Any(), gomock.Any()).
					Return(domain.Item{}, &ports.TransportError{Op: "save", Path: "inventory.json", StatusCode: 502})
			},
			expectedStatus: http.StatusServiceUnavailable,
			validateBody: func(t *testing.T, body []byte) {
				resp := decodeError(t, body)
				assert.True(t, resp.Retry)
				assert.False(t, resp.Reload)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, svc, _ := newInventoryHandler(t, 0)
			tt.setupMocks(svc)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/items", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()

			handler.CreateItem(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.validateBody != nil {
				tt.validateBody(t, w.Body.Bytes())
			}
		})
	}
}

func TestInventoryHandler_UpdateItem(t *testing.T) {
	handler, svc, _ := newInventoryHandler(t, 0)
	item := helpers.CreateTestItem()

	svc.EXPECT().UpdateItem(gomock.Any(), item.ID, gomock.Any()).DoAndReturn(
		func(_ any, _ string, patch ports.ItemPatch) (domain.Item, error) {
			require.NotNil(t, patch.Quantity)
			assert.Equal(t, 7, *patch.Quantity)
			assert.Nil(t, patch.Name)
			item.Quantity = 7
			return item, nil
		})

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/items/"+item.ID, strings.NewReader(`{"quantity":7}`))
	req.SetPathValue("id", item.ID)
	w := httptest.NewRecorder()

	handler.UpdateItem(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInventoryHandler_DeleteItem(t *testing.T) {
	handler, svc, _ := newInventoryHandler(t, 0)
	svc.EXPECT().DeleteItem(gomock.Any(), "i1").Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/items/i1", nil)
	req.SetPathValue("id", "i1")
	w := httptest.NewRecorder()

	handler.DeleteItem(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"i1"`)
}

func TestInventoryHandler_AdjustQuantity(t *testing.T) {
	t.Run("negative_result_rejected", func(t *testing.T) {
		handler, svc, _ := newInventoryHandler(t, 0)
		svc.EXPECT().AdjustQuantity(gomock.Any(), "i1", -20, "damaged").
			Return(domain.Item{}, domain.NewValidationError("quantity", "cannot go below zero"))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/items/i1/adjust", strings.NewReader(`{"delta":-20,"reason":"damaged"}`))
		req.SetPathValue("id", "i1")
		w := httptest.NewRecorder()

		handler.AdjustQuantity(w, req)

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "quantity", decodeError(t, w.Body.Bytes()).Field)
	})
}

func TestInventoryHandler_RenameCategoryAndBulk(t *testing.T) {
	handler, svc, _ := newInventoryHandler(t, 0)
	svc.EXPECT().RenameCategory(gomock.Any(), "Brakes", "Braking").Return(3, nil)
	svc.EXPECT().BulkUpdate(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ any, u ports.BulkUpdate) (int, error) {
			assert.Equal(t, []string{"a", "b"}, u.IDs)
			assert.Equal(t, "Sale", u.AddCategory)
			return len(u.IDs), nil
		})

	w := httptest.NewRecorder()
	handler.RenameCategory(w, httptest.NewRequest(http.MethodPost, "/api/v1/categories/rename",
		strings.NewReader(`{"from":"Brakes","to":"Braking"}`)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"affected":3}`, w.Body.String())

	w = httptest.NewRecorder()
	handler.BulkUpdate(w, httptest.NewRequest(http.MethodPost, "/api/v1/items/bulk",
		strings.NewReader(`{"ids":["a","b"],"addCategory":"Sale"}`)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"affected":2}`, w.Body.String())
}

func multipartBody(t *testing.T, field, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestInventoryHandler_UploadImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")

	t.Run("uploads_image", func(t *testing.T) {
		handler, _, maint := newInventoryHandler(t, 1<<20)
		maint.EXPECT().UploadImage(gomock.Any(), "i1", "front.png", png).
			Return(helpers.CreateTestItem(func(i *domain.Item) { i.ImagePath = "images/i1-1.png" }), nil)

		body, ct := multipartBody(t, "image", "front.png", png)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/items/i1/image", body)
		req.Header.Set("Content-Type", ct)
		req.SetPathValue("id", "i1")
		w := httptest.NewRecorder()

		handler.UploadImage(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "images/i1-1.png")
	})

	t.Run("too_large", func(t *testing.T) {
		handler, _, _ := newInventoryHandler(t, 1024)

		body, ct := multipartBody(t, "image", "big.png", bytes.Repeat([]byte("x"), 4096))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/items/i1/image", body)
		req.Header.Set("Content-Type", ct)
		req.SetPathValue("id", "i1")
		w := httptest.NewRecorder()

		handler.UploadImage(w, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("missing_file_field", func(t *testing.T) {
		handler, _, _ := newInventoryHandler(t, 1<<20)

		body, ct := multipartBody(t, "other", "x.png", png)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/items/i1/image", body)
		req.Header.Set("Content-Type", ct)
		req.SetPathValue("id", "i1")
		w := httptest.NewRecorder()

		handler.UploadImage(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("local_only_mode", func(t *testing.T) {
		handler, _, maint := newInventoryHandler(t, 1<<20)
		maint.EXPECT().UploadImage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(domain.Item{}, services.ErrNoStore)

		body, ct := multipartBody(t, "image", "front.png", png)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/items/i1/image", body)
		req.Header.Set("Content-Type", ct)
		req.SetPathValue("id", "i1")
		w := httptest.NewRecorder()

		handler.UploadImage(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.False(t, decodeError(t, w.Body.Bytes()).Retry)
	})
}
