// internal/handlers/routes.go
package handlers

import "net/http"

const apiV1 = "/api/v1"

// Routes groups the handlers served by the API.
type Routes struct {
	Inventory   *InventoryHandler
	Sales       *SalesHandler
	Suppliers   *SupplierHandler
	Maintenance *MaintenanceHandler
	State       *StateHandler
	Export      *ExportHandler
	Import      *ImportHandler
	Health      *HealthHandler
}

// Register adds every non-nil handler group to mux.
func (rt *Routes) Register(mux *http.ServeMux) {
	if h := rt.Health; h != nil {
		mux.HandleFunc("GET /health", h.Health)
		mux.HandleFunc("GET /ready", h.Readiness)
		mux.HandleFunc("GET "+apiV1+"/health", h.Health)
	}

	if h := rt.Inventory; h != nil {
		mux.HandleFunc("GET "+apiV1+"/items", h.ListItems)
		mux.HandleFunc("POST "+apiV1+"/items", h.CreateItem)
		mux.HandleFunc("POST "+apiV1+"/items/bulk", h.BulkUpdate)
		mux.HandleFunc("GET "+apiV1+"/items/{id}", h.GetItem)
		mux.HandleFunc("PATCH "+apiV1+"/items/{id}", h.UpdateItem)
		mux.HandleFunc("DELETE "+apiV1+"/items/{id}", h.DeleteItem)
		mux.HandleFunc("POST "+apiV1+"/items/{id}/adjust", h.AdjustQuantity)
		mux.HandleFunc("POST "+apiV1+"/items/{id}/image", h.UploadImage)
		mux.HandleFunc("POST "+apiV1+"/categories/rename", h.RenameCategory)
	}

	if h := rt.Sales; h != nil {
		mux.HandleFunc("GET "+apiV1+"/sales", h.ListSales)
		mux.HandleFunc("POST "+apiV1+"/sales", h.RecordSale)
		mux.HandleFunc("DELETE "+apiV1+"/sales/{id}", h.DeleteSale)
	}

	if h := rt.Suppliers; h != nil {
		mux.HandleFunc("GET "+apiV1+"/suppliers", h.ListSuppliers)
		mux.HandleFunc("POST "+apiV1+"/suppliers", h.CreateSupplier)
		mux.HandleFunc("GET "+apiV1+"/suppliers/{id}", h.GetSupplier)
		mux.HandleFunc("PUT "+apiV1+"/suppliers/{id}", h.UpdateSupplier)
		mux.HandleFunc("DELETE "+apiV1+"/suppliers/{id}", h.DeleteSupplier)
		mux.HandleFunc("GET "+apiV1+"/audit", h.ListAudit)
		mux.HandleFunc("DELETE "+apiV1+"/audit", h.ClearAudit)
	}

	if h := rt.Maintenance; h != nil {
		mux.HandleFunc("POST "+apiV1+"/archive", h.Archive)
		mux.HandleFunc("POST "+apiV1+"/images/sweep", h.Sweep)
		mux.HandleFunc("GET "+apiV1+"/backup", h.Backup)
		mux.HandleFunc("POST "+apiV1+"/restore", h.Restore)
		mux.HandleFunc("POST "+apiV1+"/reload", h.Reload)
	}

	if h := rt.State; h != nil {
		mux.HandleFunc("GET "+apiV1+"/notifications", h.Notifications)
		mux.HandleFunc("GET "+apiV1+"/state", h.State)
		mux.HandleFunc("GET "+apiV1+"/settings", h.GetSettings)
		mux.HandleFunc("PUT "+apiV1+"/settings", h.UpdateSettings)
	}

	if h := rt.Export; h != nil {
		mux.HandleFunc("GET "+apiV1+"/export/xlsx", h.ExportExcel)
	}
	if h := rt.Import; h != nil {
		mux.HandleFunc("POST "+apiV1+"/import/xlsx", h.ImportExcel)
	}
}
