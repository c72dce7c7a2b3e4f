// test/mocks/mocks.go

// Package mocks contains generated mocks for the application's interfaces.
// To regenerate mocks, run `make mocks` from the root directory.
package mocks

//go:generate mockgen -source=../../internal/core/ports/document_store.go -destination=document_store_mock.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/mirror.go -destination=mirror_mock.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/notifier.go -destination=notifier_mock.go -package=mocks
//go:generate mockgen -source=../../internal/core/ports/inventory_service.go -destination=inventory_service_mock.go -package=mocks
