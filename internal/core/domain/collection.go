// internal/core/domain/collection.go
package domain

import (
	"path"
	"strings"
)

// CollectionName identifies one synchronized collection. Each collection maps
// to exactly one remote document.
type CollectionName string

// Collection constants
const (
	CollectionInventory CollectionName = "inventory"
	CollectionSales     CollectionName = "sales"
	CollectionSuppliers CollectionName = "suppliers"
	CollectionAuditLog  CollectionName = "audit-log"
)

// Remote namespaces for binary assets and archive documents.
const (
	ImagesDir  = "images"
	ArchiveDir = "archive"
)

// AllCollections lists the collections in their fixed commit order.
func AllCollections() []CollectionName {
	return []CollectionName{
		CollectionInventory,
		CollectionSales,
		CollectionSuppliers,
		CollectionAuditLog,
	}
}

// DocumentPath returns the remote document path of the collection.
func (n CollectionName) DocumentPath() string {
	return string(n) + ".json"
}

// Valid reports whether n is one of the known collections.
func (n CollectionName) Valid() bool {
	for _, c := range AllCollections() {
		if c == n {
			return true
		}
	}
	return false
}

// ImagePath builds the remote path of an image blob.
func ImagePath(name string) string {
	return path.Join(ImagesDir, strings.TrimPrefix(name, "/"))
}

// ArchivePath builds the remote path of an archive document.
func ArchivePath(name string) string {
	return path.Join(ArchiveDir, strings.TrimPrefix(name, "/"))
}
