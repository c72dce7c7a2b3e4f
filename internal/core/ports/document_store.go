// internal/core/ports/document_store.go
package ports

import (
	"context"
)

// VersionToken is an opaque identifier of one exact remote document state.
// NoVersion means the document does not exist or was never observed.
type VersionToken string

// NoVersion is the null version token.
const NoVersion VersionToken = ""

// IsNull reports whether v is the null token.
func (v VersionToken) IsNull() bool {
	return v == NoVersion
}

// Document is a remote document together with the version it was read at.
type Document struct {
	Path    string
	Data    []byte
	Version VersionToken
}

// Entry is one element of a directory listing.
type Entry struct {
	Path    string
	Version VersionToken
	Size    int64
}

// DocumentStore is the remote single-file-per-document store. It holds no
// business rules and never retries writes.
type DocumentStore interface {
	// Load fetches a document. A missing document returns an error matching
	// ErrNotFound.
	Load(ctx context.Context, path string) (Document, error)

	// Save overwrites path when its current version equals expected and
	// returns the new version. NoVersion makes the write create-only. A
	// mismatch fails with *ConflictError, other failures with *TransportError.
	Save(ctx context.Context, path string, data []byte, expected VersionToken, message string) (VersionToken, error)

	// Delete removes a blob. Blobs carry no optimistic-concurrency contract
	// beyond what the backend requires to address them.
	Delete(ctx context.Context, path string, version VersionToken, message string) error

	// List returns the files directly under dir. A missing directory is an
	// empty listing.
	List(ctx context.Context, dir string) ([]Entry, error)
}
