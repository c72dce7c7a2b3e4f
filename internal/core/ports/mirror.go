// internal/core/ports/mirror.go
package ports

import "context"

// LocalMirror is the durable local copy of each collection. It is
// last-write-wins and performs no conflict detection.
type LocalMirror interface {
	// Read returns the stored blob or an error matching ErrNotFound.
	Read(ctx context.Context, name string) ([]byte, error)
	// Write fully overwrites the blob stored under name.
	Write(ctx context.Context, name string, data []byte) error
}
