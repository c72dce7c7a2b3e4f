// internal/core/services/errors.go
package services

import (
	"fmt"
	"strings"

	"github.com/ammerola/stockbook/internal/core/domain"
)

// PartialCommitError reports a cross-collection operation whose earlier
// commits succeeded while a later one rolled back. The committed collections
// stay updated remotely until the next reload reconciles them.
type PartialCommitError struct {
	Committed []domain.CollectionName
	Failed    domain.CollectionName
	Err       error
}

func (e *PartialCommitError) Error() string {
	names := make([]string, len(e.Committed))
	for i, c := range e.Committed {
		names[i] = string(c)
	}
	return fmt.Sprintf("partial commit: %s committed, %s failed: %v",
		strings.Join(names, ", "), e.Failed, e.Err)
}

func (e *PartialCommitError) Unwrap() error {
	return e.Err
}
