// internal/core/domain/errors.go
package domain

import (
	"errors"
	"fmt"
)

// ErrValidation matches every *ValidationError through errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError reports a local precondition violation. It is raised before
// any mutation is applied, so nothing needs to be rolled back.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a validation error for field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Lookup errors
var (
	ErrItemNotFound     = errors.New("item not found")
	ErrSaleNotFound     = errors.New("sale not found")
	ErrSupplierNotFound = errors.New("supplier not found")
)
