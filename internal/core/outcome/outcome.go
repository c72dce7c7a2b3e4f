// internal/core/outcome/outcome.go

// Package outcome classifies commit results and turns them into
// user-visible notifications.
package outcome

import (
	"context"
	"errors"

	"github.com/ammerola/stockbook/internal/core/audit"
	"github.com/ammerola/stockbook/internal/core/ports"
	"github.com/ammerola/stockbook/internal/core/syncer"
)

// Outcome is the classified result of an operation.
type Outcome string

// Outcomes
const (
	Success   Outcome = "success"
	Conflict  Outcome = "conflict"
	Transient Outcome = "transient"
	Fatal     Outcome = "fatal"
)

// Classify maps an operation error to an Outcome. An audit warning counts as
// success because the primary change committed.
func Classify(err error) Outcome {
	if err == nil {
		return Success
	}
	if _, ok := audit.AsWarning(err); ok {
		return Success
	}
	if errors.Is(err, ports.ErrConflict) {
		return Conflict
	}

	var transport *ports.TransportError
	switch {
	case errors.As(err, &transport):
		return Transient
	case errors.Is(err, syncer.ErrBusy),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return Transient
	}
	return Fatal
}

// NeedsReload reports whether the user should reload before retrying.
func (o Outcome) NeedsReload() bool {
	return o == Conflict
}

// Retryable reports whether repeating the same operation may succeed.
func (o Outcome) Retryable() bool {
	return o == Transient
}
