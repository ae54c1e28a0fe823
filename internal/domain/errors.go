package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Sentinel errors matched by the typed errors below through errors.Is.
var (
	ErrInvalidObservation   = errors.New("invalid observation")
	ErrMalformedCandidate   = errors.New("malformed candidate")
	ErrCatalogInconsistency = errors.New("catalog inconsistency")
	ErrInvalidInput         = errors.New("invalid input")
)

// InvalidObservationError describes a raw row that cannot be aggregated.
type InvalidObservationError struct {
	Identifier string
	Source     string
	Reason     string
}

func (e *InvalidObservationError) Error() string {
	return fmt.Sprintf("observation %q from %q: %s", e.Identifier, e.Source, e.Reason)
}

// Is implements errors.Is support
func (e *InvalidObservationError) Is(target error) bool {
	return target == ErrInvalidObservation
}

// MalformedCandidateError flags an aggregated bucket whose price bounds are unusable.
type MalformedCandidateError struct {
	Identifier string
	Low        decimal.Decimal
	High       decimal.Decimal
	Reason     string
}

func (e *MalformedCandidateError) Error() string {
	return fmt.Sprintf("candidate %q (low=%s high=%s): %s", e.Identifier, e.Low, e.High, e.Reason)
}

// Is implements errors.Is support
func (e *MalformedCandidateError) Is(target error) bool {
	return target == ErrMalformedCandidate
}

// CatalogInconsistencyError records a stored entry the reconciler refused to touch.
type CatalogInconsistencyError struct {
	Identifier string
	Reason     string
}

func (e *CatalogInconsistencyError) Error() string {
	return fmt.Sprintf("catalog entry %q: %s", e.Identifier, e.Reason)
}

// Is implements errors.Is support
func (e *CatalogInconsistencyError) Is(target error) bool {
	return target == ErrCatalogInconsistency
}

// MalformedInputError is returned by the reconciler when its input breaks an invariant.
// No actions are produced alongside it.
type MalformedInputError struct {
	Problems []*MalformedCandidateError
}

func (e *MalformedInputError) Error() string {
	ids := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		ids = append(ids, p.Identifier)
	}
	return fmt.Sprintf("malformed reconciliation input for %d identifiers: %s", len(ids), strings.Join(ids, ", "))
}

// Is implements errors.Is support
func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedCandidate || target == ErrInvalidInput
}

// ValidationError represents a configuration or argument validation failure.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
