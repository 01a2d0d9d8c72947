package domain

import (
	"errors"
	"fmt"
)

var (
	ErrSourceUnavailable   = errors.New("source unavailable")
	ErrValidation          = errors.New("validation error")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrAlertPersistFailed  = errors.New("alert persist failed")
	ErrIngestionFailed     = errors.New("ingestion failed")
	ErrNotFound            = errors.New("not found")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

// ValidationError names the candidate field that was rejected.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: invalid %s %q", e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IngestionFailedError is the only error an ingestion run surfaces.
type IngestionFailedError struct {
	Cause error
}

func (e *IngestionFailedError) Error() string {
	return fmt.Sprintf("ingestion failed: %v", e.Cause)
}

func (e *IngestionFailedError) Unwrap() []error { return []error{ErrIngestionFailed, e.Cause} }
