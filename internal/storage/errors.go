package storage

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned for unknown record ids. Handlers map it to 404.
var ErrNotFound = errors.New("record not found")

// ErrVersionConflict is returned when a record was modified between read
// and write. Mutations run under the per-record lock, so hitting this means
// an out-of-band write.
var ErrVersionConflict = errors.New("record version conflict")

// ValidationError is a violated stage precondition or a missing mandatory
// field. Handlers map it to 400/422 and surface Reason verbatim.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictError is an operation rejected by the record's current state,
// e.g. deleting an order that already has receipts.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

func Conflictf(format string, args ...any) *ConflictError {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
