package batches

import "errors"

var (
	// ErrNotFound is returned for unknown batches and missing generated files.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput marks whole-request input errors; nothing was processed.
	ErrInvalidInput = errors.New("invalid input")
)
