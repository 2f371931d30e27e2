// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across store/engine layers.
var (
	// ErrNotFound indicates the requested record does not exist or is not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., duplicate product code).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrBatchTooLarge indicates the submitted change set exceeds the configured limit.
	ErrBatchTooLarge = errors.New("batch too large")
)
