// Package errs defines the error taxonomy shared across the service.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks per-item input problems (e.g. empty text).
	// Items failing with it are rejected individually, never the whole batch.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidParameter marks bad request-level parameters (k, threshold).
	// Requests failing with it are rejected before any adapter call.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrNotFound marks lookups of unknown identifiers.
	ErrNotFound = errors.New("not found")

	// ErrExternalCapability marks failures of the embedding or language
	// detection adapters, including timeouts.
	ErrExternalCapability = errors.New("external capability failure")
)

// InvalidInput wraps ErrInvalidInput with a reason.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// InvalidParameter wraps ErrInvalidParameter with a reason.
func InvalidParameter(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, args...))
}

// NotFound wraps ErrNotFound with the missing identifier.
func NotFound(kind, id string) error {
	return fmt.Errorf("%w: %s %s", ErrNotFound, kind, id)
}

// External wraps an adapter error as ErrExternalCapability.
func External(capability string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrExternalCapability, capability, err)
}
