package models

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable means the relational store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNotFound means an exact lookup had no match.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput covers malformed requests, vectors, and identifiers.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstreamService wraps failures of the LLM, embedding, or translation services.
	ErrUpstreamService = errors.New("upstream service error")
)

// InvalidInputf returns an error wrapping ErrInvalidInput with a formatted message.
func InvalidInputf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
