package store

import (
	"errors"

	"calstore/internal/models"
)

// Sentinel error kinds. Callers match them with errors.Is.
var (
	// ErrNotFound is returned when an update targets an unknown id.
	ErrNotFound = errors.New("event not found")
	// ErrValidation is returned for malformed input before any mutation.
	ErrValidation = models.ErrValidation
	// ErrUnauthorized is the remote rejecting credentials (401/403).
	ErrUnauthorized = errors.New("remote not authorized")
	// ErrUnavailable is the remote failing with 5xx or not answering.
	ErrUnavailable = errors.New("remote unavailable")
	// ErrClosed is returned by every operation after Dispose.
	ErrClosed = errors.New("store disposed")
)
