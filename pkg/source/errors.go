package source

import "errors"

// Common errors returned by the source adapter.
var (
	// ErrAdapterClosed is returned when attempting to use a closed adapter.
	ErrAdapterClosed = errors.New("source adapter is closed")

	// ErrAlreadyStarted is returned when Start is called on a running adapter.
	ErrAlreadyStarted = errors.New("source adapter already started")

	// ErrInvalidRoot is returned when the watch root does not exist.
	ErrInvalidRoot = errors.New("invalid watch root")
)
