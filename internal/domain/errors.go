package domain

import "errors"

var (
	// ErrDataUnavailable means a store could not be read during refresh.
	// The previous index generation stays live.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrInitialization means the first refresh failed and the index is unusable.
	ErrInitialization = errors.New("index initialization failed")
	// ErrInvalidReference marks a transaction pointing at a book that is not in the catalog.
	ErrInvalidReference = errors.New("invalid book reference")
	// ErrUpstreamFailure wraps generative service errors and timeouts.
	ErrUpstreamFailure = errors.New("upstream failure")

	ErrBookNotFound      = errors.New("book not found")
	ErrNoCopiesAvailable = errors.New("book not available")
	ErrInvalidBook       = errors.New("invalid book")
)
