package crawler

import "errors"

var (
	// ErrInvalidRoot is returned when the root URL is not followable.
	ErrInvalidRoot = errors.New("invalid root URL: must include a scheme and a host and must not contain '#'")

	// ErrFetchFailed is returned when a page cannot be fetched and the
	// failure policy stops the run. The returned error also wraps the
	// fetcher's *fetcher.FetchError.
	ErrFetchFailed = errors.New("page fetch failed")

	// ErrUnknownScope is returned by ParseScope for unknown names.
	ErrUnknownScope = errors.New("unknown scope")

	// ErrUnknownFailurePolicy is returned by ParseFailurePolicy for unknown names.
	ErrUnknownFailurePolicy = errors.New("unknown failure policy")
)
