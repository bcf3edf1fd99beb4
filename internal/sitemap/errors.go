package sitemap

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidChangeFreq is returned when Options.ChangeFreq is not a
	// value defined by the sitemap protocol.
	ErrInvalidChangeFreq = errors.New("invalid changefreq")

	// ErrInvalidPriority is returned when Options.Priority is outside [0.0, 1.0].
	ErrInvalidPriority = errors.New("invalid priority")

	// ErrWriteFailed is the sentinel matched by every *WriteError.
	ErrWriteFailed = errors.New("failed to write sitemap")
)

// WriteError describes a sitemap document that could not be persisted.
type WriteError struct {
	// Path is the destination that could not be written.
	Path string
	// Err is the underlying filesystem error.
	Err error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("%v %s: %v", ErrWriteFailed, e.Path, e.Err)
}

// Unwrap returns the underlying filesystem error.
func (e *WriteError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrWriteFailed.
func (e *WriteError) Is(target error) bool {
	return target == ErrWriteFailed
}
