package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexUnavailable signals that the external index service cannot be
	// reached or returned a malformed response. Never retried internally.
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrMalformedQuery signals a query string the index cannot parse.
	ErrMalformedQuery = errors.New("malformed query")
	// ErrPersistence signals a failure of the license/user/IP catalog store.
	ErrPersistence = errors.New("catalog store unavailable")
	// ErrNotFound signals a missing record.
	ErrNotFound = errors.New("not found")
)

// IndexStatusError wraps ErrIndexUnavailable with the HTTP status the index
// service returned.
type IndexStatusError struct {
	Status int
}

func (e *IndexStatusError) Error() string {
	return fmt.Sprintf("%s: index returned status %d", ErrIndexUnavailable.Error(), e.Status)
}

func (e *IndexStatusError) Unwrap() error { return ErrIndexUnavailable }

// NewIndexStatus creates an index status error.
func NewIndexStatus(status int) error {
	return &IndexStatusError{Status: status}
}
