package pipeline

import (
	"errors"
	"fmt"
)

// ErrNoResults signals a search that matched nothing for a date. It is a
// normal outcome, not a failure: not every date carries matching
// publications.
var ErrNoResults = errors.New("no matching publications for date")

// ErrNotFound signals a secondary lookup for a case under seal or otherwise
// unavailable. It is a normal outcome, not a failure.
var ErrNotFound = errors.New("case record not available")

// ErrNoProcessNumber rejects a publication whose text carries no canonical
// process number. Fatal for that record only, never for the date.
var ErrNoProcessNumber = errors.New("no process number in publication text")

// FetchError wraps a failure crossing the process boundary to a source site.
type FetchError struct {
	Op        string
	URL       string
	Retryable bool
	Err       error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a FetchError marked retryable
// (timeouts, 5xx responses). Malformed-request errors are not retryable.
func IsRetryable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Retryable
	}
	return false
}

// ParseError reports why a publication's text could not be parsed.
type ParseError struct {
	Err     error
	Snippet string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Snippet != "" {
		return fmt.Sprintf("parse publication %q: %v", e.Snippet, e.Err)
	}
	return fmt.Sprintf("parse publication: %v", e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *ParseError) Unwrap() error {
	return e.Err
}
