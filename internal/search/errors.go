package search

import (
	"errors"
	"fmt"
)

// ErrNoProvidersAvailable signals that the search could not run at all:
// either no provider was eligible or every dispatched provider failed.
// Callers can distinguish this from a legitimate empty result set.
var ErrNoProvidersAvailable = errors.New("no providers available")

// InvalidQueryError marks caller misuse; it is never retried.
type InvalidQueryError struct {
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return fmt.Sprintf("invalid query: %s", e.Reason)
}

func invalidQuery(format string, args ...any) error {
	return &InvalidQueryError{Reason: fmt.Sprintf(format, args...)}
}
