package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a provider failure. RateLimited is surfaced distinctly
// so the circuit breaker opens deterministically instead of inferring from a
// generic network error.
type ErrorKind int

const (
	KindTimeout ErrorKind = iota
	KindRateLimited
	KindAuthFailure
	KindMalformedResponse
	KindNetworkError
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate_limited"
	case KindAuthFailure:
		return "auth_failure"
	case KindMalformedResponse:
		return "malformed_response"
	case KindNetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// ProviderError wraps a failure from a single provider call.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("provider %s: %s: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Kind)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable reports whether a retry could plausibly succeed. Rate-limit and
// auth failures will not resolve within a single search call.
func (e *ProviderError) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindNetworkError
}

// KindOf extracts the error kind from any error returned by a provider call.
func KindOf(err error) (ErrorKind, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}

// statusError maps an unexpected HTTP status to a provider error.
func statusError(provider string, status int) *ProviderError {
	kind := KindNetworkError
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuthFailure
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	}
	return &ProviderError{
		Provider: provider,
		Kind:     kind,
		Err:      fmt.Errorf("unexpected status %d", status),
	}
}

// transportError maps a transport-level failure, folding context deadlines
// into the timeout kind.
func transportError(provider string, err error) *ProviderError {
	kind := KindNetworkError
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

func malformedError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindMalformedResponse, Err: err}
}
