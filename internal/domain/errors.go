package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind is a stable machine-readable error category exposed to CLI and HTTP callers.
type Kind string

// Error kinds.
const (
	KindValidation           Kind = "validation_error"
	KindIndexEmpty           Kind = "index_empty"
	KindIndexVersionMismatch Kind = "index_version_mismatch"
	KindInvalidQuery         Kind = "invalid_query"
	KindProviderUnavailable  Kind = "provider_unavailable"
	KindProviderTimeout      Kind = "provider_timeout"
	KindProviderResponse     Kind = "provider_response_error"
	KindContextTooLarge      Kind = "context_too_large"
	KindNotFound             Kind = "not_found"
	KindInternal             Kind = "internal_error"
)

var (
	// ErrValidation signals a source record that cannot become a Document.
	ErrValidation = errors.New("validation failed")
	// ErrIndexEmpty signals a search against an index with no entries.
	ErrIndexEmpty = errors.New("index is empty")
	// ErrIndexVersionMismatch signals a query embedding incompatible with the index.
	ErrIndexVersionMismatch = errors.New("index embedding version mismatch")
	// ErrInvalidQuery signals a malformed query (empty text, top_k out of bounds).
	ErrInvalidQuery = errors.New("invalid query")
	// ErrProviderUnavailable signals a network or auth failure talking to an LLM provider.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrProviderTimeout signals an LLM provider call that exceeded its deadline.
	ErrProviderTimeout = errors.New("provider timeout")
	// ErrProviderResponse signals a provider reply that does not match the expected schema.
	ErrProviderResponse = errors.New("provider response error")
	// ErrContextTooLarge signals that not even the top document fits the context budget.
	ErrContextTooLarge = errors.New("context too large")
	// ErrNotFound signals a missing input resource (CSV file, PDF directory).
	ErrNotFound = errors.New("not found")
)

var kindBySentinel = []struct {
	err  error
	kind Kind
}{
	{ErrValidation, KindValidation},
	{ErrIndexEmpty, KindIndexEmpty},
	{ErrIndexVersionMismatch, KindIndexVersionMismatch},
	{ErrInvalidQuery, KindInvalidQuery},
	{ErrProviderUnavailable, KindProviderUnavailable},
	{ErrProviderTimeout, KindProviderTimeout},
	{ErrProviderResponse, KindProviderResponse},
	{ErrContextTooLarge, KindContextTooLarge},
	{ErrNotFound, KindNotFound},
}

// Error attaches the request correlation ID and a stable kind to a core failure.
type Error struct {
	Kind          Kind
	CorrelationID string
	Err           error
}

func (e *Error) Error() string {
	if e.CorrelationID == "" {
		return fmt.Sprintf("[%s] %s", e.Kind, e.Err.Error())
	}
	return fmt.Sprintf("[%s] %s (correlation_id=%s)", e.Kind, e.Err.Error(), e.CorrelationID)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the stable kind of err, KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	for _, s := range kindBySentinel {
		if errors.Is(err, s.err) {
			return s.kind
		}
	}
	return KindInternal
}

// Wrap tags err with its kind and the correlation ID carried by ctx.
// Already wrapped errors and nil pass through unchanged.
func Wrap(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: KindOf(err), CorrelationID: CorrelationID(ctx), Err: err}
}

// IsTransient reports whether err should trigger the local-fallback policy.
func IsTransient(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) || errors.Is(err, ErrProviderTimeout)
}

// ProviderStatusError maps a non-2xx HTTP status from a model provider to a provider sentinel.
func ProviderStatusError(status int) error {
	switch {
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrProviderTimeout
	case status == http.StatusUnauthorized, status == http.StatusForbidden,
		status == http.StatusNotFound, status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		return ErrProviderUnavailable
	default:
		return ErrProviderResponse
	}
}

// ProviderTransportError classifies a failure that produced no HTTP response.
func ProviderTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return ErrProviderTimeout
	}
	return ErrProviderUnavailable
}
