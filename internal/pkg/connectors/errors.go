package connectors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error kinds a connector can surface. The sync engine treats all of them as
// publication-level failures except invalid-credential during an OAuth call,
// which triggers the single-refresh retry.
const (
	KindInvalidCredential = "invalid_credential"
	KindNotFound          = "not_found"
	KindRateLimited       = "rate_limited"
	KindServerError       = "server_error"
	KindNetwork           = "network_error"
)

// ProviderError wraps a remote failure with its classification and the HTTP
// status the provider answered with (0 for network-level failures).
type ProviderError struct {
	Provider   string
	Kind       string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status=%d): %s", e.Provider, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError builds a ProviderError from an HTTP response status.
func NewProviderError(provider string, statusCode int, message string) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Kind:       classifyStatus(statusCode),
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewNetworkError wraps a transport-level failure.
func NewNetworkError(provider string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Kind:     KindNetwork,
		Message:  err.Error(),
		Err:      err,
	}
}

func classifyStatus(statusCode int) string {
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return KindInvalidCredential
	case statusCode == http.StatusNotFound:
		return KindNotFound
	case statusCode == http.StatusTooManyRequests:
		return KindRateLimited
	case statusCode >= 500:
		return KindServerError
	default:
		return KindServerError
	}
}

// IsAuthError reports whether err is a credential-class provider failure.
func IsAuthError(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind == KindInvalidCredential
	}
	return false
}

// IsNotFound reports whether err is a remote not-found failure.
func IsNotFound(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind == KindNotFound
	}
	return false
}
