package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go/v3"
)

// ErrorType classifies provider errors for retry/handling strategy.
type ErrorType int

const (
	ErrRateLimit         ErrorType = iota // HTTP 429
	ErrOverloaded                         // HTTP 5xx / 529
	ErrAuth                               // HTTP 401, 403
	ErrNotFound                           // HTTP 404 (model or endpoint)
	ErrContextTooLong                     // HTTP 400 + context_length_exceeded
	ErrMalformedResponse                  // unparseable or shape-invalid response
	ErrNetwork                            // connection failure, DNS, timeout
	ErrUnknown                            // anything else
)

// String returns the human-readable name of the error type.
func (e ErrorType) String() string {
	switch e {
	case ErrRateLimit:
		return "rate_limit"
	case ErrOverloaded:
		return "provider_overloaded"
	case ErrAuth:
		return "auth_error"
	case ErrNotFound:
		return "not_found"
	case ErrContextTooLong:
		return "context_length_exceeded"
	case ErrMalformedResponse:
		return "malformed_response"
	case ErrNetwork:
		return "network_error"
	default:
		return "unknown"
	}
}

// ClassifiedError wraps a provider error with its classification.
type ClassifiedError struct {
	Type       ErrorType
	Provider   string
	StatusCode int
	Message    string
	RetryAfter time.Duration // only set for rate limit errors
}

func (e *ClassifiedError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s %s (HTTP %d): %s (retry after %s)", e.Provider, e.Type, e.StatusCode, e.Message, e.RetryAfter)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s (HTTP %d): %s", e.Provider, e.Type, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Type, e.Message)
}

// Retryable reports whether the error is transient: network failures, rate
// limits, and provider-side 5xx. Auth, not-found, context-length, and
// malformed responses are terminal and surface immediately.
func (e *ClassifiedError) Retryable() bool {
	switch e.Type {
	case ErrRateLimit, ErrOverloaded, ErrNetwork:
		return true
	default:
		return false
	}
}

// Guidance returns a hint for surfacing terminal errors to the user.
func (e *ClassifiedError) Guidance(keyEnv string) string {
	switch e.Type {
	case ErrAuth:
		if keyEnv != "" {
			return fmt.Sprintf("check that %s is set to a valid API key", keyEnv)
		}
		return "check the provider's API key in the configuration"
	case ErrNotFound:
		return "check the provider's base_url and model in the configuration"
	default:
		return ""
	}
}

// classify maps an SDK or transport error to a ClassifiedError. Context
// cancellation passes through unwrapped so callers see ctx.Err().
func classify(providerID string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return classifyStatus(providerID, oaErr.StatusCode, oaErr.Error(), retryAfterHeader(oaErr.Response))
	}
	var anErr *anthropic.Error
	if errors.As(err, &anErr) {
		return classifyStatus(providerID, anErr.StatusCode, anErr.Error(), retryAfterHeader(anErr.Response))
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return &ClassifiedError{Type: ErrNetwork, Provider: providerID, Message: err.Error()}
	}

	// Whatever remains came from decoding the response body: the transport
	// succeeded but the payload did not match the expected shape.
	return &ClassifiedError{Type: ErrMalformedResponse, Provider: providerID, Message: err.Error()}
}

// classifyStatus maps an HTTP status plus error body text to an error type.
func classifyStatus(providerID string, status int, msg string, retryAfter time.Duration) *ClassifiedError {
	ce := &ClassifiedError{Provider: providerID, StatusCode: status, Message: msg}

	switch {
	case status == http.StatusTooManyRequests:
		ce.Type = ErrRateLimit
		ce.RetryAfter = retryAfter
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		ce.Type = ErrAuth
	case status == http.StatusNotFound:
		ce.Type = ErrNotFound
	case status >= 500:
		ce.Type = ErrOverloaded
	case status == http.StatusBadRequest && isContextTooLong(msg):
		ce.Type = ErrContextTooLong
	default:
		ce.Type = ErrUnknown
	}
	return ce
}

func isContextTooLong(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "context_length_exceeded") ||
		strings.Contains(lower, "maximum context length") ||
		strings.Contains(lower, "prompt is too long") ||
		strings.Contains(lower, "too many tokens")
}

// retryAfterHeader parses the Retry-After header of a failed response, if
// the SDK kept the response around.
func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil {
		return 0
	}
	return time.Duration(secs) * time.Second
}
