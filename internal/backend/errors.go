package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
)

// ErrorType represents the category of error that occurred
type ErrorType int

const (
	// ErrTypeNetwork indicates a network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeAuth indicates a rejected or missing session token (HTTP 401)
	ErrTypeAuth
	// ErrTypeHTTP indicates any other non-2xx status
	ErrTypeHTTP
	// ErrTypeParse indicates a malformed response body
	ErrTypeParse
	// ErrTypeTimeout indicates a request timeout
	ErrTypeTimeout
	// ErrTypeConnectionRefused indicates the backend refused the connection
	ErrTypeConnectionRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeCanceled indicates the caller canceled the request
	ErrTypeCanceled
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeAuth:
		return "Authentication Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeCanceled:
		return "Canceled"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// APIError is returned by every Client method.
type APIError struct {
	Type       ErrorType
	Message    string
	StatusCode int    // HTTP status code, 0 when no response was received
	Body       string // Server-provided "message" field, if any
	Err        error
	Retryable  bool
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *APIError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError maps a transport error onto the taxonomy.
func ClassifyNetworkError(err error) *APIError {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return &APIError{Type: ErrTypeCanceled, Message: "Request canceled", Err: err}
	}

	if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Type: ErrTypeTimeout, Message: "Request timed out", Err: err, Retryable: true}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &APIError{
			Type:    ErrTypeDNS,
			Message: fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name),
			Err:     err,
		}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED) {
		return &APIError{Type: ErrTypeConnectionRefused, Message: "Backend refused connection", Err: err, Retryable: true}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != err {
		return ClassifyNetworkError(urlErr.Err)
	}

	return &APIError{Type: ErrTypeNetwork, Message: "Network error occurred", Err: err, Retryable: true}
}

// NewNetworkError creates a network-level error with automatic classification
func NewNetworkError(message string, err error) *APIError {
	classified := ClassifyNetworkError(err)
	if classified == nil {
		return &APIError{Type: ErrTypeNetwork, Message: message, Retryable: true}
	}
	classified.Message = message
	return classified
}

// NewAuthError creates an authentication error
func NewAuthError(message string) *APIError {
	return &APIError{
		Type:       ErrTypeAuth,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewHTTPError creates an HTTP-level error. body is the server's message, if any.
func NewHTTPError(statusCode int, message, body string) *APIError {
	return &APIError{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
		Body:       body,
		Retryable:  statusCode >= 500,
	}
}

// NewParseError creates a parsing error
func NewParseError(message string, err error) *APIError {
	return &APIError{Type: ErrTypeParse, Message: message, Err: err}
}

func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// IsNetworkError reports transport failures, including timeouts, refused
// connections and DNS errors.
func IsNetworkError(err error) bool {
	if apiErr, ok := asAPIError(err); ok {
		switch apiErr.Type {
		case ErrTypeNetwork, ErrTypeTimeout, ErrTypeConnectionRefused, ErrTypeDNS:
			return true
		}
	}
	return false
}

// IsAuthError checks if an error is an authentication error
func IsAuthError(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Type == ErrTypeAuth
}

// IsHTTPError checks if an error is an HTTP error
func IsHTTPError(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Type == ErrTypeHTTP
}

// IsParseError checks if an error is a parse error
func IsParseError(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Type == ErrTypeParse
}

// IsRetryable checks if an error should be retried
func IsRetryable(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Retryable
}

// ServerMessage returns the backend's own error message, or "".
func ServerMessage(err error) string {
	if apiErr, ok := asAPIError(err); ok {
		return apiErr.Body
	}
	return ""
}

// ShortMessage returns a concise, user-friendly error message
func ShortMessage(err error) string {
	apiErr, ok := asAPIError(err)
	if !ok {
		return err.Error()
	}

	switch apiErr.Type {
	case ErrTypeTimeout:
		return "Backend not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Backend refused connection - is it running?"
	case ErrTypeDNS:
		return "Cannot resolve backend hostname"
	case ErrTypeAuth:
		return "Session expired - please log in again"
	case ErrTypeNetwork:
		return "Network error - check connection"
	case ErrTypeHTTP:
		if apiErr.Body != "" {
			return apiErr.Body
		}
		return fmt.Sprintf("Backend error (HTTP %d)", apiErr.StatusCode)
	case ErrTypeParse:
		return "Failed to parse backend response"
	case ErrTypeCanceled:
		return "Canceled"
	default:
		return apiErr.Message
	}
}

// TroubleshootingHint returns multi-line advice for an error
func TroubleshootingHint(err error) string {
	apiErr, ok := asAPIError(err)
	if !ok {
		return "An unexpected error occurred. Please try again."
	}

	switch apiErr.Type {
	case ErrTypeTimeout:
		return strings.Join([]string{
			"The backend did not respond in time.",
			"Troubleshooting:",
			"  • Check that the backend is running",
			"  • Raise timeout_seconds in the config file",
		}, "\n")

	case ErrTypeConnectionRefused:
		return strings.Join([]string{
			"The backend refused the connection.",
			"Troubleshooting:",
			"  • Start the backend (espfw-server) or check its port",
			"  • Verify backend_url with: espfw config show",
			"  • Try: espfw discover --save",
		}, "\n")

	case ErrTypeDNS:
		return strings.Join([]string{
			"Could not resolve the backend hostname.",
			"Troubleshooting:",
			"  • Check backend_url for typos",
			"  • Use an IP address instead of a hostname",
		}, "\n")

	case ErrTypeAuth:
		return strings.Join([]string{
			"Your session token was rejected or is missing.",
			"Troubleshooting:",
			"  • Log in again with: espfw login",
		}, "\n")

	case ErrTypeNetwork:
		return strings.Join([]string{
			"Network communication failed.",
			"Troubleshooting:",
			"  • Check your network connection",
			"  • Verify backend_url with: espfw config show",
		}, "\n")

	case ErrTypeHTTP:
		if apiErr.StatusCode >= 500 {
			return fmt.Sprintf("The backend failed with HTTP %d. Check the server logs.", apiErr.StatusCode)
		}
		return fmt.Sprintf("The backend rejected the request with HTTP %d. Check the request parameters.", apiErr.StatusCode)

	case ErrTypeParse:
		return "The backend returned a response espfw could not read. Check that backend_url points at the firmware API."

	default:
		return "An error occurred. Please check the error message for details."
	}
}
