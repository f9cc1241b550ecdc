package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
	"testing"
)

func TestErrorType_String(t *testing.T) {
	tests := []struct {
		et   ErrorType
		want string
	}{
		{ErrTypeNetwork, "Network Error"},
		{ErrTypeAuth, "Authentication Error"},
		{ErrTypeHTTP, "HTTP Error"},
		{ErrTypeParse, "Parse Error"},
		{ErrTypeTimeout, "Timeout"},
		{ErrTypeConnectionRefused, "Connection Refused"},
		{ErrTypeDNS, "DNS Error"},
		{ErrTypeCanceled, "Canceled"},
		{ErrorType(99), "ErrorType(99)"},
	}
	for _, tt := range tests {
		if got := tt.et.String(); got != tt.want {
			t.Errorf("ErrorType(%d).String() = %q, want %q", int(tt.et), got, tt.want)
		}
	}
}

func TestClassifyNetworkError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{"canceled", context.Canceled, ErrTypeCanceled, false},
		{"deadline", context.DeadlineExceeded, ErrTypeTimeout, true},
		{"dns", &net.DNSError{Name: "fw.invalid", Err: "no such host"}, ErrTypeDNS, false},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, ErrTypeConnectionRefused, true},
		{"generic", errors.New("reset"), ErrTypeNetwork, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyNetworkError(tt.err)
			if got.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", got.Type, tt.wantType)
			}
			if got.Retryable != tt.retryable {
				t.Errorf("Retryable = %v, want %v", got.Retryable, tt.retryable)
			}
		})
	}

	if ClassifyNetworkError(nil) != nil {
		t.Error("ClassifyNetworkError(nil) should be nil")
	}
}

func TestPredicates_WrappedErrors(t *testing.T) {
	auth := fmt.Errorf("refresh: %w", NewAuthError("expired"))
	if !IsAuthError(auth) {
		t.Error("IsAuthError should see through wrapping")
	}
	if IsNetworkError(auth) || IsHTTPError(auth) {
		t.Error("auth error misclassified")
	}

	httpErr := NewHTTPError(http.StatusNotFound, "not found", "")
	if IsRetryable(httpErr) {
		t.Error("4xx should not be retryable")
	}
	if !IsRetryable(NewHTTPError(http.StatusBadGateway, "bad gateway", "")) {
		t.Error("5xx should be retryable")
	}
	if IsAuthError(errors.New("plain")) || IsRetryable(errors.New("plain")) {
		t.Error("plain errors should match no predicate")
	}
}

func TestShortMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{NewAuthError("x"), "Session expired - please log in again"},
		{NewHTTPError(500, "x", ""), "Backend error (HTTP 500)"},
		{NewHTTPError(400, "x", "Version required"), "Version required"},
		{NewParseError("x", nil), "Failed to parse backend response"},
		{&APIError{Type: ErrTypeTimeout}, "Backend not responding (timeout)"},
		{errors.New("plain"), "plain"},
	}
	for _, tt := range tests {
		if got := ShortMessage(tt.err); got != tt.want {
			t.Errorf("ShortMessage(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestTroubleshootingHint(t *testing.T) {
	hint := TroubleshootingHint(&APIError{Type: ErrTypeConnectionRefused})
	if !strings.Contains(hint, "espfw discover") {
		t.Errorf("hint = %q", hint)
	}
	if got := TroubleshootingHint(errors.New("x")); !strings.Contains(got, "unexpected") {
		t.Errorf("hint = %q", got)
	}
}

func TestAPIError_Error(t *testing.T) {
	err := &APIError{Type: ErrTypeHTTP, Message: "status 500"}
	if err.Error() != "HTTP Error: status 500" {
		t.Errorf("Error() = %q", err.Error())
	}
	wrapped := &APIError{Type: ErrTypeNetwork, Message: "dial", Err: errors.New("refused")}
	if wrapped.Error() != "Network Error: dial (caused by: refused)" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
}
