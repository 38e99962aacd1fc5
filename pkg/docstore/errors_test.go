package docstore

import (
	"errors"
	"fmt"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{
			name:       "client error should not retry",
			errorClass: ErrorClassClient,
			expected:   false,
		},
		{
			name:       "server error should retry",
			errorClass: ErrorClassServer,
			expected:   true,
		},
		{
			name:       "rate limit should retry",
			errorClass: ErrorClassRateLimit,
			expected:   true,
		},
		{
			name:       "network error should retry",
			errorClass: ErrorClassNetwork,
			expected:   true,
		},
		{
			name:       "empty error class should not retry",
			errorClass: "",
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := shouldRetry(tt.errorClass)
			if result != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, result, tt.expected)
			}
		})
	}
}

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name: "error with wrapped error",
			err: &Error{
				StatusCode: 404,
				ErrorClass: ErrorClassClient,
				Message:    "404 Not Found",
				Err:        ErrNotFound,
			},
			expected: "docstore client error (status 404): 404 Not Found: document not found",
		},
		{
			name: "error without wrapped error",
			err: &Error{
				StatusCode: 503,
				ErrorClass: ErrorClassServer,
				Message:    "503 Service Unavailable",
			},
			expected: "docstore server error (status 503): 503 Service Unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	err := fmt.Errorf("get products/1: %w", &Error{StatusCode: 404, ErrorClass: ErrorClassClient, Err: ErrNotFound})

	if !errors.Is(err, ErrNotFound) {
		t.Error("errors.Is(err, ErrNotFound) = false, want true")
	}

	var docErr *Error
	if !errors.As(err, &docErr) {
		t.Fatal("errors.As(err, *Error) = false, want true")
	}
	if docErr.StatusCode != 404 {
		t.Errorf("StatusCode = %d, want 404", docErr.StatusCode)
	}

	if (&Error{}).Unwrap() != nil {
		t.Error("Unwrap() of error without cause should be nil")
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{name: "typed", err: &Error{ErrorClass: ErrorClassRateLimit}, want: ErrorClassRateLimit},
		{name: "wrapped typed", err: fmt.Errorf("x: %w", &Error{ErrorClass: ErrorClassServer}), want: ErrorClassServer},
		{name: "plain", err: errors.New("dial tcp: refused"), want: ErrorClassNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classOf(tt.err); got != tt.want {
				t.Errorf("classOf() = %v, want %v", got, tt.want)
			}
		})
	}
}
