package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name: "message only",
			err: &Error{
				Code:    EINVALID,
				Message: "invalid input",
			},
			expected: "invalid input",
		},
		{
			name: "with operation",
			err: &Error{
				Code:    EINVALID,
				Op:      "whitelist.register",
				Message: "invalid input",
			},
			expected: "whitelist.register: invalid input",
		},
		{
			name: "with wrapped error",
			err: &Error{
				Code:    EINTERNAL,
				Op:      "whitelist.register",
				Message: "failed to save",
				Err:     errors.New("database connection failed"),
			},
			expected: "whitelist.register: failed to save: database connection failed",
		},
		{
			name: "wrapped error without op",
			err: &Error{
				Code:    EINTERNAL,
				Message: "failed to save",
				Err:     errors.New("database connection failed"),
			},
			expected: "failed to save: database connection failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error.Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := &Error{
		Code:    EINTERNAL,
		Message: "wrapped",
		Err:     underlying,
	}

	if unwrapped := err.Unwrap(); unwrapped != underlying {
		t.Errorf("Error.Unwrap() = %v, want %v", unwrapped, underlying)
	}

	// Test errors.Is works through unwrapping
	if !errors.Is(err, underlying) {
		t.Error("errors.Is should find underlying error")
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "domain error",
			err:      &Error{Code: EINVALID, Message: "test"},
			expected: EINVALID,
		},
		{
			name:     "wrapped domain error",
			err:      fmt.Errorf("wrapped: %w", &Error{Code: ENOTFOUND, Message: "test"}),
			expected: ENOTFOUND,
		},
		{
			name:     "non-domain error",
			err:      errors.New("some error"),
			expected: EINTERNAL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorCode(tt.err); got != tt.expected {
				t.Errorf("ErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name:     "client error exposes message",
			err:      Invalid("whitelist.register", "address is required"),
			expected: "address is required",
		},
		{
			name:     "internal error hides message",
			err:      Internal(errors.New("pq: connection refused"), "whitelist.stats", "count failed"),
			expected: "An internal error occurred. Please try again later.",
		},
		{
			name:     "non-domain error hides message",
			err:      errors.New("pq: connection refused"),
			expected: "An internal error occurred. Please try again later.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorMessage(tt.err); got != tt.expected {
				t.Errorf("ErrorMessage() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestIsCode(t *testing.T) {
	err := Conflict("whitelist.register", "address already registered")

	if !IsCode(err, ECONFLICT) {
		t.Error("IsCode(err, ECONFLICT) = false, want true")
	}
	if IsCode(err, ENOTFOUND) {
		t.Error("IsCode(err, ENOTFOUND) = true, want false")
	}
}

func TestExistingRegistration(t *testing.T) {
	existing := &Registration{
		Address:      "0xabcdef0123456789abcdef0123456789abcdef01",
		RegisteredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	err := &Error{
		Code:    ECONFLICT,
		Op:      "whitelist.register",
		Message: "address already registered",
		Err:     &AlreadyRegisteredError{Existing: existing},
	}

	if got := ExistingRegistration(err); got != existing {
		t.Errorf("ExistingRegistration() = %v, want %v", got, existing)
	}

	if got := ExistingRegistration(errors.New("other")); got != nil {
		t.Errorf("ExistingRegistration() = %v, want nil", got)
	}
}
