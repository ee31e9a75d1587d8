// Package errors tests for error code definitions and error handling.
package errors

import (
	"errors"
	"strings"
	"testing"
)

// TestAppError_Error verifies error message formatting.
func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name:     "error without underlying error",
			appError: &AppError{Code: ErrInternal, Message: "something failed"},
			want:     "[INTERNAL_ERROR] something failed",
		},
		{
			name:     "error with underlying error",
			appError: &AppError{Code: ErrStorageUnavailable, Message: "open failed", Err: errors.New("disk full")},
			want:     "[STORAGE_UNAVAILABLE] open failed: disk full",
		},
		{
			name:     "not found error",
			appError: &AppError{Code: ErrNotFound, Message: "order not found"},
			want:     "[NOT_FOUND] order not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appError.Error()
			if got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestAppError_Unwrap verifies unwrapping of underlying error.
func TestAppError_Unwrap(t *testing.T) {
	underlyingErr := errors.New("underlying error")

	withErr := &AppError{Code: ErrInternal, Message: "failed", Err: underlyingErr}
	if withErr.Unwrap() != underlyingErr {
		t.Errorf("Unwrap() = %v, want %v", withErr.Unwrap(), underlyingErr)
	}

	withoutErr := &AppError{Code: ErrInternal, Message: "failed"}
	if withoutErr.Unwrap() != nil {
		t.Errorf("Unwrap() = %v, want nil", withoutErr.Unwrap())
	}
}

// TestNew verifies AppError creation.
func TestNew(t *testing.T) {
	err := New(ErrInternal, "test error")
	if err == nil {
		t.Fatal("New() returned nil")
	}
	if err.Code != ErrInternal {
		t.Errorf("New() code = %q, want %q", err.Code, ErrInternal)
	}
	if err.Message != "test error" {
		t.Errorf("New() message = %q, want 'test error'", err.Message)
	}
	if err.Err != nil {
		t.Error("New() should not wrap an error")
	}
}

// TestWrap verifies error wrapping.
func TestWrap(t *testing.T) {
	underlyingErr := errors.New("underlying")

	err := Wrap(ErrStorageUnavailable, "open failed", underlyingErr)
	if err == nil {
		t.Fatal("Wrap() returned nil")
	}
	if err.Code != ErrStorageUnavailable {
		t.Errorf("Wrap() code = %q, want %q", err.Code, ErrStorageUnavailable)
	}
	if err.Err != underlyingErr {
		t.Errorf("Wrap() underlying error = %v, want %v", err.Err, underlyingErr)
	}
	if !errors.Is(err, underlyingErr) {
		t.Error("errors.Is should see through the wrapper")
	}
}

// TestIs verifies error code checking.
func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code ErrorCode
		want bool
	}{
		{
			name: "matching AppError",
			err:  New(ErrNotFound, "not found"),
			code: ErrNotFound,
			want: true,
		},
		{
			name: "non-matching AppError",
			err:  New(ErrNotFound, "not found"),
			code: ErrInternal,
			want: false,
		},
		{
			name: "nested AppError",
			err:  Wrap(ErrSubmitFailed, "submit", New(ErrRemoteRejected, "409")),
			code: ErrRemoteRejected,
			want: true,
		},
		{
			name: "non-AppError",
			err:  errors.New("standard error"),
			code: ErrInternal,
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			code: ErrInternal,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Is(tt.err, tt.code)
			if got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestErrorCodes_areUnique verifies all error codes are unique.
func TestErrorCodes_areUnique(t *testing.T) {
	codes := []ErrorCode{
		ErrInternal, ErrInvalid, ErrNotFound, ErrValidation,
		ErrStorageUnavailable, ErrMigration, ErrPartitionUnknown,
		ErrProbeFailed, ErrSubmitFailed, ErrAttachmentUploadFailed,
		ErrSyncInProgress, ErrRemoteRejected, ErrDecodeFailed,
	}

	seen := make(map[ErrorCode]bool)
	for _, code := range codes {
		if code == "" {
			t.Error("ErrorCode should not be empty")
		}
		if seen[code] {
			t.Errorf("ErrorCode %q is duplicated", code)
		}
		seen[code] = true

		if str := string(code); str != strings.ToUpper(str) {
			t.Errorf("ErrorCode %q should be uppercase", str)
		}
	}
}

// TestCommonErrorCodes verifies commonly used error codes.
func TestCommonErrorCodes(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected string
	}{
		{ErrInternal, "INTERNAL_ERROR"},
		{ErrInvalid, "INVALID_INPUT"},
		{ErrNotFound, "NOT_FOUND"},
		{ErrStorageUnavailable, "STORAGE_UNAVAILABLE"},
		{ErrRemoteRejected, "REMOTE_REJECTED"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if string(tt.code) != tt.expected {
				t.Errorf("ErrorCode = %q, want %q", string(tt.code), tt.expected)
			}
		})
	}
}
