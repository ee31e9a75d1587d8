// Package errors provides error code definitions shared across fieldsync.
package errors

import "fmt"

// ErrorCode identifies a class of failure surfaced by the offline engine.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Local durable store errors
	ErrStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	ErrMigration          ErrorCode = "MIGRATION_FAILED"
	ErrPartitionUnknown   ErrorCode = "PARTITION_UNKNOWN"

	// Connectivity errors
	ErrProbeFailed ErrorCode = "PROBE_FAILED"

	// Synchronization errors
	ErrSubmitFailed           ErrorCode = "SUBMIT_FAILED"
	ErrAttachmentUploadFailed ErrorCode = "ATTACHMENT_UPLOAD_FAILED"
	ErrSyncInProgress         ErrorCode = "SYNC_IN_PROGRESS"

	// Remote API errors
	ErrRemoteRejected ErrorCode = "REMOTE_REJECTED"
	ErrDecodeFailed   ErrorCode = "DECODE_FAILED"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error carries a specific code.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			if appErr.Code == code {
				return true
			}
			err = appErr.Err
			continue
		}
		return false
	}
	return false
}
