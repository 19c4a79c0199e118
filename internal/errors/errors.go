// Package errors provides structured error types for the Stockyard pipeline.
// All errors include a category, code, message, and retryable flag so every
// stage can decide between redelivery and dead-lettering the same way.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by pipeline stage concern.
type ErrorCategory string

const (
	ErrCategoryDecode     ErrorCategory = "DECODE"
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryStore      ErrorCategory = "STORE"
	ErrCategoryPublish    ErrorCategory = "PUBLISH"
	ErrCategoryQueue      ErrorCategory = "QUEUE"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Decode codes
	CodeInvalidUTF8    = "INVALID_UTF8"
	CodeMalformedRow   = "MALFORMED_ROW"
	CodeInvalidPayload = "INVALID_PAYLOAD"

	// Validation codes
	CodeMissingField = "MISSING_FIELD"
	CodeInvalidPrice = "INVALID_PRICE"
	CodeInvalidCount = "INVALID_COUNT"

	// Store codes
	CodeWriteFailed = "WRITE_FAILED"
	CodeNotFound    = "NOT_FOUND"
	CodeStoreClosed = "STORE_CLOSED"

	// Publish codes
	CodePublishFailed = "PUBLISH_FAILED"

	// Queue codes
	CodeEnqueueFailed = "ENQUEUE_FAILED"
	CodeReceiveFailed = "RECEIVE_FAILED"
	CodeAckFailed     = "ACK_FAILED"

	// Storage codes
	CodeObjectNotFound = "OBJECT_NOT_FOUND"
	CodeFetchFailed    = "FETCH_FAILED"
	CodeArchiveFailed  = "ARCHIVE_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// PipelineError is the structured error type used throughout the system.
type PipelineError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new PipelineError.
func New(category ErrorCategory, code, message string) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new PipelineError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *PipelineError {
	return &PipelineError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *PipelineError) WithDetails(details map[string]interface{}) *PipelineError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
// Retryable failures surface to the queue as redelivery; everything else
// belongs on the dead-letter path.
func IsRetryable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCategory(err error) ErrorCategory {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a PipelineError.
func GetCode(err error) string {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Transport and store
// failures are transient; decode and validation failures never are.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryQueue:
		return true
	case category == ErrCategoryStore && code == CodeWriteFailed:
		return true
	case category == ErrCategoryStorage && code == CodeFetchFailed:
		return true
	case category == ErrCategoryStorage && code == CodeArchiveFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewDecodeError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryDecode, code, message, cause)
}

func NewValidationError(code, message string) *PipelineError {
	return New(ErrCategoryValidation, code, message)
}

func NewStoreError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryStore, code, message, cause)
}

func NewPublishError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryPublish, CodePublishFailed, message, cause)
}

func NewQueueError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryQueue, code, message, cause)
}

func NewStorageError(code, message string, cause error) *PipelineError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewInternalError(message string, cause error) *PipelineError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
