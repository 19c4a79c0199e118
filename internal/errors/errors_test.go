package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestPipelineError_Error(t *testing.T) {
	err := New(ErrCategoryStorage, CodeFetchFailed, "fetch failed")
	expected := "[STORAGE:FETCH_FAILED] fetch failed"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestPipelineError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryQueue, CodeEnqueueFailed, "enqueue failed", cause)
	expected := "[QUEUE:ENQUEUE_FAILED] enqueue failed: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestPipelineError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryStore, CodeWriteFailed, "write failed", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestPipelineError_Is(t *testing.T) {
	err1 := New(ErrCategoryValidation, CodeInvalidPrice, "first")
	err2 := New(ErrCategoryValidation, CodeInvalidPrice, "second")
	err3 := New(ErrCategoryValidation, CodeInvalidCount, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryQueue, CodeEnqueueFailed, true},
		{ErrCategoryQueue, CodeReceiveFailed, true},
		{ErrCategoryQueue, CodeAckFailed, true},
		{ErrCategoryStore, CodeWriteFailed, true},
		{ErrCategoryStore, CodeNotFound, false},
		{ErrCategoryStorage, CodeFetchFailed, true},
		{ErrCategoryStorage, CodeArchiveFailed, true},
		{ErrCategoryStorage, CodeObjectNotFound, false},
		{ErrCategoryDecode, CodeInvalidUTF8, false},
		{ErrCategoryValidation, CodeInvalidPrice, false},
		{ErrCategoryPublish, CodePublishFailed, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestIsRetryable_NonPipelineError(t *testing.T) {
	if IsRetryable(fmt.Errorf("plain error")) {
		t.Error("plain errors should not be retryable")
	}
	if IsRetryable(nil) {
		t.Error("nil should not be retryable")
	}
}

func TestGetCategoryAndCode(t *testing.T) {
	err := NewValidationError(CodeMissingField, "title is required")
	wrapped := fmt.Errorf("processing record: %w", err)

	if got := GetCategory(wrapped); got != ErrCategoryValidation {
		t.Errorf("GetCategory = %q, want %q", got, ErrCategoryValidation)
	}
	if got := GetCode(wrapped); got != CodeMissingField {
		t.Errorf("GetCode = %q, want %q", got, CodeMissingField)
	}
	if got := GetCategory(fmt.Errorf("plain")); got != "" {
		t.Errorf("GetCategory on plain error = %q, want empty", got)
	}
}

func TestWithDetails(t *testing.T) {
	base := NewValidationError(CodeInvalidPrice, "price must be positive")
	detailed := base.WithDetails(map[string]interface{}{"price": "-3"})

	if base.Details != nil {
		t.Error("WithDetails must not mutate the original error")
	}
	if detailed.Details["price"] != "-3" {
		t.Error("details not attached to the copy")
	}
}
