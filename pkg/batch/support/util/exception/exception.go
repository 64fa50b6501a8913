// Package exception defines the framework-wide error type and helpers.
package exception

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
)

// BatchError is the error type used across the batch framework. It carries
// the originating module, a message, the wrapped cause, and a classification
// that observability layers can report on.
type BatchError struct {
	Module      string
	Message     string
	OriginalErr error
	StackTrace  string

	isRetryable bool
	isSkippable bool
}

// NewBatchError creates a BatchError wrapping originalErr.
func NewBatchError(module, message string, originalErr error, isSkippable, isRetryable bool) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		StackTrace:  string(debug.Stack()),
		isSkippable: isSkippable,
		isRetryable: isRetryable,
	}
}

// NewBatchErrorf creates a BatchError from a format string. The formatted
// message may wrap a cause with %w, which is then exposed via Unwrap.
func NewBatchErrorf(module, format string, args ...interface{}) *BatchError {
	err := fmt.Errorf(format, args...)
	return &BatchError{
		Module:      module,
		Message:     err.Error(),
		OriginalErr: errors.Unwrap(err),
		StackTrace:  string(debug.Stack()),
	}
}

func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the wrapped cause, enabling errors.Is / errors.As.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable reports whether the error was classified as retryable.
func (e *BatchError) IsRetryable() bool { return e.isRetryable }

// IsSkippable reports whether the error was classified as skippable.
func (e *BatchError) IsSkippable() bool { return e.isSkippable }

// ExtractErrorMessage returns a human-readable message for err, unwrapping
// BatchError when possible.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var be *BatchError
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}

var (
	errorTypeRegistry   = make(map[string]error)
	errorTypeRegistryMu sync.RWMutex
)

// RegisterErrorType registers a named sentinel error so that configuration
// and diagnostics can refer to error classes by name.
func RegisterErrorType(name string, err error) {
	errorTypeRegistryMu.Lock()
	defer errorTypeRegistryMu.Unlock()
	errorTypeRegistry[name] = err
}

// IsErrorTypeRegistered reports whether a sentinel error was registered
// under the given name.
func IsErrorTypeRegistered(name string) bool {
	errorTypeRegistryMu.RLock()
	defer errorTypeRegistryMu.RUnlock()
	_, ok := errorTypeRegistry[name]
	return ok
}
