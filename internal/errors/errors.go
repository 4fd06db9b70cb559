package errors

import (
	"fmt"
)

// IngestError is the structured error type for loam-ingest.
// It carries the classification the supervisor needs to decide between
// restarting the stage and shutting the pipeline down.
type IngestError struct {
	// Code is the unique error code (e.g., "ERR_202_SPLIT_INIT").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Validation, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried by the supervisor.
	Retryable bool
}

// Error implements the error interface.
func (e *IngestError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *IngestError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with IngestError.
func (e *IngestError) Is(target error) bool {
	if t, ok := target.(*IngestError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *IngestError) WithDetail(key, value string) *IngestError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new IngestError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *IngestError {
	return &IngestError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an IngestError from an existing error.
// The error's message becomes the IngestError message.
func Wrap(code string, err error) *IngestError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ScratchError creates a scratch-directory allocation error.
func ScratchError(message string, cause error) *IngestError {
	return New(ErrCodeScratchDir, message, cause)
}

// SplitInitError creates a split/writer initialization error.
func SplitInitError(message string, cause error) *IngestError {
	return New(ErrCodeSplitInit, message, cause)
}

// ParseError creates a per-document parse error.
func ParseError(message string, cause error) *IngestError {
	return New(ErrCodeDocParse, message, cause)
}

// AppendError creates a writer append error.
func AppendError(message string, cause error) *IngestError {
	return New(ErrCodeWriterAppend, message, cause)
}

// SinkClosedError creates a downstream handoff error.
func SinkClosedError(message string, cause error) *IngestError {
	return New(ErrCodeSinkClosed, message, cause)
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ie, ok := err.(*IngestError); ok {
		return ie.Severity == SeverityFatal
	}
	return false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ie, ok := err.(*IngestError); ok {
		return ie.Retryable
	}
	return false
}

// GetCode extracts the error code from an IngestError.
// Returns empty string if not an IngestError.
func GetCode(err error) string {
	if ie, ok := err.(*IngestError); ok {
		return ie.Code
	}
	return ""
}

// GetCategory extracts the category from an IngestError.
// Returns empty string if not an IngestError.
func GetCategory(err error) Category {
	if ie, ok := err.(*IngestError); ok {
		return ie.Category
	}
	return ""
}
