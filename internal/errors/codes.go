// Package errors provides structured error handling for loam-ingest.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (scratch directory, spool, disk)
//   - 4XX: Document validation errors
//   - 5XX: Internal / writer errors
//   - 6XX: Downstream handoff errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryValidation indicates document validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
	// CategoryHandoff indicates downstream handoff errors.
	CategoryHandoff Category = "HANDOFF"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeScratchDir = "ERR_201_SCRATCH_DIR"
	ErrCodeSplitInit  = "ERR_202_SPLIT_INIT"
	ErrCodeSpoolRead  = "ERR_203_SPOOL_READ"

	// Validation errors (400-499)
	ErrCodeDocParse      = "ERR_401_DOC_PARSE"
	ErrCodeTimestampType = "ERR_402_TIMESTAMP_TYPE"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeWriterAppend = "ERR_502_WRITER_APPEND"

	// Handoff errors (600-699)
	ErrCodeSinkClosed = "ERR_601_SINK_CLOSED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '4':
		return CategoryValidation
	case '6':
		return CategoryHandoff
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeScratchDir, ErrCodeSplitInit, ErrCodeWriterAppend, ErrCodeSinkClosed:
		// Losing the scratch dir, the writer, or the sink makes the
		// current split (or the whole stage) unusable.
		return SeverityFatal
	case ErrCodeDocParse, ErrCodeTimestampType:
		// Per-document failures are skipped and counted, never fatal.
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Retry policy belongs to the supervising pipeline; a spool file that
// failed to read can be redelivered, everything else cannot.
func isRetryableCode(code string) bool {
	return code == ErrCodeSpoolRead
}
