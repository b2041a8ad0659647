package errors

import (
	"errors"
	"fmt"
)

// Common application errors
var (
	// Validation errors
	ErrEmptyDataset      = errors.New("dataset has no rows")
	ErrColumnNotFound    = errors.New("column not found")
	ErrColumnNotNumeric  = errors.New("column is not numeric")
	ErrInvalidFormat     = errors.New("invalid file format")
	ErrFileTooLarge      = errors.New("file exceeds maximum size")
	ErrDuplicateFile     = errors.New("duplicate file")
	ErrInvalidThreshold  = errors.New("invalid threshold")
	ErrInvalidKeepPolicy = errors.New("invalid keep policy: must be first, last or none")

	// Computation errors
	ErrInvalidMethod       = errors.New("invalid outlier method: must be iqr, z_score or both")
	ErrMultivariateSkipped = errors.New("multivariate detection unavailable")

	// Storage errors
	ErrBaselineNotFound   = errors.New("baseline version not found")
	ErrReportNotFound     = errors.New("quality report not found")
	ErrStorageWriteFailed = errors.New("storage write failed")
	ErrStorageReadFailed  = errors.New("storage read failed")
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation  ErrorType = "validation"
	ErrorTypeComputation ErrorType = "computation"
	ErrorTypeStorage     ErrorType = "storage"
	ErrorTypeInternal    ErrorType = "internal"
)

// AppError represents an application-specific error with additional context
type AppError struct {
	Type       ErrorType `json:"type"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Details    string    `json:"details,omitempty"`
	Cause      error     `json:"-"`
	HTTPStatus int       `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithCause attaches the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// NewAppError creates a new application error
func NewAppError(errType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		HTTPStatus: getDefaultHTTPStatus(errType),
	}
}

// NewValidationError creates a validation error
func NewValidationError(code, message string) *AppError {
	return NewAppError(ErrorTypeValidation, code, message)
}

// NewComputationError creates a computation error
func NewComputationError(code, message string) *AppError {
	return NewAppError(ErrorTypeComputation, code, message)
}

// NewStorageError creates a storage error
func NewStorageError(code, message string) *AppError {
	return NewAppError(ErrorTypeStorage, code, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, CodeInternalError, message)
}

// WrapError wraps an existing error with application context
func WrapError(err error, errType ErrorType, code, message string) *AppError {
	e := NewAppError(errType, code, message)
	e.Cause = err
	return e
}

// getDefaultHTTPStatus returns the default HTTP status for an error type
func getDefaultHTTPStatus(errType ErrorType) int {
	switch errType {
	case ErrorTypeValidation:
		return 400
	case ErrorTypeComputation:
		return 422
	case ErrorTypeStorage:
		return 404
	default:
		return 500
	}
}

// Error codes for different error scenarios
const (
	// Validation error codes
	CodeInvalidInput     = "INVALID_INPUT"
	CodeInvalidConfig    = "INVALID_CONFIG"
	CodeEmptyDataset     = "EMPTY_DATASET"
	CodeColumnNotFound   = "COLUMN_NOT_FOUND"
	CodeColumnNotNumeric = "COLUMN_NOT_NUMERIC"
	CodeInvalidFormat    = "INVALID_FORMAT"
	CodeFileTooLarge     = "FILE_TOO_LARGE"
	CodeDuplicateFile    = "DUPLICATE_FILE"

	// Computation error codes
	CodeInvalidMethod    = "INVALID_METHOD"
	CodeInsufficientData = "INSUFFICIENT_DATA"

	// Storage error codes
	CodeFileNotFound     = "FILE_NOT_FOUND"
	CodeBaselineNotFound = "BASELINE_NOT_FOUND"
	CodeReportNotFound   = "REPORT_NOT_FOUND"
	CodeWriteFailed      = "WRITE_FAILED"
	CodeReadFailed       = "READ_FAILED"
	CodeDeleteFailed     = "DELETE_FAILED"
	CodeConnectionFailed = "CONNECTION_FAILED"

	// Internal error codes
	CodeInternalError = "INTERNAL_ERROR"
)
