package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context. The code of a wrapped
// AppError is carried forward.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    code,
			Message: appErr.Message,
			Cause:   appErr.Cause,
		}
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError checks if an error is, or wraps, an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the code of the outermost AppError in the chain, or "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// HasCode reports whether any AppError in the chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Predefined error codes
const (
	CodeConfigInvalid           = "CONFIG_INVALID"
	CodeDatabaseError           = "DATABASE_ERROR"
	CodeNotFound                = "NOT_FOUND"
	CodeInternalError           = "INTERNAL_ERROR"
	CodeInvalidInput            = "INVALID_INPUT"
	CodePlanningError           = "PLANNING_ERROR"
	CodeCollaboratorUnavailable = "COLLABORATOR_UNAVAILABLE"
	CodeFilterExtraction        = "FILTER_EXTRACTION_FAILED"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

// PlanningError reports that the question could not be decomposed into a
// structurally valid plan. Fatal for the run.
func PlanningError(message string, cause error) *AppError {
	return &AppError{
		Code:    CodePlanningError,
		Message: message,
		Cause:   cause,
	}
}

// CollaboratorUnavailable reports a failed call to an external collaborator
// (text generation, retrieval, web search, market data).
func CollaboratorUnavailable(collaborator string, cause error) *AppError {
	return &AppError{
		Code:    CodeCollaboratorUnavailable,
		Message: fmt.Sprintf("%s unavailable", collaborator),
		Cause:   cause,
	}
}

// FilterExtractionFailure is recorded on a fallback filter result. It never
// leaves the document stage.
func FilterExtractionFailure(cause error) *AppError {
	return &AppError{
		Code:    CodeFilterExtraction,
		Message: "filter extraction failed",
		Cause:   cause,
	}
}
