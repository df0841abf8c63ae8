package errors

import (
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

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: message,
		Cause:   err,
	}
}

// WithCode wraps an error under an explicit code, overriding whatever
// code the cause carried.
func WithCode(code string, err error, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
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

// Common error codes for the analysis pipeline.
const (
	CodeConfig    = "CONFIG_ERROR"
	CodeIngestion = "INGESTION_ERROR"
	CodeSelection = "SELECTION_ERROR"
	CodeAnalysis  = "ANALYSIS_ERROR"
	CodePersist   = "PERSISTENCE_ERROR"
)
