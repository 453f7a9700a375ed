package common

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes carried on AppError.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeUnreadableDocument  = "UNREADABLE_DOCUMENT"
	CodeMalformedField      = "MALFORMED_FIELD"
	CodeUnsupportedLanguage = "UNSUPPORTED_LANGUAGE"
	CodeConfig              = "CONFIG_ERROR"
	CodeNotFound            = "NOT_FOUND"
	CodeInternal            = "INTERNAL"
)

// Common application errors
var (
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrUnreadableDocument  = errors.New("unreadable document")
	ErrMalformedField      = errors.New("malformed field")
	ErrUnsupportedLanguage = errors.New("unsupported language")
	ErrInternal            = errors.New("internal error")
	ErrDatabase            = errors.New("database error")
	ErrValidation          = errors.New("validation failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// InvalidInput builds the only error the extraction entry point returns.
// errors.Is(err, ErrInvalidInput) holds for the result.
func InvalidInput(message string) error {
	return NewAppError(CodeInvalidInput, message, ErrInvalidInput)
}

// MalformedField reports a field whose raw text could not be coerced.
func MalformedField(field, raw string) error {
	return NewAppError(CodeMalformedField, fmt.Sprintf("%s: %q", field, raw), ErrMalformedField)
}

// NotFound reports a missing stored resource.
func NotFound(what string) error {
	return NewAppError(CodeNotFound, what, ErrNotFound)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// ToStatus maps application errors onto gRPC status errors for upload handlers.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrValidation):
		return InvalidArgumentError(err.Error())
	case errors.Is(err, ErrNotFound):
		return NotFoundError(err.Error())
	default:
		return InternalError(err.Error())
	}
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func NotFoundError(message string) error {
	return status.Error(codes.NotFound, message)
}

func InternalError(message string) error {
	return status.Error(codes.Internal, message)
}

