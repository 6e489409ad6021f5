// Package errors carries coded errors across the analysis pipeline.
//
// Every failure that crosses a layer boundary (ingest, analysis,
// storage, persistence) is wrapped into an AppError so the CLI and the
// service layer can react to the code without parsing messages.
package errors

import (
	"errors"
	"fmt"
)

// Codes attached to AppError. GetErrorCode maps any error back to one
// of these, falling back to CodeUnknown for plain errors.
const (
	CodeUnknown       = "UNKNOWN_ERROR"
	CodeConfigError   = "CONFIG_ERROR"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeEmptyFile     = "EMPTY_FILE"
	CodeParseError    = "PARSE_ERROR"
	CodeAnalysisError = "ANALYSIS_ERROR"
	CodeDownloadError = "DOWNLOAD_ERROR"
	CodeUploadError   = "UPLOAD_ERROR"
	CodeDatabaseError = "DATABASE_ERROR"
	CodeNotFound      = "NOT_FOUND"
)

// AppError is a coded error, optionally wrapping the cause.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by code, so errors.Is works across wrapping.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New returns a coded error without a cause.
func New(code string, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// GetErrorCode returns the code of the innermost AppError in err's
// chain, or CodeUnknown when there is none.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}
