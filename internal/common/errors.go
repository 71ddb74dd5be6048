package common

import (
	"errors"
	"net/http"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// Coded is implemented by domain errors that know how they surface over HTTP.
type Coded interface {
	error
	ErrorCode() string
	HTTPStatus() int
}

// CodedError is a comparable sentinel carrying an API code and status.
type CodedError struct {
	Code    string
	Status  int
	Message string
}

// Error implements the error interface.
func (e *CodedError) Error() string { return e.Message }

// ErrorCode returns the machine readable code.
func (e *CodedError) ErrorCode() string { return e.Code }

// HTTPStatus returns the status code used when rendering the error.
func (e *CodedError) HTTPStatus() int { return e.Status }

// NewCodedError constructs a CodedError sentinel.
func NewCodedError(code string, status int, message string) *CodedError {
	return &CodedError{Code: code, Status: status, Message: message}
}

// WriteError renders err using the canonical error shape.
func WriteError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		JSONError(w, status, appErr.Code, appErr.Error(), appErr.Details)
		return
	}
	var coded Coded
	if errors.As(err, &coded) {
		JSONError(w, coded.HTTPStatus(), coded.ErrorCode(), err.Error(), nil)
		return
	}
	JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
