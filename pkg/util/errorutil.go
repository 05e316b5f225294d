package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Error codes shared by the client and the HTTP surface.
const (
	CodeValidation    = "VALIDATION_FAILED"
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeInternal      = "INTERNAL_ERROR"
	CodeTransport     = "TRANSPORT_FAILED"
	CodeRemoteStatus  = "REMOTE_STATUS"
	CodeDecode        = "DECODE_FAILED"
	CodeCancelled     = "CANCELLED"
	CodeUnavailable   = "DEPENDENCY_UNAVAILABLE"
	detailRemoteState = "remote_status"
)

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewTransportError reports a remote request that never completed.
func NewTransportError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &DomainError{
			Code:       CodeCancelled,
			Message:    op + " cancelled",
			HTTPStatus: http.StatusGatewayTimeout,
			Err:        err,
		}
	}
	return &DomainError{
		Code:       CodeTransport,
		Message:    op + " failed",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewRemoteStatusError reports a non-success status from the ticket service.
// 404 and 4xx validation answers keep their meaning for callers of the desk.
func NewRemoteStatusError(op string, status int, statusText, detail string) error {
	details := map[string]any{detailRemoteState: status}
	if detail != "" {
		details["detail"] = detail
	}
	httpStatus := http.StatusBadGateway
	switch {
	case status == http.StatusNotFound:
		httpStatus = http.StatusNotFound
	case status == http.StatusConflict || status == http.StatusForbidden:
		httpStatus = status
	case status >= 400 && status < 500:
		httpStatus = http.StatusBadRequest
	}
	return &DomainError{
		Code:       CodeRemoteStatus,
		Message:    fmt.Sprintf("%s: %s", op, statusText),
		HTTPStatus: httpStatus,
		Details:    details,
	}
}

// NewDecodeError reports a payload that could not be parsed.
func NewDecodeError(what string, err error) error {
	return &DomainError{
		Code:       CodeDecode,
		Message:    "malformed " + what,
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// RemoteStatus returns the remote HTTP status carried by err, if any.
func RemoteStatus(err error) (int, bool) {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != CodeRemoteStatus {
		return 0, false
	}
	status, ok := domainErr.Details[detailRemoteState].(int)
	return status, ok
}

// IsCode reports whether err carries a DomainError with the given code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &DomainError{
			Code:       CodeCancelled,
			Message:    "request cancelled",
			HTTPStatus: http.StatusGatewayTimeout,
			Err:        err,
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
