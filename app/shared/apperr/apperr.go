// Package apperr is the error taxonomy surfaced to API callers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeInvalidState        Code = "INVALID_STATE"
	CodeCapacityExceeded    Code = "CAPACITY_EXCEEDED"
	CodePaymentVerification Code = "PAYMENT_VERIFICATION_FAILED"
	CodeGatewayUnavailable  Code = "GATEWAY_UNAVAILABLE"
	CodeEscrowInsufficient  Code = "ESCROW_INSUFFICIENT"
	CodeDisputeBlocking     Code = "DISPUTE_BLOCKING"
	CodeNotFound            Code = "NOT_FOUND"
	CodeForbidden           Code = "FORBIDDEN"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeConflict            Code = "CONFLICT"
	CodeInternal            Code = "INTERNAL"
)

// Sentinels for errors.Is checks. Matching compares codes only.
var (
	ErrValidation          = &Error{Code: CodeValidation}
	ErrInvalidState        = &Error{Code: CodeInvalidState}
	ErrCapacityExceeded    = &Error{Code: CodeCapacityExceeded}
	ErrPaymentVerification = &Error{Code: CodePaymentVerification}
	ErrGatewayUnavailable  = &Error{Code: CodeGatewayUnavailable}
	ErrEscrowInsufficient  = &Error{Code: CodeEscrowInsufficient}
	ErrDisputeBlocking     = &Error{Code: CodeDisputeBlocking}
	ErrNotFound            = &Error{Code: CodeNotFound}
	ErrForbidden           = &Error{Code: CodeForbidden}
	ErrUnauthorized        = &Error{Code: CodeUnauthorized}
	ErrConflict            = &Error{Code: CodeConflict}
)

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	} else {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s (%v)", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// HTTPStatus maps the code onto the API status.
func (e *Error) HTTPStatus() int {
	return StatusFor(e.Code)
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func Validation(format string, args ...any) *Error {
	return Newf(CodeValidation, format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return Newf(CodeInvalidState, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return Newf(CodeNotFound, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return Newf(CodeForbidden, format, args...)
}

// As extracts the first *Error in the chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf returns the code of err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}

func StatusFor(code Code) int {
	switch code {
	case CodeValidation, CodePaymentVerification:
		return http.StatusBadRequest
	case CodeInvalidState, CodeCapacityExceeded, CodeConflict:
		return http.StatusConflict
	case CodeGatewayUnavailable:
		return http.StatusServiceUnavailable
	case CodeEscrowInsufficient:
		return http.StatusUnprocessableEntity
	case CodeDisputeBlocking:
		return http.StatusLocked
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
