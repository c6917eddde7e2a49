package common

import "errors"

// Canonical error codes returned by the payment core.
const (
	CodeConfigError       = "GATEWAY_NOT_CONFIGURED"
	CodeAlreadyPaid       = "ALREADY_PAID"
	CodeNoAttempt         = "NO_ATTEMPT_FOUND"
	CodeReferenceMismatch = "REFERENCE_MISMATCH"
	CodeAmountMismatch    = "AMOUNT_MISMATCH"
	CodeGatewayTransport  = "GATEWAY_TRANSPORT_ERROR"
	CodeGatewayRejected   = "GATEWAY_REJECTED"
	CodeNotFound          = "NOT_FOUND"
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

// ErrorCode extracts the application error code, or empty string for plain errors.
func ErrorCode(err error) string {
	var target *AppError
	if errors.As(err, &target) {
		return target.Code
	}
	return ""
}
