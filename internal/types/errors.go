package types

import (
	"fmt"
	"net/http"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Complete error code constants. All guards and handlers MUST use these
// constants instead of hardcoded strings; the code values are part of the
// public response contract.
const (
	// Gateway / guard rejections
	ErrCodeOriginRejected ErrorCode = "ORIGIN_REJECTED"
	ErrCodeCSRFRequired   ErrorCode = "CSRF_REQUIRED"
	ErrCodeCSRFInvalid    ErrorCode = "CSRF_INVALID"
	ErrCodeRateLimited    ErrorCode = "RATE_LIMITED"
	ErrCodeAuthRequired   ErrorCode = "AUTH_REQUIRED"
	ErrCodeWrongSurface   ErrorCode = "WRONG_SURFACE"

	// Request validation
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Routing fallbacks
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"

	// Webhook signature verification (all 400; returned to the provider,
	// never to a browser)
	ErrCodeWebhookSignatureMissing   ErrorCode = "WEBHOOK_SIGNATURE_MISSING"
	ErrCodeWebhookSignatureMalformed ErrorCode = "WEBHOOK_SIGNATURE_MALFORMED"
	ErrCodeWebhookTimestampTolerance ErrorCode = "WEBHOOK_TIMESTAMP_OUT_OF_TOLERANCE"
	ErrCodeWebhookSignatureMismatch  ErrorCode = "WEBHOOK_SIGNATURE_MISMATCH"

	// Catch-all. Responses with this code never carry details.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrCodeOriginRejected, ErrCodeCSRFRequired, ErrCodeCSRFInvalid, ErrCodeWrongSurface:
		return http.StatusForbidden // 403
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case ErrCodeAuthRequired:
		return http.StatusUnauthorized // 401
	case ErrCodeNotFound:
		return http.StatusNotFound // 404
	case ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed // 405
	case ErrCodeValidationFailed,
		ErrCodeWebhookSignatureMissing,
		ErrCodeWebhookSignatureMalformed,
		ErrCodeWebhookTimestampTolerance,
		ErrCodeWebhookSignatureMismatch:
		return http.StatusBadRequest // 400
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the
// platform. All domain and guard errors are expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
// The gateway boundary is the only place an AppError is translated into an
// HTTP response.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error. This is the standard constructor for domain
// errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
