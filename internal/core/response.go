package core

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"balanceguard/internal/types"
)

const maxRequestBodyBytes = 1 << 20

// Envelope is the uniform JSON body for every non-preflight response.
type Envelope struct {
	OK        bool         `json:"ok"`
	RequestID string       `json:"request_id"`
	Data      any          `json:"data,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
}

type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// JSON writes a success envelope with the given data payload.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeEnvelope(w, r, status, Envelope{
		OK:        true,
		RequestID: types.GetRequestID(r.Context()),
		Data:      data,
	})
}

// Error normalizes err into an error envelope. Unknown errors collapse to
// INTERNAL_ERROR with a generic message; INTERNAL_ERROR never carries details.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		appErr = types.NewAppError(types.ErrCodeInternal, "An internal error occurred.", err)
	}

	detail := &ErrorDetail{
		Code:    string(appErr.Code),
		Message: appErr.Message,
		Details: appErr.Details,
	}
	if appErr.Code == types.ErrCodeInternal {
		detail.Message = "An internal error occurred."
		detail.Details = nil
	}

	writeEnvelope(w, r, appErr.HTTPStatus(), Envelope{
		OK:        false,
		RequestID: types.GetRequestID(r.Context()),
		Error:     detail,
	})
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if env.RequestID != "" {
		w.Header().Set("X-Request-Id", env.RequestID)
	}
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Default().Error("failed to encode response envelope", "error", err, "request_id", env.RequestID)
	}
}

// DecodeJSON reads and decodes a JSON request body into dst. Unknown fields,
// trailing data, and oversized bodies all map to VALIDATION_FAILED.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}
	if dec.More() {
		return types.NewAppError(types.ErrCodeValidationFailed, "Request body must contain a single JSON object.", nil)
	}
	return nil
}

func mapDecodeError(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.Is(err, io.EOF):
		return types.NewAppError(types.ErrCodeValidationFailed, "Request body must not be empty.", nil)
	case errors.As(err, &syntaxErr):
		return types.NewAppError(types.ErrCodeValidationFailed, "Request body contains malformed JSON.", err)
	case errors.As(err, &typeErr):
		return types.NewAppErrorWithDetails(types.ErrCodeValidationFailed, "Request body contains an invalid value.", err, map[string]any{
			"field": typeErr.Field,
		})
	case errors.As(err, &maxBytesErr):
		return types.NewAppError(types.ErrCodeValidationFailed, "Request body is too large.", err)
	case strings.HasPrefix(err.Error(), "json: unknown field "):
		field := strings.TrimPrefix(err.Error(), "json: unknown field ")
		return types.NewAppErrorWithDetails(types.ErrCodeValidationFailed, "Request body contains an unknown field.", err, map[string]any{
			"field": strings.Trim(field, `"`),
		})
	default:
		return types.NewAppError(types.ErrCodeValidationFailed, "Request body could not be decoded.", err)
	}
}
