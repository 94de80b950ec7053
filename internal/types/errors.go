package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Handlers and services MUST use these instead of
// hardcoded strings; the values are part of the public API contract.
const (
	// Validation (400)
	ErrCodeValidationMissingField  ErrorCode = "validation_missing_required_field"
	ErrCodeValidationInvalidField  ErrorCode = "validation_invalid_field"
	ErrCodeValidationHorizon       ErrorCode = "validation_horizon_out_of_range"
	ErrCodeValidationStepSize      ErrorCode = "validation_step_out_of_range"
	ErrCodeValidationInvalidJSON   ErrorCode = "validation_invalid_json"
	ErrCodeValidationQueueDisabled ErrorCode = "validation_async_unavailable"

	// Not Found (404)
	ErrCodeNotFoundSensor     ErrorCode = "not_found_sensor"
	ErrCodeNotFoundModel      ErrorCode = "not_found_model"
	ErrCodeNotFoundRiverBasin ErrorCode = "not_found_river_basin"

	// Forecast pipeline (422)
	ErrCodeInsufficientData         ErrorCode = "insufficient_data"
	ErrCodeUnknownModelRequirements ErrorCode = "unknown_model_requirements"
	ErrCodeNoModelAssigned          ErrorCode = "no_model_assigned"

	// Artifacts (500/502)
	ErrCodeScalerShapeMismatch ErrorCode = "scaler_shape_mismatch"
	ErrCodeModelLoadFailed     ErrorCode = "model_load_failed"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB          ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected  ErrorCode = "internal_unexpected_error"
	ErrCodeInternalArtifact    ErrorCode = "internal_artifact_error"
	ErrCodeUpstreamInference   ErrorCode = "upstream_inference_failed"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamQueue       ErrorCode = "upstream_queue_unavailable"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case c == ErrCodeInsufficientData,
		c == ErrCodeUnknownModelRequirements,
		c == ErrCodeNoModelAssigned:
		return http.StatusUnprocessableEntity
	case c == ErrCodeModelLoadFailed:
		return http.StatusBadGateway
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AppError is the standard application error type. Domain and handler errors
// are expressed as AppError so that HTTP mapping and error-chain inspection
// behave the same everywhere.
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

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}

// CodeOf returns the ErrorCode of the first AppError in err's chain, or the
// empty code if there is none.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsCode reports whether err's chain contains an AppError with the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// NewInsufficientDataError reports that fewer than need points were available.
func NewInsufficientDataError(need, got int) *AppError {
	return NewAppErrorWithDetails(
		ErrCodeInsufficientData,
		fmt.Sprintf("not enough points: need %d, got %d", need, got),
		nil,
		map[string]any{"required": need, "available": got},
	)
}

// NewScalerShapeMismatchError reports a feature-count disagreement between a
// fitted transform and the data handed to it.
func NewScalerShapeMismatchError(expected, got int) *AppError {
	return NewAppErrorWithDetails(
		ErrCodeScalerShapeMismatch,
		fmt.Sprintf("scaler expects %d features, data has %d", expected, got),
		nil,
		map[string]any{"expected_features": expected, "actual_features": got},
	)
}
