package models

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError represents a standardized error outcome. Every failure the service
// surfaces to a caller is one of these, never a bare string.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error code constants
const (
	// General errors
	ErrBadRequest       = "BAD_REQUEST"
	ErrUnauthorized     = "UNAUTHORIZED"
	ErrForbidden        = "FORBIDDEN"
	ErrNotFound         = "NOT_FOUND"
	ErrConflict         = "CONFLICT"
	ErrInternalServer   = "INTERNAL_SERVER_ERROR"
	ErrValidationFailed = "VALIDATION_FAILED"

	// Order lifecycle errors
	ErrInvalidStateTransition = "INVALID_STATE_TRANSITION"

	// Infrastructure errors
	ErrTimeout          = "TIMEOUT"
	ErrStoreUnavailable = "STORE_UNAVAILABLE"

	// OAuth errors for the dev token issuer (maintain RFC 6749 compatibility)
	ErrInvalidRequest       = "invalid_request"
	ErrInvalidClient        = "invalid_client"
	ErrInvalidGrant         = "invalid_grant"
	ErrUnsupportedGrantType = "unsupported_grant_type"
	ErrInvalidScope         = "invalid_scope"
)

// Error implements the error interface so services can return *APIError
// through plain error values.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError creates a new API error with the given code and message
func NewAPIError(code, message string, details ...map[string]interface{}) *APIError {
	err := &APIError{
		Code:    code,
		Message: message,
	}
	if len(details) > 0 {
		err.Details = details[0]
	}
	return err
}

// NewValidationError creates a VALIDATION_FAILED error
func NewValidationError(message string, details ...map[string]interface{}) *APIError {
	return NewAPIError(ErrValidationFailed, message, details...)
}

// NewNotFoundError creates a NOT_FOUND error for the given entity and id
func NewNotFoundError(entity, id string) *APIError {
	return NewAPIError(ErrNotFound, fmt.Sprintf("%s not found", entity), map[string]interface{}{"id": id})
}

// AsAPIError unwraps err into an *APIError when it is (or wraps) one.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// HTTPStatus maps an error code to the HTTP status used by the REST surface.
func (e *APIError) HTTPStatus() int {
	switch e.Code {
	case ErrBadRequest, ErrValidationFailed:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict, ErrInvalidStateTransition:
		return http.StatusConflict
	case ErrTimeout:
		return http.StatusGatewayTimeout
	case ErrStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// OAuth2Error represents an OAuth2 error response (RFC 6749)
type OAuth2Error struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorURI         string `json:"error_uri,omitempty"`
}

// NewOAuth2Error creates a new OAuth2 error response
func NewOAuth2Error(error, description string) OAuth2Error {
	return OAuth2Error{
		Error:            error,
		ErrorDescription: description,
	}
}
