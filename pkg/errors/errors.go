// Package errors defines structured error types for the keygate service.
// Management-surface errors carry a machine-readable code, an HTTP status,
// and optional metadata; per-request authentication failures never travel as
// errors past the guard boundary (they resolve to a deny outcome).
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/wrensec/keygate/pkg/constants"
)

// ================================================================================
// Error Type
// ================================================================================

// AppError is a structured application error.
type AppError struct {
	code       constants.ErrorCode
	httpStatus int
	message    string
	cause      error
	metadata   map[string]interface{}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the machine-readable error code.
func (e *AppError) Code() constants.ErrorCode {
	return e.code
}

// HTTPStatus returns the HTTP status the management API maps this error to.
func (e *AppError) HTTPStatus() int {
	return e.httpStatus
}

// Unwrap returns the underlying cause for error-chain support.
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause attaches a cause to the error chain.
func (e *AppError) WithCause(cause error) *AppError {
	e.cause = cause
	return e
}

// WithMetadata attaches context metadata.
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

// Metadata returns all attached metadata.
func (e *AppError) Metadata() map[string]interface{} {
	return e.metadata
}

// ================================================================================
// Constructors
// ================================================================================

// New creates a new AppError.
func New(code constants.ErrorCode, httpStatus int, message string) *AppError {
	return &AppError{code: code, httpStatus: httpStatus, message: message}
}

// ErrInvalidRequest reports a malformed or incomplete management request.
func ErrInvalidRequest(message string) *AppError {
	return New(constants.ErrCodeInvalidRequest, http.StatusBadRequest, message)
}

// ErrKeyNotFound reports an unknown api key on the management surface.
func ErrKeyNotFound(key string) *AppError {
	return New(constants.ErrCodeNotFound, http.StatusNotFound,
		fmt.Sprintf("access key not found: %s", key)).
		WithMetadata("api_key", key)
}

// ErrKeyExists reports a conflicting key registration.
func ErrKeyExists(key string) *AppError {
	return New(constants.ErrCodeConflict, http.StatusConflict,
		fmt.Sprintf("access key already exists: %s", key)).
		WithMetadata("api_key", key)
}

// ErrUnsupportedOperation reports an operation the target key store cannot
// perform, e.g. rotating the secret of a simple-strategy key.
func ErrUnsupportedOperation(op string) *AppError {
	return New(constants.ErrCodeUnsupportedOperation, http.StatusBadRequest,
		fmt.Sprintf("operation not supported by this key store: %s", op)).
		WithMetadata("operation", op)
}

// ErrStoreUnavailable reports an unreachable backing or shared store. This
// is an operational fault, distinct from an authentication failure.
func ErrStoreUnavailable(store string, cause error) *AppError {
	return New(constants.ErrCodeTemporarilyUnavailable, http.StatusServiceUnavailable,
		fmt.Sprintf("backing store unavailable: %s", store)).
		WithCause(cause).
		WithMetadata("store", store)
}

// ErrServerError reports an unexpected internal condition.
func ErrServerError(message string) *AppError {
	return New(constants.ErrCodeServerError, http.StatusInternalServerError, message)
}

// Wrap converts a generic error into an AppError with the given code.
func Wrap(err error, code constants.ErrorCode, message string) *AppError {
	httpStatus := http.StatusInternalServerError
	switch code {
	case constants.ErrCodeInvalidRequest, constants.ErrCodeUnsupportedOperation:
		httpStatus = http.StatusBadRequest
	case constants.ErrCodeUnauthorized:
		httpStatus = http.StatusUnauthorized
	case constants.ErrCodeNotFound:
		httpStatus = http.StatusNotFound
	case constants.ErrCodeConflict:
		httpStatus = http.StatusConflict
	case constants.ErrCodeTemporarilyUnavailable:
		httpStatus = http.StatusServiceUnavailable
	}
	return New(code, httpStatus, message).WithCause(err)
}

// ================================================================================
// Classification Helpers
// ================================================================================

// AsAppError attempts to extract an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsUnsupportedOperation reports whether err is an unsupported-operation
// error raised by a key store.
func IsUnsupportedOperation(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code() == constants.ErrCodeUnsupportedOperation
	}
	return false
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code() == constants.ErrCodeNotFound
	}
	return false
}

// IsStoreUnavailable reports whether err represents an unreachable store.
func IsStoreUnavailable(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code() == constants.ErrCodeTemporarilyUnavailable
	}
	return false
}

// ================================================================================
// Error Response Builder
// ================================================================================

// ErrorResponse is the JSON body the management API returns for errors.
type ErrorResponse struct {
	Error            string                 `json:"error"`
	ErrorDescription string                 `json:"error_description"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// ToErrorResponse converts any error into an ErrorResponse. Unrecognized
// errors collapse into a generic server error so internals never leak.
func ToErrorResponse(err error) *ErrorResponse {
	if appErr, ok := AsAppError(err); ok {
		return &ErrorResponse{
			Error:            string(appErr.Code()),
			ErrorDescription: appErr.message,
			Metadata:         appErr.Metadata(),
		}
	}
	return &ErrorResponse{
		Error:            string(constants.ErrCodeServerError),
		ErrorDescription: "An unexpected error occurred",
	}
}
