package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeAuthenticationFailed   ErrorType = "AUTHENTICATION_FAILED"
	ErrorTypeAccountLocked          ErrorType = "ACCOUNT_LOCKED"
	ErrorTypeRateLimited            ErrorType = "RATE_LIMITED"
	ErrorTypeUnauthorized           ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden              ErrorType = "FORBIDDEN"
	ErrorTypeNotFound               ErrorType = "NOT_FOUND"
	ErrorTypeInvalidStateTransition ErrorType = "INVALID_STATE_TRANSITION"
	ErrorTypeDuplicateResource      ErrorType = "DUPLICATE_RESOURCE"
	ErrorTypeValidation             ErrorType = "VALIDATION_ERROR"
	ErrorTypeStoreUnavailable       ErrorType = "STORE_UNAVAILABLE"
	ErrorTypeInternal               ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidReason    ErrorCode = "INVALID_REASON"
	ErrCodeInvalidQuantity  ErrorCode = "INVALID_QUANTITY"
	ErrCodeInvalidReference ErrorCode = "INVALID_REFERENCE"
	ErrCodeUnknownSection   ErrorCode = "UNKNOWN_SECTION"
	ErrCodeUnknownAction    ErrorCode = "UNKNOWN_ACTION"
	ErrCodeNoApprover       ErrorCode = "NO_APPROVER"

	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeAccountLocked      ErrorCode = "ACCOUNT_LOCKED"
	ErrCodeUserDisabled       ErrorCode = "USER_DISABLED"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
	ErrCodeMissingToken       ErrorCode = "MISSING_TOKEN"
	ErrCodeTooManyRequests    ErrorCode = "TOO_MANY_REQUESTS"

	ErrCodeMissingPermission  ErrorCode = "MISSING_PERMISSION"
	ErrCodeNotRequestOwner    ErrorCode = "NOT_REQUEST_OWNER"
	ErrCodeNotRequestApprover ErrorCode = "NOT_REQUEST_APPROVER"

	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeInvalidTransition ErrorCode = "INVALID_STATE_TRANSITION"
	ErrCodeDuplicate         ErrorCode = "DUPLICATE_RESOURCE"
	ErrCodeStoreUnavailable  ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			messages := make([]string, len(validationErrors.Errors))
			for i, err := range validationErrors.Errors {
				messages[i] = err.Message
			}
			return strings.Join(messages, "; ")
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the caller may retry the operation with backoff.
func (e *AppError) Retryable() bool {
	return e.Type == ErrorTypeStoreUnavailable
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

type LockoutDetails struct {
	RetryAfterSeconds int `json:"retry_after_seconds"`
}

// RateLimitDetails tells a throttled client when its next request is admitted.
type RateLimitDetails struct {
	RetryAfterSeconds int `json:"retry_after_seconds"`
}

type PermissionDetails struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Role     string `json:"role,omitempty"`
}

type TransitionDetails struct {
	From      string `json:"from"`
	Attempted string `json:"attempted"`
}

type NotFoundDetails struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type DuplicateDetails struct {
	Field string `json:"field"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewAuthenticationFailedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeAuthenticationFailed,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewAccountLockedError(retryAfterSeconds int) *AppError {
	return &AppError{
		Type:       ErrorTypeAccountLocked,
		Code:       ErrCodeAccountLocked,
		Message:    fmt.Sprintf("Too many failed attempts, try again in %d seconds", retryAfterSeconds),
		StatusCode: http.StatusTooManyRequests,
		Details:    LockoutDetails{RetryAfterSeconds: retryAfterSeconds},
	}
}

// NewRateLimitedError is the per-client throttle reply. It says nothing about the account.
func NewRateLimitedError(retryAfterSeconds int) *AppError {
	return &AppError{
		Type:       ErrorTypeRateLimited,
		Code:       ErrCodeTooManyRequests,
		Message:    fmt.Sprintf("Too many requests, try again in %d seconds", retryAfterSeconds),
		StatusCode: http.StatusTooManyRequests,
		Details:    RateLimitDetails{RetryAfterSeconds: retryAfterSeconds},
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewForbiddenError reports a missing capability, naming what the caller lacks.
func NewForbiddenError(resource, action, role string) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       ErrCodeMissingPermission,
		Message:    fmt.Sprintf("you need `%s` on `%s`", action, resource),
		StatusCode: http.StatusForbidden,
		Details:    PermissionDetails{Resource: resource, Action: action, Role: role},
	}
}

// NewOwnershipError reports a violated ownership rule on a resource the actor already knows about.
func NewOwnershipError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewNotFoundError(kind string, id interface{}) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       ErrCodeNotFound,
		Message:    fmt.Sprintf("%s not found", kind),
		StatusCode: http.StatusNotFound,
		Details:    NotFoundDetails{Kind: kind, ID: fmt.Sprint(id)},
	}
}

func NewInvalidStateTransitionError(from, attempted string) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidStateTransition,
		Code:       ErrCodeInvalidTransition,
		Message:    fmt.Sprintf("cannot move from %s to %s", from, attempted),
		StatusCode: http.StatusConflict,
		Details:    TransitionDetails{From: from, Attempted: attempted},
	}
}

func NewDuplicateResourceError(field string) *AppError {
	return &AppError{
		Type:       ErrorTypeDuplicateResource,
		Code:       ErrCodeDuplicate,
		Message:    fmt.Sprintf("%s already exists", field),
		StatusCode: http.StatusConflict,
		Details:    DuplicateDetails{Field: field},
	}
}

func NewStoreUnavailableError(cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeStoreUnavailable,
		Code:       ErrCodeStoreUnavailable,
		Message:    "Storage temporarily unavailable",
		StatusCode: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       ErrCodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

var (
	ErrInvalidCredentials = NewAuthenticationFailedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrUserDisabled       = NewAuthenticationFailedError("User account is disabled", ErrCodeUserDisabled)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
	ErrMissingToken       = NewUnauthorizedError("Missing authorization token", ErrCodeMissingToken)
)

// IsAppError unwraps err looking for an *AppError.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsErrorType reports whether err is an *AppError of the given type.
func IsErrorType(err error, t ErrorType) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Type == t
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type      ErrorType   `json:"type"`
		Code      ErrorCode   `json:"code"`
		Message   string      `json:"message"`
		Details   interface{} `json:"details,omitempty"`
		Retryable bool        `json:"retryable"`
	}{
		Type:      e.Type,
		Code:      e.Code,
		Message:   e.Message,
		Details:   e.Details,
		Retryable: e.Retryable(),
	})
}
