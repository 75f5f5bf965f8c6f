package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ===============================
// ERROR TYPES
// ===============================

// Error types surfaced by the gamification engine
const (
	ErrTypeUserNotFound        = "USER_NOT_FOUND"
	ErrTypeRewardNotFound      = "REWARD_NOT_FOUND"
	ErrTypeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrTypeInvalidInput        = "INVALID_INPUT"
	ErrTypeStoreUnavailable    = "STORE_UNAVAILABLE"
)

// ServiceError represents a structured service error
type ServiceError struct {
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	StatusCode int                    `json:"-"`
	Cause      error                  `json:"-"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// GetStatusCode returns the HTTP status code for this error
func (e *ServiceError) GetStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// IsClientError reports whether the caller caused the failure
func (e *ServiceError) IsClientError() bool {
	code := e.GetStatusCode()
	return code >= 400 && code < 500
}

// ===============================
// ERROR CONSTRUCTORS
// ===============================

// NewUserNotFoundError is returned when the directory does not know the user
func NewUserNotFoundError(userID int64) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeUserNotFound,
		Message:    fmt.Sprintf("User with ID %d not found", userID),
		Code:       ErrTypeUserNotFound,
		Details:    map[string]interface{}{"user_id": userID},
		StatusCode: http.StatusNotFound,
	}
}

// NewRewardNotFoundError is returned for an unknown reward id
func NewRewardNotFoundError(rewardID int64) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeRewardNotFound,
		Message:    "Reward not found",
		Code:       ErrTypeRewardNotFound,
		Details:    map[string]interface{}{"reward_id": rewardID},
		StatusCode: http.StatusNotFound,
	}
}

// NewInsufficientBalanceError is returned when a redemption costs more than the balance
func NewInsufficientBalanceError(balance, cost int) *ServiceError {
	return &ServiceError{
		Type:    ErrTypeInsufficientBalance,
		Message: "Insufficient points",
		Code:    ErrTypeInsufficientBalance,
		Details: map[string]interface{}{
			"balance":     balance,
			"cost_points": cost,
		},
		StatusCode: http.StatusUnprocessableEntity,
	}
}

// NewInvalidInputError rejects a request before any mutation happens
func NewInvalidInputError(field, reason string) *ServiceError {
	return &ServiceError{
		Type:    ErrTypeInvalidInput,
		Message: fmt.Sprintf("Invalid input for field '%s': %s", field, reason),
		Code:    ErrTypeInvalidInput,
		Details: map[string]interface{}{
			"field":  field,
			"reason": reason,
		},
		StatusCode: http.StatusBadRequest,
	}
}

// NewStoreUnavailableError wraps a persistence failure
func NewStoreUnavailableError(operation string, cause error) *ServiceError {
	return &ServiceError{
		Type:       ErrTypeStoreUnavailable,
		Message:    fmt.Sprintf("store unavailable during %s", operation),
		Code:       ErrTypeStoreUnavailable,
		Details:    map[string]interface{}{"operation": operation},
		StatusCode: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// ===============================
// ERROR UTILITIES
// ===============================

// GetServiceError extracts a ServiceError from an error chain, or creates a generic one
func GetServiceError(err error) *ServiceError {
	if err == nil {
		return nil
	}

	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr
	}

	return &ServiceError{
		Type:       "INTERNAL_ERROR",
		Message:    err.Error(),
		StatusCode: http.StatusInternalServerError,
		Cause:      err,
	}
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errorType string) bool {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Type == errorType
	}
	return false
}

// IsUserNotFound checks if an error is a user not found error
func IsUserNotFound(err error) bool {
	return IsErrorType(err, ErrTypeUserNotFound)
}

// IsRewardNotFound checks if an error is a reward not found error
func IsRewardNotFound(err error) bool {
	return IsErrorType(err, ErrTypeRewardNotFound)
}

// IsInsufficientBalance checks if an error is an insufficient balance error
func IsInsufficientBalance(err error) bool {
	return IsErrorType(err, ErrTypeInsufficientBalance)
}

// IsInvalidInput checks if an error is an invalid input error
func IsInvalidInput(err error) bool {
	return IsErrorType(err, ErrTypeInvalidInput)
}

// IsStoreUnavailable checks if an error is a store failure
func IsStoreUnavailable(err error) bool {
	return IsErrorType(err, ErrTypeStoreUnavailable)
}
