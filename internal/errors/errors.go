// Package errors provides categorized errors with HTTP status mapping.
//
// The sync engine deliberately keeps chain-reachability problems out of this
// package's hard-failure paths: a transient node failure degrades a sync run
// to zero progress instead of erroring. Hard failures are reserved for
// configuration-level problems (an unresolvable sync target, bad input).
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/stream-indexer/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryUserInput represents user input errors (4xx)
	CategoryUserInput ErrorCategory = "user_input"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryConflict represents conflict errors
	CategoryConflict ErrorCategory = "conflict"
	// CategoryRateLimit represents rate limit errors
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategorySystem represents system errors (5xx)
	CategorySystem ErrorCategory = "system"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryChain represents fullnode/chain RPC errors
	CategoryChain ErrorCategory = "chain"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewInvalidAddressError creates an invalid address error
func NewInvalidAddressError(address string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_ADDRESS",
		Message:    fmt.Sprintf("invalid address format: %s", address),
		Details: map[string]interface{}{
			"address": address,
		},
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewNoDeploymentError creates the hard error for a sync request that
// resolves to no known deployment. Unlike chain failures this surfaces to
// the caller: it indicates a caller programming error, not transient state.
func NewNoDeploymentError(target string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NO_DEPLOYMENT",
		Message:    fmt.Sprintf("no deployment resolvable for sync target: %s", target),
		Details: map[string]interface{}{
			"target": target,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(retryAfter int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "rate limit exceeded",
		Details: map[string]interface{}{
			"retryAfter": retryAfter,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewChainError creates a fullnode RPC error. Within the sync engine these
// are swallowed into degraded runs; this constructor exists for the few
// call sites (token lookups, discovery probes) that do surface them.
func NewChainError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryChain,
		StatusCode: http.StatusBadGateway,
		Code:       "CHAIN_ERROR",
		Message:    fmt.Sprintf("chain RPC error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr
	}

	var svcErr *types.ServiceError
	if errors.As(err, &svcErr) {
		return categorizeServiceError(svcErr)
	}

	return NewInternalError("unexpected error", err)
}

func categorizeServiceError(err *types.ServiceError) *CategorizedError {
	switch err.Code {
	case "INVALID_ADDRESS", "INVALID_PARAMETER":
		return &CategorizedError{
			Category:   CategoryUserInput,
			StatusCode: http.StatusBadRequest,
			Code:       err.Code,
			Message:    err.Message,
			Details:    err.Details,
		}
	case "NO_DEPLOYMENT", "NOT_FOUND":
		return &CategorizedError{
			Category:   CategoryNotFound,
			StatusCode: http.StatusNotFound,
			Code:       err.Code,
			Message:    err.Message,
			Details:    err.Details,
		}
	case "RATE_LIMIT_EXCEEDED":
		return &CategorizedError{
			Category:   CategoryRateLimit,
			StatusCode: http.StatusTooManyRequests,
			Code:       err.Code,
			Message:    err.Message,
			Details:    err.Details,
		}
	default:
		return &CategorizedError{
			Category:   CategorySystem,
			StatusCode: http.StatusInternalServerError,
			Code:       err.Code,
			Message:    err.Message,
			Details:    err.Details,
		}
	}
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryChain, CategoryDatabase:
		return true
	case CategorySystem:
		return catErr.StatusCode == http.StatusServiceUnavailable ||
			catErr.StatusCode == http.StatusGatewayTimeout
	default:
		return false
	}
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}
