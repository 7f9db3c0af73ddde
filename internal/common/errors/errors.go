// Package errors provides the standardized error taxonomy of the loan engine.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeRecordNotFound   ErrorCode = "RECORD_NOT_FOUND"
	ErrCodeOverpayment      ErrorCode = "OVERPAYMENT"
	ErrCodeModelUnavailable ErrorCode = "MODEL_UNAVAILABLE"
	ErrCodeStorageFailed    ErrorCode = "STORAGE_ERROR"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError reports malformed or missing caller input.
// Field qualifies which part of the request was rejected.
func NewValidationError(field, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   fmt.Sprintf("Invalid input: %s", field),
		Details:   details,
		Retryable: false,
		Metadata:  map[string]interface{}{"field": field},
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError reports that no application record matches the given id.
func NewNotFoundError(applicationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRecordNotFound,
		Message:   "Application not found",
		Details:   fmt.Sprintf("applicationId: %s", applicationID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOverpaymentError reports a payment that exceeds the remaining balance.
// The current balance is carried in Metadata so the caller can correct
// the request.
func NewOverpaymentError(amount, remainingBalance float64) *StandardError {
	return &StandardError{
		Code:      ErrCodeOverpayment,
		Message:   "Payment exceeds remaining balance",
		Details:   fmt.Sprintf("amount: %.2f, remaining: %.2f", amount, remainingBalance),
		Retryable: false,
		Metadata: map[string]interface{}{
			"amount":           amount,
			"remainingBalance": remainingBalance,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewModelUnavailableError reports that the scoring model failed to load at
// process start. The condition is fatal until restart and is never retried
// per call.
func NewModelUnavailableError(err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeModelUnavailable,
		Message:   "Scoring model is not loaded",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStorageError reports a transient durable-store failure.
func NewStorageError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorageFailed,
		Message:   "Durable store operation failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError reports an unexpected failure. The wrapped cause is kept
// in Metadata for server-side logging only; Message and Details stay opaque
// to callers.
func NewInternalError(err error) *StandardError {
	md := map[string]interface{}{}
	if err != nil {
		md["cause"] = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Internal error",
		Retryable: false,
		Metadata:  md,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification helpers
// ==========================

// AsStandard extracts a *StandardError from err, or nil.
func AsStandard(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return nil
}

// CodeOf returns the error code of err, or ErrCodeInternal for foreign errors.
func CodeOf(err error) ErrorCode {
	if stdErr := AsStandard(err); stdErr != nil {
		return stdErr.Code
	}
	return ErrCodeInternal
}

func IsValidation(err error) bool { return CodeOf(err) == ErrCodeValidationFailed }
func IsNotFound(err error) bool   { return CodeOf(err) == ErrCodeRecordNotFound }
func IsOverpayment(err error) bool {
	return CodeOf(err) == ErrCodeOverpayment
}
func IsModelUnavailable(err error) bool { return CodeOf(err) == ErrCodeModelUnavailable }
func IsStorage(err error) bool          { return CodeOf(err) == ErrCodeStorageFailed }

// GetRetryCount returns how many times the surrounding workflow should
// retry an error with this code. Only transient storage failures are
// retried; business failures never are.
func GetRetryCount(code ErrorCode) int {
	if code == ErrCodeStorageFailed {
		return 3
	}
	return 0
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}
