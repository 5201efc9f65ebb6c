// Package errors provides the error codes shared by the HTTP API and the
// BPMN job workers, and the conversion of domain errors into BPMN errors.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode is a stable, user-displayable error category.
type ErrorCode string

// Workflow errors
const (
	ErrCodeInvalidTransition      ErrorCode = "INVALID_TRANSITION"
	ErrCodeUnauthorized           ErrorCode = "UNAUTHORIZED"
	ErrCodeUnauthenticated        ErrorCode = "UNAUTHENTICATED"
	ErrCodeMissingReason          ErrorCode = "MISSING_REASON"
	ErrCodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"
	ErrCodeNotFound               ErrorCode = "NOT_FOUND"
	ErrCodeInvalidStatus          ErrorCode = "INVALID_STATUS"
	ErrCodeInvalidRecordType      ErrorCode = "INVALID_RECORD_TYPE"
	ErrCodeAuditChainCorrupted    ErrorCode = "AUDIT_CHAIN_CORRUPTED"
	ErrCodeStatusDrift            ErrorCode = "STATUS_DRIFT"

	ErrCodeDuplicateApplication        ErrorCode = "DUPLICATE_APPLICATION"
	ErrCodeApplicationValidationFailed ErrorCode = "APPLICATION_VALIDATION_FAILED"
)

// Onboarding errors
const (
	ErrCodeIncompletePrerequisites ErrorCode = "INCOMPLETE_PREREQUISITES"
	ErrCodeAlreadyApproved         ErrorCode = "ALREADY_APPROVED"
	ErrCodeItemSuperseded          ErrorCode = "ITEM_SUPERSEDED"
	ErrCodeNotUploaded             ErrorCode = "NOT_UPLOADED"
	ErrCodeInvalidDocument         ErrorCode = "INVALID_DOCUMENT"
	ErrCodeRateLimited             ErrorCode = "RATE_LIMITED"
	ErrCodeStorageFailed           ErrorCode = "STORAGE_FAILED"
)

// Infrastructure errors
const (
	ErrCodeDatabaseQueryFailed    ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeDatabaseInsertFailed   ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeSearchQueryFailed      ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeInvalidInput           ErrorCode = "INVALID_INPUT"
	ErrCodeInternal               ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error. Package-level
// *StandardError values double as sentinels: wrap them with fmt.Errorf("%w")
// and recover the code with errors.As or the sentinel with errors.Is.
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

// Sentinel declares a package-level error value carrying code.
func Sentinel(code ErrorCode, message string) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableErrorCode(code),
	}
}

// New builds a timestamped error.
func New(code ErrorCode, message, details string) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: IsRetryableErrorCode(code),
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for Camunda fail/throw variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Classification
// ==========================

// CodeOf returns the code of the first StandardError in err's chain, or
// ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// Normalize turns any error into a StandardError whose Details keep the full
// wrapped message.
func Normalize(err error) *StandardError {
	var se *StandardError
	if stderrors.As(err, &se) {
		out := *se
		out.Details = err.Error()
		if out.Timestamp.IsZero() {
			out.Timestamp = time.Now().UTC()
		}
		return &out
	}
	return New(ErrCodeInternal, "Unexpected error", err.Error())
}

// GetRetryCount returns how many times a job failing with code should be
// retried by the engine before the error is thrown into the process.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseQueryFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeStorageFailed:
		return 3
	case ErrCodeConcurrentModification:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	ts := stdErr.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         ts.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// IsRetryableErrorCode reports whether code is a transient failure.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory groups codes for logging and metrics labels.
func GetErrorCategory(code ErrorCode) string {
	c := string(code)
	switch {
	case code == ErrCodeUnauthorized || code == ErrCodeUnauthenticated:
		return "AUTH"
	case strings.HasPrefix(c, "DATABASE"):
		return "DATABASE"
	case strings.Contains(c, "SEARCH"):
		return "SEARCH"
	case strings.Contains(c, "NOTIFICATION"):
		return "NOTIFICATION"
	case code == ErrCodeIncompletePrerequisites,
		code == ErrCodeAlreadyApproved,
		code == ErrCodeItemSuperseded,
		code == ErrCodeNotUploaded,
		code == ErrCodeInvalidDocument,
		code == ErrCodeStorageFailed:
		return "ONBOARDING"
	case strings.Contains(c, "INVALID") || strings.Contains(c, "VALIDATION") || code == ErrCodeMissingReason:
		return "VALIDATION"
	case code == ErrCodeConcurrentModification || code == ErrCodeDuplicateApplication:
		return "CONFLICT"
	default:
		return "OTHER"
	}
}
