// Package errors provides standardized error handling for the verification
// services and their BPMN workflow integration.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Domain errors surfaced to callers. None of them are retried.
const (
	ErrCodeValidation     ErrorCode = "VALIDATION_FAILED"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeConflict       ErrorCode = "CONFLICT"
	ErrCodeForbidden      ErrorCode = "FORBIDDEN"
	ErrCodeAlreadyDecided ErrorCode = "ALREADY_DECIDED"
)

// Infrastructure errors.
const (
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseQueryFailed      ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeDatabaseWriteFailed      ErrorCode = "DATABASE_WRITE_FAILED"
	ErrCodeCacheUnavailable         ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeAuditIndexFailed         ErrorCode = "AUDIT_INDEX_FAILED"
	ErrCodeNotificationSendFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeInvalidJobInput          ErrorCode = "INVALID_JOB_INPUT"
	ErrCodeExternalService          ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout                  ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is matches on the error code so that callers can compare against the
// kind sentinels below with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// Kind sentinels, for use with errors.Is.
var (
	ErrValidation     = &StandardError{Code: ErrCodeValidation}
	ErrNotFound       = &StandardError{Code: ErrCodeNotFound}
	ErrConflict       = &StandardError{Code: ErrCodeConflict}
	ErrForbidden      = &StandardError{Code: ErrCodeForbidden}
	ErrAlreadyDecided = &StandardError{Code: ErrCodeAlreadyDecided}
)

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
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

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
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
// 3. Error Constructors
// ==========================

// NewValidationError reports malformed or missing input.
func NewValidationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidation,
		Message:   "Validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError reports an unknown identifier.
func NewNotFoundError(resource, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Metadata:  map[string]interface{}{"resource": resource, "id": id},
		Timestamp: time.Now().UTC(),
	}
}

// NewConflictError reports a violated uniqueness rule or precondition.
func NewConflictError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConflict,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewForbiddenError reports an actor that may not perform the mutation.
func NewForbiddenError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeForbidden,
		Message:   "Operation not permitted",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAlreadyDecidedError reports an attempt to decide a request twice.
func NewAlreadyDecidedError(kind, id, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAlreadyDecided,
		Message:   fmt.Sprintf("%s already decided", kind),
		Details:   fmt.Sprintf("id: %s, status: %s", id, status),
		Retryable: false,
		Metadata:  map[string]interface{}{"kind": kind, "id": id, "status": status},
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDatabaseQueryFailedError creates a retryable query error.
func NewDatabaseQueryFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseQueryFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDatabaseWriteFailedError creates a retryable write error.
func NewDatabaseWriteFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseWriteFailed,
		Message:   "Database write operation failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInvalidJobInputError reports job variables that do not match the activity schema.
func NewInvalidJobInputError(taskType string, problems []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidJobInput,
		Message:   "Job input does not match activity schema",
		Details:   fmt.Sprintf("taskType: %s, errors: %s", taskType, strings.Join(problems, "; ")),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeExternalService,
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTimeout,
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the error codes caught by
// boundary events in the verification process models.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidation:               "VALIDATION_FAILED",
	ErrCodeNotFound:                 "NOT_FOUND",
	ErrCodeConflict:                 "CONFLICT",
	ErrCodeForbidden:                "FORBIDDEN",
	ErrCodeAlreadyDecided:           "ALREADY_DECIDED",
	ErrCodeInvalidJobInput:          "INVALID_JOB_INPUT",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeDatabaseQueryFailed:      "DATABASE_QUERY_FAILED",
	ErrCodeDatabaseWriteFailed:      "DATABASE_WRITE_FAILED",
	ErrCodeNotificationSendFailed:   "NOTIFICATION_SEND_FAILED",
}

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeDatabaseQueryFailed,
		ErrCodeDatabaseWriteFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeTimeout, ErrCodeCacheUnavailable:
		return 2

	default:
		return 0 // Business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeNotFound || code == ErrCodeConflict ||
		code == ErrCodeForbidden || code == ErrCodeAlreadyDecided:
		return "DOMAIN"
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "CACHE"):
		return "CACHE"
	case strings.Contains(codeStr, "AUDIT"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// CodeOf returns the code of a StandardError anywhere in err's chain,
// or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	if stdErr := AsStandardError(err); stdErr != nil {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// Wrap returns err unchanged when it already carries a code and otherwise
// classifies it as a failed database operation.
func Wrap(operation string, err error) error {
	if err == nil {
		return nil
	}
	if AsStandardError(err) != nil {
		return err
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(operation, err)
	}
	return NewDatabaseQueryFailedError(operation, err)
}
