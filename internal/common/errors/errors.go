// Package errors provides standardized error handling for BPMN workflow integration.
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

const (
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	ErrCodeRubricParseFailed   ErrorCode = "RUBRIC_PARSE_FAILED"
	ErrCodeReadinessNotFound   ErrorCode = "READINESS_NOT_FOUND"
	ErrCodeReadinessLoadFailed ErrorCode = "READINESS_LOAD_FAILED"

	ErrCodeMatchReadFailed     ErrorCode = "MATCH_READ_FAILED"
	ErrCodePipelineUnreachable ErrorCode = "PIPELINE_UNREACHABLE"
	ErrCodeBootstrapFailed     ErrorCode = "BOOTSTRAP_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
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
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key to the error metadata and returns the error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

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

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// NewInvalidInputError creates a non-retryable job/request input error.
func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid input", details, false, nil)
}

// NewRubricParseFailedError is returned when a rubric payload is not a JSON object.
func NewRubricParseFailedError(err error) *StandardError {
	return newError(ErrCodeRubricParseFailed, "Scored rubric could not be decoded", err.Error(), false, err)
}

// NewReadinessNotFoundError is returned when no readiness snapshot exists for an org.
func NewReadinessNotFoundError(orgID string) *StandardError {
	return newError(ErrCodeReadinessNotFound, "Readiness snapshot not found",
		fmt.Sprintf("orgId: %s", orgID), false, nil).WithMetadata("orgId", orgID)
}

// NewReadinessLoadFailedError creates a retryable storage error for the readiness snapshot.
func NewReadinessLoadFailedError(orgID string, err error) *StandardError {
	return newError(ErrCodeReadinessLoadFailed, "Readiness snapshot could not be loaded",
		fmt.Sprintf("orgId: %s, error: %s", orgID, err.Error()), true, err).WithMetadata("orgId", orgID)
}

// NewMatchReadFailedError creates a retryable error for the investor match read.
func NewMatchReadFailedError(orgID string, err error) *StandardError {
	return newError(ErrCodeMatchReadFailed, "Investor matches could not be read",
		fmt.Sprintf("orgId: %s, error: %s", orgID, err.Error()), true, err).WithMetadata("orgId", orgID)
}

// NewPipelineUnreachableError wraps a transport failure talking to the remote pipeline.
func NewPipelineUnreachableError(err error) *StandardError {
	return newError(ErrCodePipelineUnreachable, "Investor pipeline is not reachable", err.Error(), true, err)
}

// NewBootstrapFailedError creates a retryable error for the composite bootstrap read.
func NewBootstrapFailedError(orgID string, err error) *StandardError {
	return newError(ErrCodeBootstrapFailed, "Startup bootstrap could not be loaded",
		fmt.Sprintf("orgId: %s, error: %s", orgID, err.Error()), true, err).WithMetadata("orgId", orgID)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true, err)
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(queryType string) *StandardError {
	return newError(ErrCodeQueryTimeout, "Database query timeout",
		fmt.Sprintf("queryType: %s", queryType), true, context.DeadlineExceeded)
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true, err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true, err)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the codes modelled on boundary events.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidInput:             "INVALID_INPUT",
	ErrCodeRubricParseFailed:        "RUBRIC_PARSE_FAILED",
	ErrCodeReadinessNotFound:        "READINESS_NOT_FOUND",
	ErrCodeReadinessLoadFailed:      "READINESS_LOAD_FAILED",
	ErrCodeMatchReadFailed:          "MATCH_READ_FAILED",
	ErrCodePipelineUnreachable:      "PIPELINE_UNREACHABLE",
	ErrCodeBootstrapFailed:          "BOOTSTRAP_FAILED",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryTimeout:             "QUERY_TIMEOUT",
}

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeReadinessLoadFailed,
		ErrCodeMatchReadFailed,
		ErrCodeBootstrapFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeExternalService:
		return 3

	case ErrCodeQueryTimeout,
		ErrCodePipelineUnreachable,
		ErrCodeTimeout:
		return 2

	default:
		return 0 // business errors: no retry
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

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError finds a StandardError anywhere in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "READINESS") || strings.Contains(codeStr, "RUBRIC"):
		return "READINESS"
	case strings.Contains(codeStr, "MATCH") || strings.Contains(codeStr, "PIPELINE"):
		return "MATCHING"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "TIMEOUT") || strings.Contains(codeStr, "EXTERNAL"):
		return "EXTERNAL"
	default:
		return "OTHER"
	}
}
