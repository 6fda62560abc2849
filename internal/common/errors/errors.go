// Package errors provides the standardized error model shared by the HTTP
// surface, the job worker and the storage adapters.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Model acquisition and scoring
const (
	ErrCodeArtifactUnavailable   ErrorCode = "ARTIFACT_UNAVAILABLE"
	ErrCodeArtifactCorrupt       ErrorCode = "ARTIFACT_CORRUPT"
	ErrCodeInferenceFailed       ErrorCode = "INFERENCE_FAILED"
	ErrCodeValidationFailed      ErrorCode = "VALIDATION_FAILED"
	ErrCodeAssessmentUnavailable ErrorCode = "ASSESSMENT_UNAVAILABLE"
)

// Infrastructure
const (
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeAssessmentNotFound       ErrorCode = "ASSESSMENT_NOT_FOUND"
	ErrCodeSessionStoreFailed       ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeSearchIndexFailed        ErrorCode = "SEARCH_INDEX_FAILED"
	ErrCodeNotificationSendFailed   ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeFeatureDisabled          ErrorCode = "FEATURE_DISABLED"
	ErrCodeWorkflowEngineFailed     ErrorCode = "WORKFLOW_ENGINE_FAILED"
	ErrCodeInternal                 ErrorCode = "INTERNAL_ERROR"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Fields    []FieldError           `json:"fields,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error thrown to the workflow engine.
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

// ToErrorVariables returns a map suitable for job fail variables.
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

// NewArtifactUnavailableError reports that no model artifact exists at any
// searched location.
func NewArtifactUnavailableError(searched []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeArtifactUnavailable,
		Message:   "No model artifact found",
		Details:   fmt.Sprintf("searched: %s", strings.Join(searched, ", ")),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewArtifactCorruptError reports an artifact that exists but cannot be decoded.
func NewArtifactCorruptError(path string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeArtifactCorrupt,
		Message:   "Model artifact could not be deserialized",
		Details:   fmt.Sprintf("path: %s, error: %v", path, err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInferenceFailedError wraps a model failure on a feature vector.
func NewInferenceFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInferenceFailed,
		Message:   "Model rejected the feature vector",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewAssessmentUnavailableError is what callers see when no assessment could
// be produced. Retrying with the same or a corrected profile is allowed.
func NewAssessmentUnavailableError(err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeAssessmentUnavailable,
		Message:   "Assessment unavailable",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewValidationFailedError carries every rejected field.
func NewValidationFailedError(fields []FieldError) *StandardError {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Profile validation failed",
		Details:   strings.Join(parts, "; "),
		Fields:    fields,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable connection error.
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

// NewDatabaseInsertFailedError creates a retryable insert error.
func NewDatabaseInsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsertFailed,
		Message:   "Database insert operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewQueryExecutionFailedError creates a retryable query error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewAssessmentNotFoundError reports an unknown assessment id.
func NewAssessmentNotFoundError(id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAssessmentNotFound,
		Message:   "Assessment not found",
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionStoreFailedError wraps a session backend failure.
func NewSessionStoreFailedError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionStoreFailed,
		Message:   "Session store error",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSearchIndexFailedError wraps an Elasticsearch indexing failure.
func NewSearchIndexFailedError(index string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchIndexFailed,
		Message:   "Search index operation failed",
		Details:   fmt.Sprintf("index: %s, error: %s", index, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewNotificationSendFailedError creates a retryable notification error.
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

// NewFeatureDisabledError is returned by optional features that are switched off.
func NewFeatureDisabledError(feature string) *StandardError {
	return &StandardError{
		Code:      ErrCodeFeatureDisabled,
		Message:   fmt.Sprintf("Feature '%s' is disabled", feature),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewWorkflowEngineError wraps a failed Zeebe gateway call.
func NewWorkflowEngineError(operation string, err error, retryable bool) *StandardError {
	return &StandardError{
		Code:      ErrCodeWorkflowEngineFailed,
		Message:   "Workflow engine call failed",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: retryable,
		Metadata:  map[string]interface{}{"operation": operation},
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 4. Error Conversion
// ==========================

// BPMNErrorMapping maps internal codes to BPMN error codes.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeValidationFailed:         "RISK_PROFILE_INVALID",
	ErrCodeAssessmentUnavailable:    "RISK_ASSESSMENT_UNAVAILABLE",
	ErrCodeInferenceFailed:          "RISK_ASSESSMENT_UNAVAILABLE",
	ErrCodeDatabaseConnectionFailed: "DATABASE_CONNECTION_FAILED",
	ErrCodeDatabaseInsertFailed:     "DATABASE_INSERT_FAILED",
	ErrCodeQueryExecutionFailed:     "QUERY_EXECUTION_FAILED",
	ErrCodeNotificationSendFailed:   "NOTIFICATION_SEND_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeDatabaseInsertFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeSearchIndexFailed,
		ErrCodeNotificationSendFailed,
		ErrCodeSessionStoreFailed:
		return 3
	case ErrCodeAssessmentUnavailable:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError for the workflow engine.
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

// HTTPStatus maps a code to the status the HTTP surface answers with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case ErrCodeAssessmentNotFound:
		return http.StatusNotFound
	case ErrCodeAssessmentUnavailable, ErrCodeInferenceFailed:
		return http.StatusServiceUnavailable
	case ErrCodeFeatureDisabled:
		return http.StatusNotImplemented
	case ErrCodeNotificationSendFailed, ErrCodeSearchIndexFailed, ErrCodeWorkflowEngineFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard returns the StandardError in err's chain, or wraps err as an
// internal error.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return errors.As(err, &stdErr) && stdErr.Code == code
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "ARTIFACT"):
		return "MODEL"
	case strings.Contains(codeStr, "INFERENCE") || strings.Contains(codeStr, "ASSESSMENT"):
		return "SCORING"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "SESSION"):
		return "SESSION"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "VALIDATION"):
		return "VALIDATION"
	case strings.Contains(codeStr, "WORKFLOW"):
		return "WORKFLOW"
	default:
		return "OTHER"
	}
}
