// Package errors provides standardized error handling for the eligibility
// decision pipeline and its workflow integration.
package errors

import (
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Pipeline-local error codes. All of these are non-fatal to a batch: a
// candidate-level failure degrades that candidate's record, never the run.
const (
	ErrCodeDataUnavailable  ErrorCode = "DATA_UNAVAILABLE"
	ErrCodeRuleSetEmpty     ErrorCode = "RULE_SET_EMPTY"
	ErrCodeModelUnavailable ErrorCode = "MODEL_UNAVAILABLE"
	ErrCodeEvaluationError  ErrorCode = "EVALUATION_ERROR"

	ErrCodeRuleValidationFailed ErrorCode = "RULE_VALIDATION_FAILED"
	ErrCodeRuleNotFound         ErrorCode = "RULE_NOT_FOUND"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeRuleStoreUnavailable      ErrorCode = "RULE_STORE_UNAVAILABLE"
	ErrCodeAttributeStoreUnavailable ErrorCode = "ATTRIBUTE_STORE_UNAVAILABLE"

	ErrCodeHistoryWriteFailed ErrorCode = "HISTORY_WRITE_FAILED"
	ErrCodeRankingFailed      ErrorCode = "RANKING_FAILED"
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
// 2. Workflow Error Integration
// ==========================

// WorkflowError represents an error that can be thrown to the workflow
// engine driving batch evaluation.
type WorkflowError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("WorkflowError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting job fail variables.
func (e *WorkflowError) ToErrorVariables() map[string]interface{} {
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

// NewDataUnavailableError marks a missing candidate attribute. The affected
// rule fails; this is not a system fault.
func NewDataUnavailableError(attribute string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDataUnavailable,
		Message:   "Candidate attribute not available",
		Details:   fmt.Sprintf("attribute: %s", attribute),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRuleSetEmptyError marks a scheme with zero active rules. The outcome
// fails closed to NOT_ELIGIBLE.
func NewRuleSetEmptyError(schemeID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRuleSetEmpty,
		Message:   "Scheme has no active rules",
		Details:   fmt.Sprintf("schemeId: %s", schemeID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewModelUnavailableError marks the ML-skip path: no scorer, load failure,
// or feature mismatch.
func NewModelUnavailableError(schemeID string, err error) *StandardError {
	details := fmt.Sprintf("schemeId: %s", schemeID)
	if err != nil {
		details = fmt.Sprintf("schemeId: %s, error: %s", schemeID, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeModelUnavailable,
		Message:   "No usable scorer for scheme",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEvaluationError marks an unexpected fault in one candidate's pipeline.
func NewEvaluationError(candidateID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEvaluationError,
		Message:   "Candidate evaluation failed",
		Details:   fmt.Sprintf("candidateId: %s, error: %s", candidateID, err.Error()),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRuleValidationFailedError creates a non-retryable definition error.
func NewRuleValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRuleValidationFailed,
		Message:   "Rule definition failed schema validation",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRuleNotFoundError creates a non-retryable lookup error.
func NewRuleNotFoundError(ruleID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRuleNotFound,
		Message:   "Rule not found",
		Details:   fmt.Sprintf("ruleId: %s", ruleID),
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
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(operation string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryTimeout,
		Message:   "Database query timeout",
		Details:   fmt.Sprintf("operation: %s", operation),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRuleStoreUnavailableError marks total rule-store unavailability. This
// aborts the batch: proceeding without rules would risk a fail-open outcome.
func NewRuleStoreUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRuleStoreUnavailable,
		Message:   "Rule store unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAttributeStoreUnavailableError marks total attribute-source
// unavailability; aborts the batch for the same fail-open reason.
func NewAttributeStoreUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAttributeStoreUnavailable,
		Message:   "Candidate attribute source unavailable",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewHistoryWriteFailedError creates a retryable audit-sink error.
func NewHistoryWriteFailedError(sink string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeHistoryWriteFailed,
		Message:   "Decision history write failed",
		Details:   fmt.Sprintf("sink: %s, error: %s", sink, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewRankingFailedError creates a non-retryable ranking error.
func NewRankingFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRankingFailed,
		Message:   "Priority ranking failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Generic constructors

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "TIMEOUT_ERROR",
		Message:   fmt.Sprintf("Service '%s' timeout", service),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return &StandardError{
		Code:      "RESOURCE_NOT_FOUND",
		Message:   fmt.Sprintf("Resource not found in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 4. Error Conversion for the Workflow Engine
// ==========================

// GetRetryCount returns the recommended retry count per error code.
// Business outcomes never retry; infrastructure faults retry bounded.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeRuleStoreUnavailable,
		ErrCodeAttributeStoreUnavailable,
		ErrCodeHistoryWriteFailed:
		return 3

	case ErrCodeQueryTimeout:
		return 2

	default:
		return 0
	}
}

// ConvertToWorkflowError converts a StandardError for the workflow engine.
func ConvertToWorkflowError(stdErr *StandardError) *WorkflowError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &WorkflowError{
		Code:      string(stdErr.Code),
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
	case strings.Contains(codeStr, "RULE"):
		return "RULES"
	case strings.Contains(codeStr, "MODEL"):
		return "SCORING"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY"):
		return "DATABASE"
	case strings.Contains(codeStr, "ATTRIBUTE") || strings.Contains(codeStr, "DATA"):
		return "CANDIDATE_DATA"
	case strings.Contains(codeStr, "RANKING"):
		return "RANKING"
	case strings.Contains(codeStr, "HISTORY"):
		return "AUDIT"
	default:
		return "OTHER"
	}
}
