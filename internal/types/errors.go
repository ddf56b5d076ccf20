package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for pipeline errors.
type ErrorCode string

// Input error codes
const (
	INVALID_INPUT ErrorCode = "INVALID_INPUT"
)

// Generation error codes
const (
	AGENT_UNAVAILABLE ErrorCode = "AGENT_UNAVAILABLE"
	AGENT_TIMEOUT     ErrorCode = "AGENT_TIMEOUT"
	AGENT_BAD_ANSWER  ErrorCode = "AGENT_BAD_ANSWER"
)

// Validation and repair error codes
const (
	VALIDATION_FAILED    ErrorCode = "VALIDATION_FAILED"
	REPAIR_EXHAUSTED     ErrorCode = "REPAIR_EXHAUSTED"
	ESCALATION_EXHAUSTED ErrorCode = "ESCALATION_EXHAUSTED"
)

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Trace store error codes
const (
	TRACE_OPEN_FAILED  ErrorCode = "TRACE_OPEN_FAILED"
	TRACE_WRITE_FAILED ErrorCode = "TRACE_WRITE_FAILED"
	TRACE_QUERY_FAILED ErrorCode = "TRACE_QUERY_FAILED"
)

// PipelineError represents a structured error with error code, message,
// and optional cause. It supports error wrapping and retryability hints:
// a retryable error is one the orchestrator can absorb by escalating to a
// stronger tier rather than rejecting the request.
type PipelineError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *PipelineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for unwrapping chains.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
func (e *PipelineError) Is(target error) bool {
	var pipeErr *PipelineError
	if errors.As(target, &pipeErr) {
		return e.Code == pipeErr.Code
	}
	return false
}

// NewError creates a new non-retryable PipelineError.
func NewError(code ErrorCode, message string) *PipelineError {
	return &PipelineError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     nil,
	}
}

// NewRetryableError creates a new retryable PipelineError. Use this for
// failures the escalation policy may recover from (agent timeouts,
// exhausted repair cycles).
func NewRetryableError(code ErrorCode, message string) *PipelineError {
	return &PipelineError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     nil,
	}
}

// WrapError creates a new non-retryable PipelineError that wraps an
// existing error, accessible via Unwrap().
func WrapError(code ErrorCode, message string, cause error) *PipelineError {
	return &PipelineError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// WrapRetryableError creates a retryable PipelineError that wraps an
// existing error.
func WrapRetryableError(code ErrorCode, message string, cause error) *PipelineError {
	return &PipelineError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// CodeOf extracts the ErrorCode from an error chain, or "" if the chain
// contains no PipelineError.
func CodeOf(err error) ErrorCode {
	var pipeErr *PipelineError
	if errors.As(err, &pipeErr) {
		return pipeErr.Code
	}
	return ""
}

// IsRetryable reports whether the error chain contains a retryable
// PipelineError.
func IsRetryable(err error) bool {
	var pipeErr *PipelineError
	if errors.As(err, &pipeErr) {
		return pipeErr.Retryable
	}
	return false
}
