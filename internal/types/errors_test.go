package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPipelineErrorFormatting verifies the [CODE] message format with
// and without a cause.
func TestPipelineErrorFormatting(t *testing.T) {
	plain := NewError(INVALID_INPUT, "query text is empty")
	assert.Equal(t, "[INVALID_INPUT] query text is empty", plain.Error())

	wrapped := WrapError(AGENT_UNAVAILABLE, "generator failed", errors.New("connection refused"))
	assert.Equal(t, "[AGENT_UNAVAILABLE] generator failed: connection refused", wrapped.Error())
}

// TestPipelineErrorUnwrapping verifies errors.Is and errors.As work
// through the wrap chain.
func TestPipelineErrorUnwrapping(t *testing.T) {
	cause := errors.New("socket closed")
	err := WrapRetryableError(AGENT_TIMEOUT, "generator exceeded budget", cause)

	assert.True(t, errors.Is(err, cause), "cause must be reachable through Unwrap")

	var pipeErr *PipelineError
	outer := fmt.Errorf("submit failed: %w", err)
	require.True(t, errors.As(outer, &pipeErr))
	assert.Equal(t, AGENT_TIMEOUT, pipeErr.Code)
}

// TestPipelineErrorIsMatchesByCode verifies Is compares codes, not
// identity.
func TestPipelineErrorIsMatchesByCode(t *testing.T) {
	err := NewError(ESCALATION_EXHAUSTED, "all tiers failed")
	target := NewError(ESCALATION_EXHAUSTED, "different message")

	assert.True(t, errors.Is(err, target))
	assert.False(t, errors.Is(err, NewError(INVALID_INPUT, "nope")))
}

// TestCodeOfAndIsRetryable verifies extraction helpers on wrapped and
// foreign errors.
func TestCodeOfAndIsRetryable(t *testing.T) {
	retryable := NewRetryableError(AGENT_UNAVAILABLE, "down")
	assert.Equal(t, AGENT_UNAVAILABLE, CodeOf(retryable))
	assert.True(t, IsRetryable(retryable))

	terminal := NewError(INVALID_INPUT, "empty")
	assert.False(t, IsRetryable(terminal))

	foreign := errors.New("plain error")
	assert.Empty(t, CodeOf(foreign))
	assert.False(t, IsRetryable(foreign))

	wrapped := fmt.Errorf("outer: %w", retryable)
	assert.Equal(t, AGENT_UNAVAILABLE, CodeOf(wrapped))
	assert.True(t, IsRetryable(wrapped))
}
