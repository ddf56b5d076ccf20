package pipeline

import (
	"github.com/scanforge/scanforge/internal/query"
)

// EscalationReason names why a tier is being abandoned. The policy is
// deliberately told whether the agent was slow or down versus whether it
// produced a bad answer, so the two can diverge later without touching
// the orchestrator.
type EscalationReason string

const (
	ReasonAgentUnavailable EscalationReason = "agent_unavailable"
	ReasonAgentTimeout     EscalationReason = "agent_timeout"
	ReasonRepairExhausted  EscalationReason = "repair_exhausted"
	ReasonLowConfidence    EscalationReason = "low_confidence"
)

// EscalationPolicy decides which tier to try next. The walk is a
// deterministic monotone EASY→MEDIUM→HARD; once HARD has failed there
// is no further tier and the request terminates as rejected.
type EscalationPolicy struct {
	confidenceThreshold float64
}

// NewEscalationPolicy creates a policy. confidenceThreshold is the
// generation confidence below which even a valid candidate is promoted
// to a stronger tier; this is a precision-over-recall bias.
func NewEscalationPolicy(confidenceThreshold float64) *EscalationPolicy {
	return &EscalationPolicy{confidenceThreshold: confidenceThreshold}
}

// NextTier returns the tier to try after a failure at current, or
// ok=false when no stronger tier remains.
func (p *EscalationPolicy) NextTier(current query.Tier, _ EscalationReason) (query.Tier, bool) {
	return current.Next()
}

// ShouldPromote reports whether a valid candidate's generation
// confidence is low enough to warrant a stronger tier anyway.
func (p *EscalationPolicy) ShouldPromote(confidence float64) bool {
	return confidence < p.confidenceThreshold
}
