// Package agent defines the generation port the pipeline calls to turn a
// classified query into a command candidate, the closed tier registry
// that binds each complexity level to one generator, and the router that
// enforces per-call deadlines.
package agent

import (
	"time"

	"github.com/scanforge/scanforge/internal/query"
)

// Candidate is an unvalidated proposed command produced by a generator.
// The orchestrator owns it for the duration of one pipeline attempt and
// replaces it (never mutates it) on every generation or repair.
type Candidate struct {
	Command          string            `json:"command"`
	Rationale        string            `json:"rationale,omitempty"`
	SourceAgent      string            `json:"source_agent"`
	FlagExplanations map[string]string `json:"flag_explanations,omitempty"`
	Confidence       float64           `json:"confidence"`
}

// WithCommand returns a copy of the candidate carrying a different
// command string and source. Used by the repair engine so a corrected
// command is a new value, not an in-place edit.
func (c Candidate) WithCommand(command, source string) Candidate {
	next := c
	next.Command = command
	next.SourceAgent = source
	return next
}

// FeedbackType categorizes the upstream modification a failed repair
// cycle asks the next generator tier for.
type FeedbackType string

const (
	FeedbackComplexityReduction FeedbackType = "complexity_reduction"
	FeedbackParameterChange     FeedbackType = "parameter_change"
	FeedbackPrivilegeDowngrade  FeedbackType = "privilege_downgrade"
	FeedbackTargetModification  FeedbackType = "target_modification"
	FeedbackRegeneration        FeedbackType = "complete_regeneration"
)

// Feedback is the structured payload a failed repair cycle hands to the
// next generation attempt instead of a repaired command.
type Feedback struct {
	Type             FeedbackType `json:"type"`
	ErrorCategory    string       `json:"error_category"`
	Severity         string       `json:"severity"`
	Suggestion       string       `json:"suggestion"`
	AttemptsMade     int          `json:"attempts_made"`
	PersistentIssues []string     `json:"persistent_issues,omitempty"`
}

// TierBudget holds the per-call time allowance for each generator tier.
// Easy generators are expected to answer quickly; hard generators get a
// larger envelope.
type TierBudget struct {
	Easy   time.Duration
	Medium time.Duration
	Hard   time.Duration
}

// DefaultTierBudget returns the default per-tier timeout envelope.
func DefaultTierBudget() TierBudget {
	return TierBudget{
		Easy:   5 * time.Second,
		Medium: 15 * time.Second,
		Hard:   30 * time.Second,
	}
}

// For returns the time budget for a tier.
func (b TierBudget) For(t query.Tier) time.Duration {
	switch t {
	case query.TierEasy:
		return b.Easy
	case query.TierMedium:
		return b.Medium
	default:
		return b.Hard
	}
}
