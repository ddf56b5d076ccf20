// Package pipeline composes classification, generation, validation,
// repair, and escalation into one orchestrated run per request, emitting
// a FinalDecision and a complete audit trace.
package pipeline

import (
	"github.com/scanforge/scanforge/internal/types"
)

// DecisionStatus is the terminal status of a pipeline run.
type DecisionStatus string

const (
	// StatusAccepted means the command passed validation untouched.
	StatusAccepted DecisionStatus = "accepted"
	// StatusAcceptedWithWarnings means the command was accepted after
	// correction or carries elevated risk.
	StatusAcceptedWithWarnings DecisionStatus = "accepted_with_warnings"
	// StatusRejected means no tier produced an acceptable command.
	StatusRejected DecisionStatus = "rejected"
)

// FinalDecision is the single output object of a pipeline run.
type FinalDecision struct {
	RequestID        types.ID          `json:"request_id"`
	Command          string            `json:"command,omitempty"`
	Confidence       float64           `json:"confidence"`
	FlagExplanations map[string]string `json:"flags_explanation,omitempty"`
	Status           DecisionStatus    `json:"status"`
	SourceAgent      string            `json:"source_agent,omitempty"`
	Corrected        bool              `json:"corrected"`
	RejectReason     string            `json:"reject_reason,omitempty"`
}
