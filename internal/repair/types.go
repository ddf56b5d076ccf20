// Package repair implements the self-correction engine: a single
// deterministic table-driven fix pass, then a bounded iterative loop of
// broader heuristics, then structured feedback for upstream regeneration
// when both fail. Every attempt is recorded in the session so repair
// effectiveness is independently verifiable from the trace.
package repair

import (
	"time"

	"github.com/scanforge/scanforge/internal/agent"
	"github.com/scanforge/scanforge/internal/types"
	"github.com/scanforge/scanforge/internal/validate"
)

// Phase identifies which part of the repair cycle produced an attempt.
type Phase string

const (
	PhaseAutonomous Phase = "autonomous"
	PhaseIterative  Phase = "iterative"
)

// Attempt is the record of one repair attempt, successful or not.
type Attempt struct {
	Index     int      `json:"index"`
	Phase     Phase    `json:"phase"`
	Technique string   `json:"technique"`
	Before    string   `json:"before"`
	After     string   `json:"after"`
	Changes   []string `json:"changes,omitempty"`
	Success   bool     `json:"success"`
}

// Session is the complete record of one repair cycle. It is owned by
// the engine for the cycle's lifetime and archived to the trace when the
// cycle ends.
type Session struct {
	ID         types.ID        `json:"id"`
	RequestID  types.ID        `json:"request_id"`
	Attempts   []Attempt       `json:"attempts"`
	Success    bool            `json:"success"`
	Autonomous bool            `json:"autonomous"`
	Feedback   *agent.Feedback `json:"feedback,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	EndedAt    time.Time       `json:"ended_at"`
}

// Outcome is what the engine hands back to the orchestrator: either a
// repaired candidate with its final validation result, or feedback
// demanding regeneration at a stronger tier, never both.
type Outcome struct {
	Repaired *agent.Candidate
	Final    validate.Result
	Feedback *agent.Feedback
	Session  Session
}

// Succeeded reports whether the cycle produced a valid command.
func (o Outcome) Succeeded() bool {
	return o.Repaired != nil
}
