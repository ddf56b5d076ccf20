package repair

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/scanforge/scanforge/internal/agent"
	"github.com/scanforge/scanforge/internal/types"
	"github.com/scanforge/scanforge/internal/validate"
)

// sourceAutonomous and sourceIterative mark a repaired candidate with
// the phase that produced it.
const (
	sourceAutonomous = "self-corr-auto"
	sourceIterative  = "self-corr-iter"
)

// Engine runs one repair cycle per call:
//
//	START → AUTONOMOUS → (success: DONE) | (fail: ITERATIVE)
//	      → (success: DONE) | (fail: ESCALATE)
//
// The autonomous phase is a single table-driven pass with exactly one
// re-validation; it never loops. The iterative phase is bounded by
// maxAttempts. On exhaustion the engine produces feedback for upstream
// regeneration instead of a command.
type Engine struct {
	validator   *validate.Validator
	maxAttempts int
	tracer      trace.Tracer
	logger      *slog.Logger
}

// EngineOption is a functional option for configuring the Engine.
type EngineOption func(*Engine)

// WithMaxAttempts sets the iterative attempt cap. Default: 3.
func WithMaxAttempts(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithTracer sets the OpenTelemetry tracer for repair spans.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithLogger sets the logger for repair operations.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates a repair Engine over the validator used for
// re-validation after each attempt.
func NewEngine(validator *validate.Validator, options ...EngineOption) *Engine {
	e := &Engine{
		validator:   validator,
		maxAttempts: 3,
		tracer:      noop.NewTracerProvider().Tracer("repair"),
		logger:      slog.Default(),
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

// Repair runs one cycle for the candidate and its validation result.
// Candidates are replaced, never mutated: every attempt produces a new
// command string recorded in the session.
func (e *Engine) Repair(ctx context.Context, requestID types.ID, cand agent.Candidate, result validate.Result) Outcome {
	ctx, span := e.tracer.Start(ctx, "repair.Repair",
		trace.WithAttributes(attribute.String("request.id", requestID.String())),
	)
	defer span.End()

	session := Session{
		ID:        types.NewID(),
		RequestID: requestID,
		StartedAt: time.Now(),
	}

	current := cand
	currentResult := result

	// AUTONOMOUS: only for repairable findings. An invalid verdict means
	// the table has nothing to offer and the cycle goes straight to the
	// iterative phase.
	if result.Status == validate.StatusRepairable {
		if outcome, done := e.autonomousPhase(ctx, &session, &current, &currentResult); done {
			span.SetAttributes(attribute.Bool("repair.autonomous", true))
			return outcome
		}
	}

	// ITERATIVE: bounded loop of broader heuristics.
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		technique, fixed, changes := nextHeuristic(current.Command, currentResult, attempt-1)

		record := Attempt{
			Index:     len(session.Attempts) + 1,
			Phase:     PhaseIterative,
			Technique: technique,
			Before:    current.Command,
			After:     fixed,
			Changes:   changes,
		}

		if technique == "" {
			// No heuristic can change the command any further.
			record.Technique = "none_applicable"
			session.Attempts = append(session.Attempts, record)
			break
		}

		next := current.WithCommand(fixed, sourceIterative)
		nextResult := e.validator.Validate(ctx, next)
		record.Success = nextResult.Status == validate.StatusValid
		session.Attempts = append(session.Attempts, record)

		e.logger.DebugContext(ctx, "iterative repair attempt",
			"request_id", requestID.String(),
			"attempt", attempt,
			"technique", technique,
			"status", nextResult.Status,
		)

		current = next
		currentResult = nextResult

		if record.Success {
			session.Success = true
			session.EndedAt = time.Now()
			return Outcome{Repaired: &current, Final: currentResult, Session: session}
		}
	}

	// ESCALATE: produce feedback instead of a command.
	feedback := e.buildFeedback(session, currentResult)
	session.Feedback = feedback
	session.EndedAt = time.Now()

	e.logger.InfoContext(ctx, "repair exhausted, requesting regeneration",
		"request_id", requestID.String(),
		"attempts", len(session.Attempts),
		"feedback_type", feedback.Type,
	)
	span.SetAttributes(attribute.String("repair.feedback", string(feedback.Type)))

	return Outcome{Feedback: feedback, Session: session}
}

// autonomousPhase applies all matching table fixes in one pass and
// re-validates exactly once. Returns done=true only on success.
func (e *Engine) autonomousPhase(ctx context.Context, session *Session, current *agent.Candidate, currentResult *validate.Result) (Outcome, bool) {
	fixed, changes, techniques := applyAutonomousFixes(current.Command, currentResult.Issues)

	record := Attempt{
		Index:     1,
		Phase:     PhaseAutonomous,
		Technique: joinTechniques(techniques),
		Before:    current.Command,
		After:     fixed,
		Changes:   changes,
	}

	if len(changes) == 0 {
		record.Technique = "no_fix_available"
		session.Attempts = append(session.Attempts, record)
		return Outcome{}, false
	}

	next := current.WithCommand(fixed, sourceAutonomous)
	nextResult := e.validator.Validate(ctx, next)
	record.Success = nextResult.Status == validate.StatusValid
	session.Attempts = append(session.Attempts, record)

	e.logger.DebugContext(ctx, "autonomous repair pass",
		"request_id", session.RequestID.String(),
		"techniques", record.Technique,
		"status", nextResult.Status,
	)

	*current = next
	*currentResult = nextResult

	if !record.Success {
		// One pass only; the phase fails and the iterative loop takes
		// over from the partially improved command.
		return Outcome{}, false
	}

	session.Success = true
	session.Autonomous = true
	session.EndedAt = time.Now()
	return Outcome{Repaired: current, Final: *currentResult, Session: *session}, true
}

// buildFeedback derives the regeneration request from the issues that
// survived every attempt.
func (e *Engine) buildFeedback(session Session, last validate.Result) *agent.Feedback {
	fb := &agent.Feedback{
		Type:          agent.FeedbackRegeneration,
		ErrorCategory: "unresolved",
		Severity:      string(validate.SeverityMedium),
		Suggestion:    "generate a simpler command with fewer options",
		AttemptsMade:  len(session.Attempts),
	}

	for _, issue := range last.Issues {
		fb.PersistentIssues = append(fb.PersistentIssues, issue.String())
	}

	switch {
	case last.HasKind(validate.KindPermission):
		fb.Type = agent.FeedbackPrivilegeDowngrade
		fb.ErrorCategory = string(validate.KindPermission)
		fb.Suggestion = "use an unprivileged scan type such as -sT"
	case last.HasKind(validate.KindUnsafeTarget), last.HasKind(validate.KindNetwork):
		fb.Type = agent.FeedbackTargetModification
		fb.ErrorCategory = string(validate.KindUnsafeTarget)
		fb.Suggestion = "choose a reachable, non-protected target"
	case last.HasKind(validate.KindForbiddenFlag):
		fb.Type = agent.FeedbackParameterChange
		fb.ErrorCategory = string(validate.KindForbiddenFlag)
		fb.Severity = string(validate.SeverityHigh)
		fb.Suggestion = "avoid forbidden flags and unsafe NSE scripts"
	case len(session.Attempts) >= e.maxAttempts:
		fb.Type = agent.FeedbackComplexityReduction
		fb.ErrorCategory = "max_attempts"
	}

	return fb
}

func joinTechniques(techniques []string) string {
	if len(techniques) == 0 {
		return "no_fix_available"
	}
	out := techniques[0]
	for _, t := range techniques[1:] {
		out += "+" + t
	}
	return out
}
