package validate

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/scanforge/scanforge/internal/agent"
)

// Validator runs the fixed validation stages over a candidate:
//
//  1. syntax check
//  2. security policy check
//  3. sandboxed execution probe
//  4. risk scoring
//
// Each stage records its own findings before any short-circuit. The
// sandbox probe is skipped once a high-severity finding is present;
// probing a command that is already rejected would only leak it into
// the execution environment.
type Validator struct {
	policy    *Policy
	sandbox   Sandbox
	riskModel []riskFactor
	tracer    trace.Tracer
	logger    *slog.Logger
}

// ValidatorOption is a functional option for configuring the Validator.
type ValidatorOption func(*Validator)

// WithPolicy sets the security policy.
func WithPolicy(p *Policy) ValidatorOption {
	return func(v *Validator) {
		if p != nil {
			v.policy = p
		}
	}
}

// WithSandbox sets the sandbox collaborator for the execution probe.
func WithSandbox(s Sandbox) ValidatorOption {
	return func(v *Validator) {
		if s != nil {
			v.sandbox = s
		}
	}
}

// WithTracer sets the OpenTelemetry tracer for stage spans.
func WithTracer(t trace.Tracer) ValidatorOption {
	return func(v *Validator) {
		if t != nil {
			v.tracer = t
		}
	}
}

// WithLogger sets the logger for validator operations.
func WithLogger(logger *slog.Logger) ValidatorOption {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewValidator creates a Validator with the default policy, the
// unprivileged simulator sandbox, and the default risk model.
func NewValidator(options ...ValidatorOption) *Validator {
	v := &Validator{
		policy:    NewPolicy(),
		sandbox:   NewSimulator(false),
		riskModel: defaultRiskModel,
		tracer:    noop.NewTracerProvider().Tracer("validate"),
		logger:    slog.Default(),
	}
	for _, opt := range options {
		opt(v)
	}
	return v
}

// Validate judges a candidate and returns an immutable Result.
func (v *Validator) Validate(ctx context.Context, cand agent.Candidate) Result {
	ctx, span := v.tracer.Start(ctx, "validate.Validate",
		trace.WithAttributes(attribute.String("candidate.source", cand.SourceAgent)),
	)
	defer span.End()

	var issues []Issue

	// Stage 1: syntax.
	parsed, syntaxIssues := checkSyntax(cand.Command)
	issues = append(issues, syntaxIssues...)
	unrecoverable := hasUnrecoverableSyntax(syntaxIssues)

	// Stage 2: security policy. Runs even on syntax failure so security
	// findings are never masked; security dominates the verdict.
	if !unrecoverable {
		issues = append(issues, v.policy.Check(parsed)...)
	}

	// Stage 3: sandbox probe, skipped once the command is already
	// rejected.
	highSoFar := countHigh(issues)
	if !unrecoverable && highSoFar == 0 {
		if execResult, err := v.sandbox.Execute(ctx, cand.Command); err != nil {
			v.logger.WarnContext(ctx, "sandbox probe failed",
				"error", err,
			)
		} else if execResult.ExitStatus != 0 {
			issues = append(issues, classifyExecErrors(execResult)...)
		}
	}

	// Stage 4: risk scoring always runs so every verdict carries a
	// risk level.
	score, fired := scoreRisk(v.riskModel, parsed, cand.Confidence)
	level := levelForScore(score)
	if level == RiskHigh {
		issues = append(issues, Issue{
			Kind:         KindRisk,
			Severity:     SeverityMedium,
			Message:      "high risk score from factors: " + strings.Join(fired, ", "),
			SuggestedFix: "relax timing and drop evasion flags",
		})
	}

	result := Result{
		Status:    deriveStatus(issues, unrecoverable),
		Issues:    issues,
		RiskScore: score,
		RiskLevel: level,
	}

	span.SetAttributes(
		attribute.String("validate.status", string(result.Status)),
		attribute.Int("validate.risk_score", score),
		attribute.Int("validate.issues", len(issues)),
	)
	v.logger.DebugContext(ctx, "validation complete",
		"status", result.Status,
		"risk_score", score,
		"risk_level", level,
		"issues", len(issues),
	)

	return result
}

// deriveStatus turns the collected findings into the verdict. Security
// violations and unrecoverable syntax force INVALID; anything else
// present but fixable is REPAIRABLE.
func deriveStatus(issues []Issue, unrecoverableSyntax bool) Status {
	if unrecoverableSyntax {
		return StatusInvalid
	}
	for _, issue := range issues {
		if issue.Severity == SeverityHigh {
			return StatusInvalid
		}
	}
	if len(issues) > 0 {
		return StatusRepairable
	}
	return StatusValid
}

// hasUnrecoverableSyntax reports whether tokenization itself failed:
// empty command, injection attempt, or a non-nmap binary. Flag-level
// findings are recoverable.
func hasUnrecoverableSyntax(issues []Issue) bool {
	for _, issue := range issues {
		if issue.Kind == KindSyntax && issue.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

func countHigh(issues []Issue) int {
	n := 0
	for _, issue := range issues {
		if issue.Severity == SeverityHigh {
			n++
		}
	}
	return n
}
