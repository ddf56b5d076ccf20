package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/scanforge/scanforge/internal/agent"
	"github.com/scanforge/scanforge/internal/events"
	"github.com/scanforge/scanforge/internal/query"
	"github.com/scanforge/scanforge/internal/repair"
	"github.com/scanforge/scanforge/internal/trace"
	"github.com/scanforge/scanforge/internal/types"
	"github.com/scanforge/scanforge/internal/validate"
)

// Stage names recorded in the audit trail.
const (
	stageClassify  = "classify"
	stageGenerate  = "generate"
	stageValidate  = "validate"
	stageRepair    = "repair"
	stageEscalate  = "escalate"
	stageFinalize  = "finalize"
	stageCancelled = "cancelled"
)

// Orchestrator drives one pipeline run per request through the state
// machine
//
//	CLASSIFY → GENERATE → VALIDATE →
//	  {ACCEPT | REPAIR → {ACCEPT | ESCALATE → GENERATE} | REJECT}
//
// Generator, validator, and sandbox calls are the only operations that
// may block; each carries its own timeout. All failures except invalid
// input and escalation exhaustion are absorbed into state transitions
// and surface only in the trace.
type Orchestrator struct {
	classifier *query.Classifier
	router     *agent.Router
	validator  *validate.Validator
	engine     *repair.Engine
	policy     *EscalationPolicy

	recorder trace.Recorder
	stats    *trace.Stats
	bus      events.Bus
	logger   *slog.Logger
	tracer   oteltrace.Tracer
}

// Option is a functional option for configuring the Orchestrator.
type Option func(*Orchestrator)

// WithRecorder sets the trace sink. Default: in-memory recorder.
func WithRecorder(r trace.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithStats sets the shared aggregate counters.
func WithStats(s *trace.Stats) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.stats = s
		}
	}
}

// WithEventBus sets the bus pipeline events are published on.
func WithEventBus(bus events.Bus) Option {
	return func(o *Orchestrator) {
		if bus != nil {
			o.bus = bus
		}
	}
}

// WithLogger sets the logger for orchestrator operations.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets the OpenTelemetry tracer for pipeline spans.
func WithTracer(t oteltrace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithEscalationPolicy replaces the default escalation policy.
func WithEscalationPolicy(p *EscalationPolicy) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.policy = p
		}
	}
}

// NewOrchestrator creates an Orchestrator over its four required
// components.
func NewOrchestrator(classifier *query.Classifier, router *agent.Router, validator *validate.Validator, engine *repair.Engine, options ...Option) *Orchestrator {
	o := &Orchestrator{
		classifier: classifier,
		router:     router,
		validator:  validator,
		engine:     engine,
		policy:     NewEscalationPolicy(0.4),
		recorder:   trace.NewMemoryRecorder(),
		stats:      trace.NewStats(),
		logger:     slog.Default(),
		tracer:     noop.NewTracerProvider().Tracer("pipeline"),
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// Recorder exposes the trace sink for audit replay.
func (o *Orchestrator) Recorder() trace.Recorder {
	return o.recorder
}

// Stats exposes the aggregate repair counters.
func (o *Orchestrator) Stats() *trace.Stats {
	return o.stats
}

// Submit runs the full pipeline for one query and returns the final
// decision. The returned error is non-nil only for the two
// caller-visible terminal failures: invalid input and escalation
// exhaustion.
func (o *Orchestrator) Submit(ctx context.Context, q query.Query) (FinalDecision, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline.Submit",
		oteltrace.WithAttributes(attribute.String("request.id", q.ID.String())),
	)
	defer span.End()

	o.publish(ctx, events.Event{Type: events.EventPipelineStarted, RequestID: q.ID})
	o.logger.InfoContext(ctx, "pipeline starting", "request_id", q.ID.String())

	// CLASSIFY
	start := time.Now()
	cls, err := o.classifier.Classify(q)
	if err == nil && !o.classifier.IsScanRelated(q) {
		err = types.NewError(types.INVALID_INPUT, "query is not a network scan request")
	}
	if err != nil {
		o.record(ctx, q.ID, stageClassify, q.Text, err.Error(), start)
		o.publish(ctx, events.Event{Type: events.EventPipelineRejected, RequestID: q.ID})
		return FinalDecision{
			RequestID:    q.ID,
			Status:       StatusRejected,
			RejectReason: err.Error(),
		}, err
	}
	o.record(ctx, q.ID, stageClassify, q.Text,
		fmt.Sprintf("tier=%s confidence=%.2f", cls.Tier, cls.Confidence), start)
	o.publish(ctx, events.Event{Type: events.EventClassified, RequestID: q.ID, Tier: cls.Tier.String()})

	tier := cls.Tier
	var feedback *agent.Feedback

	for {
		if decision, done, err := o.checkCancelled(ctx, q.ID); done {
			return decision, err
		}

		// GENERATE
		start = time.Now()
		o.publish(ctx, events.Event{Type: events.EventGenerateStarted, RequestID: q.ID, Tier: tier.String()})
		cand, genErr := o.router.Generate(ctx, tier, q, feedback)
		if genErr != nil {
			if errors.Is(genErr, context.Canceled) {
				// The terminal record must still reach a durable sink, so
				// it is written outside the cancelled context.
				o.record(context.WithoutCancel(ctx), q.ID, stageCancelled, tier.String(), "cancelled during generation", start)
				o.publish(context.WithoutCancel(ctx), events.Event{Type: events.EventPipelineCancelled, RequestID: q.ID})
				return FinalDecision{RequestID: q.ID, Status: StatusRejected, RejectReason: "cancelled"}, genErr
			}

			o.record(ctx, q.ID, stageGenerate, tier.String(), "failed: "+genErr.Error(), start)
			o.publish(ctx, events.Event{Type: events.EventGenerateFailed, RequestID: q.ID, Tier: tier.String()})

			reason := ReasonAgentUnavailable
			if types.CodeOf(genErr) == types.AGENT_TIMEOUT {
				reason = ReasonAgentTimeout
			}
			next, ok := o.escalate(ctx, q.ID, tier, reason)
			if !ok {
				return o.reject(ctx, q.ID, "all generator tiers failed", genErr)
			}
			tier = next
			continue
		}
		o.record(ctx, q.ID, stageGenerate, tier.String(),
			fmt.Sprintf("agent=%s confidence=%.2f command=%s", cand.SourceAgent, cand.Confidence, summarize(cand.Command)), start)
		o.publish(ctx, events.Event{Type: events.EventGenerateFinished, RequestID: q.ID, Tier: tier.String()})

		// VALIDATE
		start = time.Now()
		result := o.validator.Validate(ctx, cand)
		o.record(ctx, q.ID, stageValidate, summarize(cand.Command),
			fmt.Sprintf("status=%s risk=%d/%s issues=%d", result.Status, result.RiskScore, result.RiskLevel, len(result.Issues)), start)
		o.publish(ctx, events.Event{Type: events.EventValidated, RequestID: q.ID, Tier: tier.String(),
			Attrs: map[string]any{"status": string(result.Status)}})

		if result.Status == validate.StatusValid {
			if o.policy.ShouldPromote(cand.Confidence) {
				if next, ok := o.escalate(ctx, q.ID, tier, ReasonLowConfidence); ok {
					feedback = nil
					tier = next
					continue
				}
			}
			return o.finalize(ctx, q.ID, cand, result, false), nil
		}

		// REPAIR
		start = time.Now()
		o.publish(ctx, events.Event{Type: events.EventRepairStarted, RequestID: q.ID, Tier: tier.String()})
		outcome := o.engine.Repair(ctx, q.ID, cand, result)
		o.stats.RecordSession(outcome.Succeeded(), outcome.Session.Autonomous)
		o.archiveSession(ctx, q.ID, outcome.Session)
		o.record(ctx, q.ID, stageRepair, summarize(cand.Command),
			fmt.Sprintf("success=%t autonomous=%t attempts=%d", outcome.Succeeded(), outcome.Session.Autonomous, len(outcome.Session.Attempts)), start)
		o.publish(ctx, events.Event{Type: events.EventRepairFinished, RequestID: q.ID, Tier: tier.String(),
			Attrs: map[string]any{"success": outcome.Succeeded()}})

		if outcome.Succeeded() {
			return o.finalize(ctx, q.ID, *outcome.Repaired, outcome.Final, true), nil
		}

		next, ok := o.escalate(ctx, q.ID, tier, ReasonRepairExhausted)
		if !ok {
			return o.reject(ctx, q.ID, "validation and repair failed at every tier", nil)
		}
		feedback = outcome.Feedback
		tier = next
	}
}

// Trace retrieves the full audit trail for a request ID.
func (o *Orchestrator) Trace(ctx context.Context, requestID types.ID) ([]trace.Record, error) {
	return o.recorder.ByRequest(ctx, requestID)
}

// escalate records and publishes a tier promotion. Returns ok=false
// when the policy has no stronger tier left.
func (o *Orchestrator) escalate(ctx context.Context, requestID types.ID, current query.Tier, reason EscalationReason) (query.Tier, bool) {
	start := time.Now()
	next, ok := o.policy.NextTier(current, reason)
	if !ok {
		o.record(ctx, requestID, stageEscalate, current.String(),
			fmt.Sprintf("exhausted reason=%s", reason), start)
		return current, false
	}

	o.record(ctx, requestID, stageEscalate, current.String(),
		fmt.Sprintf("next=%s reason=%s", next, reason), start)
	o.publish(ctx, events.Event{Type: events.EventEscalated, RequestID: requestID, Tier: next.String(),
		Attrs: map[string]any{"reason": string(reason)}})
	o.logger.InfoContext(ctx, "escalating to stronger tier",
		"request_id", requestID.String(),
		"from", current.String(),
		"to", next.String(),
		"reason", string(reason),
	)
	return next, true
}

// finalize builds the accepted decision. A corrected command or an
// elevated risk level downgrades acceptance to accepted-with-warnings.
func (o *Orchestrator) finalize(ctx context.Context, requestID types.ID, cand agent.Candidate, result validate.Result, corrected bool) FinalDecision {
	status := StatusAccepted
	if corrected || result.RiskLevel != validate.RiskLow {
		status = StatusAcceptedWithWarnings
	}

	decision := FinalDecision{
		RequestID:        requestID,
		Command:          cand.Command,
		Confidence:       cand.Confidence,
		FlagExplanations: cand.FlagExplanations,
		Status:           status,
		SourceAgent:      cand.SourceAgent,
		Corrected:        corrected,
	}

	start := time.Now()
	o.record(ctx, requestID, stageFinalize, summarize(cand.Command),
		fmt.Sprintf("status=%s corrected=%t", status, corrected), start)
	o.publish(ctx, events.Event{Type: events.EventPipelineCompleted, RequestID: requestID,
		Attrs: map[string]any{"status": string(status)}})
	o.logger.InfoContext(ctx, "pipeline accepted command",
		"request_id", requestID.String(),
		"status", string(status),
		"corrected", corrected,
	)
	return decision
}

// reject terminates the run with the caller-visible rejection.
func (o *Orchestrator) reject(ctx context.Context, requestID types.ID, reason string, cause error) (FinalDecision, error) {
	start := time.Now()
	o.record(ctx, requestID, stageFinalize, "", "rejected: "+reason, start)
	o.publish(ctx, events.Event{Type: events.EventPipelineRejected, RequestID: requestID})
	o.logger.WarnContext(ctx, "pipeline rejected request",
		"request_id", requestID.String(),
		"reason", reason,
	)

	err := types.WrapError(types.ESCALATION_EXHAUSTED, reason, cause)
	return FinalDecision{
		RequestID:    requestID,
		Status:       StatusRejected,
		RejectReason: reason,
	}, err
}

// checkCancelled writes the terminal cancelled record when the caller
// has given up; no further stage transitions are recorded after it.
func (o *Orchestrator) checkCancelled(ctx context.Context, requestID types.ID) (FinalDecision, bool, error) {
	select {
	case <-ctx.Done():
		o.record(context.WithoutCancel(ctx), requestID, stageCancelled, "", ctx.Err().Error(), time.Now())
		o.publish(context.WithoutCancel(ctx), events.Event{Type: events.EventPipelineCancelled, RequestID: requestID})
		return FinalDecision{RequestID: requestID, Status: StatusRejected, RejectReason: "cancelled"}, true, ctx.Err()
	default:
		return FinalDecision{}, false, nil
	}
}

// archiveSession appends every repair attempt to the trail so the
// session survives after the engine discards it.
func (o *Orchestrator) archiveSession(ctx context.Context, requestID types.ID, session repair.Session) {
	for _, attempt := range session.Attempts {
		o.record(ctx, requestID, stageRepair+".attempt",
			summarize(attempt.Before),
			fmt.Sprintf("phase=%s technique=%s success=%t after=%s",
				attempt.Phase, attempt.Technique, attempt.Success, summarize(attempt.After)),
			session.StartedAt)
	}
}

func (o *Orchestrator) record(ctx context.Context, requestID types.ID, stage, in, out string, start time.Time) {
	err := o.recorder.Append(ctx, trace.Record{
		RequestID:     requestID,
		Stage:         stage,
		InputSummary:  in,
		OutputSummary: out,
		Timestamp:     start,
		Duration:      time.Since(start),
	})
	if err != nil {
		// Trace writes must not fail the pipeline.
		o.logger.WarnContext(ctx, "trace append failed", "stage", stage, "error", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, event events.Event) {
	if o.bus == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := o.bus.Publish(ctx, event); err != nil {
		o.logger.DebugContext(ctx, "event publish failed", "type", string(event.Type), "error", err)
	}
}

const summaryLimit = 160

// summarize truncates long text for trace summaries.
func summarize(s string) string {
	if len(s) <= summaryLimit {
		return s
	}
	return s[:summaryLimit] + "..."
}
