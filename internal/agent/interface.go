package agent

import (
	"context"

	"github.com/scanforge/scanforge/internal/query"
)

// Generator produces a command candidate for a query. Implementations
// are external collaborators (retrieval, fine-tuned model, rule
// synthesis); the pipeline treats them as black boxes and never inspects
// how a candidate was produced.
//
// Generate must honor ctx cancellation and deadlines. A transport or
// availability failure is returned as an error; the generator never
// retries internally, escalation is the orchestrator's concern.
type Generator interface {
	// Name returns the unique identifier recorded as Candidate.SourceAgent.
	Name() string

	// Generate produces a candidate for the query. feedback, when non-nil,
	// carries the failure analysis from a previous tier's repair cycle.
	Generate(ctx context.Context, q query.Query, feedback *Feedback) (Candidate, error)
}

// Registry binds each complexity tier to exactly one generator. The set
// is closed at construction time: there is no lookup by name and no way
// to register a tier twice.
type Registry struct {
	easy   Generator
	medium Generator
	hard   Generator
}

// NewRegistry creates a Registry from one generator per tier. All three
// must be non-nil.
func NewRegistry(easy, medium, hard Generator) *Registry {
	if easy == nil || medium == nil || hard == nil {
		panic("agent: registry requires a generator for every tier")
	}
	return &Registry{easy: easy, medium: medium, hard: hard}
}

// ForTier resolves the generator bound to a tier.
func (r *Registry) ForTier(t query.Tier) Generator {
	switch t {
	case query.TierEasy:
		return r.easy
	case query.TierMedium:
		return r.medium
	default:
		return r.hard
	}
}
