package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/scanforge/scanforge/internal/query"
	"github.com/scanforge/scanforge/internal/types"
)

// Router dispatches generation calls to the generator bound to a tier,
// enforcing the per-tier time budget. On timeout or transport failure it
// signals AGENT_TIMEOUT / AGENT_UNAVAILABLE rather than retrying; the
// escalation policy needs to distinguish "agent slow or down" from
// "agent produced a bad answer". The router never inspects or alters
// command content.
type Router struct {
	registry *Registry
	budget   TierBudget
	logger   *slog.Logger
}

// RouterOption is a functional option for configuring the Router.
type RouterOption func(*Router)

// WithBudget sets the per-tier timeout envelope.
func WithBudget(b TierBudget) RouterOption {
	return func(r *Router) {
		r.budget = b
	}
}

// WithLogger sets the logger for router operations.
func WithLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRouter creates a Router over the given registry.
func NewRouter(registry *Registry, options ...RouterOption) *Router {
	r := &Router{
		registry: registry,
		budget:   DefaultTierBudget(),
		logger:   slog.Default(),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// Generate calls the tier's generator under its time budget.
func (r *Router) Generate(ctx context.Context, tier query.Tier, q query.Query, feedback *Feedback) (Candidate, error) {
	gen := r.registry.ForTier(tier)

	timeout := r.budget.For(tier)
	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	cand, err := gen.Generate(genCtx, q, feedback)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			r.logger.WarnContext(ctx, "generator timed out",
				"tier", tier.String(),
				"agent", gen.Name(),
				"budget", timeout,
			)
			return Candidate{}, types.WrapRetryableError(types.AGENT_TIMEOUT,
				fmt.Sprintf("generator %s exceeded %s budget", gen.Name(), timeout), err)
		}
		if errors.Is(err, context.Canceled) {
			// Caller cancellation is not an agent failure.
			return Candidate{}, err
		}
		r.logger.WarnContext(ctx, "generator unavailable",
			"tier", tier.String(),
			"agent", gen.Name(),
			"error", err,
		)
		return Candidate{}, types.WrapRetryableError(types.AGENT_UNAVAILABLE,
			fmt.Sprintf("generator %s failed", gen.Name()), err)
	}

	if cand.Command == "" {
		return Candidate{}, types.NewRetryableError(types.AGENT_BAD_ANSWER,
			fmt.Sprintf("generator %s returned an empty command", gen.Name()))
	}

	r.logger.DebugContext(ctx, "candidate generated",
		"tier", tier.String(),
		"agent", gen.Name(),
		"confidence", cand.Confidence,
		"latency_ms", elapsed.Milliseconds(),
	)

	return cand, nil
}
