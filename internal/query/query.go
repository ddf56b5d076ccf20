// Package query defines the immutable scan request value and the
// deterministic complexity classifier that routes it to a generator tier.
package query

import (
	"fmt"
	"strings"

	"github.com/scanforge/scanforge/internal/types"
)

// Query is the immutable natural-language scan request. It is created at
// request entry and never mutated; the pipeline threads it through every
// stage by value.
type Query struct {
	ID      types.ID          `json:"id"`
	Text    string            `json:"text"`
	Target  string            `json:"target,omitempty"`
	Context map[string]string `json:"context,omitempty"`
}

// New creates a Query with a fresh request ID. The context map is copied
// so later caller mutations cannot leak into the pipeline.
func New(text, target string, context map[string]string) Query {
	var ctx map[string]string
	if len(context) > 0 {
		ctx = make(map[string]string, len(context))
		for k, v := range context {
			ctx[k] = v
		}
	}
	return Query{
		ID:      types.NewID(),
		Text:    text,
		Target:  target,
		Context: ctx,
	}
}

// IsEmpty reports whether the query text is empty or whitespace-only.
func (q Query) IsEmpty() bool {
	return strings.TrimSpace(q.Text) == ""
}

// Tier is a generator complexity level. The set is closed: every tier is
// resolved to a concrete generator at construction time, never by runtime
// string dispatch.
type Tier int

const (
	TierEasy Tier = iota
	TierMedium
	TierHard
)

// Tiers lists all tiers in escalation order.
var Tiers = [3]Tier{TierEasy, TierMedium, TierHard}

// String returns the lowercase tier name.
func (t Tier) String() string {
	switch t {
	case TierEasy:
		return "easy"
	case TierMedium:
		return "medium"
	case TierHard:
		return "hard"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// Next returns the next stronger tier, or false once TierHard has been
// reached. The walk is strictly monotone.
func (t Tier) Next() (Tier, bool) {
	if t >= TierHard {
		return t, false
	}
	return t + 1, true
}

// ParseTier parses a tier name. Used only at configuration edges; the
// pipeline itself never dispatches on strings.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return TierEasy, nil
	case "medium":
		return TierMedium, nil
	case "hard":
		return TierHard, nil
	default:
		return TierEasy, fmt.Errorf("unknown tier %q", s)
	}
}

// Classification is the classifier verdict: the chosen tier and the
// confidence the classifier assigns to it, in [0,1].
type Classification struct {
	Tier       Tier    `json:"tier"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}
