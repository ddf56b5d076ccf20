package query

import (
	"strings"

	"github.com/scanforge/scanforge/internal/types"
)

// Keyword tables driving tier selection. Matching walks hard before
// medium so a query mentioning both lands on the stronger tier.
var (
	hardKeywords = []string{
		"udp", "all ports", "os detect", "os detection", "fragment",
		"bypass", "evasion", "decoy", "firewall", "idle scan", "-su", "-f",
	}

	mediumKeywords = []string{
		"version", "script", "timing", "exclude", "-sv", "-t4",
		"service detection", "traceroute", "top ports",
	}

	scanHints = []string{
		"nmap", "scan", "port", "ping", "host", "discover", "-ss", "-su",
		"-p", "--open", "udp", "tcp",
	}
)

// Classifier maps a raw query to a complexity tier with a confidence
// score. Classification is a pure function of the query text so that
// escalation retries are reproducible for audit.
type Classifier struct {
	minConfidence float64
}

// NewClassifier creates a Classifier. minConfidence is recorded for
// callers that want to inspect the threshold but does not change the
// classification itself.
func NewClassifier(minConfidence float64) *Classifier {
	return &Classifier{minConfidence: minConfidence}
}

// Classify returns the complexity tier for a query.
//
// Returns INVALID_INPUT for empty or whitespace-only text; the
// orchestrator must not call any downstream stage in that case.
func (c *Classifier) Classify(q Query) (Classification, error) {
	if q.IsEmpty() {
		return Classification{}, types.NewError(types.INVALID_INPUT, "query text is empty")
	}

	text := strings.ToLower(q.Text)

	if kw, ok := matchAny(text, hardKeywords); ok {
		return Classification{
			Tier:       TierHard,
			Confidence: 0.7,
			Reason:     "matched hard keyword: " + kw,
		}, nil
	}

	if kw, ok := matchAny(text, mediumKeywords); ok {
		return Classification{
			Tier:       TierMedium,
			Confidence: 0.6,
			Reason:     "matched medium keyword: " + kw,
		}, nil
	}

	return Classification{
		Tier:       TierEasy,
		Confidence: 0.8,
		Reason:     "no complexity keywords matched",
	}, nil
}

// IsScanRelated reports whether the query plausibly concerns a network
// scan at all. Unrelated requests are rejected before classification.
func (c *Classifier) IsScanRelated(q Query) bool {
	text := strings.ToLower(q.Text)
	_, ok := matchAny(text, scanHints)
	return ok
}

func matchAny(text string, keywords []string) (string, bool) {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return kw, true
		}
	}
	return "", false
}
