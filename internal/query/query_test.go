package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewCopiesContext verifies caller mutations of the context map do
// not leak into the query.
func TestNewCopiesContext(t *testing.T) {
	ctx := map[string]string{"env": "staging"}
	q := New("scan the host", "10.0.0.1", ctx)

	ctx["env"] = "production"
	assert.Equal(t, "staging", q.Context["env"], "query context must be a copy")
	assert.False(t, q.ID.IsZero(), "query must receive a fresh ID")
}

// TestTierWalkIsMonotone verifies Next walks easy→medium→hard exactly
// once and stops.
func TestTierWalkIsMonotone(t *testing.T) {
	tier := TierEasy
	var visited []Tier

	for {
		visited = append(visited, tier)
		next, ok := tier.Next()
		if !ok {
			break
		}
		require.Greater(t, int(next), int(tier), "escalation must be strictly monotone")
		tier = next
	}

	assert.Equal(t, []Tier{TierEasy, TierMedium, TierHard}, visited)

	_, ok := TierHard.Next()
	assert.False(t, ok, "hard has no next tier")
}

// TestParseTier verifies the configuration-edge parser.
func TestParseTier(t *testing.T) {
	for name, want := range map[string]Tier{
		"easy": TierEasy, "Medium": TierMedium, " HARD ": TierHard,
	} {
		got, err := ParseTier(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseTier("extreme")
	assert.Error(t, err)
}
