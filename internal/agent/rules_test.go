package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanforge/scanforge/internal/query"
)

// TestRuleGeneratorSynthesis verifies keyword-to-flag synthesis.
func TestRuleGeneratorSynthesis(t *testing.T) {
	gen := NewRuleGenerator("rules", "")

	tests := []struct {
		name     string
		text     string
		target   string
		contains []string
	}{
		{"default connect scan", "scan the host", "10.0.0.1", []string{"nmap", "-sT", "10.0.0.1"}},
		{"stealth scan", "stealth scan of 10.0.0.1", "", []string{"-sS", "10.0.0.1"}},
		{"udp scan", "udp scan the server", "192.168.1.5", []string{"-sU"}},
		{"version detection", "scan with service version info", "10.0.0.1", []string{"-sV"}},
		{"host discovery", "ping sweep to find alive hosts", "10.0.0.1", []string{"-sn"}},
		{"port range", "scan ports 80-443 on the box", "10.0.0.1", []string{"-p", "80-443"}},
		{"all ports", "scan all ports", "10.0.0.1", []string{"-p-"}},
		{"fast scan", "fast scan of the host", "10.0.0.1", []string{"-T4"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cand, err := gen.Generate(context.Background(), query.New(tt.text, tt.target, nil), nil)
			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, cand.Command, want, "command: %s", cand.Command)
			}
			assert.True(t, strings.HasPrefix(cand.Command, "nmap "), "command must start with nmap")
			assert.Equal(t, "rules", cand.SourceAgent)
		})
	}
}

// TestRuleGeneratorTargetResolution verifies target precedence: explicit
// target, then a target found in the text, then the default.
func TestRuleGeneratorTargetResolution(t *testing.T) {
	gen := NewRuleGenerator("rules", "fallback.example.com")

	cand, err := gen.Generate(context.Background(), query.New("scan the host", "10.1.2.3", nil), nil)
	require.NoError(t, err)
	assert.Contains(t, cand.Command, "10.1.2.3", "explicit target wins")

	cand, err = gen.Generate(context.Background(), query.New("scan host web.example.org", "", nil), nil)
	require.NoError(t, err)
	assert.Contains(t, cand.Command, "web.example.org", "target from text is used")

	cand, err = gen.Generate(context.Background(), query.New("scan the host", "", nil), nil)
	require.NoError(t, err)
	assert.Contains(t, cand.Command, "fallback.example.com", "default target fills in")
}

// TestRuleGeneratorPrivilegeDowngradeFeedback verifies privileged scan
// types are replaced when feedback asks for a downgrade.
func TestRuleGeneratorPrivilegeDowngradeFeedback(t *testing.T) {
	gen := NewRuleGenerator("rules", "")
	fb := &Feedback{Type: FeedbackPrivilegeDowngrade}

	cand, err := gen.Generate(context.Background(), query.New("stealth scan of 10.0.0.1", "", nil), fb)
	require.NoError(t, err)
	assert.NotContains(t, cand.Command, "-sS", "privileged scan type must be downgraded")
	assert.Contains(t, cand.Command, "-sT")
}

// TestRuleGeneratorConfidence verifies confidence grows with matched
// rules and stays capped.
func TestRuleGeneratorConfidence(t *testing.T) {
	gen := NewRuleGenerator("rules", "")

	plain, err := gen.Generate(context.Background(), query.New("scan the host", "10.0.0.1", nil), nil)
	require.NoError(t, err)

	rich, err := gen.Generate(context.Background(), query.New("fast stealth scan with version detection", "10.0.0.1", nil), nil)
	require.NoError(t, err)

	assert.Greater(t, rich.Confidence, plain.Confidence, "more matches should raise confidence")
	assert.LessOrEqual(t, rich.Confidence, 0.85, "confidence must stay capped")
}
