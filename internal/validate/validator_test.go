package validate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanforge/scanforge/internal/agent"
)

func candidate(command string, confidence float64) agent.Candidate {
	return agent.Candidate{Command: command, SourceAgent: "test", Confidence: confidence}
}

// TestValidateCleanCommand verifies a safe, well-formed command passes
// every stage with no findings.
func TestValidateCleanCommand(t *testing.T) {
	v := NewValidator()
	result := v.Validate(context.Background(), candidate("nmap -sT -p 80-443 scanme.nmap.org", 0.8))

	assert.Equal(t, StatusValid, result.Status)
	assert.Empty(t, result.Issues)
	assert.Equal(t, RiskLow, result.RiskLevel)
}

// TestValidateForbiddenFlagNeverValid verifies every default forbidden
// flag forces INVALID regardless of the rest of the command.
func TestValidateForbiddenFlagNeverValid(t *testing.T) {
	v := NewValidator()

	for _, flag := range []string{"-oN out.txt", "-oX out.xml", "-oG out.gnmap", "-oA out", "--osscan-guess", "--badsum", "-T5"} {
		result := v.Validate(context.Background(), candidate("nmap -sT "+flag+" scanme.nmap.org", 0.8))
		assert.Equal(t, StatusInvalid, result.Status, "flag %q must be invalid", flag)
		assert.True(t, result.HasKind(KindForbiddenFlag), "flag %q must be a forbidden-flag finding", flag)
	}
}

// TestValidateSecurityDominates verifies a security violation forces
// INVALID even when recoverable findings are also present.
func TestValidateSecurityDominates(t *testing.T) {
	v := NewValidator()

	// Reversed port range alone is repairable; the forbidden flag must
	// still dominate.
	result := v.Validate(context.Background(), candidate("nmap -sT --badsum -p 443-80 scanme.nmap.org", 0.8))
	assert.Equal(t, StatusInvalid, result.Status, "security findings dominate repairable ones")
	assert.True(t, result.HasKind(KindForbiddenFlag))
	assert.True(t, result.HasKind(KindPortSpec), "recoverable findings must still be reported")
}

// TestValidateDangerousScript verifies unsafe NSE script categories are
// security violations.
func TestValidateDangerousScript(t *testing.T) {
	v := NewValidator()

	for _, script := range []string{"exploit", "brute", "malware", "dos", "intrusive"} {
		result := v.Validate(context.Background(), candidate("nmap -sT --script "+script+" scanme.nmap.org", 0.8))
		assert.Equal(t, StatusInvalid, result.Status, "script %q must be invalid", script)
	}

	result := v.Validate(context.Background(), candidate("nmap -sT --script default scanme.nmap.org", 0.8))
	assert.NotEqual(t, StatusInvalid, result.Status, "default scripts are allowed")
}

// TestValidateReversedPortsRepairable verifies a reversed range is a
// known-fixable finding with a suggested fix.
func TestValidateReversedPortsRepairable(t *testing.T) {
	v := NewValidator()
	result := v.Validate(context.Background(), candidate("nmap -sT -p 443-80 scanme.nmap.org", 0.8))

	assert.Equal(t, StatusRepairable, result.Status)
	require.True(t, result.HasKind(KindPortSpec))
	for _, issue := range result.Issues {
		if issue.Kind == KindPortSpec {
			assert.Equal(t, "80-443", issue.SuggestedFix)
		}
	}
}

// TestValidateUnrecoverableSyntax verifies empty commands, injection
// attempts, and non-nmap binaries are INVALID outright.
func TestValidateUnrecoverableSyntax(t *testing.T) {
	v := NewValidator()

	for name, command := range map[string]string{
		"empty":     "   ",
		"injection": "nmap -sT scanme.nmap.org; rm -rf /",
		"not nmap":  "masscan -p80 10.0.0.1",
	} {
		t.Run(name, func(t *testing.T) {
			result := v.Validate(context.Background(), candidate(command, 0.8))
			assert.Equal(t, StatusInvalid, result.Status)
		})
	}
}

// TestValidatePermissionProbe verifies the unprivileged simulator turns
// privileged scan types into a repairable permission finding.
func TestValidatePermissionProbe(t *testing.T) {
	v := NewValidator(WithSandbox(NewSimulator(false)))
	result := v.Validate(context.Background(), candidate("nmap -sS scanme.nmap.org", 0.8))

	assert.Equal(t, StatusRepairable, result.Status)
	assert.True(t, result.HasKind(KindPermission), "unprivileged -sS must be a permission finding")

	privileged := NewValidator(WithSandbox(NewSimulator(true)))
	result = privileged.Validate(context.Background(), candidate("nmap -sS scanme.nmap.org", 0.8))
	assert.False(t, result.HasKind(KindPermission), "privileged sandbox raises no permission finding")
}

// TestValidateProtectedTarget verifies protected ranges are rejected.
func TestValidateProtectedTarget(t *testing.T) {
	v := NewValidator()

	for _, target := range []string{"224.0.0.1", "239.255.255.250", "240.0.0.1"} {
		result := v.Validate(context.Background(), candidate("nmap -sT "+target, 0.8))
		assert.Equal(t, StatusInvalid, result.Status, "target %q must be invalid", target)
		assert.True(t, result.HasKind(KindUnsafeTarget))
	}
}

// TestValidateBroadPrivateSweep verifies wide internal sweeps are
// rejected while single private hosts pass.
func TestValidateBroadPrivateSweep(t *testing.T) {
	v := NewValidator()

	result := v.Validate(context.Background(), candidate("nmap -sT 10.0.0.0/8", 0.8))
	assert.Equal(t, StatusInvalid, result.Status)
	assert.True(t, result.HasKind(KindUnsafeTarget))

	result = v.Validate(context.Background(), candidate("nmap -sT 192.168.1.10", 0.8))
	assert.False(t, result.HasKind(KindUnsafeTarget), "a single private host is allowed")
}

// TestValidateRiskLevels verifies score thresholds and that a high risk
// score alone does not invalidate the command.
func TestValidateRiskLevels(t *testing.T) {
	v := NewValidator(WithSandbox(NewSimulator(true)))

	tests := []struct {
		name    string
		command string
		level   RiskLevel
	}{
		// -sT with explicit port range fires nothing.
		{"low", "nmap -sT -p 80 scanme.nmap.org", RiskLow},
		// stealth(2) + aggressive detection(2) = 4.
		{"medium", "nmap -sS -O scanme.nmap.org", RiskMedium},
		// stealth(2) + fragmentation(2) + detection(2) + timing(1) + sweep(1) = 8.
		{"high", "nmap -sS -f -O -T4 -p- scanme.nmap.org", RiskHigh},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(context.Background(), candidate(tt.command, 0.8))
			assert.Equal(t, tt.level, result.RiskLevel, "score=%d issues=%v", result.RiskScore, result.Issues)
			assert.NotEqual(t, StatusInvalid, result.Status, "risk alone never invalidates")
		})
	}
}

// TestValidateLowConfidenceFactor verifies generation confidence below
// 0.5 contributes to the risk score.
func TestValidateLowConfidenceFactor(t *testing.T) {
	v := NewValidator(WithSandbox(NewSimulator(true)))

	confident := v.Validate(context.Background(), candidate("nmap -sT scanme.nmap.org", 0.9))
	hesitant := v.Validate(context.Background(), candidate("nmap -sT scanme.nmap.org", 0.3))

	assert.Equal(t, confident.RiskScore+1, hesitant.RiskScore)
}

// TestScoreRiskTable verifies each factor fires on its own trigger.
func TestScoreRiskTable(t *testing.T) {
	tests := []struct {
		command string
		factor  string
		weight  int
	}{
		{"nmap -sS 10.0.0.1", "stealth_scan", 2},
		{"nmap -f 10.0.0.1", "fragmentation", 2},
		{"nmap -D 10.0.0.2 10.0.0.1", "decoys", 3},
		{"nmap -A 10.0.0.1", "aggressive_detection", 2},
		{"nmap -sC 10.0.0.1", "scripted_execution", 2},
		{"nmap -T4 10.0.0.1", "aggressive_timing", 1},
		{"nmap -p- 10.0.0.1", "full_port_sweep", 1},
	}

	for _, tt := range tests {
		t.Run(tt.factor, func(t *testing.T) {
			parsed, _ := checkSyntax(tt.command)
			score, fired := scoreRisk(defaultRiskModel, parsed, 0.9)
			assert.Equal(t, tt.weight, score)
			assert.Equal(t, []string{tt.factor}, fired)
		})
	}
}
