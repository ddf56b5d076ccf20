package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanforge/scanforge/internal/types"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// TestLoadDefaults verifies loading with no file yields the built-in
// configuration.
func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.InDelta(t, 0.4, cfg.Pipeline.ConfidenceThreshold, 0.001)
	assert.Equal(t, 3, cfg.Pipeline.MaxRepairAttempts)
	assert.Equal(t, 5*time.Second, cfg.Agents.EasyTimeout)
	assert.Equal(t, 30*time.Second, cfg.Agents.HardTimeout)
	assert.Equal(t, "ollama", cfg.Agents.LLM.Provider)
	assert.Equal(t, "scanme.nmap.org", cfg.Agents.DefaultTarget)
	assert.Empty(t, cfg.Trace.Path, "traces stay in memory by default")
}

// TestLoadFromFile verifies YAML values override the defaults.
func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
pipeline:
  confidence_threshold: 0.6
  max_repair_attempts: 5
agents:
  hard_timeout: 45s
  llm:
    provider: openai
    model: gpt-4o-mini
trace:
  path: /tmp/scanforge-trace.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.InDelta(t, 0.6, cfg.Pipeline.ConfidenceThreshold, 0.001)
	assert.Equal(t, 5, cfg.Pipeline.MaxRepairAttempts)
	assert.Equal(t, 45*time.Second, cfg.Agents.HardTimeout)
	assert.Equal(t, "openai", cfg.Agents.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Agents.LLM.Model)
	assert.Equal(t, "/tmp/scanforge-trace.db", cfg.Trace.Path)

	// Untouched values keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.Agents.EasyTimeout)
	assert.Equal(t, "llama3:70b", cfg.Agents.LLM.HardModel)
}

// TestLoadMissingFile verifies a bad path is CONFIG_LOAD_FAILED.
func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, types.CONFIG_LOAD_FAILED, types.CodeOf(err))
}

// TestLoadValidationFailures verifies structural constraints reject bad
// values with CONFIG_VALIDATION_FAILED.
func TestLoadValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad log level", "logging:\n  level: chatty\n"},
		{"threshold out of range", "pipeline:\n  confidence_threshold: 1.5\n"},
		{"zero attempts", "pipeline:\n  max_repair_attempts: 0\n"},
		{"unknown provider", "agents:\n  llm:\n    provider: skynet\n"},
		{"bad protected range", "policy:\n  protected_ranges:\n    - not-a-cidr\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Equal(t, types.CONFIG_VALIDATION_FAILED, types.CodeOf(err))
		})
	}
}

// TestValidateDefaultConfig verifies the built-in defaults pass their own
// validation.
func TestValidateDefaultConfig(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}
