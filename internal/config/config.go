// Package config loads and validates the scanforge configuration from
// YAML with environment variable overrides.
package config

import "time"

// Config is the root configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Agents   AgentsConfig   `mapstructure:"agents"`
	Policy   PolicyConfig   `mapstructure:"policy"`
	Trace    TraceConfig    `mapstructure:"trace"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// PipelineConfig bounds the orchestrator.
type PipelineConfig struct {
	// ConfidenceThreshold is the generation confidence below which a
	// valid candidate is still promoted to a stronger tier.
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" validate:"gte=0,lte=1"`
	// MaxRepairAttempts caps the iterative repair loop.
	MaxRepairAttempts int `mapstructure:"max_repair_attempts" validate:"gte=1,lte=10"`
}

// AgentsConfig configures the generator tiers.
type AgentsConfig struct {
	EasyTimeout   time.Duration `mapstructure:"easy_timeout" validate:"gt=0"`
	MediumTimeout time.Duration `mapstructure:"medium_timeout" validate:"gt=0"`
	HardTimeout   time.Duration `mapstructure:"hard_timeout" validate:"gt=0"`
	DefaultTarget string        `mapstructure:"default_target" validate:"required"`
	LLM           LLMConfig     `mapstructure:"llm"`
}

// LLMConfig configures the model-backed generator tiers.
type LLMConfig struct {
	Provider    string  `mapstructure:"provider" validate:"oneof=ollama openai anthropic"`
	Model       string  `mapstructure:"model"`
	HardModel   string  `mapstructure:"hard_model"`
	BaseURL     string  `mapstructure:"base_url"`
	APIKeyEnv   string  `mapstructure:"api_key_env"`
	Temperature float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
}

// PolicyConfig extends the built-in security policy.
type PolicyConfig struct {
	ExtraForbiddenFlags []string `mapstructure:"extra_forbidden_flags"`
	ProtectedRanges     []string `mapstructure:"protected_ranges" validate:"dive,cidr"`
	BroadPrivateBits    int      `mapstructure:"broad_private_bits" validate:"gte=0,lte=32"`
	SandboxPrivileged   bool     `mapstructure:"sandbox_privileged"`
}

// TraceConfig selects the trace sink.
type TraceConfig struct {
	// Path is the SQLite file for durable audit trails; empty keeps
	// traces in memory.
	Path string `mapstructure:"path"`
}
