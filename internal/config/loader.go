package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/scanforge/scanforge/internal/types"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Pipeline: PipelineConfig{
			ConfidenceThreshold: 0.4,
			MaxRepairAttempts:   3,
		},
		Agents: AgentsConfig{
			EasyTimeout:   defaultEasyTimeout,
			MediumTimeout: defaultMediumTimeout,
			HardTimeout:   defaultHardTimeout,
			DefaultTarget: "scanme.nmap.org",
			LLM: LLMConfig{
				Provider:    "ollama",
				Model:       "llama3",
				HardModel:   "llama3:70b",
				BaseURL:     "",
				Temperature: 0.2,
			},
		},
		Policy: PolicyConfig{
			BroadPrivateBits: 24,
		},
		Trace: TraceConfig{},
	}
}

// Load reads configuration from the given file, layered over the
// defaults, with SCANFORGE_* environment variables taking precedence.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCANFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to read config file", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED, "failed to unmarshal config", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration's structural constraints.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return types.WrapError(types.CONFIG_VALIDATION_FAILED, "configuration validation failed", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("pipeline.confidence_threshold", d.Pipeline.ConfidenceThreshold)
	v.SetDefault("pipeline.max_repair_attempts", d.Pipeline.MaxRepairAttempts)
	v.SetDefault("agents.easy_timeout", d.Agents.EasyTimeout)
	v.SetDefault("agents.medium_timeout", d.Agents.MediumTimeout)
	v.SetDefault("agents.hard_timeout", d.Agents.HardTimeout)
	v.SetDefault("agents.default_target", d.Agents.DefaultTarget)
	v.SetDefault("agents.llm.provider", d.Agents.LLM.Provider)
	v.SetDefault("agents.llm.model", d.Agents.LLM.Model)
	v.SetDefault("agents.llm.hard_model", d.Agents.LLM.HardModel)
	v.SetDefault("agents.llm.temperature", d.Agents.LLM.Temperature)
	v.SetDefault("policy.broad_private_bits", d.Policy.BroadPrivateBits)
}
