package main

import (
	"fmt"
	"log/slog"
	"net/netip"
	"os"

	"github.com/spf13/cobra"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/scanforge/scanforge/internal/agent"
	"github.com/scanforge/scanforge/internal/config"
	"github.com/scanforge/scanforge/internal/pipeline"
	"github.com/scanforge/scanforge/internal/query"
	"github.com/scanforge/scanforge/internal/repair"
	"github.com/scanforge/scanforge/internal/trace"
	"github.com/scanforge/scanforge/internal/validate"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "scanforge",
		Short: "Turn natural-language scan requests into validated nmap commands",
		Long: `scanforge routes a natural-language network scan request through a
classify, generate, validate, repair, escalate pipeline and returns a
safe, executable nmap command with a complete audit trace.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	cmd.AddCommand(newRunCmd(&configPath))
	cmd.AddCommand(newTraceCmd(&configPath))

	return cmd
}

// buildOrchestrator wires the pipeline from configuration.
func buildOrchestrator(cfg *config.Config) (*pipeline.Orchestrator, func(), error) {
	logger := newLogger(cfg.Logging)

	easy := agent.NewRuleGenerator("rule-synth", cfg.Agents.DefaultTarget)

	mediumModel, err := newModel(cfg.Agents.LLM, cfg.Agents.LLM.Model)
	if err != nil {
		return nil, nil, fmt.Errorf("medium tier model: %w", err)
	}
	hardModel, err := newModel(cfg.Agents.LLM, cfg.Agents.LLM.HardModel)
	if err != nil {
		return nil, nil, fmt.Errorf("hard tier model: %w", err)
	}

	temp := agent.WithTemperature(cfg.Agents.LLM.Temperature)
	registry := agent.NewRegistry(
		easy,
		agent.NewLLMGenerator("llm-"+cfg.Agents.LLM.Model, mediumModel, temp),
		agent.NewLLMGenerator("llm-"+cfg.Agents.LLM.HardModel, hardModel, temp),
	)

	router := agent.NewRouter(registry,
		agent.WithBudget(agent.TierBudget{
			Easy:   cfg.Agents.EasyTimeout,
			Medium: cfg.Agents.MediumTimeout,
			Hard:   cfg.Agents.HardTimeout,
		}),
		agent.WithLogger(logger),
	)

	policyOpts := []validate.PolicyOption{
		validate.WithBroadPrivateLimit(cfg.Policy.BroadPrivateBits),
	}
	for _, flag := range cfg.Policy.ExtraForbiddenFlags {
		policyOpts = append(policyOpts, validate.WithForbiddenFlag(flag, "forbidden by local policy"))
	}
	for _, cidr := range cfg.Policy.ProtectedRanges {
		prefix, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, nil, fmt.Errorf("protected range %q: %w", cidr, err)
		}
		policyOpts = append(policyOpts, validate.WithProtectedRange(prefix))
	}

	validator := validate.NewValidator(
		validate.WithPolicy(validate.NewPolicy(policyOpts...)),
		validate.WithSandbox(validate.NewSimulator(cfg.Policy.SandboxPrivileged)),
		validate.WithLogger(logger),
	)

	engine := repair.NewEngine(validator,
		repair.WithMaxAttempts(cfg.Pipeline.MaxRepairAttempts),
		repair.WithLogger(logger),
	)

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithEscalationPolicy(pipeline.NewEscalationPolicy(cfg.Pipeline.ConfidenceThreshold)),
	}

	cleanup := func() {}
	if cfg.Trace.Path != "" {
		store, err := trace.OpenStore(cfg.Trace.Path)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, pipeline.WithRecorder(store))
		cleanup = func() { store.Close() }
	}

	orch := pipeline.NewOrchestrator(
		query.NewClassifier(cfg.Pipeline.ConfidenceThreshold),
		router,
		validator,
		engine,
		opts...,
	)
	return orch, cleanup, nil
}

// newModel builds a langchaingo model for the configured provider.
func newModel(cfg config.LLMConfig, model string) (llms.Model, error) {
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithModel(model)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		if cfg.APIKeyEnv != "" {
			opts = append(opts, openai.WithToken(os.Getenv(cfg.APIKeyEnv)))
		}
		return openai.New(opts...)
	case "anthropic":
		opts := []anthropic.Option{anthropic.WithModel(model)}
		if cfg.APIKeyEnv != "" {
			opts = append(opts, anthropic.WithToken(os.Getenv(cfg.APIKeyEnv)))
		}
		return anthropic.New(opts...)
	default:
		opts := []ollama.Option{ollama.WithModel(model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		return ollama.New(opts...)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
