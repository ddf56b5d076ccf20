package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/scanforge/scanforge/internal/query"
)

// llmPrompt instructs the model to answer with a single JSON object so
// the response can be decoded without free-text parsing.
const llmPrompt = `You are an nmap command generator. Produce exactly one nmap
command for the request below. Respond with a single JSON object:
{"command": "...", "rationale": "...", "confidence": 0.0-1.0,
 "flag_explanations": {"-flag": "why"}}

Rules:
- The command must start with "nmap" and contain exactly one target.
- Prefer unprivileged scan types unless the request demands otherwise.
- Never include NSE exploit, brute-force, or malware scripts.
%s
Request: %s
Target hint: %s`

// LLMGenerator produces candidates through a langchaingo model. It backs
// the medium and hard tiers, which differ only in the model they are
// constructed with.
type LLMGenerator struct {
	name        string
	model       llms.Model
	temperature float64
}

// LLMOption is a functional option for configuring an LLMGenerator.
type LLMOption func(*LLMGenerator)

// WithTemperature sets the sampling temperature for generation.
func WithTemperature(t float64) LLMOption {
	return func(g *LLMGenerator) {
		if t >= 0 {
			g.temperature = t
		}
	}
}

// NewLLMGenerator creates a generator over a langchaingo model.
func NewLLMGenerator(name string, model llms.Model, options ...LLMOption) *LLMGenerator {
	g := &LLMGenerator{name: name, model: model, temperature: 0.2}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// Name returns the generator identifier.
func (g *LLMGenerator) Name() string {
	return g.name
}

// Generate prompts the model and decodes its JSON answer into a
// Candidate. Prior-tier feedback, when present, is folded into the
// prompt so the model can avoid the failure that triggered escalation.
func (g *LLMGenerator) Generate(ctx context.Context, q query.Query, feedback *Feedback) (Candidate, error) {
	var feedbackNote string
	if feedback != nil {
		feedbackNote = fmt.Sprintf(
			"- A previous attempt failed (%s: %s). Apply this change: %s\n",
			feedback.ErrorCategory, feedback.Type, feedback.Suggestion,
		)
	}

	target := q.Target
	if target == "" {
		target = "none given; infer from the request"
	}

	prompt := fmt.Sprintf(llmPrompt, feedbackNote, q.Text, target)

	response, err := llms.GenerateFromSinglePrompt(ctx, g.model, prompt,
		llms.WithTemperature(g.temperature),
	)
	if err != nil {
		return Candidate{}, fmt.Errorf("llm generation failed: %w", err)
	}

	return g.decode(response)
}

type llmAnswer struct {
	Command          string            `json:"command"`
	Rationale        string            `json:"rationale"`
	Confidence       float64           `json:"confidence"`
	FlagExplanations map[string]string `json:"flag_explanations"`
}

func (g *LLMGenerator) decode(response string) (Candidate, error) {
	raw, err := extractJSON(response)
	if err != nil {
		return Candidate{}, fmt.Errorf("unparseable llm response: %w", err)
	}

	var ans llmAnswer
	if err := json.Unmarshal([]byte(raw), &ans); err != nil {
		return Candidate{}, fmt.Errorf("malformed llm answer: %w", err)
	}
	if strings.TrimSpace(ans.Command) == "" {
		return Candidate{}, fmt.Errorf("llm answer carried no command")
	}

	conf := ans.Confidence
	if conf <= 0 || conf > 1 {
		conf = 0.5
	}

	return Candidate{
		Command:          strings.TrimSpace(ans.Command),
		Rationale:        ans.Rationale,
		SourceAgent:      g.name,
		FlagExplanations: ans.FlagExplanations,
		Confidence:       conf,
	}, nil
}

// codeBlockPattern matches markdown code blocks with optional language tag.
var codeBlockPattern = regexp.MustCompile("(?s)```(\\w*)\\s*\\n(.+?)\\n```")

// extractJSON pulls a JSON object out of a model response that may be
// wrapped in markdown fencing or surrounding prose.
func extractJSON(response string) (string, error) {
	for _, match := range codeBlockPattern.FindAllStringSubmatch(response, -1) {
		if len(match) < 3 {
			continue
		}
		lang := strings.ToLower(match[1])
		if lang != "" && lang != "json" {
			continue
		}
		content := strings.TrimSpace(match[2])
		if json.Valid([]byte(content)) {
			return content, nil
		}
	}

	start := strings.IndexByte(response, '{')
	end := strings.LastIndexByte(response, '}')
	if start >= 0 && end > start {
		content := response[start : end+1]
		if json.Valid([]byte(content)) {
			return content, nil
		}
	}

	return "", fmt.Errorf("no valid JSON object found in response")
}
