package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/scanforge/scanforge/internal/query"
)

// RuleGenerator synthesizes commands from a fixed keyword-to-flag table.
// It backs the easy tier: fast, deterministic, no model call, suitable
// for simple single-host scans.
type RuleGenerator struct {
	name          string
	defaultTarget string
}

// NewRuleGenerator creates a rule-based generator. defaultTarget is used
// when neither the query nor its text names a target.
func NewRuleGenerator(name, defaultTarget string) *RuleGenerator {
	if defaultTarget == "" {
		defaultTarget = "scanme.nmap.org"
	}
	return &RuleGenerator{name: name, defaultTarget: defaultTarget}
}

// Name returns the generator identifier.
func (g *RuleGenerator) Name() string {
	return g.name
}

var (
	portRangePattern  = regexp.MustCompile(`ports?\s+(\d+(?:\s*-\s*\d+)?(?:\s*,\s*\d+(?:\s*-\s*\d+)?)*)`)
	targetPattern     = regexp.MustCompile(`\b((?:\d{1,3}\.){3}\d{1,3}(?:/\d{1,2})?|[a-zA-Z0-9][a-zA-Z0-9-]*(?:\.[a-zA-Z0-9-]+)+)\b`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// synthesis table: keyword → flag with its explanation. Order matters so
// scan-type selection happens before modifiers.
var ruleTable = []struct {
	keywords    []string
	flag        string
	explanation string
}{
	{[]string{"udp"}, "-sU", "UDP scan"},
	{[]string{"stealth", "syn scan", "-ss"}, "-sS", "SYN stealth scan"},
	{[]string{"version", "service"}, "-sV", "service version detection"},
	{[]string{"os detect", "operating system"}, "-O", "OS detection"},
	{[]string{"fast", "quick"}, "-T4", "aggressive timing"},
	{[]string{"ping", "alive", "host discovery"}, "-sn", "host discovery only"},
	{[]string{"open ports only", "only open"}, "--open", "show open ports only"},
}

// Generate builds a command by folding the rule table over the query
// text. Feedback from a failed cycle downgrades privileged choices.
func (g *RuleGenerator) Generate(_ context.Context, q query.Query, feedback *Feedback) (Candidate, error) {
	text := strings.ToLower(q.Text)

	flags := make([]string, 0, 4)
	explanations := make(map[string]string)
	scanTypeSet := false

	for _, rule := range ruleTable {
		for _, kw := range rule.keywords {
			if !strings.Contains(text, kw) {
				continue
			}
			if isScanType(rule.flag) {
				if scanTypeSet {
					break
				}
				scanTypeSet = true
			}
			flags = append(flags, rule.flag)
			explanations[rule.flag] = rule.explanation
			break
		}
	}

	if !scanTypeSet && !contains(flags, "-sn") {
		flags = append([]string{"-sT"}, flags...)
		explanations["-sT"] = "TCP connect scan, no privileges required"
	}

	if ports := portRangePattern.FindStringSubmatch(text); ports != nil {
		spec := whitespacePattern.ReplaceAllString(ports[1], "")
		flags = append(flags, "-p", spec)
		explanations["-p"] = "port specification from request"
	} else if strings.Contains(text, "all ports") {
		flags = append(flags, "-p-")
		explanations["-p-"] = "all 65535 ports"
	}

	if feedback != nil && feedback.Type == FeedbackPrivilegeDowngrade {
		for i, f := range flags {
			if f == "-sS" || f == "-sU" {
				flags[i] = "-sT"
				explanations["-sT"] = "downgraded to unprivileged TCP connect scan"
			}
		}
	}

	target := g.resolveTarget(q)
	command := "nmap"
	if len(flags) > 0 {
		command += " " + strings.Join(flags, " ")
	}
	command += " " + target

	return Candidate{
		Command:          command,
		Rationale:        fmt.Sprintf("rule synthesis from %d matched keywords", len(explanations)),
		SourceAgent:      g.name,
		FlagExplanations: explanations,
		Confidence:       g.confidence(len(explanations)),
	}, nil
}

func (g *RuleGenerator) resolveTarget(q query.Query) string {
	if q.Target != "" {
		return q.Target
	}
	if m := targetPattern.FindString(q.Text); m != "" {
		return m
	}
	return g.defaultTarget
}

// confidence grows with the number of matched rules but stays below the
// ceiling a model-backed generator can reach.
func (g *RuleGenerator) confidence(matched int) float64 {
	conf := 0.6 + 0.05*float64(matched)
	if conf > 0.85 {
		conf = 0.85
	}
	return conf
}

func isScanType(flag string) bool {
	switch flag {
	case "-sT", "-sS", "-sU", "-sn":
		return true
	}
	return false
}

func contains(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
