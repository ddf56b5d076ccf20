package validate

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// ExecResult is the sandbox collaborator's report for one probe.
type ExecResult struct {
	ExitStatus     int           `json:"exit_status"`
	CapturedErrors []string      `json:"captured_errors,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// Sandbox attempts a command in isolation so runtime failures surface
// before the command ever reaches a caller. Implementations are
// external; the validator only classifies what they report.
type Sandbox interface {
	Execute(ctx context.Context, command string) (ExecResult, error)
}

// errorClassification maps a captured error line onto an Issue.
type errorClassification struct {
	pattern      *regexp.Regexp
	kind         IssueKind
	severity     Severity
	suggestedFix string
}

var errorClassifications = []errorClassification{
	{regexp.MustCompile(`(?i)requires root|operation not permitted|pcap permission`), KindPermission, SeverityMedium, "use -sT instead of a privileged scan type"},
	{regexp.MustCompile(`(?i)failed to resolve|could not resolve`), KindDNS, SeverityMedium, "add -n to skip DNS resolution"},
	{regexp.MustCompile(`(?i)network is unreachable|no route to host|host seems down`), KindNetwork, SeverityMedium, "verify target reachability or add -Pn"},
	{regexp.MustCompile(`(?i)illegal port|port specifications are illegal`), KindPortSpec, SeverityMedium, "correct the -p specification"},
	{regexp.MustCompile(`(?i)failed to load .*script|script .* does not exist|unknown script`), KindScript, SeverityMedium, "--script default"},
	{regexp.MustCompile(`(?i)memory allocation|too many open files`), KindResource, SeverityMedium, "reduce scan scope or timing"},
	{regexp.MustCompile(`(?i)unrecognized option|option requires an argument`), KindSyntax, SeverityMedium, ""},
}

// classifyExecErrors turns captured sandbox output into Issues.
func classifyExecErrors(result ExecResult) []Issue {
	var issues []Issue
	for _, line := range result.CapturedErrors {
		for _, c := range errorClassifications {
			if c.pattern.MatchString(line) {
				issues = append(issues, Issue{
					Kind:         c.kind,
					Severity:     c.severity,
					Message:      strings.TrimSpace(line),
					SuggestedFix: c.suggestedFix,
				})
				break
			}
		}
	}
	return issues
}

// Simulator is a deterministic stand-in for the real sandbox. It
// predicts the runtime failures a command would hit from the command
// text alone, mirroring the failure surface of an unprivileged
// container: privileged scan types and OS detection fail with a
// permission error.
type Simulator struct {
	privileged bool
}

// NewSimulator creates a Simulator. privileged simulates a sandbox with
// raw socket capability.
func NewSimulator(privileged bool) *Simulator {
	return &Simulator{privileged: privileged}
}

var privilegedFlagPattern = regexp.MustCompile(`(^|\s)(-sS|-sA|-sF|-sX|-sN|-sU|-O)(\s|$)`)

// Execute simulates running the command and reports predicted errors.
func (s *Simulator) Execute(_ context.Context, command string) (ExecResult, error) {
	start := time.Now()
	var captured []string

	if !s.privileged && privilegedFlagPattern.MatchString(command) {
		captured = append(captured, "You requested a scan type which requires root privileges.")
	}

	if strings.Contains(command, ".invalid") || strings.Contains(command, ".local ") {
		captured = append(captured, "Failed to resolve target hostname")
	}

	exit := 0
	if len(captured) > 0 {
		exit = 1
	}

	return ExecResult{
		ExitStatus:     exit,
		CapturedErrors: captured,
		Duration:       time.Since(start),
	}, nil
}
