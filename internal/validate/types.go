// Package validate judges command candidates against syntax rules, the
// security policy, a sandboxed execution probe, and a declarative risk
// model, producing an immutable verdict the repair engine and the
// orchestrator act on.
package validate

import "fmt"

// IssueKind categorizes a validation finding. The repair engine keys its
// autonomous fix table on these kinds.
type IssueKind string

const (
	KindSyntax        IssueKind = "syntax"
	KindConflict      IssueKind = "conflicting_flags"
	KindForbiddenFlag IssueKind = "forbidden_flag"
	KindUnsafeTarget  IssueKind = "unsafe_target"
	KindPermission    IssueKind = "permission"
	KindPortSpec      IssueKind = "port_specification"
	KindScript        IssueKind = "dangerous_script"
	KindTiming        IssueKind = "timing"
	KindDNS           IssueKind = "dns_resolution"
	KindNetwork       IssueKind = "network_unreachable"
	KindResource      IssueKind = "resource_limit"
	KindRisk          IssueKind = "risk"
)

// Severity grades an Issue.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Issue is one validation finding. Immutable value, part of a
// ValidationResult.
type Issue struct {
	Kind         IssueKind `json:"kind"`
	Severity     Severity  `json:"severity"`
	Message      string    `json:"message"`
	SuggestedFix string    `json:"suggested_fix,omitempty"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s/%s: %s", i.Kind, i.Severity, i.Message)
}

// Status is the validation verdict.
type Status string

const (
	// StatusValid means the command passed every stage with no findings.
	StatusValid Status = "valid"
	// StatusRepairable means only known-fixable, non-security findings
	// are present.
	StatusRepairable Status = "repairable"
	// StatusInvalid means a security violation or unrecoverable syntax
	// error is present.
	StatusInvalid Status = "invalid"
)

// RiskLevel is derived from the numeric risk score by fixed thresholds.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Risk score thresholds: score < 4 is LOW, 4-7 is MEDIUM, above 7 HIGH.
const (
	riskMediumThreshold = 4
	riskHighThreshold   = 7
)

// levelForScore maps a numeric risk score onto a RiskLevel.
func levelForScore(score int) RiskLevel {
	switch {
	case score > riskHighThreshold:
		return RiskHigh
	case score >= riskMediumThreshold:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Result is the outcome of one validation call. It is produced once and
// never mutated afterwards.
type Result struct {
	Status    Status    `json:"status"`
	Issues    []Issue   `json:"issues,omitempty"`
	RiskScore int       `json:"risk_score"`
	RiskLevel RiskLevel `json:"risk_level"`
}

// HasKind reports whether any Issue of the given kind is present.
func (r Result) HasKind(kind IssueKind) bool {
	for _, issue := range r.Issues {
		if issue.Kind == kind {
			return true
		}
	}
	return false
}

// highSeverityCount counts high-severity Issues.
func (r Result) highSeverityCount() int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == SeverityHigh {
			n++
		}
	}
	return n
}
