package repair

import (
	"regexp"
	"strings"

	"github.com/scanforge/scanforge/internal/validate"
)

// heuristic is a broader corrective transformation for the iterative
// phase. Unlike the autonomous table, heuristics are not keyed to one
// issue kind; each attempt tries them in order and applies the first
// one that changes the command.
type heuristic struct {
	name  string
	apply func(command string, result validate.Result) (string, []string)
}

// riskyModifierPattern lists strippable risk reducers. Forbidden flags
// are deliberately absent: a policy violation is never repaired away, it
// escalates with feedback.
var riskyModifierPattern = regexp.MustCompile(`(^|\s)(-A|-O|-f|-D\s+\S+|--mtu\s+\S+|--traceroute)(\s|$)`)

var aggressiveTimingPattern = regexp.MustCompile(`(^|\s)-T4(\s|$)`)

var iterativeHeuristics = []heuristic{
	{
		name: "complexity_reduction",
		apply: func(command string, result validate.Result) (string, []string) {
			var changes []string
			fixed := command
			for {
				next := riskyModifierPattern.ReplaceAllString(fixed, "$1")
				next = strings.Join(strings.Fields(next), " ")
				if next == fixed {
					break
				}
				changes = append(changes, "removed a high-risk modifier")
				fixed = next
			}
			// A script selection the policy rejected must survive so the
			// violation reaches the next tier as feedback.
			if !result.HasKind(validate.KindForbiddenFlag) {
				fixed = scriptPattern.ReplaceAllString(fixed, "")
				fixed = strings.Join(strings.Fields(fixed), " ")
			}
			if fixed != command && len(changes) == 0 {
				changes = append(changes, "removed scripted execution")
			}
			if fixed == command {
				return command, nil
			}
			return fixed, changes
		},
	},
	{
		name: "timing_relaxation",
		apply: func(command string, _ validate.Result) (string, []string) {
			// -T5 is a policy violation, not a timing problem; only -T4
			// gets relaxed here.
			if aggressiveTimingPattern.MatchString(command) {
				return aggressiveTimingPattern.ReplaceAllString(command, "${1}-T2${2}"),
					[]string{"relaxed timing template to -T2"}
			}
			if strings.Contains(command, " -p- ") || strings.HasSuffix(command, " -p-") {
				fixed := strings.Replace(command, "-p-", "-p 1-1024", 1)
				return fixed, []string{"narrowed full port sweep to 1-1024"}
			}
			return command, nil
		},
	},
	{
		name: "target_narrowing",
		apply: func(command string, result validate.Result) (string, []string) {
			if !result.HasKind(validate.KindUnsafeTarget) && !result.HasKind(validate.KindNetwork) {
				return command, nil
			}
			cidrPattern := regexp.MustCompile(`(\d{1,3}\.\d{1,3}\.\d{1,3}\.)\d{1,3}/\d{1,2}`)
			fixed := cidrPattern.ReplaceAllString(command, "${1}1")
			if fixed == command {
				return command, nil
			}
			return fixed, []string{"narrowed range target to a single host"}
		},
	},
	{
		name: "privilege_fallback",
		apply: func(command string, _ validate.Result) (string, []string) {
			fixed, changes := downgradePrivilegedScans(command)
			if len(changes) == 0 {
				return command, nil
			}
			return fixed, []string{"fell back to unprivileged TCP connect scan"}
		},
	},
}

// nextHeuristic returns the first heuristic that changes the command,
// starting from the given offset so consecutive attempts do not repeat
// a transformation that already failed.
func nextHeuristic(command string, result validate.Result, offset int) (string, string, []string) {
	for i := 0; i < len(iterativeHeuristics); i++ {
		h := iterativeHeuristics[(offset+i)%len(iterativeHeuristics)]
		fixed, changes := h.apply(command, result)
		if len(changes) > 0 {
			return h.name, fixed, changes
		}
	}
	return "", command, nil
}
