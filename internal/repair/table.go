package repair

import (
	"regexp"
	"strings"

	"github.com/scanforge/scanforge/internal/validate"
)

// autonomousFix is one entry of the fixed repair table: an issue kind
// mapped to a deterministic textual transformation. Each transformation
// is a closure after one application: re-running it on an already-fixed
// command changes nothing.
type autonomousFix struct {
	kind      validate.IssueKind
	technique string
	apply     func(command string) (string, []string)
}

var (
	timingPattern       = regexp.MustCompile(`(^|\s)-T[45](\s|$)`)
	scriptPattern       = regexp.MustCompile(`--script(\s+|=)\S+`)
	reversedPortPattern = regexp.MustCompile(`(-p\s*)(\d+)-(\d+)`)
)

// autonomousTable maps error categories to their deterministic fixes.
// There is intentionally no entry for forbidden-flag or unsafe-target
// findings: security violations are not repaired, they escalate.
var autonomousTable = []autonomousFix{
	{
		kind:      validate.KindPermission,
		technique: "privilege_downgrade",
		apply:     downgradePrivilegedScans,
	},
	{
		kind:      validate.KindPortSpec,
		technique: "port_range_correction",
		apply: func(command string) (string, []string) {
			var changes []string
			fixed := reversedPortPattern.ReplaceAllStringFunc(command, func(m string) string {
				parts := reversedPortPattern.FindStringSubmatch(m)
				if parts == nil || atoi(parts[2]) <= atoi(parts[3]) {
					return m
				}
				changes = append(changes, "reordered port range "+parts[2]+"-"+parts[3])
				return parts[1] + parts[3] + "-" + parts[2]
			})
			return fixed, changes
		},
	},
	{
		kind:      validate.KindScript,
		technique: "script_whitelist",
		apply: func(command string) (string, []string) {
			if !scriptPattern.MatchString(command) {
				return command, nil
			}
			fixed := scriptPattern.ReplaceAllString(command, "--script default")
			if fixed == command {
				return command, nil
			}
			return fixed, []string{"replaced unsafe script selection with --script default"}
		},
	},
	{
		kind:      validate.KindTiming,
		technique: "timing_adjustment",
		apply: func(command string) (string, []string) {
			fixed := timingPattern.ReplaceAllString(command, "${1}-T3${2}")
			if fixed == command {
				return command, nil
			}
			return fixed, []string{"reduced timing template to -T3"}
		},
	},
	{
		kind:      validate.KindDNS,
		technique: "dns_skip",
		apply: func(command string) (string, []string) {
			if strings.Contains(command, " -n ") || strings.HasSuffix(command, " -n") {
				return command, nil
			}
			return command + " -n", []string{"added -n to skip DNS resolution"}
		},
	},
	{
		kind:      validate.KindConflict,
		technique: "scan_type_dedup",
		apply:     dropExtraScanTypes,
	},
}

// applyAutonomousFixes applies every table entry whose kind appears in
// the findings, in one pass, and returns the new command with the list
// of changes and techniques applied.
func applyAutonomousFixes(command string, issues []validate.Issue) (string, []string, []string) {
	present := make(map[validate.IssueKind]bool, len(issues))
	for _, issue := range issues {
		present[issue.Kind] = true
	}

	fixed := command
	var changes, techniques []string
	for _, fix := range autonomousTable {
		if !present[fix.kind] {
			continue
		}
		next, applied := fix.apply(fixed)
		if len(applied) > 0 {
			fixed = next
			changes = append(changes, applied...)
			techniques = append(techniques, fix.technique)
		}
	}
	return fixed, changes, techniques
}

var scanTypeTokens = []string{"-sS", "-sT", "-sU", "-sA", "-sF", "-sX", "-sN", "-sn"}

var privilegedScanTokens = map[string]bool{
	"-sS": true, "-sA": true, "-sF": true, "-sX": true, "-sN": true, "-sU": true,
}

// downgradePrivilegedScans replaces every privileged scan-type flag with
// the unprivileged TCP connect scan. Token-wise so adjacent flags are all
// rewritten in one pass.
func downgradePrivilegedScans(command string) (string, []string) {
	tokens := strings.Fields(command)
	var changes []string
	for i, tok := range tokens {
		if privilegedScanTokens[tok] {
			tokens[i] = "-sT"
			changes = append(changes, "replaced "+tok+" with -sT")
		}
	}
	if len(changes) == 0 {
		return command, nil
	}
	return strings.Join(tokens, " "), changes
}

// dropExtraScanTypes keeps the first scan-type flag and removes the
// rest.
func dropExtraScanTypes(command string) (string, []string) {
	tokens := strings.Fields(command)
	var kept []string
	var changes []string
	seen := false
	for _, tok := range tokens {
		if isScanTypeToken(tok) {
			if seen {
				changes = append(changes, "dropped conflicting scan type "+tok)
				continue
			}
			seen = true
		}
		kept = append(kept, tok)
	}
	if len(changes) == 0 {
		return command, nil
	}
	return strings.Join(kept, " "), changes
}

func isScanTypeToken(tok string) bool {
	for _, st := range scanTypeTokens {
		if tok == st {
			return true
		}
	}
	return false
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
