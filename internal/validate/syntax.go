package validate

import (
	"regexp"
	"strconv"
	"strings"
)

// parsedCommand is the tokenized view of a candidate the later stages
// work on.
type parsedCommand struct {
	flags   []parsedFlag
	targets []string
}

type parsedFlag struct {
	name  string
	value string
}

// hasFlag reports whether a flag with the exact name is present.
func (p parsedCommand) hasFlag(name string) bool {
	for _, f := range p.flags {
		if f.name == name {
			return true
		}
	}
	return false
}

// hasFlagPrefix reports whether any flag starts with the prefix. Used
// for combined forms like -T4 or -p22-80.
func (p parsedCommand) hasFlagPrefix(prefix string) bool {
	for _, f := range p.flags {
		if strings.HasPrefix(f.name, prefix) {
			return true
		}
	}
	return false
}

func (p parsedCommand) flagValue(name string) string {
	for _, f := range p.flags {
		if f.name == name {
			return f.value
		}
	}
	return ""
}

var (
	injectionPattern = regexp.MustCompile("[;&|`<>]|\\$\\(")
	ipv4Pattern      = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}(/\d{1,2})?$`)
	domainPattern    = regexp.MustCompile(`^(?:[A-Za-z0-9](?:[A-Za-z0-9-]{0,61}[A-Za-z0-9])?\.)+[A-Za-z]{2,}$`)
	portSpecPattern  = regexp.MustCompile(`^(\d+(-\d+)?)(,\d+(-\d+)?)*$`)
)

// valueFlags take their argument as the following token.
var valueFlags = map[string]bool{
	"-p": true, "--ports": true, "--script": true, "--script-args": true,
	"-D": true, "--exclude": true, "--mtu": true, "--top-ports": true,
	"-oN": true, "-oX": true, "-oG": true, "-oA": true,
}

// scanTypeFlags are mutually exclusive; at most one may appear.
var scanTypeFlags = []string{"-sS", "-sT", "-sU", "-sA", "-sF", "-sX", "-sN", "-sn"}

// knownFlags is the closed set of recognized single flags beyond value
// and scan-type flags. Anything else is reported as unknown.
var knownFlags = map[string]bool{
	"-sV": true, "-O": true, "-A": true, "-f": true, "-n": true,
	"-v": true, "-Pn": true, "--open": true, "--traceroute": true,
	"--osscan-guess": true, "--badsum": true, "--stylesheet": true,
	"-p-": true, "-6": true, "-sC": true,
}

// checkSyntax tokenizes the command and reports malformed flags,
// conflicting scan types, bad port specifications, and missing or
// invalid targets. The parsed form is returned for the later stages
// even when issues are present.
func checkSyntax(command string) (parsedCommand, []Issue) {
	var issues []Issue
	var parsed parsedCommand

	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return parsed, append(issues, Issue{
			Kind:     KindSyntax,
			Severity: SeverityHigh,
			Message:  "command is empty",
		})
	}

	if injectionPattern.MatchString(trimmed) {
		return parsed, append(issues, Issue{
			Kind:     KindSyntax,
			Severity: SeverityHigh,
			Message:  "shell metacharacters are not allowed in a scan command",
		})
	}

	tokens := strings.Fields(trimmed)
	if !strings.EqualFold(tokens[0], "nmap") {
		return parsed, append(issues, Issue{
			Kind:     KindSyntax,
			Severity: SeverityHigh,
			Message:  "command must start with 'nmap'",
		})
	}

	for i := 1; i < len(tokens); i++ {
		tok := tokens[i]
		if !strings.HasPrefix(tok, "-") {
			parsed.targets = append(parsed.targets, tok)
			continue
		}

		flag := parsedFlag{name: tok}
		if valueFlags[tok] {
			if i+1 < len(tokens) && !strings.HasPrefix(tokens[i+1], "-") {
				flag.value = tokens[i+1]
				i++
			} else {
				issues = append(issues, Issue{
					Kind:         KindSyntax,
					Severity:     SeverityMedium,
					Message:      "flag " + tok + " requires an argument",
					SuggestedFix: "remove " + tok + " or supply its argument",
				})
			}
		}
		parsed.flags = append(parsed.flags, flag)

		if !valueFlags[tok] && !knownFlags[tok] && !isScanTypeFlag(tok) && !isCombinedForm(tok) {
			issues = append(issues, Issue{
				Kind:         KindSyntax,
				Severity:     SeverityMedium,
				Message:      "unknown flag " + tok,
				SuggestedFix: "remove " + tok,
			})
		}
	}

	if conflicts := presentScanTypes(parsed); len(conflicts) > 1 {
		issues = append(issues, Issue{
			Kind:         KindConflict,
			Severity:     SeverityMedium,
			Message:      "mutually exclusive scan types: " + strings.Join(conflicts, ", "),
			SuggestedFix: "keep only " + conflicts[0],
		})
	}

	issues = append(issues, checkPortSpec(parsed)...)

	if len(parsed.targets) == 0 {
		issues = append(issues, Issue{
			Kind:         KindSyntax,
			Severity:     SeverityMedium,
			Message:      "no scan target specified",
			SuggestedFix: "append a target host",
		})
	}
	for _, target := range parsed.targets {
		if !ipv4Pattern.MatchString(target) && !domainPattern.MatchString(target) {
			issues = append(issues, Issue{
				Kind:     KindSyntax,
				Severity: SeverityMedium,
				Message:  "invalid target format: " + target,
			})
		}
	}

	return parsed, issues
}

// checkPortSpec validates -p arguments, reporting reversed ranges as a
// known-fixable finding.
func checkPortSpec(parsed parsedCommand) []Issue {
	spec := parsed.flagValue("-p")
	if spec == "" {
		spec = parsed.flagValue("--ports")
	}
	if spec == "" {
		return nil
	}

	if !portSpecPattern.MatchString(spec) {
		return []Issue{{
			Kind:     KindPortSpec,
			Severity: SeverityMedium,
			Message:  "illegal port specification: " + spec,
		}}
	}

	var issues []Issue
	for _, part := range strings.Split(spec, ",") {
		lo, hi, ok := strings.Cut(part, "-")
		if !ok {
			continue
		}
		loN, errLo := strconv.Atoi(lo)
		hiN, errHi := strconv.Atoi(hi)
		if errLo != nil || errHi != nil {
			continue
		}
		if loN > hiN {
			issues = append(issues, Issue{
				Kind:         KindPortSpec,
				Severity:     SeverityLow,
				Message:      "reversed port range " + part,
				SuggestedFix: hi + "-" + lo,
			})
		}
		if loN < 1 || hiN > 65535 {
			issues = append(issues, Issue{
				Kind:     KindPortSpec,
				Severity: SeverityMedium,
				Message:  "port out of range in " + part,
			})
		}
	}
	return issues
}

func presentScanTypes(parsed parsedCommand) []string {
	var present []string
	for _, st := range scanTypeFlags {
		if parsed.hasFlag(st) {
			present = append(present, st)
		}
	}
	return present
}

func isScanTypeFlag(tok string) bool {
	for _, st := range scanTypeFlags {
		if tok == st {
			return true
		}
	}
	return false
}

// isCombinedForm accepts flags that fold their argument into the token,
// like -T4 or -p22-80.
func isCombinedForm(tok string) bool {
	if len(tok) == 3 && strings.HasPrefix(tok, "-T") && tok[2] >= '0' && tok[2] <= '5' {
		return true
	}
	if strings.HasPrefix(tok, "-p") && len(tok) > 2 {
		return portSpecPattern.MatchString(tok[2:]) || tok == "-p-"
	}
	return false
}
