package validate

import (
	"net/netip"
	"strings"
)

// Policy is the security rule set: forbidden flags, dangerous NSE script
// names, and protected address ranges. Every match is a high-severity
// finding; security violations always dominate syntax or execution
// findings in the final verdict.
type Policy struct {
	forbiddenFlags   map[string]string
	dangerousScripts []string
	protectedRanges  []netip.Prefix
	// broadPrivateBits rejects private-network scans wider than this
	// prefix length (0 disables the check).
	broadPrivateBits int
}

// PolicyOption is a functional option for configuring a Policy.
type PolicyOption func(*Policy)

// WithForbiddenFlag adds a flag to the forbidden list.
func WithForbiddenFlag(flag, reason string) PolicyOption {
	return func(p *Policy) {
		p.forbiddenFlags[flag] = reason
	}
}

// WithProtectedRange adds a CIDR range no scan may target.
func WithProtectedRange(prefix netip.Prefix) PolicyOption {
	return func(p *Policy) {
		p.protectedRanges = append(p.protectedRanges, prefix)
	}
}

// WithBroadPrivateLimit sets the narrowest private-network prefix that
// is still rejected; scans of individual private hosts stay allowed.
func WithBroadPrivateLimit(bits int) PolicyOption {
	return func(p *Policy) {
		p.broadPrivateBits = bits
	}
}

// NewPolicy creates a Policy with the default rule set.
func NewPolicy(options ...PolicyOption) *Policy {
	p := &Policy{
		forbiddenFlags: map[string]string{
			"-oN":            "file output not allowed",
			"-oX":            "XML output not allowed",
			"-oG":            "grepable output not allowed",
			"-oA":            "all-format output not allowed",
			"--stylesheet":   "stylesheet loading not allowed",
			"--osscan-guess": "aggressive OS guessing not allowed",
			"--badsum":       "invalid checksum scanning not allowed",
			"-T5":            "insane timing template not allowed",
		},
		dangerousScripts: []string{"exploit", "brute", "malware", "dos", "intrusive"},
		protectedRanges: []netip.Prefix{
			netip.MustParsePrefix("224.0.0.0/4"), // multicast
			netip.MustParsePrefix("240.0.0.0/4"), // reserved
			netip.MustParsePrefix("0.0.0.0/8"),
		},
		broadPrivateBits: 24,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

var privateRanges = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
}

// Check judges the parsed command against the policy. Each violation
// becomes a high-severity Issue.
func (p *Policy) Check(parsed parsedCommand) []Issue {
	var issues []Issue

	for _, f := range parsed.flags {
		if reason, forbidden := p.forbiddenFlags[f.name]; forbidden {
			issues = append(issues, Issue{
				Kind:         KindForbiddenFlag,
				Severity:     SeverityHigh,
				Message:      "forbidden flag " + f.name + ": " + reason,
				SuggestedFix: "remove " + f.name,
			})
		}
	}

	if script := parsed.flagValue("--script"); script != "" {
		for _, dangerous := range p.dangerousScripts {
			if strings.Contains(strings.ToLower(script), dangerous) {
				issues = append(issues, Issue{
					Kind:         KindForbiddenFlag,
					Severity:     SeverityHigh,
					Message:      "forbidden NSE script category: " + dangerous,
					SuggestedFix: "--script default",
				})
				break
			}
		}
	}

	for _, target := range parsed.targets {
		issues = append(issues, p.checkTarget(target)...)
	}

	return issues
}

// checkTarget flags addresses inside protected ranges and overly broad
// private-network sweeps. Hostnames pass; DNS outcomes are the sandbox
// probe's concern.
func (p *Policy) checkTarget(target string) []Issue {
	prefix, err := parseTargetPrefix(target)
	if err != nil {
		return nil
	}

	for _, protected := range p.protectedRanges {
		if protected.Overlaps(prefix) {
			return []Issue{{
				Kind:     KindUnsafeTarget,
				Severity: SeverityHigh,
				Message:  "target " + target + " is inside protected range " + protected.String(),
			}}
		}
	}

	if p.broadPrivateBits > 0 && prefix.Bits() < p.broadPrivateBits {
		for _, private := range privateRanges {
			if private.Overlaps(prefix) {
				return []Issue{{
					Kind:         KindUnsafeTarget,
					Severity:     SeverityHigh,
					Message:      "target " + target + " sweeps a broad internal range",
					SuggestedFix: "narrow the target to a single host or /24",
				}}
			}
		}
	}

	return nil
}

func parseTargetPrefix(target string) (netip.Prefix, error) {
	if strings.Contains(target, "/") {
		return netip.ParsePrefix(target)
	}
	addr, err := netip.ParseAddr(target)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}
