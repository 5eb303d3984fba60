// Package prompt screens free-text input before it reaches any tool.
// Pattern matching here is defense-in-depth against casual injection
// and obfuscation, not a security boundary.
package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CheckResult reports every pattern family that matched, not just the
// first, so a block can show its full rationale.
type CheckResult struct {
	Blocked  bool     `json:"blocked"`
	Reasons  []string `json:"reasons,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// blocking patterns: instruction override, role reassignment, and
// requests clearly outside infrastructure operations. Word gaps use
// \s+ so extra whitespace does not slip through.
var blockedPatterns = []struct {
	label string
	re    *regexp.Regexp
}{
	{"instruction override", phrase(`ignore (all |the )?previous instructions`)},
	{"instruction override", phrase(`ignore all previous`)},
	{"instruction override", phrase(`disregard (your|all|previous) instructions`)},
	{"role reassignment", phrase(`pretend (you are|to be)`)},
	{"role reassignment", phrase(`act as if you have no restrictions`)},
	{"guardrail tampering", phrase(`bypass (the )?(security|validator|guardrails?)`)},
	{"guardrail tampering", phrase(`(disable|modify) (the )?(validator|guardrails?|policy engine)`)},
	{"destructive request", phrase(`delete all`)},
	{"destructive request", phrase(`drop database`)},
	{"destructive request", phrase(`rm -rf`)},
	{"destructive request", phrase(`format disk`)},
	{"credential exfiltration", phrase(`exfiltrate`)},
	{"credential exfiltration", phrase(`(reveal|send|dump) (your |the |all )?(credentials|secrets|tokens)`)},
}

// soft patterns: likely out of scope for infrastructure operations.
// Surfaced as warnings; they never block on their own.
var outOfScopePatterns = []struct {
	label string
	re    *regexp.Regexp
}{
	{"out of scope", phrase(`personal information`)},
	{"out of scope", phrase(`social security`)},
	{"out of scope", phrase(`credit card`)},
	{"out of scope", phrase(`password`)},
	{"out of scope", phrase(`api key`)},
	{"out of scope", phrase(`secret key`)},
}

func phrase(p string) *regexp.Regexp {
	return regexp.MustCompile(strings.ReplaceAll(p, " ", `\s+`))
}

// Check validates a prompt. Case-insensitive with NFKC normalization
// so fullwidth or composed forms do not dodge the patterns.
func Check(text string) CheckResult {
	normalized := strings.ToLower(norm.NFKC.String(text))

	var result CheckResult
	for _, p := range blockedPatterns {
		if m := p.re.FindString(normalized); m != "" {
			result.Blocked = true
			result.Reasons = append(result.Reasons,
				fmt.Sprintf("%s detected: %q", p.label, collapse(m)))
		}
	}
	for _, p := range outOfScopePatterns {
		if m := p.re.FindString(normalized); m != "" {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: request mentions %q", p.label, collapse(m)))
		}
	}
	return result
}

// collapse squeezes whitespace runs in a match for display
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
