// Package policy decides whether a shell command may run, needs confirmation, or is refused.
package policy

import (
	"regexp"

	"github.com/samber/lo"
)

// Rule is one entry of the advisory blocklist. A match flags a command; it never forbids it.
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
}

var forbiddenPattern = regexp.MustCompile(`(?i)\bsudo\b`)

// DefaultRules flags commands that remove or rewrite files, change ownership or
// permissions, touch disks, power or processes, install packages, drive containers,
// pipe remote scripts into a shell, or rewrite version-control history.
var DefaultRules = []Rule{
	{"remove", regexp.MustCompile(`(?i)\brm\b`)},
	{"chown", regexp.MustCompile(`(?i)\bchown\b`)},
	{"chmod", regexp.MustCompile(`(?i)\bchmod\b`)},
	{"dd", regexp.MustCompile(`(?i)\bdd\b`)},
	{"mkfs", regexp.MustCompile(`(?i)\bmkfs\b`)},
	{"redirect", regexp.MustCompile(`>\s*\S`)},
	{"append", regexp.MustCompile(`>>\s*\S`)},
	{"power", regexp.MustCompile(`(?i)\bshutdown\b|\breboot\b|\bhalt\b`)},
	{"kill", regexp.MustCompile(`(?i)\bkill\b`)},
	{"mount", regexp.MustCompile(`(?i)\bmount\b|\bumount\b`)},
	{"systemctl", regexp.MustCompile(`(?i)\bsystemctl\b`)},
	{"package-manager", regexp.MustCompile(`(?i)\bapt(-get)?\b|\byum\b|\bdnf\b|\bpacman\b`)},
	{"pip-install", regexp.MustCompile(`(?i)\bpip\b\s+install\b|\bpython\b\s+-m\s+pip\s+install\b`)},
	{"container", regexp.MustCompile(`(?i)\bdocker\b|\bpodman\b|\bkubectl\b`)},
	{"pipe-to-shell", regexp.MustCompile(`(?i)curl\s*\|\s*sh|wget\s*\|\s*sh`)},
	{"git-destructive", regexp.MustCompile(`(?i)\bgit\b\s+push\b|\bgit\b\s+reset\b|\bgit\b\s+clean\b`)},
}

// Decision is the verdict for one command under one unsafeExec setting.
type Decision struct {
	Allowed              bool
	RequiresConfirmation bool
	Flagged              bool
	Matched              []string
	Reason               string
}

type Gate struct {
	rules []Rule
}

func NewGate(rules ...Rule) *Gate {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Gate{rules: rules}
}

// Forbidden reports whether command contains the standalone word sudo, in any casing.
func Forbidden(command string) bool {
	return forbiddenPattern.MatchString(command)
}

// Matches returns the names of every rule that flags command.
func (g *Gate) Matches(command string) []string {
	matched := lo.Filter(g.rules, func(rule Rule, _ int) bool {
		return rule.Pattern.MatchString(command)
	})
	return lo.Map(matched, func(rule Rule, _ int) string {
		return rule.Name
	})
}

func (g *Gate) Flagged(command string) bool {
	return len(g.Matches(command)) > 0
}

// Decide applies the forbidden-word rule, then the blocklist. Every allowed command
// needs confirmation unless unsafeExec is set.
func (g *Gate) Decide(command string, unsafeExec bool) Decision {
	if Forbidden(command) {
		return Decision{
			Allowed: false,
			Reason:  "sudo is not permitted",
		}
	}

	matched := g.Matches(command)
	decision := Decision{
		Allowed:              true,
		RequiresConfirmation: !unsafeExec,
		Flagged:              len(matched) > 0,
		Matched:              matched,
	}
	if decision.Flagged {
		decision.Reason = "potentially unsafe"
	}
	return decision
}
