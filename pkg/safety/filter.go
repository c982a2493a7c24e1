// Package safety screens fully substituted SQL against a configured
// blacklist and screens parameter values for injection patterns.
//
// The blacklist is deliberately token-level pattern matching, not a SQL
// parser: false negatives are accepted in exchange for predictability.
// It is a guardrail for casual misuse, not a security boundary against a
// malicious privileged user. Verdicts are advisory; the filter never
// blocks execution itself.
package safety

import (
	"regexp"
	"sort"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/TFMV/quarry/pkg/errors"
	"github.com/TFMV/quarry/pkg/models"
)

// Rule is one configured blacklist entry. Pattern is a regular
// expression matched case-insensitively against the final SQL.
type Rule struct {
	Label   string `yaml:"label" json:"label"`
	Pattern string `yaml:"pattern" json:"pattern"`
	Reason  string `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// Verdict is the outcome of one blacklist check. Passed is true only if
// zero rules matched. Matches preserve rule order.
type Verdict struct {
	Passed  bool
	Matches []models.SafetyMatch
}

// Filter evaluates an ordered set of compiled blacklist rules.
type Filter struct {
	rules    []Rule
	compiled []*regexp.Regexp
}

// NewFilter compiles the configured rules. An invalid pattern is a
// configuration error and fails construction.
func NewFilter(rules []Rule) (*Filter, error) {
	compiled := make([]*regexp.Regexp, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile(`(?i)` + r.Pattern)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeInvalidConfig,
				"invalid blacklist pattern %q (label %q)", r.Pattern, r.Label)
		}
		compiled = append(compiled, re)
	}
	return &Filter{rules: rules, compiled: compiled}, nil
}

// DefaultRules is the blacklist applied when no rules are configured.
var DefaultRules = []Rule{
	{Label: "delete", Pattern: `\bDELETE\b`, Reason: "destructive statement"},
	{Label: "drop", Pattern: `\bDROP\b`, Reason: "destructive statement"},
	{Label: "truncate", Pattern: `\bTRUNCATE\b`, Reason: "destructive statement"},
	{Label: "alter", Pattern: `\bALTER\b`, Reason: "schema change"},
	{Label: "grant", Pattern: `\bGRANT\b`, Reason: "privilege change"},
	{Label: "revoke", Pattern: `\bREVOKE\b`, Reason: "privilege change"},
}

// Check scans the fully substituted SQL against every rule, in order.
// The template must already have its parameters substituted so that
// values are screened too.
func (f *Filter) Check(sql string) Verdict {
	var matches []models.SafetyMatch
	for i, re := range f.compiled {
		if fragment := re.FindString(sql); fragment != "" {
			matches = append(matches, models.SafetyMatch{
				Label:    f.rules[i].Label,
				Fragment: fragment,
				Reason:   f.rules[i].Reason,
			})
		}
	}
	return Verdict{Passed: len(matches) == 0, Matches: matches}
}

// ScreenParams runs libinjection over string-valued parameters and
// returns a finding for each value carrying a SQL injection fingerprint.
// Non-string values cannot carry injection patterns and are skipped.
// Findings are advisory, like blacklist matches.
func ScreenParams(params map[string]interface{}) []models.ParamFinding {
	var findings []models.ParamFinding
	for name, value := range params {
		s, ok := value.(string)
		if !ok {
			continue
		}
		if isSQLi, fingerprint := libinjection.IsSQLi(s); isSQLi {
			findings = append(findings, models.ParamFinding{
				Param:       name,
				Fingerprint: string(fingerprint),
			})
		}
	}
	sort.Slice(findings, func(i, j int) bool { return findings[i].Param < findings[j].Param })
	return findings
}
