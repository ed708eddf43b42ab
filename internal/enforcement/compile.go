// Package enforcement checks file content against resolved rules.
package enforcement

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/synapse/internal/apperr"
	"github.com/starford/synapse/internal/models"
)

// regexMeta is the set of characters that make a pattern a regular expression.
// Anything without them is matched as a plain substring.
const regexMeta = `.*+?()[]{}|^$\`

// MatcherKind tags the matcher variant.
type MatcherKind int

const (
	Literal MatcherKind = iota
	Regex
)

// Matcher is either a literal substring or a compiled regular expression.
type Matcher struct {
	Kind MatcherKind
	Text string
	Re   *regexp.Regexp
}

// Match reports whether line matches. A regex matcher also accepts the pattern
// text verbatim, so `#[test]` still finds the attribute it spells.
func (m Matcher) Match(line string) bool {
	switch m.Kind {
	case Regex:
		return m.Re.MatchString(line) || strings.Contains(line, m.Text)
	default:
		return strings.Contains(line, m.Text)
	}
}

// CompiledRule pairs a rule with its matcher.
type CompiledRule struct {
	Rule    models.RuleDefinition
	Matcher Matcher
}

// IsRegexPattern reports whether pattern contains any regular-expression metacharacter.
func IsRegexPattern(pattern string) bool {
	return strings.ContainsAny(pattern, regexMeta)
}

// Compile builds the matcher for one rule.
func Compile(rule models.RuleDefinition) (CompiledRule, error) {
	if !IsRegexPattern(rule.Pattern) {
		return CompiledRule{Rule: rule, Matcher: Matcher{Kind: Literal, Text: rule.Pattern}}, nil
	}
	re, err := regexp.Compile(rule.Pattern)
	if err != nil {
		return CompiledRule{}, fmt.Errorf("%w: rule %s: %v", apperr.ErrInvalidPattern, rule.ID, err)
	}
	return CompiledRule{Rule: rule, Matcher: Matcher{Kind: Regex, Text: rule.Pattern, Re: re}}, nil
}

// CompileAll compiles every rule. Rules whose pattern fails to compile are left out
// and reported in the returned error map keyed by rule id.
func CompileAll(rules []models.RuleDefinition) ([]CompiledRule, map[string]error) {
	out := make([]CompiledRule, 0, len(rules))
	var errs map[string]error
	for _, r := range rules {
		cr, err := Compile(r)
		if err != nil {
			if errs == nil {
				errs = make(map[string]error)
			}
			errs[r.ID] = err
			continue
		}
		out = append(out, cr)
	}
	return out, errs
}
