package enforcer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/starford/synapse/internal/models"
)

// Context output formats.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatPlain    = "plain"
)

// RuleInfo is a rule as presented to assistants and humans.
type RuleInfo struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Kind             models.RuleKind `json:"kind"`
	Pattern          string          `json:"pattern"`
	Message          string          `json:"message"`
	Tags             []string        `json:"tags"`
	EnforcementLevel string          `json:"enforcement_level"`
}

// RulesResult is the resolved rule set for a path.
type RulesResult struct {
	Path             string     `json:"path"`
	Rules            []RuleInfo `json:"rules"`
	InheritanceChain []string   `json:"inheritance_chain"`
	OverriddenRules  []string   `json:"overridden_rules"`
}

// ContextResult carries rendered context plus the structured rules behind it.
type ContextResult struct {
	Context          string     `json:"context"`
	ApplicableRules  []RuleInfo `json:"applicable_rules"`
	InheritanceChain []string   `json:"inheritance_chain"`
	OverriddenRules  []string   `json:"overridden_rules"`
}

func ruleInfos(rules []models.RuleDefinition) []RuleInfo {
	out := make([]RuleInfo, 0, len(rules))
	for _, r := range rules {
		tags := r.Tags
		if tags == nil {
			tags = []string{}
		}
		out = append(out, RuleInfo{
			ID:               r.ID,
			Name:             r.Name,
			Kind:             r.Kind,
			Pattern:          r.Pattern,
			Message:          r.Message,
			Tags:             tags,
			EnforcementLevel: r.Kind.EnforcementLevel(),
		})
	}
	return out
}

// RulesForPath returns the rules that apply to path.
func (s *Service) RulesForPath(path string) (*RulesResult, error) {
	view, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	return &RulesResult{
		Path:             path,
		Rules:            ruleInfos(view.Rules),
		InheritanceChain: view.InheritanceChain,
		OverriddenRules:  view.Suppressed,
	}, nil
}

// Context renders the rules for path. Unknown formats render as markdown.
func (s *Service) Context(path, format string) (*ContextResult, error) {
	view, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	infos := ruleInfos(view.Rules)

	var text string
	switch format {
	case FormatJSON:
		b, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("enforcer: render json: %w", err)
		}
		text = string(b)
	case FormatPlain:
		text = renderPlain(path, infos, view.InheritanceChain)
	default:
		text = renderMarkdown(path, infos, view.InheritanceChain, view.Suppressed)
	}

	return &ContextResult{
		Context:          text,
		ApplicableRules:  infos,
		InheritanceChain: view.InheritanceChain,
		OverriddenRules:  view.Suppressed,
	}, nil
}

var sections = []struct {
	level string
	title string
}{
	{"BLOCKING", "Blocking Rules (Enforced)"},
	{"SUGGESTION", "Standards & Suggestions"},
	{"STYLE", "Style Conventions"},
}

func renderMarkdown(path string, rules []RuleInfo, chain, overridden []string) string {
	var b strings.Builder
	b.WriteString("# Synapse Rule Enforcement Context\n\n")
	fmt.Fprintf(&b, "**File:** `%s`\n\n", path)

	if len(chain) > 0 {
		quoted := make([]string, len(chain))
		for i, p := range chain {
			quoted[i] = "`" + p + "`"
		}
		fmt.Fprintf(&b, "**Rule Inheritance:** %s\n\n", strings.Join(quoted, " → "))
	}

	if len(rules) == 0 {
		b.WriteString("## No Rules Apply\n\nNo specific rules are configured for this file path.\n")
		return b.String()
	}

	for _, sec := range sections {
		header := false
		for _, r := range rules {
			if r.EnforcementLevel != sec.level {
				continue
			}
			if !header {
				fmt.Fprintf(&b, "## %s\n\n", sec.title)
				header = true
			}
			fmt.Fprintf(&b, "### %s (%s)\n", r.Name, r.Kind.Display())
			fmt.Fprintf(&b, "**Pattern:** `%s`\n", r.Pattern)
			fmt.Fprintf(&b, "**Message:** %s\n\n", r.Message)
		}
	}

	if len(overridden) > 0 {
		b.WriteString("## Overridden Rules\n\n")
		for _, id := range overridden {
			fmt.Fprintf(&b, "- `%s`\n", id)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderPlain(path string, rules []RuleInfo, chain []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File: %s\n", path)
	fmt.Fprintf(&b, "Rules: %d\n", len(rules))
	if len(chain) > 0 {
		fmt.Fprintf(&b, "Inheritance: %s\n", strings.Join(chain, " -> "))
	}
	b.WriteString("\n")
	for _, r := range rules {
		fmt.Fprintf(&b, "%s (%s): %s - %s\n", r.Name, r.Kind.Display(), r.Pattern, r.Message)
	}
	return b.String()
}
