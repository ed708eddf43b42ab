// Package models defines the domain types for Synapse rule resolution and enforcement.
package models

import (
	"encoding/json"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// RuleKind classifies a rule. Only Forbidden and Required produce violations.
type RuleKind int

const (
	Forbidden RuleKind = iota
	Required
	Standard
	Convention
)

var kindNames = [...]string{"forbidden", "required", "standard", "convention"}

// String returns the lowercase kind word, also used as the auto-generated id prefix.
func (k RuleKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Display returns the upper-case label used in rendered context.
func (k RuleKind) Display() string {
	return strings.ToUpper(k.String())
}

// EnforcementLevel describes how the kind is treated by consumers.
func (k RuleKind) EnforcementLevel() string {
	switch k {
	case Forbidden, Required:
		return "BLOCKING"
	case Standard:
		return "SUGGESTION"
	default:
		return "STYLE"
	}
}

// Enforced reports whether rules of this kind can produce violations.
func (k RuleKind) Enforced() bool {
	return k == Forbidden || k == Required
}

// ParseRuleKind converts a kind word back into a RuleKind.
func ParseRuleKind(s string) (RuleKind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(s, name) {
			return RuleKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown rule kind %q", s)
}

func (k RuleKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.Display())
}

func (k *RuleKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseRuleKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// RuleDefinition is a single declared rule. IDs are unique only within the declaring file.
type RuleDefinition struct {
	ID       string            `json:"id"`
	Name     string            `json:"name"`
	Kind     RuleKind          `json:"kind"`
	Pattern  string            `json:"pattern"`
	Message  string            `json:"message"`
	Tags     []string          `json:"tags,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks the rule has everything enforcement needs.
func (r RuleDefinition) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required),
		validation.Field(&r.Name, validation.By(notBlank)),
		validation.Field(&r.Pattern, validation.By(notBlank)),
		validation.Field(&r.Message, validation.By(notBlank)),
		validation.Field(&r.Kind, validation.Min(Forbidden), validation.Max(Convention)),
	)
}

// RuleFileNode is the parsed form of one rule-marker file, keyed by its canonical path.
type RuleFileNode struct {
	Path      string            `json:"path"`
	Rules     []RuleDefinition  `json:"rules"`
	Inherits  []string          `json:"inherits,omitempty"`
	Overrides []string          `json:"overrides,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Validate checks the node and each of its rules.
func (n *RuleFileNode) Validate() error {
	if err := validation.ValidateStruct(n,
		validation.Field(&n.Path, validation.Required),
		validation.Field(&n.Inherits, validation.Each(validation.By(notBlank))),
		validation.Field(&n.Overrides, validation.Each(validation.By(notBlank))),
	); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(n.Rules))
	for i, r := range n.Rules {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("rule %d: duplicate id %q", i, r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}

// CompositeRuleView is the resolved rule set for one query path.
type CompositeRuleView struct {
	Rules            []RuleDefinition `json:"applicable_rules"`
	InheritanceChain []string         `json:"inheritance_chain"`
	Suppressed       []string         `json:"overridden_rules"`
}

// IsSuppressed reports whether id or name was overridden anywhere in the chain.
func (v *CompositeRuleView) IsSuppressed(r RuleDefinition) bool {
	for _, s := range v.Suppressed {
		if s == r.ID || s == r.Name {
			return true
		}
	}
	return false
}

// Violation is one rule breach. Line fields are set only for per-line (Forbidden) matches.
type Violation struct {
	FilePath    string         `json:"file_path"`
	Rule        RuleDefinition `json:"rule"`
	LineNumber  *int           `json:"line_number,omitempty"`
	LineContent *string        `json:"line_content,omitempty"`
}

func notBlank(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return validation.NewError("validation_blank", "cannot be blank")
	}
	return nil
}
