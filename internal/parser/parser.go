// Package parser turns rule-marker file content into rule file nodes.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/synapse/internal/apperr"
	"github.com/starford/synapse/internal/models"
)

const delim = "---"

// Front matter keys with a dedicated meaning; everything else lands in metadata.
const (
	keyInherits  = "inherits"
	keyOverrides = "overrides"
	keyTags      = "tags"
)

// cue groups in declaration order; ids are numbered within each group.
var cues = []struct {
	kind models.RuleKind
	re   *regexp.Regexp
}{
	{models.Forbidden, cueRegexp(`forbidden|never|must not`)},
	{models.Required, cueRegexp(`required|must|mandatory`)},
	{models.Standard, cueRegexp(`standard|use|prefer|should`)},
}

func cueRegexp(words string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)\b(?:` + words + "):[ \\t]*`([^`\\n]+)`[ \\t]*-[ \\t]*(\\S.*)$")
}

// Result holds a file split into front matter and body.
type Result struct {
	Frontmatter map[string]any
	Body        string
}

// Parse splits data into YAML front matter and body. Content without front matter
// is all body. Front matter that is not valid YAML is an error.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	return &Result{Frontmatter: fm, Body: body}, nil
}

// ParseRuleFile builds a validated RuleFileNode for the marker file at path.
func ParseRuleFile(path string, data []byte) (*models.RuleFileNode, error) {
	res, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parser: %s: %w", path, err)
	}

	node := &models.RuleFileNode{Path: path}
	var tags []string
	if res.Frontmatter != nil {
		if node.Inherits, err = stringList(res.Frontmatter, keyInherits); err != nil {
			return nil, fmt.Errorf("parser: %s: %w", path, err)
		}
		if node.Overrides, err = stringList(res.Frontmatter, keyOverrides); err != nil {
			return nil, fmt.Errorf("parser: %s: %w", path, err)
		}
		if tags, err = stringList(res.Frontmatter, keyTags); err != nil {
			return nil, fmt.Errorf("parser: %s: %w", path, err)
		}
		node.Metadata = metadata(res.Frontmatter)
	}

	node.Rules = ExtractRules(res.Body)
	for i := range node.Rules {
		node.Rules[i].Tags = tags
	}

	if err := node.Validate(); err != nil {
		return nil, fmt.Errorf("parser: %s: %w: %v", path, apperr.ErrValidation, err)
	}
	return node, nil
}

// ExtractRules scans body prose for `<cue>: `pattern` - message` declarations.
func ExtractRules(body string) []models.RuleDefinition {
	var out []models.RuleDefinition
	for _, c := range cues {
		for n, m := range c.re.FindAllStringSubmatch(body, -1) {
			id := fmt.Sprintf("%s-%d", c.kind, n)
			out = append(out, models.RuleDefinition{
				ID:      id,
				Name:    id,
				Kind:    c.kind,
				Pattern: m[1],
				Message: strings.TrimSpace(m[2]),
			})
		}
	}
	return out
}

// splitFrontmatter separates YAML front matter (between a leading --- line and the
// next --- line) from the body.
func splitFrontmatter(data []byte) (map[string]any, string, error) {
	first, rest, ok := cutLine(data)
	if !ok && len(first) == 0 {
		return nil, string(data), nil
	}
	if string(bytes.TrimRight(first, " \t\r")) != delim {
		return nil, string(data), nil
	}

	var block [][]byte
	for {
		line, next, more := cutLine(rest)
		if string(bytes.TrimRight(line, " \t\r")) == delim {
			var fm map[string]any
			if err := yaml.Unmarshal(bytes.Join(block, []byte("\n")), &fm); err != nil {
				return nil, "", fmt.Errorf("%w: front matter: %v", apperr.ErrParse, err)
			}
			if fm == nil {
				fm = map[string]any{}
			}
			return fm, string(next), nil
		}
		if !more {
			// No closing delimiter: the whole file is body.
			return nil, string(data), nil
		}
		block = append(block, line)
		rest = next
	}
}

// cutLine returns the first line of data (without the newline) and the remainder.
func cutLine(data []byte) (line, rest []byte, found bool) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return data[:i], data[i+1:], true
	}
	return data, nil, false
}

func stringList(fm map[string]any, key string) ([]string, error) {
	raw, ok := fm[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] must be a string", apperr.ErrParse, key, i)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list of strings", apperr.ErrParse, key)
	}
}

// metadata folds the non-reserved keys into strings. Keys starting with @ are internal.
func metadata(fm map[string]any) map[string]string {
	out := make(map[string]string)
	for k, v := range fm {
		if k == keyInherits || k == keyOverrides || k == keyTags || strings.HasPrefix(k, "@") {
			continue
		}
		out[k] = scalarString(v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := yaml.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return strings.TrimSpace(string(b))
	}
}
