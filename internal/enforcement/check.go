package enforcement

import (
	"strings"

	"github.com/starford/synapse/internal/models"
)

// Check runs compiled rules over content and returns every violation.
//
// Forbidden rules are evaluated per line (1-indexed) and yield one violation per
// matching line. Required rules yield a single whole-file violation when no line
// matches. Standard and Convention rules never yield violations.
func Check(path, content string, rules []CompiledRule) []models.Violation {
	if len(rules) == 0 {
		return nil
	}
	lines := splitLines(content)

	var out []models.Violation
	for _, cr := range rules {
		if !cr.Rule.Kind.Enforced() {
			continue
		}
		switch cr.Rule.Kind {
		case models.Forbidden:
			for i, line := range lines {
				if !cr.Matcher.Match(line) {
					continue
				}
				n, text := i+1, line
				out = append(out, models.Violation{
					FilePath:    path,
					Rule:        cr.Rule,
					LineNumber:  &n,
					LineContent: &text,
				})
			}
		case models.Required:
			found := false
			for _, line := range lines {
				if cr.Matcher.Match(line) {
					found = true
					break
				}
			}
			if !found {
				out = append(out, models.Violation{FilePath: path, Rule: cr.Rule})
			}
		}
	}
	return out
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
