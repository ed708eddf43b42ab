// Package astfix holds the syntax-tree assisted unwrap rewrite. It is compiled
// in only with the treesitter build tag; otherwise Strategies returns nothing and
// the baseline autofix policy applies unchanged.
package astfix

import (
	"strings"

	"github.com/starford/synapse/internal/autofix"
)

// Confidence assigned to confirmed unwrap rewrites.
const Confidence = 0.95

// candidate is an unwrap call found inside a fallible function.
type candidate struct {
	text       string // exact source of the call
	receiver   string // source of the receiver expression
	returnType string // enclosing function's return type
}

// confirm keeps candidates whose exact text occurs once in content and turns
// them into proposals.
func confirm(content string, cands []candidate) []autofix.Proposal {
	var out []autofix.Proposal
	seen := make(map[string]struct{})
	for _, c := range cands {
		if _, dup := seen[c.text]; dup {
			continue
		}
		seen[c.text] = struct{}{}
		if strings.Count(content, c.text) != 1 {
			continue
		}
		out = append(out, autofix.Proposal{
			OriginalPattern:      c.text,
			SuggestedReplacement: c.receiver + "?",
			Confidence:           Confidence,
			Description:          "AST-based: enclosing function returns " + c.returnType + "; propagate with ?",
		})
	}
	return out
}
