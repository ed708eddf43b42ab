// Package autofix proposes textual fixes for violations under a fixed safety policy.
//
// Simple, context-free substitutions are always proposed. Unwrapping calls are
// only proposed by an injected Strategy (see internal/astfix). Panics are never
// proposed, whatever strategies are installed.
package autofix

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/starford/synapse/internal/models"
)

// neverFix marks text that always needs human judgment.
const neverFix = "panic!"

// unwrapCall is the pattern left to strategies.
const unwrapCall = "unwrap"

// Proposal is one suggested replacement. Confidence is in [0, 1].
type Proposal struct {
	OriginalPattern      string  `json:"original_pattern"`
	SuggestedReplacement string  `json:"suggested_replacement"`
	Confidence           float64 `json:"confidence"`
	Description          string  `json:"description"`
}

// Strategy proposes additional fixes for a whole file.
type Strategy interface {
	Propose(path, content string) []Proposal
}

type substitution struct {
	trigger     string
	replacement string
	confidence  float64
	description string
}

// substitutions is the fixed table of context-free replacements.
var substitutions = []substitution{
	{"console.log", "logger.info", 0.9, "replace debug print with structured logger call"},
	{"println!", "log::info!", 0.85, "replace debug print with log macro"},
	{"fmt.Println", "slog.Info", 0.8, "replace debug print with structured logging"},
	{"print(", "logging.info(", 0.8, "replace debug print with logging call"},
}

// markers are comment markers whose whole comment can be dropped.
var markers = []string{"TODO", "FIXME"}

const markerConfidence = 0.8

// Classifier turns violations into proposals.
type Classifier struct {
	strategies []Strategy
	logger     *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithStrategy installs an additional strategy. A nil strategy is ignored.
func WithStrategy(s Strategy) Option {
	return func(c *Classifier) {
		if s != nil {
			c.strategies = append(c.strategies, s)
		}
	}
}

// WithLogger sets the logger for dropped proposals.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

// New creates a Classifier with the baseline policy.
func New(opts ...Option) *Classifier {
	c := &Classifier{logger: slog.Default()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Strategies returns how many strategies are installed.
func (c *Classifier) Strategies() int {
	return len(c.strategies)
}

// Propose returns fixes for the violations found in content. It never fails;
// when nothing is safe to propose the result is empty.
func (c *Classifier) Propose(path, content string, violations []models.Violation) []Proposal {
	var out []Proposal
	seen := make(map[string]struct{})
	add := func(p Proposal) {
		if p.OriginalPattern == "" || strings.Contains(p.OriginalPattern, neverFix) {
			return
		}
		if p.Confidence < 0 || p.Confidence > 1 {
			return
		}
		if _, dup := seen[p.OriginalPattern]; dup {
			return
		}
		seen[p.OriginalPattern] = struct{}{}
		out = append(out, p)
	}

	wantsUnwrap := false
	for _, v := range violations {
		if v.LineContent == nil {
			continue
		}
		pattern := plainPattern(v.Rule.Pattern)
		if strings.Contains(pattern, unwrapCall) {
			wantsUnwrap = true
			continue
		}
		if p, ok := markerFix(pattern, *v.LineContent); ok {
			add(p)
			continue
		}
		if p, ok := substitutionFix(pattern, *v.LineContent); ok {
			add(p)
		}
	}

	if wantsUnwrap {
		for _, s := range c.strategies {
			for _, p := range s.Propose(path, content) {
				if strings.Contains(p.OriginalPattern, neverFix) {
					c.logger.Debug("autofix: dropped unsafe proposal", slog.String("path", path))
					continue
				}
				add(p)
			}
		}
	}
	return out
}

func substitutionFix(pattern, line string) (Proposal, bool) {
	for _, s := range substitutions {
		if strings.Contains(pattern, s.trigger) && strings.Contains(line, s.trigger) {
			return Proposal{
				OriginalPattern:      s.trigger,
				SuggestedReplacement: s.replacement,
				Confidence:           s.confidence,
				Description:          s.description,
			}, true
		}
	}
	return Proposal{}, false
}

// markerFix proposes removing the comment that carries a TODO/FIXME marker.
func markerFix(pattern, line string) (Proposal, bool) {
	for _, m := range markers {
		if !strings.Contains(pattern, m) {
			continue
		}
		at := strings.Index(line, m)
		if at < 0 {
			return Proposal{}, false
		}
		start := commentStart(line[:at])
		if start < 0 {
			return Proposal{}, false
		}
		comment := strings.TrimRight(line[start:], " \t")
		return Proposal{
			OriginalPattern:      comment,
			SuggestedReplacement: "",
			Confidence:           markerConfidence,
			Description:          "remove " + m + " marker comment; track it in the issue tracker",
		}, true
	}
	return Proposal{}, false
}

// commentStart returns the index of the earliest comment opener in prefix, or
// -1. Rust attributes (#[, #!) and decrements (x--) are not openers.
func commentStart(prefix string) int {
	best := -1
	for _, opener := range []string{"//", "#", "/*", "--"} {
		for from := 0; from < len(prefix); {
			i := strings.Index(prefix[from:], opener)
			if i < 0 {
				break
			}
			i += from
			if isOpener(prefix, i, opener) {
				if best < 0 || i < best {
					best = i
				}
				break
			}
			from = i + len(opener)
		}
	}
	return best
}

func isOpener(s string, i int, opener string) bool {
	switch opener {
	case "#":
		next := i + 1
		return next >= len(s) || (s[next] != '[' && s[next] != '!')
	case "--":
		if i == 0 {
			return true
		}
		prev := s[i-1]
		return prev == ' ' || prev == '\t'
	}
	return true
}

// plainPattern strips regex escapes so `console\.log` reads as console.log.
func plainPattern(p string) string {
	return strings.ReplaceAll(p, `\`, "")
}

// Apply replaces every occurrence of each proposal at or above minConfidence and
// returns the new content with the proposals that were applied. Longer originals
// are applied first so that overlapping proposals do not split each other.
func Apply(content string, proposals []Proposal, minConfidence float64) (string, []Proposal) {
	eligible := make([]Proposal, 0, len(proposals))
	for _, p := range proposals {
		if p.OriginalPattern == "" || p.Confidence < minConfidence || strings.Contains(p.OriginalPattern, neverFix) {
			continue
		}
		eligible = append(eligible, p)
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return len(eligible[i].OriginalPattern) > len(eligible[j].OriginalPattern)
	})

	var applied []Proposal
	for _, p := range eligible {
		if !strings.Contains(content, p.OriginalPattern) {
			continue
		}
		content = strings.ReplaceAll(content, p.OriginalPattern, p.SuggestedReplacement)
		applied = append(applied, p)
	}
	return content, applied
}
