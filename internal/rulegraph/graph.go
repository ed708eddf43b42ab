// Package rulegraph holds the in-memory index of parsed rule files and resolves the
// composite rule set that applies to a path.
package rulegraph

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/synapse/internal/discovery"
	"github.com/starford/synapse/internal/models"
	"github.com/starford/synapse/internal/parser"
)

// Graph is an arena of rule file nodes keyed by canonical path. Inheritance
// references are looked up by path, never held as pointers.
//
// A Graph is built once and then only read; concurrent Resolve calls are safe
// as long as Add and Remove are not called at the same time.
type Graph struct {
	marker  string
	nodes   map[string]*models.RuleFileNode // canonical path -> node
	literal map[string]string               // literal path -> canonical path
	dirs    map[string]string               // canonical dir of a marker file -> canonical path
}

// New creates an empty graph for the given marker name.
func New(marker string) *Graph {
	if marker == "" {
		marker = discovery.DefaultMarker
	}
	return &Graph{
		marker:  marker,
		nodes:   make(map[string]*models.RuleFileNode),
		literal: make(map[string]string),
		dirs:    make(map[string]string),
	}
}

// Load discovers and parses every marker file under root. A file that cannot be
// read or parsed is logged and skipped.
func Load(root string, finder *discovery.Finder, logger *slog.Logger) (*Graph, error) {
	if finder == nil {
		finder = discovery.New("")
	}
	if logger == nil {
		logger = slog.Default()
	}
	paths, err := finder.FindRuleFiles(root)
	if err != nil {
		return nil, err
	}

	g := New(finder.Marker())
	for _, p := range paths {
		canon := discovery.Canonical(p)
		data, err := os.ReadFile(canon)
		if err != nil {
			logger.Warn("rule file unreadable", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		node, err := parser.ParseRuleFile(canon, data)
		if err != nil {
			logger.Warn("rule file skipped", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		g.Add(node)
	}
	logger.Info("rule graph loaded", slog.String("root", root), slog.Int("rule_files", g.NodeCount()))
	return g, nil
}

// Marker returns the marker file name the graph resolves against.
func (g *Graph) Marker() string {
	return g.marker
}

// Add inserts or replaces node. Nodes whose file is named like the marker become
// directly applicable to their directory.
func (g *Graph) Add(node *models.RuleFileNode) {
	if node == nil {
		return
	}
	key := discovery.Canonical(node.Path)
	g.Remove(key)
	g.nodes[key] = node
	g.literal[filepath.Clean(node.Path)] = key
	if filepath.Base(key) == g.marker {
		g.dirs[filepath.Dir(key)] = key
	}
}

// Remove deletes the node for path and reports whether one existed.
func (g *Graph) Remove(path string) bool {
	key, ok := g.lookup(path)
	if !ok {
		return false
	}
	node := g.nodes[key]
	delete(g.nodes, key)
	delete(g.literal, filepath.Clean(node.Path))
	if g.dirs[filepath.Dir(key)] == key {
		delete(g.dirs, filepath.Dir(key))
	}
	return true
}

// Node returns the node stored for path (literal or canonical).
func (g *Graph) Node(path string) (*models.RuleFileNode, bool) {
	key, ok := g.lookup(path)
	if !ok {
		return nil, false
	}
	return g.nodes[key], true
}

// NodeCount returns the number of rule files in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// Paths returns the canonical paths of every node, sorted.
func (g *Graph) Paths() []string {
	out := make([]string, 0, len(g.nodes))
	for k := range g.nodes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (g *Graph) lookup(path string) (string, bool) {
	if _, ok := g.nodes[path]; ok {
		return path, true
	}
	if key, ok := g.literal[filepath.Clean(path)]; ok {
		return key, true
	}
	canon := discovery.Canonical(path)
	if _, ok := g.nodes[canon]; ok {
		return canon, true
	}
	return "", false
}

// lookupRef resolves an inherits entry relative to the directory of base. The
// reference may name a rule file or a directory holding one.
func (g *Graph) lookupRef(base, ref string) (string, bool) {
	p := ref
	if !filepath.IsAbs(p) {
		p = filepath.Join(filepath.Dir(base), ref)
	}
	if key, ok := g.lookup(p); ok {
		return key, true
	}
	if key, ok := g.dirs[discovery.Canonical(p)]; ok {
		return key, true
	}
	return "", false
}

// Resolve computes the composite rule view for target. A path with no applicable
// rule file anywhere above it yields an empty view.
func (g *Graph) Resolve(target string) *models.CompositeRuleView {
	view := &models.CompositeRuleView{
		Rules:            []models.RuleDefinition{},
		InheritanceChain: []string{},
		Suppressed:       []string{},
	}

	visited := make(map[string]struct{})
	var visit func(key string)
	visit = func(key string) {
		if _, seen := visited[key]; seen {
			return
		}
		visited[key] = struct{}{}
		view.InheritanceChain = append(view.InheritanceChain, key)
		node := g.nodes[key]
		for _, ref := range node.Inherits {
			if next, ok := g.lookupRef(key, ref); ok {
				visit(next)
			}
		}
	}

	dir := filepath.Dir(discovery.Canonical(target))
	for {
		if key, ok := g.dirs[dir]; ok {
			visit(key)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	suppressed := make(map[string]struct{})
	for _, key := range view.InheritanceChain {
		for _, id := range g.nodes[key].Overrides {
			if _, dup := suppressed[id]; !dup {
				suppressed[id] = struct{}{}
				view.Suppressed = append(view.Suppressed, id)
			}
		}
	}

	// Collected furthest node first and last rule first, then reversed, so the
	// nearest node's rules lead.
	var rev []models.RuleDefinition
	for i := len(view.InheritanceChain) - 1; i >= 0; i-- {
		rules := g.nodes[view.InheritanceChain[i]].Rules
		for j := len(rules) - 1; j >= 0; j-- {
			if view.IsSuppressed(rules[j]) {
				continue
			}
			rev = append(rev, rules[j])
		}
	}
	for i := len(rev) - 1; i >= 0; i-- {
		view.Rules = append(view.Rules, rev[i])
	}
	return view
}

// Match is a rule found by FindByPattern, with the file that declares it.
type Match struct {
	Path string                `json:"path"`
	Rule models.RuleDefinition `json:"rule"`
}

// FindByPattern returns every rule whose pattern, message or name contains text.
// Results are ordered by file path, then declaration order.
func (g *Graph) FindByPattern(text string) []Match {
	var out []Match
	for _, key := range g.Paths() {
		for _, r := range g.nodes[key].Rules {
			if strings.Contains(r.Pattern, text) || strings.Contains(r.Message, text) || strings.Contains(r.Name, text) {
				out = append(out, Match{Path: key, Rule: r})
			}
		}
	}
	return out
}

// Stats summarizes the graph.
type Stats struct {
	RuleFiles                int `json:"rule_files"`
	TotalRules               int `json:"total_rules"`
	InheritanceRelationships int `json:"inheritance_relationships"`
	OverrideRelationships    int `json:"override_relationships"`
}

// Stats counts nodes, rules and declared relationships.
func (g *Graph) Stats() Stats {
	s := Stats{RuleFiles: len(g.nodes)}
	for _, n := range g.nodes {
		s.TotalRules += len(n.Rules)
		s.InheritanceRelationships += len(n.Inherits)
		s.OverrideRelationships += len(n.Overrides)
	}
	return s
}
