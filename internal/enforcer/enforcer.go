// Package enforcer coordinates rule resolution, checking, fixing and history.
package enforcer

import (
	"errors"
	"log/slog"
	"runtime"
	"sync"

	"github.com/starford/synapse/internal/apperr"
	"github.com/starford/synapse/internal/autofix"
	"github.com/starford/synapse/internal/cache"
	"github.com/starford/synapse/internal/discovery"
	"github.com/starford/synapse/internal/index"
	"github.com/starford/synapse/internal/models"
	"github.com/starford/synapse/internal/rulegraph"
	"github.com/starford/synapse/internal/storage"
)

// Service resolves and enforces rules for files under one project root.
type Service struct {
	mu    sync.RWMutex
	graph *rulegraph.Graph

	store   storage.Provider
	cache   *cache.Cache
	fixer   *autofix.Classifier
	idx     index.RuleIndex
	logger  *slog.Logger
	workers int
}

// Option configures a Service.
type Option func(*Service)

// WithCache sets the resolution cache.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithClassifier sets the auto-fix classifier.
func WithClassifier(c *autofix.Classifier) Option {
	return func(s *Service) { s.fixer = c }
}

// WithIndex enables rule search and check history in the index.
func WithIndex(idx index.RuleIndex) Option {
	return func(s *Service) { s.idx = idx }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithWorkers bounds how many files are checked in parallel.
func WithWorkers(n int) Option {
	return func(s *Service) { s.workers = n }
}

// New creates a Service over graph and store.
func New(graph *rulegraph.Graph, store storage.Provider, opts ...Option) *Service {
	s := &Service{
		graph:   graph,
		store:   store,
		logger:  slog.Default(),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, o := range opts {
		o(s)
	}
	if s.cache == nil {
		s.cache = cache.New(cache.DefaultTTL, cache.DefaultMaxEntries, cache.WithLogger(s.logger))
	}
	if s.fixer == nil {
		s.fixer = autofix.New(autofix.WithLogger(s.logger))
	}
	if s.workers < 1 {
		s.workers = 1
	}
	return s
}

// Graph returns the current rule graph.
func (s *Service) Graph() *rulegraph.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph
}

// SwapGraph replaces the rule graph and drops every cached resolution.
func (s *Service) SwapGraph(g *rulegraph.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = g
	s.cache.Clear()
}

// Reload rebuilds the graph from disk, swaps it in and resyncs the index.
func (s *Service) Reload() (*rulegraph.Graph, error) {
	g, err := rulegraph.Load(s.store.Root(), discovery.New(s.Graph().Marker()), s.logger)
	if err != nil {
		return nil, err
	}
	s.SwapGraph(g)
	if s.idx != nil {
		if err := index.Sync(s.idx, g, s.logger); err != nil {
			s.logger.Warn("reload: index sync failed", slog.String("error", err.Error()))
		}
	}
	return g, nil
}

// Resolve returns the composite view for path, going through the cache.
// The read lock spans lookup and insert so a view computed from a graph that
// SwapGraph has since replaced never lands in the cleared cache.
func (s *Service) Resolve(path string) (*models.CompositeRuleView, error) {
	abs, err := s.store.Resolve(path)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.cache.Get(abs); ok {
		return v, nil
	}
	v := s.graph.Resolve(abs)
	s.cache.Insert(abs, v)
	return v, nil
}

// CacheStats returns resolution cache counters.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// GraphStats summarizes the current rule graph.
func (s *Service) GraphStats() rulegraph.Stats {
	return s.Graph().Stats()
}

// SearchRules searches the index, or the in-memory graph when no index is set.
func (s *Service) SearchRules(query string, limit int) ([]index.RuleHit, error) {
	if s.idx != nil {
		return s.idx.SearchRules(query, limit)
	}
	if limit <= 0 {
		limit = 20
	}
	hits := []index.RuleHit{}
	for _, m := range s.Graph().FindByPattern(query) {
		if len(hits) == limit {
			break
		}
		hits = append(hits, index.RuleHit{
			FilePath: m.Path,
			RuleID:   m.Rule.ID,
			Name:     m.Rule.Name,
			Kind:     m.Rule.Kind.String(),
			Pattern:  m.Rule.Pattern,
			Message:  m.Rule.Message,
		})
	}
	return hits, nil
}

// RecentRuns lists recorded check runs, newest first.
func (s *Service) RecentRuns(limit int) ([]index.CheckRun, error) {
	if s.idx == nil {
		return []index.CheckRun{}, nil
	}
	return s.idx.RecentRuns(limit)
}

// RunViolations returns the violations stored for a run.
func (s *Service) RunViolations(id string) ([]index.ViolationRow, error) {
	if s.idx == nil {
		return nil, apperr.ErrNotFound
	}
	return s.idx.RunViolations(id)
}

// IsClientError reports whether err was caused by the caller's input.
func IsClientError(err error) bool {
	return errors.Is(err, apperr.ErrOutsideRoot) || errors.Is(err, apperr.ErrInvalidPattern)
}
