package internal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/starford/synapse/internal/astfix"
	"github.com/starford/synapse/internal/autofix"
	"github.com/starford/synapse/internal/cache"
	"github.com/starford/synapse/internal/discovery"
	"github.com/starford/synapse/internal/enforcer"
	"github.com/starford/synapse/internal/index"
	"github.com/starford/synapse/internal/rulegraph"
	"github.com/starford/synapse/internal/storage"
)

var errConfigRequired = errors.New("config is required")

// Engine bundles everything built from a Config: the project store, the
// SQLite index and the enforcer on top of them.
type Engine struct {
	Service *enforcer.Service
	Store   *storage.FS
	DB      *index.DB
	Logger  *slog.Logger
}

// NewEngine loads the rule graph for cfg.Project and mirrors it into the index.
func NewEngine(cfg *Config, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, errConfigRequired
	}
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewFS(cfg.Project.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	graph, err := rulegraph.Load(store.Root(), discovery.New(cfg.Project.Marker), logger)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	if err := index.Sync(db, graph, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	resolutions := cache.New(cfg.Cache.TTL, cfg.Cache.MaxEntries,
		cache.WithMetrics(cfg.Cache.MetricsEnabled),
		cache.WithLogger(logger))

	fixOpts := []autofix.Option{autofix.WithLogger(logger)}
	for _, s := range astfix.Strategies() {
		fixOpts = append(fixOpts, autofix.WithStrategy(s))
	}

	svc := enforcer.New(graph, store,
		enforcer.WithCache(resolutions),
		enforcer.WithClassifier(autofix.New(fixOpts...)),
		enforcer.WithIndex(db),
		enforcer.WithLogger(logger))

	logger.Debug("engine ready",
		slog.String("root", store.Root()),
		slog.Bool("ast_fixes", astfix.Available()),
		slog.Int("rule_files", graph.NodeCount()))

	return &Engine{Service: svc, Store: store, DB: db, Logger: logger}, nil
}

// Close releases the index.
func (e *Engine) Close() error {
	return e.DB.Close()
}

func newJSONLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
