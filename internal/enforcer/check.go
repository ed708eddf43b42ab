package enforcer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/synapse/internal/autofix"
	"github.com/starford/synapse/internal/enforcement"
	"github.com/starford/synapse/internal/index"
	"github.com/starford/synapse/internal/models"
)

// CheckResult summarizes one CheckFiles call.
type CheckResult struct {
	Success      bool               `json:"success"`
	Violations   []models.Violation `json:"violations"`
	FilesChecked int                `json:"files_checked"`
	RulesApplied int                `json:"rules_applied"`
	RunID        string             `json:"run_id,omitempty"`
}

type fileOutcome struct {
	checked    bool
	rules      int
	violations []models.Violation
}

// CheckFiles checks every file against its resolved rules. Missing files are
// skipped. The run succeeds when dryRun is set or nothing was violated.
func (s *Service) CheckFiles(ctx context.Context, files []string, dryRun bool) (*CheckResult, error) {
	started := time.Now().UTC()
	outcomes := make([]fileOutcome, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, f := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := s.checkFile(f)
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &CheckResult{Violations: []models.Violation{}}
	for _, o := range outcomes {
		if !o.checked {
			continue
		}
		res.FilesChecked++
		res.RulesApplied += o.rules
		res.Violations = append(res.Violations, o.violations...)
	}
	res.Success = dryRun || len(res.Violations) == 0

	if s.idx != nil {
		id, err := s.idx.RecordRun(index.CheckRun{
			StartedAt:    started,
			FilesChecked: res.FilesChecked,
			RulesApplied: res.RulesApplied,
			DryRun:       dryRun,
		}, res.Violations)
		if err != nil {
			s.logger.Warn("check: record run failed", slog.String("error", err.Error()))
		} else {
			res.RunID = id
		}
	}

	s.logger.Info("check complete",
		slog.Int("files", res.FilesChecked),
		slog.Int("rules", res.RulesApplied),
		slog.Int("violations", len(res.Violations)),
		slog.Bool("dry_run", dryRun),
	)
	return res, nil
}

func (s *Service) checkFile(path string) (fileOutcome, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("check: skipping missing file", slog.String("path", path))
			return fileOutcome{}, nil
		}
		return fileOutcome{}, fmt.Errorf("enforcer: check %s: %w", path, err)
	}
	rules, err := s.compiledRules(path)
	if err != nil {
		return fileOutcome{}, err
	}
	return fileOutcome{
		checked:    true,
		rules:      len(rules),
		violations: enforcement.Check(path, string(data), rules),
	}, nil
}

// compiledRules resolves and compiles the rules for path. Rules with a malformed
// pattern are logged and left out; the rest still apply.
func (s *Service) compiledRules(path string) ([]enforcement.CompiledRule, error) {
	view, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	rules, bad := enforcement.CompileAll(view.Rules)
	for id, err := range bad {
		s.logger.Warn("rule pattern rejected",
			slog.String("path", path),
			slog.String("rule", id),
			slog.String("error", err.Error()))
	}
	return rules, nil
}

// FixResult reports what was applied to one file.
type FixResult struct {
	Path    string             `json:"path"`
	Applied []autofix.Proposal `json:"applied"`
	Changed bool               `json:"changed"`
}

// FixFiles applies safe fixes at or above minConfidence to each file. With
// dryRun nothing is written.
func (s *Service) FixFiles(ctx context.Context, files []string, minConfidence float64, dryRun bool) ([]FixResult, error) {
	out := []FixResult{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		data, err := s.store.Read(f)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return out, fmt.Errorf("enforcer: fix %s: %w", f, err)
		}
		rules, err := s.compiledRules(f)
		if err != nil {
			return out, err
		}
		content := string(data)
		violations := enforcement.Check(f, content, rules)
		if len(violations) == 0 {
			continue
		}
		proposals := s.fixer.Propose(f, content, violations)
		fixed, applied := autofix.Apply(content, proposals, minConfidence)
		res := FixResult{Path: f, Applied: applied, Changed: fixed != content}
		if res.Applied == nil {
			res.Applied = []autofix.Proposal{}
		}
		if res.Changed && !dryRun {
			if err := s.store.Write(f, []byte(fixed)); err != nil {
				return out, fmt.Errorf("enforcer: write fix %s: %w", f, err)
			}
			s.logger.Info("fixes applied", slog.String("path", f), slog.Int("count", len(applied)))
		}
		out = append(out, res)
	}
	return out, nil
}
