package index

import (
	"encoding/json"
	"log/slog"

	"github.com/starford/synapse/internal/checksum"
	"github.com/starford/synapse/internal/models"
)

// RuleSource is the read side of the in-memory rule graph.
type RuleSource interface {
	Paths() []string
	Node(path string) (*models.RuleFileNode, bool)
}

// Sync brings the index in line with src:
//   - new/changed rule files are upserted
//   - rule files no longer in src are deleted
func Sync(db RuleIndex, src RuleSource, logger *slog.Logger) error {
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	current := make(map[string]struct{})
	for _, p := range src.Paths() {
		node, ok := src.Node(p)
		if !ok {
			continue
		}
		current[p] = struct{}{}

		cs := NodeChecksum(node)
		if checksums[p] == cs {
			continue
		}
		row := RuleFileRow{
			Path:      p,
			Checksum:  cs,
			Inherits:  node.Inherits,
			Overrides: node.Overrides,
			RuleCount: len(node.Rules),
		}
		if err := db.UpsertRuleFile(row, node.Rules); err != nil {
			logger.Warn("sync: index failed", slog.String("path", p), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", p), slog.Int("rules", len(node.Rules)))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := current[p]; !ok {
			if err := db.DeleteRuleFile(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}
	return nil
}

// NodeChecksum digests the parsed form of a rule file, so formatting-only edits
// to the source do not trigger a reindex.
func NodeChecksum(node *models.RuleFileNode) string {
	data, err := json.Marshal(node)
	if err != nil {
		return ""
	}
	return checksum.Sum(data)
}
