//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/synapse/internal/models"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; rule search uses LIKE over the rules table.
	return nil
}

func ftsReplace(_ *sql.Tx, _ string, _ []models.RuleDefinition) error { return nil }

func ftsDelete(_ *sql.Tx, _ string) {}

// SearchRules performs a LIKE search over rule names, patterns and messages.
func (db *DB) SearchRules(query string, limit int) ([]RuleHit, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + escapeLike(query) + "%"
	rows, err := db.conn.Query(`
		SELECT file_path, rule_id, name, kind, pattern, message
		FROM rules
		WHERE name LIKE ? ESCAPE '\' OR pattern LIKE ? ESCAPE '\' OR message LIKE ? ESCAPE '\'
		ORDER BY file_path, position
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search rules: %w", err)
	}
	defer rows.Close()
	return scanHits(rows)
}
