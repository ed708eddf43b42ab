//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"

	"github.com/starford/synapse/internal/models"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS rules_fts USING fts5(
			file_path UNINDEXED,
			rule_id UNINDEXED,
			name,
			pattern,
			message,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsReplace(tx *sql.Tx, path string, rules []models.RuleDefinition) error {
	_, _ = tx.Exec(`DELETE FROM rules_fts WHERE file_path = ?`, path)
	for _, r := range rules {
		_, err := tx.Exec(`INSERT INTO rules_fts (file_path, rule_id, name, pattern, message) VALUES (?, ?, ?, ?, ?)`,
			path, r.ID, r.Name, r.Pattern, r.Message)
		if err != nil {
			return fmt.Errorf("index: upsert fts: %w", err)
		}
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM rules_fts WHERE file_path = ?`, path)
}

// SearchRules runs an FTS5 query over rule names, patterns and messages.
// The query is quoted so that pattern punctuation is matched as text.
func (db *DB) SearchRules(query string, limit int) ([]RuleHit, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT r.file_path, r.rule_id, r.name, r.kind, r.pattern, r.message
		FROM rules_fts f
		JOIN rules r ON r.file_path = f.file_path AND r.rule_id = f.rule_id
		WHERE rules_fts MATCH ?
		ORDER BY f.rank
		LIMIT ?
	`, quoteFTS(query), limit)
	if err != nil {
		return nil, fmt.Errorf("index: search rules: %w", err)
	}
	defer rows.Close()
	return scanHits(rows)
}
