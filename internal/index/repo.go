package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/synapse/internal/models"
)

// RuleFileRow represents a row in the rule_files table.
type RuleFileRow struct {
	Path      string
	Checksum  string
	Inherits  []string
	Overrides []string
	RuleCount int
	UpdatedAt time.Time
}

// RuleHit is one rule returned by SearchRules.
type RuleHit struct {
	FilePath string `json:"file_path"`
	RuleID   string `json:"rule_id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Pattern  string `json:"pattern"`
	Message  string `json:"message"`
}

// UpsertRuleFile replaces a rule file row and its rules within a transaction.
func (db *DB) UpsertRuleFile(f RuleFileRow, rules []models.RuleDefinition) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	inherits, _ := json.Marshal(nonNil(f.Inherits))
	overrides, _ := json.Marshal(nonNil(f.Overrides))
	if f.UpdatedAt.IsZero() {
		f.UpdatedAt = time.Now().UTC()
	}

	_, err = tx.Exec(`
		INSERT INTO rule_files (path, checksum, inherits, overrides, rule_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum   = excluded.checksum,
			inherits   = excluded.inherits,
			overrides  = excluded.overrides,
			rule_count = excluded.rule_count,
			updated_at = excluded.updated_at
	`, f.Path, f.Checksum, string(inherits), string(overrides), len(rules), f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert rule file: %w", err)
	}

	_, _ = tx.Exec(`DELETE FROM rules WHERE file_path = ?`, f.Path)
	if len(rules) > 0 {
		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO rules (file_path, rule_id, name, kind, pattern, message, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare rule insert: %w", err)
		}
		defer stmt.Close()
		for i, r := range rules {
			if _, err := stmt.Exec(f.Path, r.ID, r.Name, r.Kind.String(), r.Pattern, r.Message, i); err != nil {
				return fmt.Errorf("index: insert rule: %w", err)
			}
		}
	}

	if err := ftsReplace(tx, f.Path, rules); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteRuleFile removes a rule file and its rules.
func (db *DB) DeleteRuleFile(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM rules WHERE file_path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM rule_files WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a rule file, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM rule_files WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns path -> checksum for every indexed rule file.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM rule_files`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// RuleFile returns the stored row for path, or nil when it is not indexed.
func (db *DB) RuleFile(path string) (*RuleFileRow, error) {
	var (
		row                 RuleFileRow
		inherits, overrides string
	)
	err := db.conn.QueryRow(`
		SELECT path, checksum, inherits, overrides, rule_count, updated_at
		FROM rule_files WHERE path = ?`, path).
		Scan(&row.Path, &row.Checksum, &inherits, &overrides, &row.RuleCount, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: rule file: %w", err)
	}
	_ = json.Unmarshal([]byte(inherits), &row.Inherits)
	_ = json.Unmarshal([]byte(overrides), &row.Overrides)
	return &row, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
