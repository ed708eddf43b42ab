package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/synapse/internal/apperr"
	"github.com/starford/synapse/internal/models"
)

// CheckRun is one recorded enforcement pass.
type CheckRun struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	FilesChecked   int       `json:"files_checked"`
	RulesApplied   int       `json:"rules_applied"`
	ViolationCount int       `json:"violation_count"`
	DryRun         bool      `json:"dry_run"`
}

// ViolationRow is a stored violation. Line fields are nil for whole-file violations.
type ViolationRow struct {
	RunID       string  `json:"run_id"`
	FilePath    string  `json:"file_path"`
	RuleID      string  `json:"rule_id"`
	RuleName    string  `json:"rule_name"`
	Kind        string  `json:"kind"`
	Pattern     string  `json:"pattern"`
	Message     string  `json:"message"`
	LineNumber  *int    `json:"line_number,omitempty"`
	LineContent *string `json:"line_content,omitempty"`
}

// RecordRun stores run and its violations and returns the run id. A new id is
// generated when run.ID is empty.
func (db *DB) RecordRun(run CheckRun, violations []models.Violation) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.ViolationCount = len(violations)

	tx, err := db.conn.Begin()
	if err != nil {
		return "", fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.Exec(`
		INSERT INTO check_runs (id, started_at, files_checked, rules_applied, violation_count, dry_run)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt, run.FilesChecked, run.RulesApplied, run.ViolationCount, run.DryRun)
	if err != nil {
		return "", fmt.Errorf("index: insert run: %w", err)
	}

	if len(violations) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO violations (run_id, file_path, rule_id, rule_name, kind, pattern, message, line_number, line_content)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return "", fmt.Errorf("index: prepare violation insert: %w", err)
		}
		defer stmt.Close()
		for _, v := range violations {
			var line sql.NullInt64
			var content sql.NullString
			if v.LineNumber != nil {
				line = sql.NullInt64{Int64: int64(*v.LineNumber), Valid: true}
			}
			if v.LineContent != nil {
				content = sql.NullString{String: *v.LineContent, Valid: true}
			}
			if _, err := stmt.Exec(run.ID, v.FilePath, v.Rule.ID, v.Rule.Name, v.Rule.Kind.String(),
				v.Rule.Pattern, v.Rule.Message, line, content); err != nil {
				return "", fmt.Errorf("index: insert violation: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("index: commit run: %w", err)
	}
	return run.ID, nil
}

// RecentRuns returns the newest runs first.
func (db *DB) RecentRuns(limit int) ([]CheckRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id, started_at, files_checked, rules_applied, violation_count, dry_run
		FROM check_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("index: recent runs: %w", err)
	}
	defer rows.Close()

	out := []CheckRun{}
	for rows.Next() {
		var r CheckRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FilesChecked, &r.RulesApplied, &r.ViolationCount, &r.DryRun); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunViolations returns the violations of run id in insertion order.
func (db *DB) RunViolations(id string) ([]ViolationRow, error) {
	var exists int
	err := db.conn.QueryRow(`SELECT 1 FROM check_runs WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index: run %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("index: run lookup: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT run_id, file_path, rule_id, rule_name, kind, pattern, message, line_number, line_content
		FROM violations
		WHERE run_id = ?
		ORDER BY rowid
	`, id)
	if err != nil {
		return nil, fmt.Errorf("index: run violations: %w", err)
	}
	defer rows.Close()

	out := []ViolationRow{}
	for rows.Next() {
		var (
			v       ViolationRow
			line    sql.NullInt64
			content sql.NullString
		)
		if err := rows.Scan(&v.RunID, &v.FilePath, &v.RuleID, &v.RuleName, &v.Kind, &v.Pattern, &v.Message, &line, &content); err != nil {
			return nil, err
		}
		if line.Valid {
			n := int(line.Int64)
			v.LineNumber = &n
		}
		if content.Valid {
			s := content.String
			v.LineContent = &s
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
