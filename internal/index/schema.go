// Package index mirrors the rule graph into SQLite for search, and records check
// history. Rule search uses FTS5 when built with the sqlite_fts5 tag.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS rule_files (
	path       TEXT PRIMARY KEY,
	checksum   TEXT NOT NULL DEFAULT '',
	inherits   TEXT NOT NULL DEFAULT '[]',
	overrides  TEXT NOT NULL DEFAULT '[]',
	rule_count INTEGER NOT NULL DEFAULT 0,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rules (
	file_path TEXT NOT NULL REFERENCES rule_files(path) ON DELETE CASCADE,
	rule_id   TEXT NOT NULL,
	name      TEXT NOT NULL DEFAULT '',
	kind      TEXT NOT NULL,
	pattern   TEXT NOT NULL,
	message   TEXT NOT NULL DEFAULT '',
	position  INTEGER NOT NULL DEFAULT 0,
	UNIQUE(file_path, rule_id)
);

CREATE TABLE IF NOT EXISTS check_runs (
	id              TEXT PRIMARY KEY,
	started_at      DATETIME NOT NULL,
	files_checked   INTEGER NOT NULL DEFAULT 0,
	rules_applied   INTEGER NOT NULL DEFAULT 0,
	violation_count INTEGER NOT NULL DEFAULT 0,
	dry_run         INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS violations (
	run_id       TEXT NOT NULL REFERENCES check_runs(id) ON DELETE CASCADE,
	file_path    TEXT NOT NULL,
	rule_id      TEXT NOT NULL,
	rule_name    TEXT NOT NULL DEFAULT '',
	kind         TEXT NOT NULL,
	pattern      TEXT NOT NULL,
	message      TEXT NOT NULL DEFAULT '',
	line_number  INTEGER,
	line_content TEXT
);

CREATE INDEX IF NOT EXISTS idx_rules_file ON rules(file_path);
CREATE INDEX IF NOT EXISTS idx_violations_run ON violations(run_id);
CREATE INDEX IF NOT EXISTS idx_runs_started ON check_runs(started_at);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
