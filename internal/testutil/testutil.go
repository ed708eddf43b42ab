// Package testutil provides shared test helpers for setting up projects and databases.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/synapse/internal/index"
	"github.com/starford/synapse/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "synapse-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestProject creates a temporary project holding files (relative path -> content)
// and returns its root with a storage.Provider over it.
func TestProject(t *testing.T, files map[string]string) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// QuietLogger returns a JSON logger that only reports errors.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// ScenarioFiles is a small project with a root rule file and a subdirectory that
// inherits it, suppresses its println ban and downgrades println to a standard.
func ScenarioFiles() map[string]string {
	return map[string]string{
		".synapse.md":     "# Root rules\nFORBIDDEN: `println!` - msg1\nREQUIRED: `#[test]` - msg2\n",
		"sub/.synapse.md": "---\ninherits: [\"../.synapse.md\"]\noverrides: [\"forbidden-0\"]\n---\nSTANDARD: `println!` - msg3\n",
		"sub/main.rs":     "fn main() {\n    println!(\"hi\");\n}\n",
	}
}
