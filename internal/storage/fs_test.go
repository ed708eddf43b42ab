package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/synapse/internal/apperr"
)

func tempProject(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempProject(t)
	content := []byte("fn main() {}\n")
	if err := s.Write("main.rs", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("main.rs")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestReadAbsoluteInsideRoot(t *testing.T) {
	s := tempProject(t)
	_ = s.Write("src/lib.rs", []byte("x"))
	got, err := s.Read(filepath.Join(s.Root(), "src", "lib.rs"))
	if err != nil || string(got) != "x" {
		t.Errorf("Read abs = %q, %v", got, err)
	}
}

func TestReadMissingIsNotExist(t *testing.T) {
	s := tempProject(t)
	if _, err := s.Read("nope.rs"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want ErrNotExist", err)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempProject(t)
	if err := s.Write("a/b/c.go", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.go")
	if err != nil || string(got) != "deep" {
		t.Errorf("content = %q, %v", got, err)
	}
}

func TestWriteKeepsMode(t *testing.T) {
	s := tempProject(t)
	p := filepath.Join(s.Root(), "run.sh")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("run.sh", []byte("#!/bin/sh\necho hi\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	info, err := os.Stat(p)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Errorf("mode = %v, want 0755", info.Mode().Perm())
	}
}

func TestList(t *testing.T) {
	s := tempProject(t)
	_ = s.Write("a.go", []byte("a"))
	_ = s.Write("sub/b.rs", []byte("b"))
	_ = s.Write("sub/.synapse.md", []byte("rules"))
	_ = s.Write(".git/config", []byte("hidden"))

	items, err := s.List("", ".synapse.md")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"a.go", filepath.Join("sub", "b.rs")}
	if len(items) != len(want) || items[0] != want[0] || items[1] != want[1] {
		t.Errorf("items = %v, want %v", items, want)
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempProject(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.rs",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); !errors.Is(err, apperr.ErrOutsideRoot) {
			t.Errorf("Read(%q) err = %v, want ErrOutsideRoot", p, err)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempProject(t)
	_ = s.Write("atomic.go", []byte("original content"))

	updated := []byte("updated content")
	if err := s.Write("atomic.go", updated); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("atomic.go")
	if string(got) != string(updated) {
		t.Errorf("expected updated content, got %q", got)
	}

	matches, _ := filepath.Glob(filepath.Join(s.root, ".synapse-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "synapse-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestResolve_FilesystemRoot(t *testing.T) {
	s, err := NewFS(string(os.PathSeparator))
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(string(os.PathSeparator), "etc", "hosts")
	got, err := s.Resolve(filepath.Join("etc", "hosts"))
	if err != nil || got != want {
		t.Errorf("Resolve = %q, %v; want %q", got, err, want)
	}
	if got, err := s.Resolve(want); err != nil || got != want {
		t.Errorf("absolute Resolve = %q, %v", got, err)
	}
}

func TestResolve_SiblingWithSharedPrefixIsOutside(t *testing.T) {
	s := tempProject(t)
	sibling := s.Root() + "-other" + string(os.PathSeparator) + "a.rs"
	if _, err := s.Resolve(sibling); !errors.Is(err, apperr.ErrOutsideRoot) {
		t.Errorf("err = %v, want ErrOutsideRoot", err)
	}
	if _, err := s.Resolve("..data/x.rs"); err != nil {
		t.Errorf("dot-dot prefixed name inside root rejected: %v", err)
	}
}
