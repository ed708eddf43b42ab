package discovery

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFindRuleFiles_Empty(t *testing.T) {
	got, err := New("").FindRuleFiles(t.TempDir())
	if err != nil {
		t.Fatalf("FindRuleFiles: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected none, got %v", got)
	}
}

func TestFindRuleFiles_NestedSorted(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src", "utils", DefaultMarker), "x")
	writeFile(t, filepath.Join(root, DefaultMarker), "x")
	writeFile(t, filepath.Join(root, "src", DefaultMarker), "x")
	writeFile(t, filepath.Join(root, "README.md"), "# readme")
	writeFile(t, filepath.Join(root, "src", "synapse.md"), "not a marker")

	got, err := New("").FindRuleFiles(root)
	if err != nil {
		t.Fatalf("FindRuleFiles: %v", err)
	}
	want := []string{
		filepath.Join(root, DefaultMarker),
		filepath.Join(root, "src", DefaultMarker),
		filepath.Join(root, "src", "utils", DefaultMarker),
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFindRuleFiles_MissingRoot(t *testing.T) {
	if _, err := New("").FindRuleFiles(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestFindRuleFiles_SkipsUnreadableDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	root := t.TempDir()
	writeFile(t, filepath.Join(root, DefaultMarker), "x")
	locked := filepath.Join(root, "locked")
	writeFile(t, filepath.Join(locked, DefaultMarker), "x")
	if err := os.Chmod(locked, 0o000); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	got, err := New("").FindRuleFiles(root)
	if err != nil {
		t.Fatalf("unreadable subdirectory should not be fatal: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %v, want only the root marker", got)
	}
}

func TestIsRuleFile(t *testing.T) {
	f := New("")
	if !f.IsRuleFile("/a/b/.synapse.md") {
		t.Error("marker not recognised")
	}
	if f.IsRuleFile("/a/b/rules.md") {
		t.Error("plain markdown recognised as marker")
	}
	if !New("RULES.md").IsRuleFile("x/RULES.md") {
		t.Error("custom marker not recognised")
	}
}

func TestFindInheritanceChain_CollectsEveryAncestor(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, DefaultMarker), "x")
	writeFile(t, filepath.Join(root, "a", "b", DefaultMarker), "x")
	target := filepath.Join(root, "a", "b", "c", "main.go")

	got := New("").FindInheritanceChain(target)
	if len(got) < 2 {
		t.Fatalf("chain = %v, want at least 2 entries", got)
	}
	if got[0] != filepath.Join(root, "a", "b", DefaultMarker) {
		t.Errorf("nearest = %q", got[0])
	}
	if got[1] != filepath.Join(root, DefaultMarker) {
		t.Errorf("second = %q", got[1])
	}
}

func TestCanonical_SymlinkAndDots(t *testing.T) {
	root := t.TempDir()
	real := filepath.Join(root, "real")
	writeFile(t, filepath.Join(real, "f.go"), "x")
	link := filepath.Join(root, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	a := Canonical(filepath.Join(real, "f.go"))
	b := Canonical(filepath.Join(link, "f.go"))
	c := Canonical(filepath.Join(real, "..", "real", "f.go"))
	if a != b || a != c {
		t.Errorf("canonical forms differ: %q %q %q", a, b, c)
	}
}

func TestCanonical_MissingFileKeepsResolvedParent(t *testing.T) {
	root := t.TempDir()
	real := filepath.Join(root, "real")
	if err := os.MkdirAll(real, 0o755); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(root, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	a := Canonical(filepath.Join(link, "new", "file.rs"))
	b := Canonical(filepath.Join(real, "new", "file.rs"))
	if a != b {
		t.Errorf("%q != %q", a, b)
	}
}
