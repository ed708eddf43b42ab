// Package discovery locates rule-marker files in a project tree.
package discovery

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// DefaultMarker is the per-directory rule-marker file name.
const DefaultMarker = ".synapse.md"

// Finder walks directory trees looking for marker files.
type Finder struct {
	marker string
}

// New creates a Finder for the given marker name; an empty name uses DefaultMarker.
func New(marker string) *Finder {
	if marker == "" {
		marker = DefaultMarker
	}
	return &Finder{marker: marker}
}

// Marker returns the marker file name this finder looks for.
func (f *Finder) Marker() string {
	return f.marker
}

// IsRuleFile reports whether path names a rule-marker file.
func (f *Finder) IsRuleFile(path string) bool {
	return filepath.Base(path) == f.marker
}

// FindRuleFiles returns every marker file under root, sorted and deduplicated.
// Entries that cannot be read are skipped; only an unreadable root is an error.
func (f *Finder) FindRuleFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if f.IsRuleFile(root) {
			return []string{filepath.Clean(root)}, nil
		}
		return nil, nil
	}

	seen := make(map[string]struct{})
	var out []string
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if d != nil && d.IsDir() && p != root {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !f.IsRuleFile(p) {
			return nil
		}
		// Symlinked markers are followed; dangling ones are skipped.
		if d.Type()&fs.ModeSymlink != 0 {
			if _, err := os.Stat(p); err != nil {
				return nil
			}
		}
		clean := filepath.Clean(p)
		if _, dup := seen[clean]; !dup {
			seen[clean] = struct{}{}
			out = append(out, clean)
		}
		return nil
	})
	sort.Strings(out)
	return out, nil
}

// FindInheritanceChain walks from target's directory up to the filesystem root and
// returns every marker file found, nearest first.
func (f *Finder) FindInheritanceChain(target string) []string {
	abs, err := filepath.Abs(target)
	if err != nil {
		abs = filepath.Clean(target)
	}
	var out []string
	dir := filepath.Dir(abs)
	for {
		candidate := filepath.Join(dir, f.marker)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			out = append(out, candidate)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return out
}

// Canonical resolves path to an absolute, symlink-free form. When that fails
// (for example the path does not exist yet) the cleaned absolute path is used,
// and failing that the literal path.
func Canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	// Resolve the deepest existing ancestor so that files which do not exist yet
	// still share a key with their siblings.
	dir, rest := filepath.Dir(abs), filepath.Base(abs)
	for {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs
		}
		rest = filepath.Join(filepath.Base(dir), rest)
		dir = parent
	}
}
