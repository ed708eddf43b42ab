// Package storage reads and writes project files under a fixed root.
package storage

// Provider is the interface for project file operations. Paths may be relative
// to the root or absolute paths inside it.
type Provider interface {
	// Root returns the absolute project root.
	Root() string
	// Resolve returns the absolute form of path, rejecting paths outside the root.
	Resolve(path string) (string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// List returns the root-relative paths of regular files under dir, skipping
	// hidden entries and files named skip.
	List(dir, skip string) ([]string, error)
}
