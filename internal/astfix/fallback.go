//go:build !treesitter

package astfix

import "github.com/starford/synapse/internal/autofix"

// Available reports whether the syntax-tree pass is compiled in.
func Available() bool { return false }

// Strategies returns nothing without the treesitter build tag.
func Strategies() []autofix.Strategy { return nil }
