//go:build treesitter

package astfix

import (
	"context"
	"path/filepath"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/starford/synapse/internal/autofix"
)

// Available reports whether the syntax-tree pass is compiled in.
func Available() bool { return true }

// Strategies returns the syntax-tree strategies to install into the classifier.
func Strategies() []autofix.Strategy {
	return []autofix.Strategy{unwrapStrategy{}}
}

type unwrapStrategy struct{}

// Propose parses Rust sources and proposes `recv?` for `recv.unwrap()` calls made
// directly inside functions returning Result or Option.
func (unwrapStrategy) Propose(path, content string) []autofix.Proposal {
	if filepath.Ext(path) != ".rs" {
		return nil
	}
	src := []byte(content)
	p := sitter.NewParser()
	p.SetLanguage(rust.GetLanguage())
	tree, err := p.ParseCtx(context.Background(), nil, src)
	if err != nil || tree == nil {
		return nil
	}

	var cands []candidate
	// frame is the innermost enclosing function's return type; "" means it cannot fail.
	var walk func(n *sitter.Node, frames []string)
	walk = func(n *sitter.Node, frames []string) {
		switch n.Type() {
		case "function_item":
			frames = append(frames, fallibleType(n.ChildByFieldName("return_type"), src))
		case "closure_expression":
			frames = append(frames, "")
		case "call_expression":
			if len(frames) > 0 && frames[len(frames)-1] != "" {
				if c, ok := unwrapCall(n, src); ok {
					c.returnType = frames[len(frames)-1]
					cands = append(cands, c)
				}
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i), frames)
		}
	}
	walk(tree.RootNode(), nil)
	return confirm(content, cands)
}

// unwrapCall matches `<value>.unwrap()`.
func unwrapCall(n *sitter.Node, src []byte) (candidate, bool) {
	fn := n.ChildByFieldName("function")
	if fn == nil || fn.Type() != "field_expression" {
		return candidate{}, false
	}
	field := fn.ChildByFieldName("field")
	value := fn.ChildByFieldName("value")
	if field == nil || value == nil || field.Content(src) != "unwrap" {
		return candidate{}, false
	}
	if args := n.ChildByFieldName("arguments"); args != nil && args.NamedChildCount() > 0 {
		return candidate{}, false
	}
	return candidate{text: n.Content(src), receiver: value.Content(src)}, true
}

// fallibleType returns the return type text when it is Result or Option, else "".
func fallibleType(rt *sitter.Node, src []byte) string {
	if rt == nil {
		return ""
	}
	base := rt
	if rt.Type() == "generic_type" {
		base = rt.ChildByFieldName("type")
		if base == nil {
			return ""
		}
	}
	var name string
	switch base.Type() {
	case "type_identifier":
		name = base.Content(src)
	case "scoped_type_identifier":
		if id := base.ChildByFieldName("name"); id != nil {
			name = id.Content(src)
		}
	}
	if name == "Result" || name == "Option" {
		return rt.Content(src)
	}
	return ""
}
