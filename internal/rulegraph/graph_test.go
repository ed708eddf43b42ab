package rulegraph

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/starford/synapse/internal/discovery"
	"github.com/starford/synapse/internal/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeMarker(t *testing.T, dir, content string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, discovery.DefaultMarker)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func def(id string, kind models.RuleKind, pattern string) models.RuleDefinition {
	return models.RuleDefinition{ID: id, Name: id, Kind: kind, Pattern: pattern, Message: id + " message"}
}

func ids(rules []models.RuleDefinition) []string {
	out := make([]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, r.ID)
	}
	return out
}

func assertNoSuppressed(t *testing.T, v *models.CompositeRuleView) {
	t.Helper()
	for _, r := range v.Rules {
		if v.IsSuppressed(r) {
			t.Errorf("suppressed rule %q present in applicable list", r.ID)
		}
	}
}

func TestResolve_EndToEndScenario(t *testing.T) {
	root := t.TempDir()
	writeMarker(t, root, "# Root\nFORBIDDEN: `println!` - msg1\nREQUIRED: `#[test]` - msg2\n")
	writeMarker(t, filepath.Join(root, "sub"), "---\ninherits: [\"../.synapse.md\"]\noverrides: [\"forbidden-0\"]\n---\nSTANDARD: `println!` - msg3\n")

	g, err := Load(root, discovery.New(""), quietLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if g.NodeCount() != 2 {
		t.Fatalf("NodeCount = %d, want 2", g.NodeCount())
	}

	view := g.Resolve(filepath.Join(root, "sub", "main.rs"))
	assertNoSuppressed(t, view)

	var printRule, testAttr *models.RuleDefinition
	for i := range view.Rules {
		switch view.Rules[i].Pattern {
		case "println!":
			if printRule != nil {
				t.Fatal("println! rule appears twice")
			}
			printRule = &view.Rules[i]
		case "#[test]":
			testAttr = &view.Rules[i]
		}
	}
	if printRule == nil || printRule.Kind != models.Standard {
		t.Errorf("println rule = %+v, want Standard", printRule)
	}
	if testAttr == nil || testAttr.Kind != models.Required {
		t.Errorf("#[test] rule = %+v, want Required", testAttr)
	}
	if !reflect.DeepEqual(view.Suppressed, []string{"forbidden-0"}) {
		t.Errorf("suppressed = %v", view.Suppressed)
	}
	if len(view.InheritanceChain) != 2 || filepath.Base(filepath.Dir(view.InheritanceChain[0])) != "sub" {
		t.Errorf("chain = %v, want sub first", view.InheritanceChain)
	}
}

func TestResolve_NearestRulesFirst(t *testing.T) {
	root := t.TempDir()
	writeMarker(t, root, "FORBIDDEN: `a` - a\nFORBIDDEN: `b` - b\n")
	writeMarker(t, filepath.Join(root, "x"), "REQUIRED: `c` - c\nREQUIRED: `d` - d\n")
	g, err := Load(root, nil, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	got := ids(g.Resolve(filepath.Join(root, "x", "f.go")).Rules)
	want := []string{"required-0", "required-1", "forbidden-0", "forbidden-1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestResolve_OverrideIsSuppressionNotSubstitution(t *testing.T) {
	root := t.TempDir()
	g := New("")
	g.Add(&models.RuleFileNode{
		Path:  filepath.Join(root, discovery.DefaultMarker),
		Rules: []models.RuleDefinition{def("no-print", models.Forbidden, "print")},
	})
	g.Add(&models.RuleFileNode{
		Path:      filepath.Join(root, "child", discovery.DefaultMarker),
		Overrides: []string{"no-print"},
		Rules:     []models.RuleDefinition{def("print-ok", models.Standard, "print")},
	})

	view := g.Resolve(filepath.Join(root, "child", "a.py"))
	if got := ids(view.Rules); !reflect.DeepEqual(got, []string{"print-ok"}) {
		t.Errorf("rules = %v, want [print-ok]", got)
	}
	assertNoSuppressed(t, view)
}

func TestResolve_OverrideMatchesName(t *testing.T) {
	root := t.TempDir()
	g := New("")
	r := def("id-1", models.Forbidden, "x")
	r.Name = "no-x"
	g.Add(&models.RuleFileNode{Path: filepath.Join(root, discovery.DefaultMarker), Rules: []models.RuleDefinition{r}})
	g.Add(&models.RuleFileNode{Path: filepath.Join(root, "c", discovery.DefaultMarker), Overrides: []string{"no-x"}})

	if v := g.Resolve(filepath.Join(root, "c", "f")); len(v.Rules) != 0 {
		t.Errorf("rule should be suppressed by name: %v", ids(v.Rules))
	}
}

func TestResolve_OverridesAreChainWide(t *testing.T) {
	root := t.TempDir()
	g := New("")
	// The ancestor suppresses a rule declared by its descendant.
	g.Add(&models.RuleFileNode{Path: filepath.Join(root, discovery.DefaultMarker), Overrides: []string{"child-rule"}})
	g.Add(&models.RuleFileNode{
		Path:  filepath.Join(root, "c", discovery.DefaultMarker),
		Rules: []models.RuleDefinition{def("child-rule", models.Forbidden, "x"), def("kept", models.Forbidden, "y")},
	})
	if got := ids(g.Resolve(filepath.Join(root, "c", "f")).Rules); !reflect.DeepEqual(got, []string{"kept"}) {
		t.Errorf("rules = %v, want [kept]", got)
	}
}

func TestResolve_InheritanceCycleTerminates(t *testing.T) {
	root := t.TempDir()
	g := New("")
	g.Add(&models.RuleFileNode{
		Path:     filepath.Join(root, "a", discovery.DefaultMarker),
		Inherits: []string{"../b/.synapse.md"},
		Rules:    []models.RuleDefinition{def("a", models.Forbidden, "a")},
	})
	g.Add(&models.RuleFileNode{
		Path:     filepath.Join(root, "b", discovery.DefaultMarker),
		Inherits: []string{"../a/.synapse.md"},
		Rules:    []models.RuleDefinition{def("b", models.Forbidden, "b")},
	})

	view := g.Resolve(filepath.Join(root, "a", "f.go"))
	if len(view.InheritanceChain) != 2 {
		t.Fatalf("chain = %v", view.InheritanceChain)
	}
	if got := ids(view.Rules); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("rules = %v", got)
	}
}

func TestResolve_InheritsDirectoryReference(t *testing.T) {
	root := t.TempDir()
	g := New("")
	g.Add(&models.RuleFileNode{
		Path:  filepath.Join(root, "shared", discovery.DefaultMarker),
		Rules: []models.RuleDefinition{def("shared", models.Required, "x")},
	})
	g.Add(&models.RuleFileNode{
		Path:     filepath.Join(root, "app", discovery.DefaultMarker),
		Inherits: []string{"../shared"},
	})
	view := g.Resolve(filepath.Join(root, "app", "main.go"))
	if got := ids(view.Rules); !reflect.DeepEqual(got, []string{"shared"}) {
		t.Errorf("rules = %v", got)
	}
}

func TestResolve_InheritedExpandedRightAfterNode(t *testing.T) {
	root := t.TempDir()
	g := New("")
	near := filepath.Join(root, "p", "q", discovery.DefaultMarker)
	side := filepath.Join(root, "side", discovery.DefaultMarker)
	top := filepath.Join(root, "p", discovery.DefaultMarker)
	g.Add(&models.RuleFileNode{Path: near, Inherits: []string{"../../side/.synapse.md"}})
	g.Add(&models.RuleFileNode{Path: side})
	g.Add(&models.RuleFileNode{Path: top})

	chain := g.Resolve(filepath.Join(root, "p", "q", "f")).InheritanceChain
	want := []string{discovery.Canonical(near), discovery.Canonical(side), discovery.Canonical(top)}
	if !reflect.DeepEqual(chain, want) {
		t.Errorf("chain = %v, want %v", chain, want)
	}
}

func TestResolve_NoRulesIsEmptyView(t *testing.T) {
	g := New("")
	g.Add(&models.RuleFileNode{Path: filepath.Join(t.TempDir(), "elsewhere", discovery.DefaultMarker)})
	view := g.Resolve(filepath.Join(t.TempDir(), "main.go"))
	if view == nil || len(view.Rules) != 0 || len(view.InheritanceChain) != 0 || len(view.Suppressed) != 0 {
		t.Errorf("expected empty view, got %+v", view)
	}
}

func TestResolve_NonMarkerEntryNeverMatched(t *testing.T) {
	root := t.TempDir()
	g := New("")
	g.Add(&models.RuleFileNode{
		Path:  filepath.Join(root, "rules-elsewhere.md"),
		Rules: []models.RuleDefinition{def("x", models.Forbidden, "x")},
	})
	if v := g.Resolve(filepath.Join(root, "main.go")); len(v.Rules) != 0 {
		t.Errorf("entry outside the marker walk must not apply: %v", ids(v.Rules))
	}
}

func TestResolve_Idempotent(t *testing.T) {
	root := t.TempDir()
	writeMarker(t, root, "FORBIDDEN: `a` - a\nREQUIRED: `b` - b\n")
	writeMarker(t, filepath.Join(root, "s"), "---\noverrides: [required-0]\n---\nUSE: `c` - c\n")
	g, err := Load(root, nil, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(root, "s", "f.rs")
	first := g.Resolve(target)
	second := g.Resolve(target)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("resolve not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestLoad_SkipsBrokenFiles(t *testing.T) {
	root := t.TempDir()
	writeMarker(t, root, "FORBIDDEN: `a` - a\n")
	writeMarker(t, filepath.Join(root, "broken"), "---\ninherits: {{{\n---\n")
	g, err := Load(root, nil, quietLogger())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if g.NodeCount() != 1 {
		t.Errorf("NodeCount = %d, want 1", g.NodeCount())
	}
}

func TestLoad_MissingRoot(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope"), nil, quietLogger()); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestAddRemoveNode(t *testing.T) {
	root := t.TempDir()
	g := New("")
	p := filepath.Join(root, discovery.DefaultMarker)
	g.Add(&models.RuleFileNode{Path: p, Rules: []models.RuleDefinition{def("a", models.Forbidden, "a")}})
	if _, ok := g.Node(p); !ok {
		t.Fatal("node not found by literal path")
	}
	if !g.Remove(p) {
		t.Fatal("Remove returned false")
	}
	if g.NodeCount() != 0 {
		t.Error("node still present")
	}
	if v := g.Resolve(filepath.Join(root, "f")); len(v.Rules) != 0 {
		t.Error("removed node still resolves")
	}
	if g.Remove(p) {
		t.Error("second Remove should report false")
	}
}

func TestStatsAndFindByPattern(t *testing.T) {
	root := t.TempDir()
	g := New("")
	g.Add(&models.RuleFileNode{
		Path:      filepath.Join(root, discovery.DefaultMarker),
		Overrides: []string{"z"},
		Rules:     []models.RuleDefinition{def("a", models.Forbidden, "println!"), def("b", models.Required, "#[test]")},
	})
	g.Add(&models.RuleFileNode{
		Path:     filepath.Join(root, "s", discovery.DefaultMarker),
		Inherits: []string{"../.synapse.md"},
		Rules:    []models.RuleDefinition{def("c", models.Standard, "println!")},
	})

	want := Stats{RuleFiles: 2, TotalRules: 3, InheritanceRelationships: 1, OverrideRelationships: 1}
	if s := g.Stats(); s != want {
		t.Errorf("stats = %+v, want %+v", s, want)
	}
	if got := g.FindByPattern("println"); len(got) != 2 {
		t.Errorf("FindByPattern = %+v", got)
	}
	if got := g.FindByPattern("b message"); len(got) != 1 || got[0].Rule.ID != "b" {
		t.Errorf("FindByPattern by message = %+v", got)
	}
}
