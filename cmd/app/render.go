package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/starford/synapse/internal/enforcer"
	"github.com/starford/synapse/internal/rulegraph"
)

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderCheck(w io.Writer, format string, res *enforcer.CheckResult, fixes []enforcer.FixResult) error {
	if format == formatJSON {
		return renderJSON(w, map[string]any{"check": res, "fixes": fixes})
	}

	for _, f := range fixes {
		if !f.Changed {
			continue
		}
		for _, p := range f.Applied {
			_, _ = fmt.Fprintf(w, "fixed %s: %s\n", f.Path, p.Description)
		}
	}

	if len(res.Violations) > 0 {
		t := newTable(w)
		t.AppendHeader(table.Row{"File", "Line", "Kind", "Rule", "Pattern", "Message"})
		for _, v := range res.Violations {
			line := "-"
			if v.LineNumber != nil {
				line = strconv.Itoa(*v.LineNumber)
			}
			t.AppendRow(table.Row{v.FilePath, line, v.Rule.Kind.Display(), v.Rule.ID, v.Rule.Pattern, v.Rule.Message})
		}
		t.Render()
	}

	status := "passed"
	if !res.Success {
		status = "failed"
	}
	_, err := fmt.Fprintf(w, "%s: %d files, %d rules, %d violations\n",
		status, res.FilesChecked, res.RulesApplied, len(res.Violations))
	return err
}

func renderRules(w io.Writer, format string, res *enforcer.RulesResult) error {
	if format == formatJSON {
		return renderJSON(w, res)
	}
	if len(res.Rules) == 0 {
		_, _ = fmt.Fprintln(w, "(no rules apply)")
	} else {
		t := newTable(w)
		t.AppendHeader(table.Row{"ID", "Kind", "Level", "Pattern", "Message"})
		for _, r := range res.Rules {
			t.AppendRow(table.Row{r.ID, r.Kind.Display(), r.EnforcementLevel, r.Pattern, r.Message})
		}
		t.Render()
	}
	_, _ = fmt.Fprintf(w, "chain: %s\n", strings.Join(res.InheritanceChain, " <- "))
	_, err := fmt.Fprintf(w, "overridden: %s\n", strings.Join(res.OverriddenRules, ", "))
	return err
}

func renderStats(w io.Writer, format string, s rulegraph.Stats) error {
	if format == formatJSON {
		return renderJSON(w, s)
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"rule files", s.RuleFiles},
		{"rules", s.TotalRules},
		{"inheritance relationships", s.InheritanceRelationships},
		{"override relationships", s.OverrideRelationships},
	})
	t.Render()
	return nil
}
