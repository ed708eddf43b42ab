//go:build sqlite_fts5

package index

import (
	"testing"

	"github.com/starford/synapse/internal/models"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM rules_fts`).Scan(&count); err != nil {
		t.Fatalf("rules_fts table missing: %v", err)
	}
}

func TestFTS5_SearchRules(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertRuleFile(RuleFileRow{Path: "f", Checksum: "1"}, []models.RuleDefinition{
		rule("forbidden-0", models.Forbidden, "console.log", "powerful structured logging instead"),
	})
	hits, err := db.SearchRules("powerful", 10)
	if err != nil {
		t.Fatalf("SearchRules: %v", err)
	}
	if len(hits) != 1 || hits[0].Pattern != "console.log" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertRuleFile(RuleFileRow{Path: "gone", Checksum: "g"}, []models.RuleDefinition{
		rule("forbidden-0", models.Forbidden, "x", "vanishing message"),
	})
	_ = db.DeleteRuleFile("gone")
	var count int
	_ = db.conn.QueryRow(`SELECT count(*) FROM rules_fts WHERE file_path = 'gone'`).Scan(&count)
	if count != 0 {
		t.Errorf("fts rows remain: %d", count)
	}
}
