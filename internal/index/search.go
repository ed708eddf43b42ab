package index

import (
	"database/sql"
	"strings"
)

func scanHits(rows *sql.Rows) ([]RuleHit, error) {
	out := []RuleHit{}
	for rows.Next() {
		var h RuleHit
		if err := rows.Scan(&h.FilePath, &h.RuleID, &h.Name, &h.Kind, &h.Pattern, &h.Message); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// quoteFTS turns free text into a single FTS5 phrase.
func quoteFTS(q string) string {
	return `"` + strings.ReplaceAll(q, `"`, `""`) + `"`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(q string) string {
	return likeEscaper.Replace(q)
}
