package index

import "github.com/starford/synapse/internal/models"

// RuleIndex is the persistence surface used by the enforcer and transports.
// Consumers depend on this interface rather than *DB.
type RuleIndex interface {
	UpsertRuleFile(f RuleFileRow, rules []models.RuleDefinition) error
	DeleteRuleFile(path string) error
	AllChecksums() (map[string]string, error)
	SearchRules(query string, limit int) ([]RuleHit, error)
	RecordRun(run CheckRun, violations []models.Violation) (string, error)
	RecentRuns(limit int) ([]CheckRun, error)
	RunViolations(id string) ([]ViolationRow, error)
	Close() error
}

// Verify *DB satisfies RuleIndex at compile time.
var _ RuleIndex = (*DB)(nil)
