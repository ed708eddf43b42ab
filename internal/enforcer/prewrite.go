package enforcer

import (
	"github.com/starford/synapse/internal/autofix"
	"github.com/starford/synapse/internal/enforcement"
	"github.com/starford/synapse/internal/models"
)

// PreWriteResult is the verdict on content about to be written.
type PreWriteResult struct {
	Valid      bool               `json:"valid"`
	Violations []models.Violation `json:"violations"`
	AutoFixes  []autofix.Proposal `json:"auto_fixes"`
}

// ValidatePreWrite checks content as if it were written to path. The file does
// not need to exist.
func (s *Service) ValidatePreWrite(path, content string) (*PreWriteResult, error) {
	rules, err := s.compiledRules(path)
	if err != nil {
		return nil, err
	}
	violations := enforcement.Check(path, content, rules)
	res := &PreWriteResult{
		Valid:      len(violations) == 0,
		Violations: violations,
		AutoFixes:  s.fixer.Propose(path, content, violations),
	}
	if res.Violations == nil {
		res.Violations = []models.Violation{}
	}
	if res.AutoFixes == nil {
		res.AutoFixes = []autofix.Proposal{}
	}
	return res, nil
}
