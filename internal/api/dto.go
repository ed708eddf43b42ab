package api

import (
	"github.com/starford/synapse/internal/cache"
	"github.com/starford/synapse/internal/enforcer"
	"github.com/starford/synapse/internal/index"
	"github.com/starford/synapse/internal/rulegraph"
)

// CheckRequest is the request body for checking files.
type CheckRequest struct {
	Files  []string `json:"files" example:"src/main.rs" validate:"required"`
	DryRun bool     `json:"dry_run"`
}

// ContextRequest is the request body for rendering rule context.
type ContextRequest struct {
	Path   string `json:"path" example:"src/main.rs" validate:"required"`
	Format string `json:"format" example:"markdown" enums:"markdown,json,plain"`
}

// PreWriteRequest is the request body for validating content before it is written.
type PreWriteRequest struct {
	Path    string `json:"path" example:"src/lib.rs" validate:"required"`
	Content string `json:"content" validate:"required"`
}

// CheckResponse is the result of a check request (aliased from the domain layer).
type CheckResponse = enforcer.CheckResult

// ContextResponse is the rendered context (aliased from the domain layer).
type ContextResponse = enforcer.ContextResult

// RulesResponse lists the rules applicable to a path (aliased from the domain layer).
type RulesResponse = enforcer.RulesResult

// PreWriteResponse is the pre-write verdict (aliased from the domain layer).
type PreWriteResponse = enforcer.PreWriteResult

// SearchResponse wraps rule search hits.
type SearchResponse struct {
	Results []index.RuleHit `json:"results" validate:"required"`
}

// RunListResponse wraps recorded check runs.
type RunListResponse struct {
	Runs []index.CheckRun `json:"runs" validate:"required"`
}

// RunViolationsResponse wraps the violations of one run.
type RunViolationsResponse struct {
	RunID      string               `json:"run_id" validate:"required"`
	Violations []index.ViolationRow `json:"violations" validate:"required"`
}

// CacheStatsResponse is the resolution cache counters.
type CacheStatsResponse = cache.Stats

// GraphStatsResponse summarizes the rule graph.
type GraphStatsResponse = rulegraph.Stats
