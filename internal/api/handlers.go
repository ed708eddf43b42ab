package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/synapse/internal/apperr"
	"github.com/starford/synapse/internal/enforcer"
)

const maxBody = 10 << 20

// CheckHook observes completed checks, e.g. to publish them as events.
type CheckHook func(res *enforcer.CheckResult)

// Handler holds API route handlers.
type Handler struct {
	svc     *enforcer.Service
	onCheck CheckHook
}

// NewHandler creates a new Handler.
func NewHandler(svc *enforcer.Service, onCheck CheckHook) *Handler {
	return &Handler{svc: svc, onCheck: onCheck}
}

// writeErr maps domain errors onto status codes.
func writeErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case enforcer.IsClientError(err):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON"))
		return false
	}
	return true
}

func queryLimit(r *http.Request, def int) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return def
	}
	return limit
}

// Check handles POST /api/enforce/check.
//
//	@Summary		Check files against their applicable rules
//	@Tags			enforce
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CheckRequest	true	"Files to check"
//	@Success		200		{object}	CheckResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/enforce/check [post]
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Files) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("files is required"))
		return
	}
	res, err := h.svc.CheckFiles(r.Context(), req.Files, req.DryRun)
	if err != nil {
		writeErr(w, "check", err)
		return
	}
	if h.onCheck != nil {
		h.onCheck(res)
	}
	writeJSON(w, http.StatusOK, res)
}

// Context handles POST /api/enforce/context.
//
//	@Summary		Render the rules that apply to a path
//	@Tags			enforce
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ContextRequest	true	"Path and format"
//	@Success		200		{object}	ContextResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/enforce/context [post]
func (h *Handler) Context(w http.ResponseWriter, r *http.Request) {
	var req ContextRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	res, err := h.svc.Context(req.Path, req.Format)
	if err != nil {
		writeErr(w, "context", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PreWrite handles POST /api/enforce/pre-write.
//
//	@Summary		Validate content before it is written
//	@Tags			enforce
//	@Accept			json
//	@Produce		json
//	@Param			body	body		PreWriteRequest	true	"Destination and content"
//	@Success		200		{object}	PreWriteResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/enforce/pre-write [post]
func (h *Handler) PreWrite(w http.ResponseWriter, r *http.Request) {
	var req PreWriteRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	res, err := h.svc.ValidatePreWrite(req.Path, req.Content)
	if err != nil {
		writeErr(w, "pre-write", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RulesForPath handles GET /api/rules?path=.
//
//	@Summary		List the rules applicable to a path
//	@Tags			rules
//	@Produce		json
//	@Param			path	query		string	true	"Path relative to the project root"
//	@Success		200		{object}	RulesResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rules [get]
func (h *Handler) RulesForPath(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	res, err := h.svc.RulesForPath(path)
	if err != nil {
		writeErr(w, "rules", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// SearchRules handles GET /api/rules/search.
//
//	@Summary		Search rule patterns, names and messages
//	@Tags			rules
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rules/search [get]
func (h *Handler) SearchRules(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("q is required"))
		return
	}
	hits, err := h.svc.SearchRules(q, queryLimit(r, 20))
	if err != nil {
		writeErr(w, "search rules", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits})
}

// ListRuns handles GET /api/runs.
//
//	@Summary		List recent check runs
//	@Tags			runs
//	@Produce		json
//	@Param			limit	query		int	false	"Max results"
//	@Success		200		{object}	RunListResponse
//	@Security		BearerAuth
//	@Router			/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.svc.RecentRuns(queryLimit(r, 20))
	if err != nil {
		writeErr(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

// RunViolations handles GET /api/runs/{id}/violations.
//
//	@Summary		List the violations recorded for a run
//	@Tags			runs
//	@Produce		json
//	@Param			id	path		string	true	"Run id"
//	@Success		200	{object}	RunViolationsResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/runs/{id}/violations [get]
func (h *Handler) RunViolations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	vs, err := h.svc.RunViolations(id)
	if err != nil {
		writeErr(w, "run violations", err)
		return
	}
	writeJSON(w, http.StatusOK, RunViolationsResponse{RunID: id, Violations: vs})
}

// CacheStats handles GET /api/cache/stats.
//
//	@Summary		Resolution cache counters
//	@Tags			stats
//	@Produce		json
//	@Success		200	{object}	CacheStatsResponse
//	@Security		BearerAuth
//	@Router			/cache/stats [get]
func (h *Handler) CacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.CacheStats())
}

// GraphStats handles GET /api/graph/stats.
//
//	@Summary		Rule graph summary
//	@Tags			stats
//	@Produce		json
//	@Success		200	{object}	GraphStatsResponse
//	@Security		BearerAuth
//	@Router			/graph/stats [get]
func (h *Handler) GraphStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.GraphStats())
}
