package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/synapse/internal/enforcer"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// onCheck, if non-nil, is called after every successful check request.
func NewRouter(svc *enforcer.Service, authEnabled bool, token string, sseHandler http.Handler, onCheck CheckHook) chi.Router {
	h := NewHandler(svc, onCheck)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Enforcement.
	r.Post("/enforce/check", h.Check)
	r.Post("/enforce/context", h.Context)
	r.Post("/enforce/pre-write", h.PreWrite)

	// Rules.
	r.Get("/rules", h.RulesForPath)
	r.Get("/rules/search", h.SearchRules)

	// Check history.
	r.Get("/runs", h.ListRuns)
	r.Get("/runs/{id}/violations", h.RunViolations)

	// Stats.
	r.Get("/cache/stats", h.CacheStats)
	r.Get("/graph/stats", h.GraphStats)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
