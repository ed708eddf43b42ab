package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starford/synapse/internal/enforcer"
	"github.com/starford/synapse/internal/index"
	"github.com/starford/synapse/internal/rulegraph"
	"github.com/starford/synapse/internal/testutil"
)

// testEnv sets up a temp project, SQLite DB, enforcer and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) http.Handler {
	t.Helper()
	router, _ := testEnvWithHook(t, authToken)
	return router
}

func testEnvWithHook(t *testing.T, authToken string) (http.Handler, *[]*enforcer.CheckResult) {
	t.Helper()
	root, store := testutil.TestProject(t, testutil.ScenarioFiles())
	logger := testutil.QuietLogger()

	g, err := rulegraph.Load(root, nil, logger)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	db := testutil.TestDB(t)
	if err := index.Sync(db, g, logger); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	svc := enforcer.New(g, store, enforcer.WithIndex(db), enforcer.WithLogger(logger))

	var seen []*enforcer.CheckResult
	hook := func(res *enforcer.CheckResult) { seen = append(seen, res) }
	return NewRouter(svc, authToken != "", authToken, nil, hook), &seen
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestCheck(t *testing.T) {
	router, seen := testEnvWithHook(t, "")

	w := do(t, router, http.MethodPost, "/enforce/check", CheckRequest{Files: []string{"sub/main.rs"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var res CheckResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Success || len(res.Violations) != 1 || res.FilesChecked != 1 {
		t.Errorf("result = %+v", res)
	}
	if res.RunID == "" {
		t.Error("run should be recorded")
	}
	if len(*seen) != 1 {
		t.Errorf("hook calls = %d, want 1", len(*seen))
	}
}

func TestCheckValidation(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodPost, "/enforce/check", CheckRequest{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty files = %d, want 400", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/enforce/check", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", rec.Code)
	}

	w = do(t, router, http.MethodPost, "/enforce/check", CheckRequest{Files: []string{"../../etc/passwd"}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("outside root = %d, want 400", w.Code)
	}
}

func TestContext(t *testing.T) {
	router := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/enforce/context", ContextRequest{Path: "sub/main.rs", Format: "plain"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var res ContextResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if !strings.Contains(res.Context, "#[test]") || len(res.ApplicableRules) != 2 {
		t.Errorf("context = %+v", res)
	}
}

func TestRulesForPath(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/rules", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing path = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodGet, "/rules?path=sub/main.rs", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var res RulesResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if len(res.OverriddenRules) != 1 || res.OverriddenRules[0] != "forbidden-0" {
		t.Errorf("overridden = %v", res.OverriddenRules)
	}
}

func TestPreWrite(t *testing.T) {
	router := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/enforce/pre-write", PreWriteRequest{Path: "sub/lib.rs", Content: "fn f() {}\n"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var res PreWriteResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if res.Valid || len(res.Violations) != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestSearchRules(t *testing.T) {
	router := testEnv(t, "")

	w := do(t, router, http.MethodGet, "/rules/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing q = %d, want 400", w.Code)
	}

	w = do(t, router, http.MethodGet, "/rules/search?q=msg2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var res SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if len(res.Results) != 1 || res.Results[0].Pattern != "#[test]" {
		t.Errorf("results = %+v", res.Results)
	}
}

func TestRunsAndViolations(t *testing.T) {
	router := testEnv(t, "")
	w := do(t, router, http.MethodPost, "/enforce/check", CheckRequest{Files: []string{"sub/main.rs"}})
	var check CheckResponse
	_ = json.Unmarshal(w.Body.Bytes(), &check)

	w = do(t, router, http.MethodGet, "/runs?limit=5", nil)
	var runs RunListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &runs)
	if len(runs.Runs) != 1 || runs.Runs[0].ID != check.RunID || runs.Runs[0].ViolationCount != 1 {
		t.Fatalf("runs = %+v", runs.Runs)
	}

	w = do(t, router, http.MethodGet, "/runs/"+check.RunID+"/violations", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var vs RunViolationsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &vs)
	if len(vs.Violations) != 1 || vs.Violations[0].RuleID != "required-0" {
		t.Errorf("violations = %+v", vs.Violations)
	}

	w = do(t, router, http.MethodGet, "/runs/nope/violations", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown run = %d, want 404", w.Code)
	}
}

func TestStats(t *testing.T) {
	router := testEnv(t, "")
	_ = do(t, router, http.MethodGet, "/rules?path=sub/main.rs", nil)
	_ = do(t, router, http.MethodGet, "/rules?path=sub/main.rs", nil)

	w := do(t, router, http.MethodGet, "/cache/stats", nil)
	var cs CacheStatsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &cs)
	if cs.Hits != 1 || cs.Misses != 1 || cs.Size != 1 {
		t.Errorf("cache stats = %+v", cs)
	}

	w = do(t, router, http.MethodGet, "/graph/stats", nil)
	var gs GraphStatsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &gs)
	if gs.RuleFiles != 2 || gs.TotalRules != 3 || gs.InheritanceRelationships != 1 || gs.OverrideRelationships != 1 {
		t.Errorf("graph stats = %+v", gs)
	}
}

func TestAuthTokenMode(t *testing.T) {
	router := testEnv(t, "secret")

	w := do(t, router, http.MethodGet, "/graph/stats", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no token = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/graph/stats", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/graph/stats", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", rec.Code)
	}
}
