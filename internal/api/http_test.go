package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/venturekit/interviewd/internal/interview"
	"github.com/venturekit/interviewd/internal/ratelimit"
	"github.com/venturekit/interviewd/internal/storage"
)

const testToken = "test-token"

const validSummary = `{
	"venture_name": "Acme Robotics",
	"problem": "warehouse picking is slow",
	"solution": "autonomous pick arms",
	"target_customer": "mid-size 3PL operators",
	"distribution_channels": ["direct sales"],
	"team": ["two robotics PhDs"],
	"traction": {"stage": "pilot", "monthly_revenue": 12000, "users": "unknown"},
	"risks": ["hardware margins"],
	"next_steps": ["close two pilots"]
}`

type stubNarrator struct {
	question   string
	summaryRaw string
	calls      int
}

func (s *stubNarrator) NextQuestion(_ context.Context, _ []storage.Turn, _ string) (string, error) {
	s.calls++
	if s.question != "" {
		return s.question, nil
	}
	return "What problem are you solving?", nil
}

func (s *stubNarrator) Summarize(_ context.Context, _ []storage.Turn) (string, error) {
	return s.summaryRaw, nil
}

type testEnv struct {
	handler http.Handler
	store   *storage.Store
}

func newTestEnv(t *testing.T, narrator interview.Narrator, opts interview.Options, ceiling int) testEnv {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if ceiling <= 0 {
		ceiling = ratelimit.DefaultCeiling
	}
	svc := interview.NewService(store, ratelimit.NewMemory(ceiling), narrator, opts)
	return testEnv{
		handler: NewHandler(Deps{Service: svc, Store: store, Token: testToken}),
		store:   store,
	}
}

func (e testEnv) do(t *testing.T, method, path, owner, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if owner != "" {
		req.Header.Set(ownerHeader, owner)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeTurn(t *testing.T, rec *httptest.ResponseRecorder) turnResponse {
	t.Helper()
	var resp turnResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding turn response: %v", err)
	}
	return resp
}

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t, &stubNarrator{}, interview.Options{}, 0)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMissingBearerToken(t *testing.T) {
	env := newTestEnv(t, &stubNarrator{}, interview.Options{}, 0)
	req := httptest.NewRequest(http.MethodPost, "/v1/interview/turns", strings.NewReader("{}"))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestNextTurnMissingOwner(t *testing.T) {
	env := newTestEnv(t, &stubNarrator{}, interview.Options{}, 0)
	rec := env.do(t, http.MethodPost, "/v1/interview/turns", "", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ownership_unresolved") {
		t.Errorf("body = %s, want ownership_unresolved type", rec.Body.String())
	}
}

func TestNextTurnReturnsQuestion(t *testing.T) {
	env := newTestEnv(t, &stubNarrator{}, interview.Options{}, 0)
	rec := env.do(t, http.MethodPost, "/v1/interview/turns", "owner-1", `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decodeTurn(t, rec)
	if resp.Question == nil || *resp.Question == "" {
		t.Errorf("question = %v, want non-empty", resp.Question)
	}
	if resp.Mode != "cold_start" {
		t.Errorf("mode = %q, want cold_start", resp.Mode)
	}
	if resp.QuestionsAsked != 1 {
		t.Errorf("questions_asked = %d, want 1", resp.QuestionsAsked)
	}
}

func TestNextTurnGuidedAfterIntake(t *testing.T) {
	env := newTestEnv(t, &stubNarrator{}, interview.Options{}, 0)

	rec := env.do(t, http.MethodPut, "/v1/intake", "owner-1",
		`{"fields":{"venture":"Acme"},"onboarding_completed":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("intake status = %d, body = %s", rec.Code, rec.Body.String())
	}

	resp := decodeTurn(t, env.do(t, http.MethodPost, "/v1/interview/turns", "owner-1", `{}`))
	if resp.Mode != "guided" {
		t.Errorf("mode = %q, want guided", resp.Mode)
	}
}

func TestNextTurnForceCompleteNullQuestion(t *testing.T) {
	env := newTestEnv(t, &stubNarrator{}, interview.Options{Budgets: interview.Budgets{ColdStart: 1}}, 0)

	first := decodeTurn(t, env.do(t, http.MethodPost, "/v1/interview/turns", "owner-1", `{}`))
	rec := env.do(t, http.MethodPost, "/v1/interview/turns", "owner-1",
		`{"session_id":"`+first.SessionID+`","answer":"We fix invoicing."}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// question must be present and null exactly when force_complete is set.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	q, ok := raw["question"]
	if !ok {
		t.Fatal("question key missing from response")
	}
	if string(q) != "null" {
		t.Errorf("question = %s, want null", q)
	}
	if string(raw["force_complete"]) != "true" {
		t.Errorf("force_complete = %s, want true", raw["force_complete"])
	}
}

func TestNextTurnRateLimited(t *testing.T) {
	env := newTestEnv(t, &stubNarrator{}, interview.Options{}, 2)

	env.do(t, http.MethodPost, "/v1/interview/turns", "owner-1", `{}`)
	env.do(t, http.MethodPost, "/v1/interview/turns", "owner-1", `{"answer":"We fix invoicing."}`)
	rec := env.do(t, http.MethodPost, "/v1/interview/turns", "owner-1", `{"answer":"More detail."}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "rate_limit_error") {
		t.Errorf("body = %s, want rate_limit_error type", rec.Body.String())
	}
}

func driveInterview(t *testing.T, env testEnv, owner string) string {
	t.Helper()
	first := decodeTurn(t, env.do(t, http.MethodPost, "/v1/interview/turns", owner, `{}`))
	for _, a := range []string{"We fix invoicing.", "Accountants at small firms.", "Through channel partners."} {
		rec := env.do(t, http.MethodPost, "/v1/interview/turns", owner,
			`{"session_id":"`+first.SessionID+`","answer":"`+a+`"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("turn status = %d, body = %s", rec.Code, rec.Body.String())
		}
	}
	return first.SessionID
}

func TestSummarizeAndGetSession(t *testing.T) {
	env := newTestEnv(t, &stubNarrator{summaryRaw: validSummary}, interview.Options{}, 0)
	id := driveInterview(t, env, "owner-1")

	rec := env.do(t, http.MethodPost, "/v1/interview/"+id+"/summary", "owner-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("summary status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Acme Robotics") {
		t.Errorf("summary body = %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/v1/interview/"+id, "owner-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var view sessionView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if view.Status != storage.StatusCompleted {
		t.Errorf("status = %q, want completed", view.Status)
	}
	if len(view.Summary) == 0 {
		t.Error("summary missing from session view")
	}
	if len(view.Transcript) == 0 {
		t.Error("transcript missing from session view")
	}
}

func TestSummarizeTooShallow(t *testing.T) {
	env := newTestEnv(t, &stubNarrator{summaryRaw: validSummary}, interview.Options{}, 0)
	first := decodeTurn(t, env.do(t, http.MethodPost, "/v1/interview/turns", "owner-1", `{}`))

	rec := env.do(t, http.MethodPost, "/v1/interview/"+first.SessionID+"/summary", "owner-1", "")
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "insufficient_depth") {
		t.Errorf("body = %s, want insufficient_depth type", rec.Body.String())
	}
}

func TestSummarizeRateLimited(t *testing.T) {
	env := newTestEnv(t, &stubNarrator{summaryRaw: validSummary}, interview.Options{}, 4)
	id := driveInterview(t, env, "owner-1")

	rec := env.do(t, http.MethodPost, "/v1/interview/"+id+"/summary", "owner-1", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "rate_limit_error") {
		t.Errorf("body = %s, want rate_limit_error type", rec.Body.String())
	}
}

func TestSummarizeParseFailure(t *testing.T) {
	env := newTestEnv(t, &stubNarrator{summaryRaw: "not json"}, interview.Options{}, 0)
	id := driveInterview(t, env, "owner-1")

	rec := env.do(t, http.MethodPost, "/v1/interview/"+id+"/summary", "owner-1", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "summary_parse_error") {
		t.Errorf("body = %s, want summary_parse_error type", rec.Body.String())
	}
}

func TestGetSessionNotFound(t *testing.T) {
	env := newTestEnv(t, &stubNarrator{}, interview.Options{}, 0)
	rec := env.do(t, http.MethodGet, "/v1/interview/missing", "owner-1", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetSessionForeignOwner(t *testing.T) {
	env := newTestEnv(t, &stubNarrator{}, interview.Options{}, 0)
	first := decodeTurn(t, env.do(t, http.MethodPost, "/v1/interview/turns", "owner-1", `{}`))

	rec := env.do(t, http.MethodGet, "/v1/interview/"+first.SessionID, "owner-2", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for foreign session", rec.Code)
	}
}

func TestImportIntakeRejectsNonPDF(t *testing.T) {
	env := newTestEnv(t, &stubNarrator{}, interview.Options{}, 0)
	rec := env.do(t, http.MethodPost, "/v1/intake/import", "owner-1", "definitely not a pdf")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestMetricsIsPublic(t *testing.T) {
	env := newTestEnv(t, &stubNarrator{}, interview.Options{}, 0)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
