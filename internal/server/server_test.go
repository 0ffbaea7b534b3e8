package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm/logger"

	"github.com/ryosukesatoh/researchtldr/internal/auth"
	"github.com/ryosukesatoh/researchtldr/internal/config"
	"github.com/ryosukesatoh/researchtldr/internal/fetcher"
	"github.com/ryosukesatoh/researchtldr/internal/pipeline"
	"github.com/ryosukesatoh/researchtldr/internal/publisher"
	"github.com/ryosukesatoh/researchtldr/internal/runner"
	"github.com/ryosukesatoh/researchtldr/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRunner struct {
	report *pipeline.BatchReport
	err    error
}

func (r *stubRunner) Run(context.Context) (*pipeline.BatchReport, error) { return r.report, r.err }

type stubIngester struct {
	n     int
	err   error
	calls int
}

func (i *stubIngester) Run(context.Context) (int, error) {
	i.calls++
	return i.n, i.err
}

type testEnv struct {
	srv      *Server
	auth     *auth.Manager
	runner   *stubRunner
	ingester *stubIngester
	web      *publisher.WebPublisher
	logs     *observer.ObservedLogs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := store.Open(config.DatabaseConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "api.db")}, logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	day := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	_, err = st.SavePapers(context.Background(), []fetcher.Paper{
		{ArxivID: "2501.00001", Title: "First", Published: day, Categories: []string{"cs.LG"}, PrimaryCategory: "cs.LG"},
		{ArxivID: "2501.00002", Title: "Second", Published: day.Add(time.Hour)},
	})
	require.NoError(t, err)

	m, err := auth.NewManager("test-secret", time.Hour)
	require.NoError(t, err)

	core, logs := observer.New(zap.InfoLevel)
	env := &testEnv{
		logs:     logs,
		auth:     m,
		runner:   &stubRunner{report: &pipeline.BatchReport{RunID: "run-1"}},
		ingester: &stubIngester{n: 7},
		web:      publisher.NewWebPublisher(),
	}
	env.srv = New(Options{
		Store:    st,
		Auth:     m,
		Runner:   env.runner,
		Ingester: env.ingester,
		Reports:  env.web,
		Logger:   zap.New(core),
	})
	return env
}

func (e *testEnv) token(t *testing.T, sub string) string {
	t.Helper()
	tok, err := e.auth.Sign(sub, sub+"@example.com", "User "+sub, "")
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, body, token string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec, body := env.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ResearchTLDR backend is alive!", body["message"])
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodGet, "/api/me", "", "")
	assert.Equal(t, false, body["logged_in"])
	assert.Nil(t, body["user"])

	_, body = env.do(t, http.MethodGet, "/api/me", "", "garbage")
	assert.Equal(t, false, body["logged_in"])

	_, body = env.do(t, http.MethodGet, "/api/me", "", env.token(t, "u1"))
	assert.Equal(t, true, body["logged_in"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "u1", user["sub"])
	assert.Equal(t, "u1@example.com", user["email"])
}

func TestSessionCookie(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: env.token(t, "u1")})
	rec := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["logged_in"])
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	rec, body := env.do(t, http.MethodPost, "/logout", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Header().Get("Set-Cookie"), SessionCookie+"=;")
}

func TestListPapers(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodGet, "/api/papers", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "2501.00002", data[0].(map[string]any)["arxiv_id"])

	_, body = env.do(t, http.MethodGet, "/api/papers?limit=1", "", "")
	assert.Len(t, body["data"].([]any), 1)

	_, body = env.do(t, http.MethodGet, "/api/papers?limit=1000", "", "")
	assert.Len(t, body["data"].([]any), 2)

	for _, bad := range []string{"0", "-3", "ten"} {
		rec, _ = env.do(t, http.MethodGet, "/api/papers?limit="+bad, "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", bad)
	}
}

func TestGetPaper(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodGet, "/api/papers/1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "First", body["title"])
	assert.Len(t, body["categories"].([]any), 1)

	rec, _ = env.do(t, http.MethodGet, "/api/papers/99", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, http.MethodGet, "/api/papers/abc", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookmarks(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u1")

	rec, _ := env.do(t, http.MethodPost, "/api/papers/1/bookmark", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	_, body := env.do(t, http.MethodGet, "/api/papers/1/bookmarks", "", "")
	assert.EqualValues(t, 0, body["count"])

	rec, body = env.do(t, http.MethodPost, "/api/papers/1/bookmark", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])

	_, body = env.do(t, http.MethodGet, "/api/papers/1/bookmarks", "", tok)
	assert.EqualValues(t, 1, body["count"])

	_, body = env.do(t, http.MethodGet, "/api/bookmarks", "", tok)
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "2501.00001", data[0].(map[string]any)["arxiv_id"])

	rec, _ = env.do(t, http.MethodPost, "/api/papers/99/bookmark", "", tok)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = env.do(t, http.MethodDelete, "/api/papers/1/bookmark", "", tok)
	assert.Equal(t, http.StatusOK, rec.Code)
	_, body = env.do(t, http.MethodGet, "/api/papers/1/bookmarks", "", tok)
	assert.EqualValues(t, 0, body["count"])
}

func TestVote(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/api/papers/1/vote", `{"value":1}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	_, body := env.do(t, http.MethodPost, "/api/papers/1/vote", `{"value":1}`, env.token(t, "u1"))
	assert.EqualValues(t, 1, body["score"])
	_, body = env.do(t, http.MethodPost, "/api/papers/1/vote", `{"value":1}`, env.token(t, "u2"))
	assert.EqualValues(t, 2, body["score"])

	_, body = env.do(t, http.MethodGet, "/api/papers/1/score", "", "")
	assert.EqualValues(t, 2, body["score"])

	for _, bad := range []string{`{"value":2}`, `{"value":"up"}`, `{}`, `not json`} {
		rec, _ = env.do(t, http.MethodPost, "/api/papers/1/vote", bad, env.token(t, "u1"))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", bad)
	}

	rec, _ = env.do(t, http.MethodPost, "/api/papers/99/vote", `{"value":1}`, env.token(t, "u1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSettings(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u1")

	rec, _ := env.do(t, http.MethodGet, "/api/user/settings", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	_, body := env.do(t, http.MethodGet, "/api/user/settings", "", tok)
	assert.Empty(t, body["prefs"])

	rec, _ = env.do(t, http.MethodPost, "/api/user/settings", `{"prefs":{"theme":"dark"}}`, tok)
	require.Equal(t, http.StatusOK, rec.Code)

	_, body = env.do(t, http.MethodGet, "/api/user/settings", "", tok)
	assert.Equal(t, map[string]any{"theme": "dark"}, body["prefs"])

	for _, bad := range []string{`{"prefs":[1,2]}`, `{"prefs":"dark"}`, `{}`, `nope`} {
		rec, _ = env.do(t, http.MethodPost, "/api/user/settings", bad, tok)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", bad)
	}
}

func TestIngestEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/api/arxiv/daily", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, env.ingester.calls)

	_, body := env.do(t, http.MethodPost, "/api/arxiv/daily", "", env.token(t, "u1"))
	assert.EqualValues(t, 7, body["stored"])

	env.ingester.err = errors.New("arxiv down")
	rec, body = env.do(t, http.MethodPost, "/api/arxiv/daily", "", env.token(t, "u1"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", body["message"])
	assert.NotContains(t, rec.Body.String(), "arxiv down")

	entries := env.logs.FilterField(zap.Int("status", http.StatusInternalServerError)).All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["errors"], "arxiv down")
}

func TestRunBatchEndpoint(t *testing.T) {
	env := newTestEnv(t)
	tok := env.token(t, "u1")

	rec, body := env.do(t, http.MethodPost, "/api/summaries/run", "", tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run-1", body["run_id"])

	env.runner.err = runner.ErrBatchInProgress
	rec, _ = env.do(t, http.MethodPost, "/api/summaries/run", "", tok)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLatestReport(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodGet, "/api/summaries/latest", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, env.web.Publish(context.Background(), &pipeline.BatchReport{RunID: "run-9"}))
	rec, body := env.do(t, http.MethodGet, "/api/summaries/latest", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "run-9", body["run_id"])
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/healthz", "", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "researchtldr_http_requests_total")
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	rec, _ := env.do(t, http.MethodGet, "/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
