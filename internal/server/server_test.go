package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"recroai/internal/analytics"
	"recroai/internal/authenticity"
	"recroai/internal/batch"
	"recroai/internal/config"
	"recroai/internal/errors"
	"recroai/internal/jobs"
	"recroai/internal/notify"
	"recroai/internal/store"
	"recroai/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedDelegate scores "candidate/category" pairs from a table and fails
// the hard filter for candidates whose name starts with "Unqualified".
type scriptedDelegate struct {
	mu          sync.Mutex
	scores      map[string]float64
	unavailable bool
	block       bool
}

func (d *scriptedDelegate) ScoreCategory(ctx context.Context, c types.RubricCategory, p types.CandidateProfile) (types.CategoryScore, error) {
	if err := d.gate(ctx); err != nil {
		return types.CategoryScore{}, err
	}
	d.mu.Lock()
	score, ok := d.scores[p.ID+"/"+c.Name]
	d.mu.Unlock()
	if !ok {
		score = 50
	}
	return types.CategoryScore{CategoryName: c.Name, Score: score, Rationale: "scripted"}, nil
}

func (d *scriptedDelegate) EvaluateFilter(ctx context.Context, c types.RubricCategory, p types.CandidateProfile) (types.FilterResult, error) {
	if err := d.gate(ctx); err != nil {
		return types.FilterResult{}, err
	}
	passed := !strings.HasPrefix(p.Name, "Unqualified")
	return types.FilterResult{CategoryName: c.Name, Passed: passed, Rationale: "scripted"}, nil
}

func (d *scriptedDelegate) gate(ctx context.Context) error {
	d.mu.Lock()
	unavailable, block := d.unavailable, d.block
	d.mu.Unlock()
	if unavailable {
		return errors.NewDelegateError(errors.ErrCodeDelegateUnavailable, "no API key configured", nil)
	}
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

type fakeHealth struct{ configured bool }

func (f fakeHealth) Configured() bool { return f.configured }

func (f fakeHealth) Health(ctx context.Context) map[string]any {
	return map[string]any{"score_category": map[string]any{"available": f.configured}}
}

type testEnv struct {
	server   *Server
	http     *httptest.Server
	delegate *scriptedDelegate
}

func newTestEnv(t *testing.T, cfg ServerConfig) *testEnv {
	t.Helper()
	logger := errors.Nop()
	delegate := &scriptedDelegate{scores: map[string]float64{
		"ada/skills": 90, "ada/experience": 60,
		"bob/skills": 60, "bob/experience": 60,
	}}

	detector, err := authenticity.NewDetector(authenticity.DefaultConfig(), logger)
	require.NoError(t, err)
	st := store.NewMemoryStore()
	catalog := jobs.NewCatalog(t.TempDir(), logger)
	controller := batch.NewController(delegate, st, detector, batch.WithLogger(logger))
	composer, err := notify.NewComposer(nil)
	require.NoError(t, err)

	s := NewServer(config.Default(), cfg, Dependencies{
		Scoring:  batch.NewService(catalog, st, controller, nil, logger),
		Jobs:     catalog,
		Composer: composer,
		Delegate: fakeHealth{configured: true},
	}, logger)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		if s.RateLimiter != nil {
			s.RateLimiter.Close()
		}
	})
	return &testEnv{server: s, http: ts, delegate: delegate}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.http.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := e.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

const backendRubric = `{
  "degree": {"isHardFilter": true, "requirement": "BSc in Computer Science"},
  "skills": {"weight": 60, "requirement": "Go"},
  "experience": {"weight": 30, "requirement": "5 years backend"}
}`

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	resp, body := e.do(t, http.MethodPut, "/jobs/backend", map[string]any{
		"title":  "Backend Engineer",
		"rubric": json.RawMessage(backendRubric),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = e.do(t, http.MethodPost, "/jobs/backend/candidates", []map[string]any{
		{"id": "ada", "material": map[string]any{"name": "Ada", "email": "ada@example.com", "skills": []string{"Go"}}},
		{"id": "bob", "name": "Bob", "skills": "Go"},
		{"id": "carl", "material": map[string]any{"name": "Unqualified Carl", "email": "carl@example.com"}},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))
}

func TestPutJobReturnsNormalisedRubric(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	resp, body := env.do(t, http.MethodPut, "/jobs/backend", map[string]any{
		"title":  "Backend Engineer",
		"rubric": json.RawMessage(backendRubric),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var job types.Job
	require.NoError(t, json.Unmarshal(body, &job))
	assert.Equal(t, "backend", job.ID)
	require.Len(t, job.Rubric.Categories, 3)
	assert.Equal(t, []string{"degree", "skills", "experience"},
		[]string{job.Rubric.Categories[0].Name, job.Rubric.Categories[1].Name, job.Rubric.Categories[2].Name})
	assert.Len(t, job.Rubric.Adjustments, 1, "weights summing to 90 are rescaled")
	assert.Len(t, job.Rubric.Version, 12)

	resp, _ = env.do(t, http.MethodGet, "/jobs/backend", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestScoringFlow(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	env.seed(t)

	resp, body := env.do(t, http.MethodPost, "/jobs/backend/runs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var report types.RunReport
	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, types.RunCompleted, report.Status)
	require.Len(t, report.Scored, 3)
	assert.Equal(t, "ada", report.Scored[0].CandidateID, "report follows submission order")

	resp, body = env.do(t, http.MethodGet, "/jobs/backend/shortlist", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var shortlist ShortlistResponse
	require.NoError(t, json.Unmarshal(body, &shortlist))
	require.Len(t, shortlist.Candidates, 3)
	assert.Equal(t, "ada", shortlist.Candidates[0].CandidateID)
	require.NotNil(t, shortlist.Candidates[0].TotalScore)
	assert.InDelta(t, 80.0, *shortlist.Candidates[0].TotalScore, 0.001)
	assert.Equal(t, "carl", shortlist.Candidates[2].CandidateID)
	assert.Nil(t, shortlist.Candidates[2].TotalScore, "disqualified candidates have no total")

	resp, body = env.do(t, http.MethodGet, "/jobs/backend/shortlist?limit=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &shortlist))
	assert.Len(t, shortlist.Candidates, 1)

	resp, body = env.do(t, http.MethodGet, "/jobs/backend/analytics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary analytics.Summary
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, 3, summary.Records)
	assert.Equal(t, 2, summary.Scored)
	assert.Equal(t, 1, summary.Disqualified)
	assert.InDelta(t, 70.0, summary.AverageScore, 0.001)

	resp, body = env.do(t, http.MethodPost, "/jobs/backend/notifications", map[string]any{
		"topN":             1,
		"interviewDetails": map[string]any{"date": "2026-11-02"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var decisions []notify.Decision
	require.NoError(t, json.Unmarshal(body, &decisions))
	require.Len(t, decisions, 3)
	assert.Equal(t, types.DecisionInterview, decisions[0].Notification.DecisionKind)
	require.NotNil(t, decisions[0].Message)
	assert.Equal(t, "ada@example.com", decisions[0].Message.To)
	assert.Contains(t, decisions[0].Message.Body, "2026-11-02")
	assert.Equal(t, types.DecisionRejection, decisions[1].Notification.DecisionKind)
	assert.Nil(t, decisions[1].Message, "bob has no email")
	assert.NotEmpty(t, decisions[1].Error)
	assert.Equal(t, types.DecisionRejection, decisions[2].Notification.DecisionKind)
	assert.NotNil(t, decisions[2].Message)
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	env.seed(t)

	ids := make([]string, 51)
	for i := range ids {
		ids[i] = fmt.Sprintf("c%d", i)
	}

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"unknown job", http.MethodGet, "/jobs/nope", nil, http.StatusNotFound, errors.ErrCodeNotFound},
		{"unknown run", http.MethodGet, "/runs/nope", nil, http.StatusNotFound, errors.ErrCodeNotFound},
		{"over capacity", http.MethodPost, "/jobs/backend/runs", map[string]any{"candidateIds": ids}, http.StatusRequestEntityTooLarge, errors.ErrCodeCapacityExceeded},
		{"empty id list", http.MethodPost, "/jobs/backend/runs", map[string]any{"candidateIds": []string{}}, http.StatusBadRequest, errors.ErrCodeInvalidRequest},
		{"unknown candidate", http.MethodPost, "/jobs/backend/runs", map[string]any{"candidateIds": []string{"ghost"}}, http.StatusNotFound, errors.ErrCodeNotFound},
		{"invalid rubric", http.MethodPut, "/jobs/bad", map[string]any{"rubric": map[string]any{"skills": map[string]any{"weight": -1}}}, http.StatusBadRequest, errors.ErrCodeValidation},
		{"missing rubric", http.MethodPut, "/jobs/bad", map[string]any{"title": "x"}, http.StatusBadRequest, errors.ErrCodeValidation},
		{"malformed json", http.MethodPost, "/jobs/backend/candidates", "{", http.StatusBadRequest, errors.ErrCodeInvalidFormat},
		{"candidates not an array", http.MethodPost, "/jobs/backend/candidates", map[string]any{"id": "x"}, http.StatusBadRequest, errors.ErrCodeInvalidRequest},
		{"compose without email", http.MethodPost, "/notifications/compose", map[string]any{"notification": map[string]any{"candidateId": "x", "decisionKind": "interview"}}, http.StatusBadRequest, errors.ErrCodeValidation},
		{"negative limit", http.MethodGet, "/jobs/backend/shortlist?limit=-1", nil, http.StatusBadRequest, errors.ErrCodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode, string(body))
			var er ErrorResponse
			require.NoError(t, json.Unmarshal(body, &er))
			assert.Equal(t, tt.wantCode, er.Code)
		})
	}

	resp, _ := env.do(t, http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPatch, "/jobs/backend", map[string]any{})
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestContentTypeRequired(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	req, err := http.NewRequest(http.MethodPut, env.http.URL+"/jobs/x", strings.NewReader(`{"rubric":{}}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "text/plain")
	resp, err := env.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDelegateUnavailableAbortsRun(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	env.seed(t)
	env.delegate.mu.Lock()
	env.delegate.unavailable = true
	env.delegate.mu.Unlock()

	resp, body := env.do(t, http.MethodPost, "/jobs/backend/runs", nil)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, string(body))
	var er ErrorResponse
	require.NoError(t, json.Unmarshal(body, &er))
	assert.Equal(t, errors.ErrCodeDelegateUnavailable, er.Code)
	require.NotNil(t, er.Run)
	assert.Equal(t, types.RunFailed, er.Run.Status)
}

func TestAsyncRunCanBeCancelled(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	env.seed(t)
	env.delegate.mu.Lock()
	env.delegate.block = true
	env.delegate.mu.Unlock()

	resp, body := env.do(t, http.MethodPost, "/jobs/backend/runs?async=true", map[string]any{"candidateIds": []string{"ada"}})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))
	var started types.RunReport
	require.NoError(t, json.Unmarshal(body, &started))
	require.NotEmpty(t, started.RunID)
	assert.Equal(t, "/runs/"+started.RunID, resp.Header.Get("Location"))

	resp, body = env.do(t, http.MethodGet, "/runs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), started.RunID)

	resp, _ = env.do(t, http.MethodDelete, "/runs/"+started.RunID, nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		_, body := env.do(t, http.MethodGet, "/runs/"+started.RunID, nil)
		var report types.RunReport
		return json.Unmarshal(body, &report) == nil && report.Status == types.RunFailed
	}, 3*time.Second, 10*time.Millisecond)
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t, ServerConfig{APIKeys: []string{"secret-key-123"}})

	resp, _ := env.do(t, http.MethodGet, "/jobs", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/jobs", nil, "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/jobs", nil, "X-API-Key", "secret-key-123")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/jobs", nil, "Authorization", "Bearer secret-key-123")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health is public")
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, ServerConfig{RateLimit: &config.RateLimitConfig{
		Enabled: true, RequestsPerMin: 1, BurstCapacity: 1, ByIP: true,
	}})

	resp, _ := env.do(t, http.MethodGet, "/jobs", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = env.do(t, http.MethodGet, "/jobs", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))

	stats := env.server.RateLimiter.GetStats()
	assert.Equal(t, int64(1), stats["rejected"])
}

func TestRequestSizeLimit(t *testing.T) {
	env := newTestEnv(t, ServerConfig{MaxRequestSize: 64})
	resp, body := env.do(t, http.MethodPut, "/jobs/big", map[string]any{
		"rubric": map[string]any{"skills": map[string]any{"weight": 100, "requirement": strings.Repeat("x", 200)}},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "too large")
}

func TestHealthDegradedWithoutDelegate(t *testing.T) {
	env := newTestEnv(t, ServerConfig{})
	env.server.deps.Delegate = fakeHealth{configured: false}

	resp, body := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), "degraded")
}

func TestStatusFor(t *testing.T) {
	tests := map[string]int{
		errors.ErrCodeInvalidRequest:            http.StatusBadRequest,
		errors.ErrCodeValidation:                http.StatusBadRequest,
		errors.ErrCodeNotFound:                  http.StatusNotFound,
		errors.ErrCodeRunCancelled:              http.StatusConflict,
		errors.ErrCodeCapacityExceeded:          http.StatusRequestEntityTooLarge,
		errors.ErrCodeDelegateMalformedResponse: http.StatusBadGateway,
		errors.ErrCodeDelegateFailed:            http.StatusBadGateway,
		errors.ErrCodeDelegateUnavailable:       http.StatusServiceUnavailable,
		errors.ErrCodeDelegateCircuitOpen:       http.StatusServiceUnavailable,
		errors.ErrCodeDelegateTimeout:           http.StatusGatewayTimeout,
		errors.ErrCodeStoreFailed:               http.StatusInternalServerError,
		"":                                      http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, statusFor(code), code)
	}
}
