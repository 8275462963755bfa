package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/xapi/internal/infrastructure/scheduler"
	"github.com/alem-hub/xapi/pkg/xapi"
)

const statementJSON = `{
	"actor": {"mbox": "mailto:learner@example.com"},
	"verb": {"id": "http://adlnet.gov/expapi/verbs/completed", "display": {"en-US": "completed"}},
	"object": {"id": "http://example.com/courses/go"}
}`

type memoryQueue struct {
	queued []*xapi.Statement
	dead   int64
	err    error
}

func (q *memoryQueue) Enqueue(_ context.Context, statements ...*xapi.Statement) error {
	if q.err != nil {
		return q.err
	}
	for _, st := range statements {
		st.Stamp()
	}
	q.queued = append(q.queued, statements...)
	return nil
}

func (q *memoryQueue) Len(context.Context) (int64, error) {
	return int64(len(q.queued)), q.err
}

func (q *memoryQueue) DeadLetterLen(context.Context) (int64, error) {
	return q.dead, q.err
}

type namedJob struct {
	name string
	err  error
}

func (j *namedJob) Name() string              { return j.name }
func (j *namedJob) Description() string       { return "job " + j.name }
func (j *namedJob) Run(context.Context) error { return j.err }

func newTestServer(t *testing.T, cfg Config, deps Dependencies) http.Handler {
	t.Helper()
	return NewServer(cfg, deps).Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) (*httptest.ResponseRecorder, JSONResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp JSONResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, DefaultConfig(), Dependencies{
		Health: HealthChecks{"redis": func(context.Context) error { return nil }},
	})

	rec, resp := do(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, _ = do(t, h, http.MethodGet, "/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth_FailingCheck(t *testing.T) {
	h := newTestServer(t, DefaultConfig(), Dependencies{
		Health: HealthChecks{
			"redis":    func(context.Context) error { return nil },
			"postgres": func(context.Context) error { return errors.New("connection refused") },
		},
	})

	rec, resp := do(t, h, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, resp.Success)
	assert.Contains(t, rec.Body.String(), "connection refused")

	rec, _ = do(t, h, http.MethodGet, "/healthz", "", map[string]string{"X-Request-ID": "req-1"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("lrs_requests_total 1\n"))
	})

	h := newTestServer(t, DefaultConfig(), Dependencies{Metrics: metrics})
	rec, _ := do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lrs_requests_total")

	h = newTestServer(t, DefaultConfig(), Dependencies{})
	rec, _ = do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnqueueStatements(t *testing.T) {
	queue := &memoryQueue{dead: 2}
	h := newTestServer(t, DefaultConfig(), Dependencies{Outbox: queue})

	rec, resp := do(t, h, http.MethodPost, "/api/v1/statements", statementJSON, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.True(t, resp.Success)
	require.Len(t, queue.queued, 1)
	assert.Equal(t, xapi.MustParseURI("http://adlnet.gov/expapi/verbs/completed"), queue.queued[0].Verb.ID)

	data := resp.Data.(map[string]any)
	assert.EqualValues(t, 1, data["accepted"])
	assert.Len(t, data["ids"], 1)

	rec, _ = do(t, h, http.MethodPost, "/api/v1/statements", "["+statementJSON+","+statementJSON+"]", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Len(t, queue.queued, 3)

	rec, resp = do(t, h, http.MethodGet, "/api/v1/outbox", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, resp.Data.(map[string]any)["pending"])
	assert.EqualValues(t, 2, resp.Data.(map[string]any)["dead_letter"])
}

func TestEnqueueStatements_Rejected(t *testing.T) {
	queue := &memoryQueue{}
	h := newTestServer(t, DefaultConfig(), Dependencies{Outbox: queue})

	tests := []struct {
		name string
		body string
		code string
	}{
		{"empty body", "", "malformed_statement"},
		{"not json", "statement", "malformed_statement"},
		{"empty array", "[]", "empty_batch"},
		{"missing verb", `{"actor":{"mbox":"mailto:a@example.com"},"object":{"id":"http://example.com/a"}}`, "invalid_statement"},
		{"bad item in batch", "[" + statementJSON + ", 42]", "malformed_statement"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := do(t, h, http.MethodPost, "/api/v1/statements", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
	assert.Empty(t, queue.queued, "nothing is queued from a rejected batch")
}

func TestEnqueueStatements_OutboxDown(t *testing.T) {
	h := newTestServer(t, DefaultConfig(), Dependencies{Outbox: &memoryQueue{err: errors.New("redis down")}})

	rec, resp := do(t, h, http.MethodPost, "/api/v1/statements", statementJSON, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "outbox_unavailable", resp.Error.Code)
}

func TestEnqueueStatements_BodyLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxBodyBytes = 16
	h := newTestServer(t, cfg, Dependencies{Outbox: &memoryQueue{}})

	rec, _ := do(t, h, http.MethodPost, "/api/v1/statements", statementJSON, nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.APIKeys = []string{"secret"}
	h := newTestServer(t, cfg, Dependencies{Outbox: &memoryQueue{}})

	rec, resp := do(t, h, http.MethodGet, "/api/v1/outbox", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", resp.Error.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/outbox", "", map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/outbox", "", map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/live", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "probes are not guarded")
}

func TestJobs(t *testing.T) {
	sched := scheduler.NewScheduler(scheduler.DefaultSchedulerConfig())
	require.NoError(t, sched.Register(&namedJob{name: "flush_outbox"}, scheduler.NewIntervalSchedule(30*time.Second)))
	require.NoError(t, sched.Register(&namedJob{name: "archive_statements", err: errors.New("lrs down")}, scheduler.NewIntervalSchedule(time.Hour)))
	h := newTestServer(t, DefaultConfig(), Dependencies{Scheduler: sched})

	rec, resp := do(t, h, http.MethodPost, "/api/v1/jobs/flush_outbox/run", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp.Data.(map[string]any)["success"])

	rec, resp = do(t, h, http.MethodPost, "/api/v1/jobs/archive_statements/run", "", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "lrs down", resp.Data.(map[string]any)["error"])

	rec, resp = do(t, h, http.MethodPost, "/api/v1/jobs/missing/run", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "job_not_found", resp.Error.Code)

	rec, _ = do(t, h, http.MethodGet, "/api/v1/jobs", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []JobView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Data, 2)
	assert.Equal(t, "archive_statements", list.Data[0].Name)
	assert.Equal(t, "lrs down", list.Data[0].LastError)
	assert.Equal(t, int64(1), list.Data[0].FailCount)
	assert.Equal(t, "flush_outbox", list.Data[1].Name)
	assert.Equal(t, "@every 30s", list.Data[1].Schedule)
	assert.NotNil(t, list.Data[1].NextRun)
}

func TestRecovery(t *testing.T) {
	s := NewServer(DefaultConfig(), Dependencies{})
	s.router.HandleFunc("GET /panic", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec, resp := do(t, s.Handler(), http.MethodGet, "/panic", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_server_error", resp.Error.Code)
}
