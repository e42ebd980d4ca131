package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/darwin/internal/config"
	"github.com/copyleftdev/darwin/internal/logging"
	"github.com/copyleftdev/darwin/internal/metrics"
	"github.com/copyleftdev/darwin/internal/storage"
)

// testConfig creates a test configuration with small runs
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Environment: "test",
	}

	cfg.HTTP.Port = 8080
	cfg.HTTP.ReadTimeout = 30 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second
	cfg.HTTP.IdleTimeout = 120 * time.Second
	cfg.HTTP.ShutdownTimeout = 30 * time.Second

	cfg.Logging.Level = "debug"
	cfg.Logging.Format = logging.FormatJSON
	cfg.Logging.Output = "stderr"

	cfg.Database.Type = "memory"

	cfg.Evolution.PopulationSize = 20
	cfg.Evolution.Iterations = 5
	cfg.Evolution.MutationAmount = 0.1
	cfg.Evolution.BreedingPool = 4
	cfg.Evolution.WithReplacement = true
	cfg.Evolution.MaxConcurrentRuns = 4

	return cfg
}

// testLogger creates a test logger
func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.New(logging.ErrorLevel, io.Discard)
}

type testServer struct {
	srv    *Server
	router chi.Router
	store  *storage.MemoryStore
	m      *metrics.Metrics
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	store := storage.NewMemoryStore()
	m := metrics.New()
	srv := NewServer(cfg, testLogger(t), WithStore(store), WithMetrics(m))
	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	t.Cleanup(func() { _ = srv.Close() })
	return &testServer{srv: srv, router: r, store: store, m: m}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func decodeStatus(t *testing.T, rr *httptest.ResponseRecorder) RunStatus {
	t.Helper()
	var status RunStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &status), rr.Body.String())
	return status
}

func finishedMetric(status string) string {
	return `
# HELP darwin_runs_finished_total Evolution runs finished, by problem and final status.
# TYPE darwin_runs_finished_total counter
darwin_runs_finished_total{problem="onemax",status="` + status + `"} 1
`
}

func TestNewServer(t *testing.T) {
	srv := NewServer(testConfig(t), testLogger(t))
	require.NotNil(t, srv)
	assert.NotNil(t, srv.store, "defaults to an in-memory store")
	assert.NotNil(t, srv.metrics)
	assert.Equal(t, []string{"onemax", "rosenbrock", "sphere", "target"}, srv.registry.Names())
	assert.Equal(t, 4, cap(srv.slots))
}

func TestRegisterRoutes(t *testing.T) {
	srv := NewServer(testConfig(t), testLogger(t))
	r := chi.NewRouter()
	srv.RegisterRoutes(r)

	var routes []string
	err := chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, method+" "+route)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(routes)

	assert.Equal(t, []string{
		"DELETE /api/v1/runs/{id}",
		"GET /api/v1/problems",
		"GET /api/v1/runs",
		"GET /api/v1/runs/{id}",
		"POST /api/v1/evolve",
		"POST /rpc",
	}, routes)
}

func TestEvolveLifecycle(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	rr := ts.do(t, http.MethodPost, "/api/v1/evolve",
		`{"problem":"onemax","params":{"length":8},"seed":42}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	started := decodeStatus(t, rr)
	require.NotEmpty(t, started.ID)
	assert.Equal(t, "onemax", started.Problem)
	assert.Equal(t, int64(42), started.Seed)
	assert.Equal(t, 20, started.Arguments.PopulationSize)

	ts.srv.Wait()

	rr = ts.do(t, http.MethodGet, "/api/v1/runs/"+started.ID, "")
	require.Equal(t, http.StatusOK, rr.Code)
	final := decodeStatus(t, rr)
	assert.Equal(t, storage.StatusCompleted, final.Status)
	assert.Equal(t, 1.0, final.Progress)
	assert.Equal(t, 5, final.Generation)
	assert.Len(t, final.History, 6)
	assert.Equal(t, 20, final.PopulationSize)

	var organism string
	require.NoError(t, json.Unmarshal(final.BestOrganism, &organism))
	assert.Len(t, organism, 8)
	assert.LessOrEqual(t, final.BestFitness, 8.0)

	stored, ok, err := ts.store.GetRun(context.Background(), started.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, storage.StatusCompleted, stored.Status)

	rr = ts.do(t, http.MethodGet, "/api/v1/runs", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []RunStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, started.ID, list[0].ID)

	assert.NoError(t, testutil.GatherAndCompare(ts.m.Registry(), strings.NewReader(finishedMetric("completed")),
		"darwin_runs_finished_total"))
}

func TestEvolveSameSeedSameResult(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	var results []RunStatus
	for i := 0; i < 2; i++ {
		rr := ts.do(t, http.MethodPost, "/api/v1/evolve",
			`{"problem":"sphere","params":{"dimensions":3},"seed":7}`)
		require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
		id := decodeStatus(t, rr).ID
		ts.srv.Wait()
		results = append(results, decodeStatus(t, ts.do(t, http.MethodGet, "/api/v1/runs/"+id, "")))
	}

	assert.Equal(t, storage.StatusCompleted, results[0].Status)
	assert.Equal(t, "minimize", results[0].Arguments.Goal.String(), "sphere minimizes by default")
	assert.Equal(t, results[0].BestFitness, results[1].BestFitness)
	assert.JSONEq(t, string(results[0].BestOrganism), string(results[1].BestOrganism))
}

func TestEvolveArgumentOverrides(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	rr := ts.do(t, http.MethodPost, "/api/v1/evolve", `{
		"problem": "onemax",
		"params": {"length": 4},
		"arguments": {"population_size": 10, "num_iterations": 0, "breeding_pool_size": 2, "goal": "minimize"}
	}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	started := decodeStatus(t, rr)
	assert.Equal(t, 10, started.Arguments.PopulationSize)
	assert.Equal(t, 0, started.Arguments.NumIterations)
	assert.Equal(t, 2, started.Arguments.BreedingPoolSize)
	assert.Equal(t, 2, started.Arguments.KillingPoolSize, "killing pool defaults to the breeding pool")
	assert.Equal(t, "minimize", started.Arguments.Goal.String())
	assert.NotZero(t, started.Seed, "a seed is chosen and reported")

	ts.srv.Wait()
	final := decodeStatus(t, ts.do(t, http.MethodGet, "/api/v1/runs/"+started.ID, ""))
	assert.Equal(t, storage.StatusCompleted, final.Status)
	assert.Len(t, final.History, 1)
}

func TestEvolveRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed body", `{"problem":`, http.StatusBadRequest},
		{"missing problem", `{}`, http.StatusBadRequest},
		{"unknown problem", `{"problem":"rastrigin"}`, http.StatusBadRequest},
		{"bad goal", `{"problem":"onemax","arguments":{"goal":"sideways"}}`, http.StatusBadRequest},
		{"odd breeding pool", `{"problem":"onemax","arguments":{"breeding_pool_size":3}}`, http.StatusBadRequest},
		{"bad params", `{"problem":"target","params":{"target":"abc"}}`, http.StatusBadRequest},
		{"negative population", `{"problem":"onemax","arguments":{"population_size":-1}}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, testConfig(t))
			rr := ts.do(t, http.MethodPost, "/api/v1/evolve", tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())

			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, "invalid_argument", body["code"])
			assert.NotEmpty(t, body["error"])

			runs, err := ts.store.ListRuns(context.Background())
			require.NoError(t, err)
			assert.Empty(t, runs, "rejected runs are not stored")
		})
	}
}

func TestStatusUnknownRun(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	rr := ts.do(t, http.MethodGet, "/api/v1/runs/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ts.do(t, http.MethodDelete, "/api/v1/runs/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStatusFallsBackToStore(t *testing.T) {
	ts := newTestServer(t, testConfig(t))
	now := time.Now().UTC()
	require.NoError(t, ts.store.SaveRun(context.Background(), storage.RunRecord{
		ID:          "earlier",
		Problem:     "onemax",
		Status:      storage.StatusCompleted,
		BestFitness: 12,
		CreatedAt:   now,
		UpdatedAt:   now,
	}))

	rr := ts.do(t, http.MethodGet, "/api/v1/runs/earlier", "")
	require.Equal(t, http.StatusOK, rr.Code)
	status := decodeStatus(t, rr)
	assert.Equal(t, storage.StatusCompleted, status.Status)
	assert.Equal(t, 12.0, status.BestFitness)
	assert.Equal(t, 1.0, status.Progress)

	rr = ts.do(t, http.MethodDelete, "/api/v1/runs/earlier", "")
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func longRunConfig(t *testing.T) *config.Config {
	cfg := testConfig(t)
	cfg.Evolution.Iterations = 100_000_000
	return cfg
}

func TestCancelRun(t *testing.T) {
	ts := newTestServer(t, longRunConfig(t))

	rr := ts.do(t, http.MethodPost, "/api/v1/evolve", `{"problem":"onemax","params":{"length":8}}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	id := decodeStatus(t, rr).ID

	require.Eventually(t, func() bool {
		st := decodeStatus(t, ts.do(t, http.MethodGet, "/api/v1/runs/"+id, ""))
		return st.Generation > 0
	}, 5*time.Second, 5*time.Millisecond)

	rr = ts.do(t, http.MethodDelete, "/api/v1/runs/"+id, "")
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	ts.srv.Wait()

	final := decodeStatus(t, ts.do(t, http.MethodGet, "/api/v1/runs/"+id, ""))
	assert.Equal(t, storage.StatusCancelled, final.Status)
	assert.Empty(t, final.Error)
	assert.Less(t, final.Progress, 1.0)

	rr = ts.do(t, http.MethodDelete, "/api/v1/runs/"+id, "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	assert.NoError(t, testutil.GatherAndCompare(ts.m.Registry(), strings.NewReader(finishedMetric("cancelled")),
		"darwin_runs_finished_total"))
}

func TestConcurrencyLimit(t *testing.T) {
	cfg := longRunConfig(t)
	cfg.Evolution.MaxConcurrentRuns = 1
	ts := newTestServer(t, cfg)

	rr := ts.do(t, http.MethodPost, "/api/v1/evolve", `{"problem":"onemax"}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	rr = ts.do(t, http.MethodPost, "/api/v1/evolve", `{"problem":"onemax"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	require.NoError(t, ts.srv.Close())

	rr = ts.do(t, http.MethodPost, "/api/v1/evolve", `{"problem":"onemax","arguments":{"num_iterations":1}}`)
	assert.Equal(t, http.StatusAccepted, rr.Code, "the slot is released once the run stops")
}

func TestProblems(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	rr := ts.do(t, http.MethodGet, "/api/v1/problems", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var problems []ProblemInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problems))
	require.Len(t, problems, 4)
	assert.Equal(t, "onemax", problems[0].Name)
	assert.Equal(t, "maximize", problems[0].Goal.String())
	assert.Equal(t, "minimize", problems[1].Goal.String())
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (ts *testServer) rpc(t *testing.T, body string) rpcResponse {
	t.Helper()
	rr := ts.do(t, http.MethodPost, "/rpc", body)
	require.Equal(t, http.StatusOK, rr.Code)
	var resp rpcResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	assert.Equal(t, "2.0", resp.JSONRPC)
	return resp
}

func TestJSONRPCErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"parse error", `{"jsonrpc":`, -32700},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"evolution.list"}`, -32600},
		{"missing method", `{"jsonrpc":"2.0","id":1}`, -32600},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"optimization.start"}`, -32601},
		{"missing params", `{"jsonrpc":"2.0","id":1,"method":"evolution.start"}`, -32602},
		{"too many params", `{"jsonrpc":"2.0","id":1,"method":"evolution.status","params":[{"id":"a"},{"id":"b"}]}`, -32602},
		{"missing id", `{"jsonrpc":"2.0","id":1,"method":"evolution.status","params":{}}`, -32602},
		{"unknown problem", `{"jsonrpc":"2.0","id":1,"method":"evolution.start","params":{"problem":"nope"}}`, -32602},
		{"unknown run", `{"jsonrpc":"2.0","id":1,"method":"evolution.status","params":{"id":"nope"}}`, -32000},
		{"cancel unknown run", `{"jsonrpc":"2.0","id":1,"method":"evolution.cancel","params":[{"id":"nope"}]}`, -32000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, testConfig(t))
			resp := ts.rpc(t, tt.body)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestJSONRPCLifecycle(t *testing.T) {
	ts := newTestServer(t, testConfig(t))

	resp := ts.rpc(t, `{"jsonrpc":"2.0","id":"a","method":"evolution.start",
		"params":[{"problem":"target","params":{"target":"101101"},"seed":3}]}`)
	require.Nil(t, resp.Error)
	assert.Equal(t, "a", resp.ID)
	var started RunStatus
	require.NoError(t, json.Unmarshal(resp.Result, &started))
	require.NotEmpty(t, started.ID)

	ts.srv.Wait()

	resp = ts.rpc(t, `{"jsonrpc":"2.0","id":2,"method":"evolution.status","params":{"id":"`+started.ID+`"}}`)
	require.Nil(t, resp.Error)
	assert.Equal(t, 2.0, resp.ID)
	var status RunStatus
	require.NoError(t, json.Unmarshal(resp.Result, &status))
	assert.Equal(t, storage.StatusCompleted, status.Status)
	assert.LessOrEqual(t, status.BestFitness, 6.0)

	resp = ts.rpc(t, `{"jsonrpc":"2.0","id":3,"method":"evolution.list"}`)
	require.Nil(t, resp.Error)
	var list []RunStatus
	require.NoError(t, json.Unmarshal(resp.Result, &list))
	assert.Len(t, list, 1)

	resp = ts.rpc(t, `{"jsonrpc":"2.0","id":4,"method":"evolution.problems"}`)
	require.Nil(t, resp.Error)
	var problems []ProblemInfo
	require.NoError(t, json.Unmarshal(resp.Result, &problems))
	assert.Len(t, problems, 4)

	resp = ts.rpc(t, `{"jsonrpc":"2.0","id":5,"method":"evolution.cancel","params":{"id":"`+started.ID+`"}}`)
	require.NotNil(t, resp.Error, "a completed run cannot be cancelled")
	assert.Equal(t, -32000, resp.Error.Code)
}

func TestClose(t *testing.T) {
	ts := newTestServer(t, longRunConfig(t))

	var ids []string
	for i := 0; i < 2; i++ {
		rr := ts.do(t, http.MethodPost, "/api/v1/evolve", `{"problem":"onemax"}`)
		require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
		ids = append(ids, decodeStatus(t, rr).ID)
	}

	done := make(chan error, 1)
	go func() { done <- ts.srv.Close() }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Close did not return")
	}

	for _, id := range ids {
		rec, ok, err := ts.store.GetRun(context.Background(), id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, storage.StatusCancelled, rec.Status)
	}
}

func TestRespondWithError(t *testing.T) {
	srv := NewServer(testConfig(t), testLogger(t))

	tests := []struct {
		name       string
		code       int
		message    string
		id         interface{}
		expectedID interface{}
	}{
		{"string id", -32602, "invalid input", "123", "123"},
		{"nil id", -32000, "server error", nil, nil},
		{"numeric id", -32601, "Method not found", 7, 7.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.respondWithError(rr, tt.code, tt.message, tt.id)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var resp rpcResponse
			require.NoError(t, json.NewDecoder(bytes.NewReader(rr.Body.Bytes())).Decode(&resp))
			assert.Equal(t, "2.0", resp.JSONRPC)
			assert.Equal(t, tt.expectedID, resp.ID)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.message, resp.Error.Message)
		})
	}
}
