package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camuig/llm-arena/internal/engine"
	"github.com/camuig/llm-arena/internal/logger"
	"github.com/camuig/llm-arena/internal/metrics"
	"github.com/camuig/llm-arena/internal/models"
	"github.com/camuig/llm-arena/internal/storage"
)

type fakeEngine struct {
	running    bool
	states     []models.AgentState
	stateCalls int
}

func (f *fakeEngine) Start(context.Context) bool {
	if f.running {
		return false
	}
	f.running = true
	return true
}

func (f *fakeEngine) Stop() bool {
	was := f.running
	f.running = false
	return was
}

func (f *fakeEngine) Status() engine.Status { return engine.Status{IsRunning: f.running} }

func (f *fakeEngine) AgentStates(context.Context) []models.AgentState { return f.states }

func (f *fakeEngine) AgentState(_ context.Context, id string) (models.AgentState, bool) {
	f.stateCalls++
	for _, s := range f.states {
		if s.AgentID == id {
			return s, true
		}
	}
	return models.AgentState{}, false
}

func (f *fakeEngine) HasAgent(id string) bool {
	for _, s := range f.states {
		if s.AgentID == id {
			return true
		}
	}
	return false
}

func newTestServer(t *testing.T, journal Journal) (*Server, *fakeEngine) {
	t.Helper()
	eng := &fakeEngine{states: []models.AgentState{
		{AgentID: "mock-gpt5", Name: "Mock GPT-5", LLMProvider: "mock:mock-gpt5", Portfolio: models.PortfolioStatus{Cash: 10000, TotalValue: 10000}},
	}}
	return NewServer(eng, journal, metrics.New(), 0, logger.Discard()), eng
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestAgentRoutes(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/api/v1/agents")
	require.Equal(t, http.StatusOK, rec.Code)
	var states []models.AgentState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &states))
	require.Len(t, states, 1)
	assert.Equal(t, "Mock GPT-5", states[0].Name)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, s, http.MethodGet, "/api/v1/agents/mock-gpt5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"agent_id":"mock-gpt5"`)

	rec = do(t, s, http.MethodGet, "/api/v1/agents/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"detail":"Agent not found"}`, rec.Body.String())
}

func TestEngineLifecycleRoutes(t *testing.T) {
	s, eng := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/api/v1/engine/status")
	assert.JSONEq(t, `{"is_running":false}`, rec.Body.String())

	rec = do(t, s, http.MethodPost, "/api/v1/engine/start")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"started":true,"is_running":true}`, rec.Body.String())
	assert.True(t, eng.running)

	rec = do(t, s, http.MethodPost, "/api/v1/engine/stop")
	assert.JSONEq(t, `{"stopped":true}`, rec.Body.String())
	assert.False(t, eng.running)
}

func TestHealthMetricsAndPreflight(t *testing.T) {
	s, _ := newTestServer(t, nil)

	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/healthz").Code)

	rec := do(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = do(t, s, http.MethodOptions, "/api/v1/agents")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestJournalRoutes(t *testing.T) {
	db, err := storage.NewDatabase(filepath.Join(t.TempDir(), "arena.db"))
	require.NoError(t, err)
	repo := storage.NewRepository(db)

	s, eng := newTestServer(t, repo)

	rec := do(t, s, http.MethodGet, "/api/v1/agents/mock-gpt5/snapshot")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, repo.RecordTrade("mock-gpt5", models.Trade{
		ID: "01JTEST0000000000000000001", Symbol: "AAPL", Action: models.ActionBuy,
		Quantity: 5, Price: 120, Timestamp: time.Now(), Status: models.TradeFilled,
	}))
	require.NoError(t, repo.RecordSnapshot("mock-gpt5", models.PortfolioStatus{Cash: 9400, TotalValue: 10050, PnL: 50}))

	rec = do(t, s, http.MethodGet, "/api/v1/agents/mock-gpt5/trades?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Trades      []storage.TradeRecord `json:"trades"`
		FilledTotal int64                 `json:"filled_total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Trades, 1)
	assert.Equal(t, "AAPL", body.Trades[0].Symbol)
	assert.Equal(t, int64(1), body.FilledTotal)

	assert.Equal(t, http.StatusBadRequest, do(t, s, http.MethodGet, "/api/v1/agents/mock-gpt5/trades?limit=x").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/v1/agents/nobody/trades").Code)
	assert.Zero(t, eng.stateCalls, "trade listing does not value the portfolio")

	rec = do(t, s, http.MethodGet, "/api/v1/agents/mock-gpt5/snapshot")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_value":10050`)
}

func TestJournalRoutesDisabled(t *testing.T) {
	s, _ := newTestServer(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, s, http.MethodGet, "/api/v1/agents/mock-gpt5/trades").Code)
}
