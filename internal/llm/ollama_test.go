package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camuig/llm-arena/internal/logger"
	"github.com/camuig/llm-arena/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestOllama(t *testing.T, handler http.HandlerFunc) (*OllamaProvider, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	auditPath := filepath.Join(t.TempDir(), "llm.log")
	audit := logger.NewAuditLog(auditPath, logger.Discard())
	return NewOllamaProvider(srv.URL, "qwen3:4b", 5*time.Second, audit, logger.Discard()), auditPath
}

func TestOllamaChatWithImages(t *testing.T) {
	imgPath := filepath.Join(t.TempDir(), "chart.png")
	imgBytes := []byte("\x89PNG fake chart")
	require.NoError(t, os.WriteFile(imgPath, imgBytes, 0o644))

	var got ollamaChatRequest
	p, auditPath := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{
			"message": map[string]any{
				"content":  "```json\n" + plainPayload + "\n```",
				"thinking": "AAPL above EMA20",
			},
		})
	})

	list := p.GetTradeDecision(context.Background(), "market prompt", []string{imgPath})

	require.Len(t, list.Decisions, 1)
	assert.Equal(t, "AAPL", list.Decisions[0].Symbol)
	assert.Equal(t, models.SignalBuyToEnter, list.Decisions[0].Signal)

	assert.Equal(t, "qwen3:4b", got.Model)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "market prompt", got.Messages[1].Content)
	assert.Equal(t, []string{base64.StdEncoding.EncodeToString(imgBytes)}, got.Messages[1].Images)

	raw, err := os.ReadFile(auditPath)
	require.NoError(t, err)
	audit := string(raw)
	assert.Contains(t, audit, "PROMPT\nmarket prompt")
	assert.Contains(t, audit, "THINKING\nAAPL above EMA20")
	assert.Contains(t, audit, "RESPONSE")
}

func TestOllamaFallsBackToGenerate(t *testing.T) {
	var chatCalls, generateCalls atomic.Int32
	var got ollamaGenerateRequest
	p, _ := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			chatCalls.Add(1)
			http.NotFound(w, r)
		case "/api/generate":
			generateCalls.Add(1)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			writeJSON(w, http.StatusOK, map[string]any{"response": `{"decisions": []}`})
		}
	})

	list := p.GetTradeDecision(context.Background(), "user prompt", nil)

	assert.Empty(t, list.Decisions)
	assert.False(t, IsFallback(list))
	assert.Equal(t, int32(1), chatCalls.Load())
	assert.Equal(t, int32(1), generateCalls.Load())
	assert.True(t, strings.HasPrefix(got.Prompt, systemPrompt))
	assert.True(t, strings.HasSuffix(got.Prompt, "\n\nuser prompt"))
	assert.Equal(t, "json", got.Format)
}

func TestOllamaFailuresFallBack(t *testing.T) {
	tests := map[string]http.HandlerFunc{
		"server error": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "boom"})
		},
		"error field": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"error": "model not loaded"})
		},
		"invalid json marker": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"message": map[string]any{"content": "Invalid JSON: expected value"}})
		},
		"garbage body": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("not json"))
		},
		"generate also missing": func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		},
	}
	for name, h := range tests {
		t.Run(name, func(t *testing.T) {
			p, _ := newTestOllama(t, h)
			list := p.GetTradeDecision(context.Background(), "prompt", nil)
			assert.True(t, IsFallback(list))
		})
	}
}

func TestOllamaUnreachable(t *testing.T) {
	audit := logger.NewAuditLog("", logger.Discard())
	p := NewOllamaProvider("http://127.0.0.1:1", "qwen3:4b", time.Second, audit, logger.Discard())
	list := p.GetTradeDecision(context.Background(), "prompt", nil)
	assert.True(t, IsFallback(list))
}

func TestOllamaBadImageIsDropped(t *testing.T) {
	var got ollamaChatRequest
	p, _ := newTestOllama(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]any{"message": map[string]any{"content": `{"decisions": []}`}})
	})

	list := p.GetTradeDecision(context.Background(), "prompt", []string{"/does/not/exist.png"})
	assert.False(t, IsFallback(list))
	assert.Empty(t, got.Messages[1].Images)
}

func TestMockProviderDeterministic(t *testing.T) {
	symbols := []string{"AAPL", "NVDA", "AMD"}
	a := NewMockProvider("x", symbols, 42)
	b := NewMockProvider("x", symbols, 42)

	for i := 0; i < 20; i++ {
		da := a.GetTradeDecision(context.Background(), "", nil)
		db := b.GetTradeDecision(context.Background(), "", nil)
		require.Equal(t, da, db)
		require.Len(t, da.Decisions, 1)

		d := da.Decisions[0]
		assert.Contains(t, symbols, d.Symbol)
		assert.GreaterOrEqual(t, d.Confidence, 0.5)
		assert.LessOrEqual(t, d.Confidence, 1.0)
		if d.Signal == models.SignalBuyToEnter || d.Signal == models.SignalSellToEnter {
			require.NotNil(t, d.Quantity)
			assert.Greater(t, *d.Quantity, 0.0)
			require.NotNil(t, d.ProfitTarget)
			require.NotNil(t, d.StopLoss)
			assert.Greater(t, *d.ProfitTarget, *d.StopLoss)
		}
	}
}
