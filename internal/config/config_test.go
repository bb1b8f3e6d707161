package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "NVDA", "AMD"}, cfg.Trading.Symbols)
	assert.Equal(t, 5*time.Minute, cfg.TradingInterval())
	assert.Equal(t, ProviderMock, cfg.LLM.Provider)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.OllamaURL)
	assert.Equal(t, BrokerPaper, cfg.Broker.Kind)
	require.Len(t, cfg.Agents, 2)
	assert.Equal(t, "mock-gpt5", cfg.Agents[0].ID)
	assert.Equal(t, "Mock GPT-5", cfg.Agents[0].Name)
	assert.Equal(t, "mock-gemini", cfg.Agents[1].ID)
	assert.Equal(t, "Mock Gemini 2.5", cfg.Agents[1].Name)
	assert.Equal(t, 10000.0, cfg.Agents[1].InitialCash)
}

func TestLoadOllamaDefaultAgent(t *testing.T) {
	path := writeConfig(t, "llm:\n  provider: ollama\n  model: llama3:8b\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Agents, 1)
	assert.Equal(t, "ollama-llama3-8b", cfg.Agents[0].ID)
	assert.Equal(t, "Ollama (llama3:8b)", cfg.Agents[0].Name)
	assert.Equal(t, "data/exit_plans_ollama-llama3-8b.csv", cfg.ExitPlanPath(cfg.Agents[0].ID))
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("OLLAMA_MODEL", "qwen3:4b")
	t.Setenv("TRADE_SYMBOLS", "tsla, msft ,")
	t.Setenv("LOOP_INTERVAL_SECONDS", "60")
	t.Setenv("EXIT_PLAN_CSV_PATH", "/tmp/plans.csv")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, []string{"TSLA", "MSFT"}, cfg.Trading.Symbols)
	assert.Equal(t, time.Minute, cfg.TradingInterval())
	assert.Equal(t, "ollama-qwen3-4b", cfg.Agents[0].ID)
	assert.Equal(t, "/tmp/plans.csv", cfg.ExitPlanPath("ollama-qwen3-4b"))
}

func TestLoadInvalidIntervalEnv(t *testing.T) {
	t.Setenv("LOOP_INTERVAL_SECONDS", "soon")
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestExitPlanPathSharedFileSuffixed(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{ExitPlanPath: "data/plans.csv"}}
	cfg.Agents = []AgentConfig{{ID: "a"}, {ID: "b"}}
	assert.Equal(t, "data/plans_a.csv", cfg.ExitPlanPath("a"))

	cfg.Agents = cfg.Agents[:1]
	assert.Equal(t, "data/plans.csv", cfg.ExitPlanPath("a"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad interval", "trading:\n  interval: soon\n"},
		{"unknown provider", "agents:\n  - id: x\n    provider: magic\n"},
		{"openai without key", "agents:\n  - id: x\n    provider: openai\n"},
		{"duplicate agents", "agents:\n  - id: x\n  - id: x\n"},
		{"tinkoff without token", "broker:\n  kind: tinkoff\n"},
		{"inverted session", "market:\n  open: \"17:00\"\n  close: \"09:00\"\n"},
		{"bad weekday", "market:\n  weekdays: [funday]\n"},
		{"telegram without token", "telegram:\n  enabled: true\n  chat_id: 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestSessionHelpers(t *testing.T) {
	cfg, err := Load(writeConfig(t, "market:\n  weekdays: [Monday, wed]\n"))
	require.NoError(t, err)

	openMin, closeMin := cfg.SessionMinutes()
	assert.Equal(t, 9*60+30, openMin)
	assert.Equal(t, 16*60, closeMin)

	days, err := cfg.TradingWeekdays()
	require.NoError(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, days)
	assert.NotNil(t, cfg.MarketLocation())
}
