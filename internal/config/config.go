package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderMock   = "mock"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	BrokerPaper   = "paper"
	BrokerTinkoff = "tinkoff"

	MarketSynthetic = "synthetic"
	MarketYahoo     = "yahoo"
	MarketTinkoff   = "tinkoff"
	MarketMOEX      = "moex"

	agentPlaceholder = "{agent}"
)

type Config struct {
	Trading  TradingConfig  `yaml:"trading"`
	Market   MarketConfig   `yaml:"market"`
	LLM      LLMConfig      `yaml:"llm"`
	Agents   []AgentConfig  `yaml:"agents"`
	Broker   BrokerConfig   `yaml:"broker"`
	Tinkoff  TinkoffConfig  `yaml:"tinkoff"`
	Storage  StorageConfig  `yaml:"storage"`
	Telegram TelegramConfig `yaml:"telegram"`
	Web      WebConfig      `yaml:"web"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type TradingConfig struct {
	Symbols              []string `yaml:"symbols"`
	Interval             string   `yaml:"interval"`
	InitialCash          float64  `yaml:"initial_cash"`
	MechanicalExitChecks bool     `yaml:"mechanical_exit_checks"`
	SeriesWindow         int      `yaml:"series_window"`
}

type MarketConfig struct {
	Source     string   `yaml:"source"`
	Timezone   string   `yaml:"timezone"`
	Open       string   `yaml:"open"`
	Close      string   `yaml:"close"`
	Weekdays   []string `yaml:"weekdays"`
	AlwaysOpen bool     `yaml:"always_open"`
}

type LLMConfig struct {
	Provider       string   `yaml:"provider"`
	OllamaURL      string   `yaml:"ollama_url"`
	Model          string   `yaml:"model"`
	OpenAIAPIKey   string   `yaml:"openai_api_key"`
	OpenAIBaseURL  string   `yaml:"openai_base_url"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	AuditLogPath   string   `yaml:"audit_log_path"`
	Images         []string `yaml:"images"`
	MockSeed       int64    `yaml:"mock_seed"`
}

type AgentConfig struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	InitialCash float64 `yaml:"initial_cash"`
}

type BrokerConfig struct {
	Kind string `yaml:"kind"`
}

type TinkoffConfig struct {
	Token     string `yaml:"token"`
	Sandbox   bool   `yaml:"sandbox"`
	AccountID string `yaml:"account_id"`
}

type StorageConfig struct {
	ExitPlanPath string `yaml:"exit_plan_path"`
	DatabasePath string `yaml:"database_path"`
}

type TelegramConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

type WebConfig struct {
	Port int `yaml:"port"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads the YAML file at path, applies environment overrides (a .env
// file in the working directory is honored), fills defaults and validates.
// A missing file is not an error: the configuration then comes from the
// environment and defaults alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	_ = godotenv.Load()
	if err := applyEnv(cfg); err != nil {
		return nil, fmt.Errorf("apply env: %w", err)
	}

	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = strings.ToLower(v)
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		cfg.LLM.OllamaURL = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.OpenAIAPIKey = v
	}
	if v := os.Getenv("EXIT_PLAN_CSV_PATH"); v != "" {
		cfg.Storage.ExitPlanPath = v
	}
	if v := os.Getenv("TRADE_SYMBOLS"); v != "" {
		cfg.Trading.Symbols = splitList(v)
	}
	if v := os.Getenv("LOOP_INTERVAL_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LOOP_INTERVAL_SECONDS %q: %w", v, err)
		}
		cfg.Trading.Interval = (time.Duration(secs) * time.Second).String()
	}
	if v := os.Getenv("TINKOFF_TOKEN"); v != "" {
		cfg.Tinkoff.Token = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = v
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.ToUpper(strings.TrimSpace(part)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func setDefaults(cfg *Config) {
	if len(cfg.Trading.Symbols) == 0 {
		cfg.Trading.Symbols = []string{"AAPL", "NVDA", "AMD"}
	}
	if cfg.Trading.Interval == "" {
		cfg.Trading.Interval = "5m"
	}
	if cfg.Trading.InitialCash == 0 {
		cfg.Trading.InitialCash = 10000
	}
	if cfg.Trading.SeriesWindow == 0 {
		cfg.Trading.SeriesWindow = 10
	}
	if cfg.Market.Source == "" {
		cfg.Market.Source = MarketSynthetic
	}
	if cfg.Market.Timezone == "" {
		cfg.Market.Timezone = "America/New_York"
	}
	if cfg.Market.Open == "" {
		cfg.Market.Open = "09:30"
	}
	if cfg.Market.Close == "" {
		cfg.Market.Close = "16:00"
	}
	if len(cfg.Market.Weekdays) == 0 {
		cfg.Market.Weekdays = []string{"mon", "tue", "wed", "thu", "fri"}
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderMock
	}
	if cfg.LLM.OllamaURL == "" {
		cfg.LLM.OllamaURL = "http://localhost:11434"
	}
	if cfg.LLM.Model == "" {
		switch cfg.LLM.Provider {
		case ProviderOpenAI:
			cfg.LLM.Model = "gpt-4o-mini"
		default:
			cfg.LLM.Model = "qwen3:4b"
		}
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 120
	}
	if cfg.LLM.AuditLogPath == "" {
		cfg.LLM.AuditLogPath = "data/llm_prompts.log"
	}
	if cfg.Broker.Kind == "" {
		cfg.Broker.Kind = BrokerPaper
	}
	if cfg.Storage.ExitPlanPath == "" {
		cfg.Storage.ExitPlanPath = "data/exit_plans_" + agentPlaceholder + ".csv"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "data/arena.db"
	}
	if cfg.Web.Port == 0 {
		cfg.Web.Port = 8000
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if len(cfg.Agents) == 0 {
		cfg.Agents = defaultAgents(cfg.LLM.Provider, cfg.LLM.Model)
	}
	for i := range cfg.Agents {
		a := &cfg.Agents[i]
		if a.Provider == "" {
			a.Provider = cfg.LLM.Provider
		}
		if a.Model == "" {
			a.Model = cfg.LLM.Model
		}
		if a.Name == "" {
			a.Name = a.ID
		}
		if a.InitialCash == 0 {
			a.InitialCash = cfg.Trading.InitialCash
		}
	}
}

func defaultAgents(provider, model string) []AgentConfig {
	switch provider {
	case ProviderOllama:
		return []AgentConfig{{
			ID:       "ollama-" + strings.ReplaceAll(model, ":", "-"),
			Name:     fmt.Sprintf("Ollama (%s)", model),
			Provider: ProviderOllama,
			Model:    model,
		}}
	case ProviderOpenAI:
		return []AgentConfig{{
			ID:       "openai-" + strings.ReplaceAll(model, ":", "-"),
			Name:     fmt.Sprintf("OpenAI (%s)", model),
			Provider: ProviderOpenAI,
			Model:    model,
		}}
	default:
		return []AgentConfig{
			{ID: "mock-gpt5", Name: "Mock GPT-5", Provider: ProviderMock},
			{ID: "mock-gemini", Name: "Mock Gemini 2.5", Provider: ProviderMock},
		}
	}
}

func (c *Config) Validate() error {
	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("trading.symbols must not be empty")
	}
	if d, err := time.ParseDuration(c.Trading.Interval); err != nil {
		return fmt.Errorf("invalid trading.interval %q: %w", c.Trading.Interval, err)
	} else if d <= 0 {
		return fmt.Errorf("trading.interval must be positive")
	}
	if c.Trading.InitialCash <= 0 {
		return fmt.Errorf("trading.initial_cash must be positive")
	}

	switch c.Market.Source {
	case MarketSynthetic, MarketYahoo, MarketTinkoff, MarketMOEX:
	default:
		return fmt.Errorf("unknown market.source %q", c.Market.Source)
	}
	open, err := parseClock(c.Market.Open)
	if err != nil {
		return fmt.Errorf("invalid market.open: %w", err)
	}
	closing, err := parseClock(c.Market.Close)
	if err != nil {
		return fmt.Errorf("invalid market.close: %w", err)
	}
	if open >= closing {
		return fmt.Errorf("market.open must be before market.close")
	}
	if _, err := c.TradingWeekdays(); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("agent id is required")
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
		switch a.Provider {
		case ProviderMock, ProviderOllama:
		case ProviderOpenAI:
			if c.LLM.OpenAIAPIKey == "" {
				return fmt.Errorf("llm.openai_api_key is required for agent %q", a.ID)
			}
		default:
			return fmt.Errorf("unknown provider %q for agent %q", a.Provider, a.ID)
		}
	}

	switch c.Broker.Kind {
	case BrokerPaper:
	case BrokerTinkoff:
		if c.Tinkoff.Token == "" {
			return fmt.Errorf("tinkoff.token is required for the tinkoff broker")
		}
	default:
		return fmt.Errorf("unknown broker.kind %q", c.Broker.Kind)
	}
	if c.Market.Source == MarketTinkoff && c.Tinkoff.Token == "" {
		return fmt.Errorf("tinkoff.token is required for the tinkoff market source")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

func (c *Config) IsSandbox() bool {
	return c.Tinkoff.Sandbox
}

func (c *Config) MarketLocation() *time.Location {
	loc, err := time.LoadLocation(c.Market.Timezone)
	if err != nil {
		loc = time.FixedZone("EST", -5*60*60)
	}
	return loc
}

// SessionMinutes returns the trading window as minutes after midnight.
func (c *Config) SessionMinutes() (openMin, closeMin int) {
	openMin, _ = parseClock(c.Market.Open)
	closeMin, _ = parseClock(c.Market.Close)
	return openMin, closeMin
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

func (c *Config) TradingWeekdays() ([]time.Weekday, error) {
	days := make([]time.Weekday, 0, len(c.Market.Weekdays))
	for _, name := range c.Market.Weekdays {
		key := strings.ToLower(strings.TrimSpace(name))
		if len(key) > 3 {
			key = key[:3]
		}
		d, ok := weekdayNames[key]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q in market.weekdays", name)
		}
		days = append(days, d)
	}
	return days, nil
}

func (c *Config) TradingInterval() time.Duration {
	d, _ := time.ParseDuration(c.Trading.Interval)
	return d
}

func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// ExitPlanPath resolves the exit-plan CSV path for one agent. The {agent}
// placeholder is replaced by the agent id; a path without the placeholder is
// suffixed with the id when several agents are configured.
func (c *Config) ExitPlanPath(agentID string) string {
	path := c.Storage.ExitPlanPath
	if strings.Contains(path, agentPlaceholder) {
		return strings.ReplaceAll(path, agentPlaceholder, agentID)
	}
	if len(c.Agents) <= 1 {
		return path
	}
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + agentID + ext
}

func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", v)
	}
	return t.Hour()*60 + t.Minute(), nil
}
