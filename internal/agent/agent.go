package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/camuig/llm-arena/internal/llm"
	"github.com/camuig/llm-arena/internal/logger"
	"github.com/camuig/llm-arena/internal/market"
	"github.com/camuig/llm-arena/internal/metrics"
	"github.com/camuig/llm-arena/internal/models"
	"github.com/camuig/llm-arena/internal/portfolio"
)

// Journal keeps a durable trace of decision cycles.
type Journal interface {
	RecordCycle(agentID string, decisions []models.TradeDecision, cycleErr error) error
	RecordSnapshot(agentID string, status models.PortfolioStatus) error
}

type Config struct {
	ID      string
	Name    string
	Symbols []string
	// Images are chart references attached to every prompt.
	Images []string
	// MechanicalExitChecks closes positions locally when an exit-plan bound
	// is crossed, before the model is consulted.
	MechanicalExitChecks bool
}

type Option func(*Agent)

func WithJournal(j Journal) Option { return func(a *Agent) { a.journal = j } }

func WithMetrics(m *metrics.Metrics) Option { return func(a *Agent) { a.metrics = m } }

func WithClock(now func() time.Time) Option { return func(a *Agent) { a.now = now } }

// Agent runs decision cycles: prompt the model with market and account state,
// then route its decisions to the portfolio.
type Agent struct {
	cfg       Config
	provider  llm.Provider
	market    market.Provider
	portfolio *portfolio.Portfolio

	journal Journal
	metrics *metrics.Metrics
	logger  *logger.Logger
	now     func() time.Time
	started time.Time
}

func New(cfg Config, provider llm.Provider, md market.Provider, pf *portfolio.Portfolio, log *logger.Logger, opts ...Option) *Agent {
	a := &Agent{
		cfg:       cfg,
		provider:  provider,
		market:    md,
		portfolio: pf,
		logger:    log.With("agent", cfg.ID),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.started = a.now()
	return a
}

func (a *Agent) ID() string { return a.cfg.ID }

func (a *Agent) Name() string { return a.cfg.Name }

func (a *Agent) Portfolio() *portfolio.Portfolio { return a.portfolio }

// DecideAndTrade runs one decision cycle. A model answer with no decisions
// is a no-op; per-decision problems are logged and skipped. The returned
// error covers failures to build the prompt.
func (a *Agent) DecideAndTrade(ctx context.Context) (err error) {
	var decisions []models.TradeDecision
	defer func() {
		if a.journal != nil {
			if jerr := a.journal.RecordCycle(a.cfg.ID, decisions, err); jerr != nil {
				a.logger.Warn("journal cycle", "error", jerr)
			}
		}
	}()

	if a.cfg.MechanicalExitChecks {
		a.CheckExitConditions(ctx)
	}

	status := a.portfolio.GetStatus(ctx)
	if a.journal != nil {
		if jerr := a.journal.RecordSnapshot(a.cfg.ID, status); jerr != nil {
			a.logger.Warn("journal snapshot", "error", jerr)
		}
	}

	snapshots, err := a.market.GetDetailedMarketData(ctx, a.cfg.Symbols)
	if err != nil {
		return fmt.Errorf("market data: %w", err)
	}

	prompt := a.buildPrompt(status, snapshots)

	list := a.provider.GetTradeDecision(ctx, prompt, a.cfg.Images)
	if llm.IsFallback(list) {
		a.metrics.ObserveFallback(a.provider.Name())
	}
	decisions = list.Decisions

	if len(decisions) == 0 {
		a.logger.Warn("model provided no decisions, skipping trade cycle")
		return nil
	}

	a.execute(ctx, decisions)
	return nil
}

// State aggregates the agent's reporting view.
func (a *Agent) State(ctx context.Context) models.AgentState {
	return models.AgentState{
		AgentID:      a.cfg.ID,
		Name:         a.cfg.Name,
		LLMProvider:  a.provider.Name(),
		Portfolio:    a.portfolio.GetStatus(ctx),
		TradeHistory: a.portfolio.TradeHistory(),
	}
}
