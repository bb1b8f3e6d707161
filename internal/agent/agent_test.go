package agent

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camuig/llm-arena/internal/broker"
	"github.com/camuig/llm-arena/internal/llm"
	"github.com/camuig/llm-arena/internal/logger"
	"github.com/camuig/llm-arena/internal/market"
	"github.com/camuig/llm-arena/internal/models"
	"github.com/camuig/llm-arena/internal/portfolio"
	"github.com/camuig/llm-arena/internal/storage"
)

type fakeMarket struct {
	snapshots map[string]market.Snapshot
	prices    map[string]float64
	err       error
}

func (f *fakeMarket) GetDetailedMarketData(_ context.Context, symbols []string) (map[string]market.Snapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]market.Snapshot{}
	for _, s := range symbols {
		if snap, ok := f.snapshots[s]; ok {
			out[s] = snap
		}
	}
	return out, nil
}

func (f *fakeMarket) GetCurrentPrices(_ context.Context, symbols []string) (map[string]float64, error) {
	out := map[string]float64{}
	for _, s := range symbols {
		if p, ok := f.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

type scriptedProvider struct {
	answer  models.DecisionList
	prompts []string
}

func (s *scriptedProvider) Name() string { return "scripted" }

func (s *scriptedProvider) GetTradeDecision(_ context.Context, prompt string, _ []string) models.DecisionList {
	s.prompts = append(s.prompts, prompt)
	return s.answer
}

type cycleRecord struct {
	decisions []models.TradeDecision
	err       error
}

type memoryJournal struct {
	cycles    []cycleRecord
	snapshots []models.PortfolioStatus
}

func (m *memoryJournal) RecordCycle(_ string, decisions []models.TradeDecision, err error) error {
	m.cycles = append(m.cycles, cycleRecord{decisions: decisions, err: err})
	return nil
}

func (m *memoryJournal) RecordSnapshot(_ string, status models.PortfolioStatus) error {
	m.snapshots = append(m.snapshots, status)
	return nil
}

type fixture struct {
	agent    *Agent
	provider *scriptedProvider
	market   *fakeMarket
	store    *storage.ExitPlanStore
	journal  *memoryJournal
	clock    *time.Time
}

func newFixture(t *testing.T, symbols []string, opts ...func(*Config)) *fixture {
	t.Helper()

	store, err := storage.NewExitPlanStore(filepath.Join(t.TempDir(), "plans.csv"))
	require.NoError(t, err)

	md := &fakeMarket{
		snapshots: map[string]market.Snapshot{
			"AAPL": {Symbol: "AAPL", CurrentPrice: 120, CurrentEMA20: 118.5, CurrentMACD: 1.25, CurrentRSI7: 61.2,
				MidPrices: []float64{117, 118.5, 120}, Weekly: market.LongTermContext{EMA20: 110, EMA50: 100}},
		},
		prices: map[string]float64{"AAPL": 120, "NVDA": 400},
	}
	clock := time.Date(2025, 1, 6, 15, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }

	pf := portfolio.New("agent-1", 10000, broker.NewPaperConnector(10000, logger.Discard()), md, store, logger.Discard())
	provider := &scriptedProvider{}
	journal := &memoryJournal{}

	cfg := Config{ID: "agent-1", Name: "Agent One", Symbols: symbols}
	for _, o := range opts {
		o(&cfg)
	}
	a := New(cfg, provider, md, pf, logger.Discard(), WithJournal(journal), WithClock(now))

	return &fixture{agent: a, provider: provider, market: md, store: store, journal: journal, clock: &clock}
}

func entry(symbol string, signal models.Signal, qty float64) models.TradeDecision {
	return models.TradeDecision{Symbol: symbol, Signal: signal, Confidence: 0.7, Justification: "x", Quantity: models.Float(qty)}
}

func TestDecideAndTradeBuyEndToEnd(t *testing.T) {
	f := newFixture(t, []string{"AAPL"})
	f.provider.answer = models.DecisionList{Decisions: []models.TradeDecision{{
		Symbol:        "AAPL",
		Signal:        models.SignalBuyToEnter,
		Quantity:      models.Float(5),
		Confidence:    0.7,
		Justification: "x",
		StopLoss:      models.Float(90),
		ProfitTarget:  models.Float(150),
	}}}

	require.NoError(t, f.agent.DecideAndTrade(context.Background()))

	history := f.agent.Portfolio().TradeHistory()
	require.Len(t, history, 1)
	assert.Equal(t, models.ActionBuy, history[0].Action)
	assert.Equal(t, 5.0, history[0].Quantity)
	assert.Equal(t, 120.0, history[0].Price)
	assert.Equal(t, models.TradeFilled, history[0].Status)

	pos, ok := f.agent.Portfolio().Position(context.Background(), "AAPL")
	require.True(t, ok)
	assert.Equal(t, 5.0, pos.Quantity)
	assert.Equal(t, 120.0, pos.AveragePrice)

	stored, err := f.store.Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]models.ExitPlan{"AAPL": {ProfitTarget: 150, StopLoss: 90}}, stored)

	require.Len(t, f.journal.cycles, 1)
	assert.NoError(t, f.journal.cycles[0].err)
	assert.Len(t, f.journal.snapshots, 1)
}

func TestDecideAndTradeSkips(t *testing.T) {
	f := newFixture(t, []string{"AAPL", "NVDA"})
	f.provider.answer = models.DecisionList{Decisions: []models.TradeDecision{
		{Symbol: "AAPL", Signal: models.SignalBuyToEnter, Confidence: 0.5},            // no quantity
		entry("TSLA", models.SignalBuyToEnter, 1),                                     // no price
		{Symbol: "NVDA", Signal: models.SignalClose},                                  // nothing to close
		{Symbol: "NVDA", Signal: models.SignalHold},                                   // log only
		{Symbol: "AAPL", Signal: models.Signal("short_squeeze")},                      // unknown
		{Symbol: "AAPL", Signal: models.SignalBuyToEnter, Quantity: models.Float(-2)}, // negative quantity
	}}

	require.NoError(t, f.agent.DecideAndTrade(context.Background()))
	assert.Empty(t, f.agent.Portfolio().TradeHistory())
}

func TestSellToEnterWithoutHoldingsIsSkipped(t *testing.T) {
	f := newFixture(t, []string{"AAPL"})
	f.provider.answer = models.DecisionList{Decisions: []models.TradeDecision{entry("AAPL", models.SignalSellToEnter, 3)}}

	require.NoError(t, f.agent.DecideAndTrade(context.Background()))
	history := f.agent.Portfolio().TradeHistory()
	require.Len(t, history, 1)
	assert.Equal(t, models.TradeSkipped, history[0].Status)
}

func TestEntryWithoutBothBoundsHasNoPlan(t *testing.T) {
	f := newFixture(t, []string{"AAPL"})
	d := entry("AAPL", models.SignalBuyToEnter, 2)
	d.StopLoss = models.Float(100)
	f.provider.answer = models.DecisionList{Decisions: []models.TradeDecision{d}}

	require.NoError(t, f.agent.DecideAndTrade(context.Background()))
	assert.Empty(t, f.agent.Portfolio().ExitPlans())
	assert.Len(t, f.agent.Portfolio().TradeHistory(), 1)
}

func TestCloseSellsWholePosition(t *testing.T) {
	f := newFixture(t, []string{"AAPL"})
	ctx := context.Background()

	d := entry("AAPL", models.SignalBuyToEnter, 4)
	d.StopLoss, d.ProfitTarget = models.Float(90), models.Float(150)
	f.provider.answer = models.DecisionList{Decisions: []models.TradeDecision{d}}
	require.NoError(t, f.agent.DecideAndTrade(ctx))

	f.market.prices["AAPL"] = 130
	f.provider.answer = models.DecisionList{Decisions: []models.TradeDecision{{Symbol: "AAPL", Signal: models.SignalClose}}}
	require.NoError(t, f.agent.DecideAndTrade(ctx))

	history := f.agent.Portfolio().TradeHistory()
	require.Len(t, history, 2)
	assert.Equal(t, models.ActionSell, history[1].Action)
	assert.Equal(t, 4.0, history[1].Quantity)
	assert.Equal(t, 130.0, history[1].Price)

	_, ok := f.agent.Portfolio().Position(ctx, "AAPL")
	assert.False(t, ok)
	stored, _ := f.store.Load()
	assert.Empty(t, stored)
}

func TestNoDecisionsIsNoop(t *testing.T) {
	f := newFixture(t, []string{"AAPL"})
	f.provider.answer = models.DecisionList{}

	require.NoError(t, f.agent.DecideAndTrade(context.Background()))
	assert.Empty(t, f.agent.Portfolio().TradeHistory())
	require.Len(t, f.journal.cycles, 1)
	assert.Empty(t, f.journal.cycles[0].decisions)
}

func TestFallbackDecisionIsHold(t *testing.T) {
	f := newFixture(t, []string{"AAPL"})
	f.provider.answer = llm.Fallback("boom")

	require.NoError(t, f.agent.DecideAndTrade(context.Background()))
	assert.Empty(t, f.agent.Portfolio().TradeHistory())
}

func TestMarketFailureFailsCycle(t *testing.T) {
	f := newFixture(t, []string{"AAPL"})
	f.market.err = errors.New("feed down")

	err := f.agent.DecideAndTrade(context.Background())
	require.Error(t, err)
	assert.Empty(t, f.provider.prompts)
	require.Len(t, f.journal.cycles, 1)
	assert.Error(t, f.journal.cycles[0].err)
}

func TestCheckExitConditions(t *testing.T) {
	f := newFixture(t, []string{"AAPL"})
	ctx := context.Background()
	pf := f.agent.Portfolio()

	_, err := pf.ExecuteTrade(ctx, "AAPL", models.ActionBuy, 5, 120, &models.ExitPlan{ProfitTarget: 150, StopLoss: 90})
	require.NoError(t, err)

	assert.Equal(t, 0, f.agent.CheckExitConditions(ctx))

	f.market.prices["AAPL"] = 155
	assert.Equal(t, 1, f.agent.CheckExitConditions(ctx))
	_, ok := pf.Position(ctx, "AAPL")
	assert.False(t, ok)
}

func TestMechanicalExitChecksRunBeforePrompt(t *testing.T) {
	f := newFixture(t, []string{"AAPL"}, func(c *Config) { c.MechanicalExitChecks = true })
	ctx := context.Background()
	pf := f.agent.Portfolio()

	_, err := pf.ExecuteTrade(ctx, "AAPL", models.ActionBuy, 5, 120, &models.ExitPlan{ProfitTarget: 150, StopLoss: 90})
	require.NoError(t, err)
	f.market.prices["AAPL"] = 80

	require.NoError(t, f.agent.DecideAndTrade(ctx))
	history := pf.TradeHistory()
	require.Len(t, history, 2)
	assert.Equal(t, models.ActionSell, history[1].Action)
}

func TestState(t *testing.T) {
	f := newFixture(t, []string{"AAPL"})
	state := f.agent.State(context.Background())
	assert.Equal(t, "agent-1", state.AgentID)
	assert.Equal(t, "Agent One", state.Name)
	assert.Equal(t, "scripted", state.LLMProvider)
	assert.Equal(t, 10000.0, state.Portfolio.TotalValue)
	assert.Empty(t, state.TradeHistory)
}
