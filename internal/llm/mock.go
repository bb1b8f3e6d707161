package llm

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/camuig/llm-arena/internal/models"
)

var mockSignals = []models.Signal{
	models.SignalBuyToEnter,
	models.SignalSellToEnter,
	models.SignalHold,
	models.SignalClose,
}

// MockProvider ignores the prompt and answers with one random, schema-valid
// decision for a configured symbol.
type MockProvider struct {
	name    string
	symbols []string

	mu  sync.Mutex
	rng *rand.Rand
}

func NewMockProvider(name string, symbols []string, seed int64) *MockProvider {
	return &MockProvider{
		name:    name,
		symbols: append([]string(nil), symbols...),
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (m *MockProvider) Name() string {
	return "mock:" + m.name
}

func (m *MockProvider) GetTradeDecision(ctx context.Context, _ string, _ []string) models.DecisionList {
	if err := ctx.Err(); err != nil {
		return Fallback(err.Error())
	}
	if len(m.symbols) == 0 {
		return Fallback("no symbols configured")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	symbol := m.symbols[m.rng.Intn(len(m.symbols))]
	signal := mockSignals[m.rng.Intn(len(mockSignals))]

	d := models.TradeDecision{
		Symbol:        symbol,
		Signal:        signal,
		Confidence:    round2(0.5 + m.rng.Float64()*0.5),
		Justification: "This is a mock decision based on random choice. The LLM observed a simulated pattern and decided to act.",
	}

	if signal == models.SignalBuyToEnter || signal == models.SignalSellToEnter {
		stop := round2(50 + m.rng.Float64()*150)
		d.StopLoss = models.Float(stop)
		d.ProfitTarget = models.Float(round2(stop * (1.1 + m.rng.Float64()*0.3)))
		d.Leverage = models.Float(1)
		d.RiskUSD = models.Float(round2(50 + m.rng.Float64()*150))
		d.Quantity = models.Float(float64(1 + m.rng.Intn(10)))
		d.InvalidationCondition = models.String(fmt.Sprintf("%s breaks below %.2f", symbol, stop))
	}

	return models.DecisionList{Decisions: []models.TradeDecision{d}}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
