package market

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camuig/llm-arena/internal/logger"
)

type fakeSource struct {
	name   string
	bars   map[string][]Bar
	prices map[string]float64
	err    error
	calls  []string
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) DailyBars(_ context.Context, symbol string) ([]Bar, error) {
	if f.err != nil {
		return nil, f.err
	}
	b, ok := f.bars[symbol]
	if !ok {
		return nil, errors.New("unknown symbol")
	}
	return b, nil
}

func (f *fakeSource) LastPrices(_ context.Context, symbols []string) (map[string]float64, error) {
	f.calls = append(f.calls, symbols...)
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]float64{}
	for _, s := range symbols {
		if p, ok := f.prices[s]; ok {
			out[s] = p
		}
	}
	return out, nil
}

func TestSyntheticDeterministic(t *testing.T) {
	fixed := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)
	a := &SyntheticSource{now: func() time.Time { return fixed }}
	b := &SyntheticSource{now: func() time.Time { return fixed }}

	barsA, err := a.DailyBars(context.Background(), "AAPL")
	require.NoError(t, err)
	barsB, _ := b.DailyBars(context.Background(), "AAPL")
	assert.Equal(t, barsA, barsB)
	assert.GreaterOrEqual(t, len(barsA), 250)

	for _, bar := range barsA {
		assert.NotEqual(t, time.Saturday, bar.Time.Weekday())
		assert.NotEqual(t, time.Sunday, bar.Time.Weekday())
		assert.GreaterOrEqual(t, bar.High, bar.Low)
	}

	other, _ := a.DailyBars(context.Background(), "NVDA")
	assert.NotEqual(t, barsA[0].Open, other[0].Open)

	prices, err := a.LastPrices(context.Background(), []string{"AAPL"})
	require.NoError(t, err)
	assert.Equal(t, barsA[len(barsA)-1].Close, prices["AAPL"])
}

func TestServiceFallsBackPerSymbol(t *testing.T) {
	primary := &fakeSource{
		name:   "primary",
		bars:   map[string][]Bar{"AAPL": risingBars(80), "NVDA": risingBars(10)},
		prices: map[string]float64{"AAPL": 250},
	}
	fallback := &fakeSource{
		name:   "fallback",
		bars:   map[string][]Bar{"NVDA": risingBars(60)},
		prices: map[string]float64{"NVDA": 42},
	}
	svc := NewService(primary, fallback, 10, logger.Discard())

	data, err := svc.GetDetailedMarketData(context.Background(), []string{"AAPL", "NVDA"})
	require.NoError(t, err)
	require.Len(t, data, 2)
	assert.Equal(t, 250.0, data["AAPL"].CurrentPrice)
	assert.Equal(t, 42.0, data["NVDA"].CurrentPrice)
	assert.Equal(t, []string{"NVDA"}, fallback.calls)
}

func TestServiceSkipsFailedSymbols(t *testing.T) {
	primary := &fakeSource{name: "primary", bars: map[string][]Bar{"AAPL": risingBars(60)}}
	svc := NewService(primary, nil, 10, logger.Discard())

	data, err := svc.GetDetailedMarketData(context.Background(), []string{"AAPL", "ZZZ"})
	require.NoError(t, err)
	assert.Contains(t, data, "AAPL")
	assert.NotContains(t, data, "ZZZ")
	assert.Equal(t, 159.0, data["AAPL"].CurrentPrice)
}

func TestServiceAllSymbolsFail(t *testing.T) {
	primary := &fakeSource{name: "primary", err: errors.New("down")}
	svc := NewService(primary, nil, 10, logger.Discard())

	_, err := svc.GetDetailedMarketData(context.Background(), []string{"AAPL"})
	assert.Error(t, err)

	_, err = svc.GetCurrentPrices(context.Background(), []string{"AAPL"})
	assert.Error(t, err)
}
