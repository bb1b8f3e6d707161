package market

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/camuig/llm-arena/internal/logger"
)

// minBars is the shortest daily history a live source must return before its
// data is preferred over the fallback source.
const minBars = 50

type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Snapshot is the per-symbol indicator view rendered into the prompt. Series
// are ordered oldest to newest.
type Snapshot struct {
	Symbol       string
	CurrentPrice float64
	CurrentEMA20 float64
	CurrentMACD  float64
	CurrentRSI7  float64

	MidPrices   []float64
	EMA20Series []float64
	MACDSeries  []float64
	RSI7Series  []float64
	RSI14Series []float64

	Weekly LongTermContext
}

type LongTermContext struct {
	EMA20         float64
	EMA50         float64
	ATR3          float64
	ATR14         float64
	CurrentVolume float64
	AverageVolume float64
	MACDSeries    []float64
	RSI14Series   []float64
}

// Provider is the market-data boundary used by agents.
type Provider interface {
	GetDetailedMarketData(ctx context.Context, symbols []string) (map[string]Snapshot, error)
	GetCurrentPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// Source yields raw daily bars and last prices for symbols.
type Source interface {
	Name() string
	DailyBars(ctx context.Context, symbol string) ([]Bar, error)
	LastPrices(ctx context.Context, symbols []string) (map[string]float64, error)
}

// Service computes snapshots from a primary source and falls back to a
// secondary one per symbol when the primary fails or returns too little data.
type Service struct {
	primary  Source
	fallback Source
	window   int
	logger   *logger.Logger
}

func NewService(primary, fallback Source, window int, log *logger.Logger) *Service {
	if window <= 0 {
		window = 10
	}
	return &Service{primary: primary, fallback: fallback, window: window, logger: log}
}

func (s *Service) GetDetailedMarketData(ctx context.Context, symbols []string) (map[string]Snapshot, error) {
	snapshots := make([]Snapshot, len(symbols))
	ok := make([]bool, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, symbol := range symbols {
		g.Go(func() error {
			bars, err := s.dailyBars(gctx, symbol)
			if err != nil {
				s.logger.Warn("market data unavailable", "symbol", symbol, "error", err)
				return nil
			}
			snap, err := ComputeSnapshot(symbol, bars, s.window)
			if err != nil {
				s.logger.Warn("compute indicators", "symbol", symbol, "error", err)
				return nil
			}
			snapshots[i] = snap
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]Snapshot, len(symbols))
	for i, symbol := range symbols {
		if ok[i] {
			out[symbol] = snapshots[i]
		}
	}
	if len(out) == 0 && len(symbols) > 0 {
		return nil, fmt.Errorf("no market data for %d symbols", len(symbols))
	}

	prices, err := s.GetCurrentPrices(ctx, symbols)
	if err == nil {
		for symbol, snap := range out {
			if p, found := prices[symbol]; found && p > 0 {
				snap.CurrentPrice = p
				out[symbol] = snap
			}
		}
	}
	return out, nil
}

func (s *Service) dailyBars(ctx context.Context, symbol string) ([]Bar, error) {
	bars, err := s.primary.DailyBars(ctx, symbol)
	if err == nil && len(bars) >= minBars {
		return bars, nil
	}
	if s.fallback == nil {
		if err == nil {
			err = fmt.Errorf("only %d bars from %s", len(bars), s.primary.Name())
		}
		return nil, err
	}
	s.logger.Warn("using fallback market data",
		"symbol", symbol, "source", s.primary.Name(), "fallback", s.fallback.Name(),
		"bars", len(bars), "error", err)
	return s.fallback.DailyBars(ctx, symbol)
}

func (s *Service) GetCurrentPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	prices, err := s.primary.LastPrices(ctx, symbols)
	if err != nil {
		s.logger.Warn("last prices unavailable", "source", s.primary.Name(), "error", err)
		prices = map[string]float64{}
	}

	var missing []string
	for _, symbol := range symbols {
		if p, ok := prices[symbol]; !ok || p <= 0 {
			missing = append(missing, symbol)
		}
	}
	if len(missing) > 0 && s.fallback != nil {
		fb, fbErr := s.fallback.LastPrices(ctx, missing)
		if fbErr == nil {
			for symbol, p := range fb {
				prices[symbol] = p
			}
		}
	}
	if len(prices) == 0 && err != nil {
		return nil, err
	}
	return prices, nil
}
