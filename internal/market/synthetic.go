package market

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"
)

const syntheticDays = 370

// SyntheticSource produces a deterministic random walk per symbol. It is
// used offline and as the fallback when a live source has too little history.
type SyntheticSource struct {
	now func() time.Time
}

func NewSyntheticSource() *SyntheticSource {
	return &SyntheticSource{now: time.Now}
}

func (s *SyntheticSource) Name() string { return "synthetic" }

func (s *SyntheticSource) DailyBars(_ context.Context, symbol string) ([]Bar, error) {
	return s.generate(symbol), nil
}

func (s *SyntheticSource) LastPrices(_ context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		bars := s.generate(symbol)
		if len(bars) > 0 {
			out[symbol] = bars[len(bars)-1].Close
		}
	}
	return out, nil
}

func (s *SyntheticSource) generate(symbol string) []Bar {
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	now := s.now().UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, 0, -syntheticDays)

	price := 50 + rng.Float64()*250
	bars := make([]Bar, 0, syntheticDays)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		open := price
		change := rng.NormFloat64() * 0.02
		closePrice := math.Max(1, open*(1+change))
		high := math.Max(open, closePrice) * (1 + rng.Float64()*0.01)
		low := math.Min(open, closePrice) * (1 - rng.Float64()*0.01)
		bars = append(bars, Bar{
			Time:   d,
			Open:   round4(open),
			High:   round4(high),
			Low:    round4(low),
			Close:  round4(closePrice),
			Volume: math.Round(1e6 + rng.Float64()*4e6),
		})
		price = closePrice
	}
	return bars
}
