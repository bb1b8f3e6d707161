package market

import (
	"context"
	"fmt"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
)

// YahooSource reads daily bars and quotes from Yahoo Finance.
type YahooSource struct {
	lookbackDays int
}

func NewYahooSource() *YahooSource {
	return &YahooSource{lookbackDays: 365}
}

func (y *YahooSource) Name() string { return "yahoo" }

func (y *YahooSource) DailyBars(ctx context.Context, symbol string) ([]Bar, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -y.lookbackDays)

	iter := chart.Get(&chart.Params{
		Symbol:   symbol,
		Start:    datetime.New(&start),
		End:      datetime.New(&end),
		Interval: datetime.OneDay,
	})

	var bars []Bar
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b := iter.Bar()
		bars = append(bars, Bar{
			Time:   time.Unix(int64(b.Timestamp), 0).UTC(),
			Open:   b.Open.InexactFloat64(),
			High:   b.High.InexactFloat64(),
			Low:    b.Low.InexactFloat64(),
			Close:  b.Close.InexactFloat64(),
			Volume: float64(b.Volume),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	return bars, nil
}

func (y *YahooSource) LastPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	var lastErr error
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		q, err := quote.Get(symbol)
		if err != nil {
			lastErr = fmt.Errorf("yahoo quote %s: %w", symbol, err)
			continue
		}
		if q == nil || q.RegularMarketPrice <= 0 {
			continue
		}
		out[symbol] = q.RegularMarketPrice
	}
	if len(out) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return out, nil
}
