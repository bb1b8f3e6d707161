package broker

import (
	"context"
	"fmt"
	"sort"
	"time"

	pb "github.com/russianinvestments/invest-api-go-sdk/proto"
)

type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// DailyCandles returns up to `days` calendar days of daily candles for a
// ticker, oldest first.
func (tc *TinkoffConnector) DailyCandles(ctx context.Context, ticker string, days int) ([]Candle, error) {
	uid, err := tc.ResolveTickerToUID(ticker)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	from := now.AddDate(0, 0, -days)

	md := tc.client.NewMarketDataServiceClient()
	resp, err := md.GetCandles(
		uid,
		pb.CandleInterval_CANDLE_INTERVAL_DAY,
		from, now,
		pb.GetCandlesRequest_CANDLE_SOURCE_EXCHANGE,
		0,
	)
	if err != nil {
		return nil, fmt.Errorf("get candles %s: %w", ticker, err)
	}

	out := make([]Candle, 0, len(resp.GetCandles()))
	for _, c := range resp.GetCandles() {
		out = append(out, Candle{
			Time:   c.GetTime().AsTime(),
			Open:   c.GetOpen().ToFloat(),
			High:   c.GetHigh().ToFloat(),
			Low:    c.GetLow().ToFloat(),
			Close:  c.GetClose().ToFloat(),
			Volume: float64(c.GetVolume()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// LastPrices returns the last traded price per ticker. Tickers that cannot be
// resolved are left out.
func (tc *TinkoffConnector) LastPrices(ctx context.Context, tickers []string) (map[string]float64, error) {
	uids := make([]string, 0, len(tickers))
	for _, t := range tickers {
		uid, err := tc.ResolveTickerToUID(t)
		if err != nil {
			tc.logger.Debug("resolve ticker failed, skipping", "ticker", t, "error", err)
			continue
		}
		uids = append(uids, uid)
	}
	if len(uids) == 0 {
		return map[string]float64{}, nil
	}

	md := tc.client.NewMarketDataServiceClient()
	resp, err := md.GetLastPrices(uids)
	if err != nil {
		return nil, fmt.Errorf("get last prices: %w", err)
	}

	prices := make(map[string]float64, len(uids))
	for _, lp := range resp.GetLastPrices() {
		ticker, err := tc.resolveInstrumentUID(lp.GetInstrumentUid())
		if err != nil {
			continue
		}
		prices[ticker] = lp.GetPrice().ToFloat()
	}
	return prices, nil
}
