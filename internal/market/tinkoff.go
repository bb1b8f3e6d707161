package market

import (
	"context"

	"github.com/camuig/llm-arena/internal/broker"
)

// CandleClient is the market-data half of the Tinkoff connector.
type CandleClient interface {
	DailyCandles(ctx context.Context, ticker string, days int) ([]broker.Candle, error)
	LastPrices(ctx context.Context, tickers []string) (map[string]float64, error)
}

// TinkoffSource reads exchange candles through the broker connection.
type TinkoffSource struct {
	client CandleClient
	days   int
}

func NewTinkoffSource(client CandleClient) *TinkoffSource {
	return &TinkoffSource{client: client, days: 365}
}

func (t *TinkoffSource) Name() string { return "tinkoff" }

func (t *TinkoffSource) DailyBars(ctx context.Context, symbol string) ([]Bar, error) {
	candles, err := t.client.DailyCandles(ctx, symbol, t.days)
	if err != nil {
		return nil, err
	}
	bars := make([]Bar, len(candles))
	for i, c := range candles {
		bars[i] = Bar{Time: c.Time, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume}
	}
	return bars, nil
}

func (t *TinkoffSource) LastPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	return t.client.LastPrices(ctx, symbols)
}

var _ CandleClient = (*broker.TinkoffConnector)(nil)
