package market

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const (
	moexBaseURL = "https://iss.moex.com"
	moexBoard   = "/iss/engines/stock/markets/shares/boards/TQBR/securities"
)

// MOEXSource reads daily candles and last prices from the Moscow Exchange
// ISS API (TQBR board). It needs no credentials.
type MOEXSource struct {
	client       *resty.Client
	lookbackDays int
	now          func() time.Time
}

func NewMOEXSource(baseURL string) *MOEXSource {
	if baseURL == "" {
		baseURL = moexBaseURL
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(30 * time.Second)
	return &MOEXSource{client: client, lookbackDays: 365, now: time.Now}
}

func (m *MOEXSource) Name() string { return "moex" }

// DailyBars pages through the candles table; ISS caps one response at 500
// rows.
func (m *MOEXSource) DailyBars(ctx context.Context, symbol string) ([]Bar, error) {
	from := m.now().AddDate(0, 0, -m.lookbackDays).Format(time.DateOnly)

	var bars []Bar
	for start := 0; ; {
		resp, err := m.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"interval": "24",
				"from":     from,
				"start":    fmt.Sprint(start),
				"iss.meta": "off",
			}).
			Get(moexBoard + "/" + symbol + "/candles.json")
		if err != nil {
			return nil, fmt.Errorf("moex candles %s: %w", symbol, err)
		}
		if resp.IsError() {
			return nil, fmt.Errorf("moex candles %s: status %d", symbol, resp.StatusCode())
		}

		page, err := parseCandles(resp.Body())
		if err != nil {
			return nil, fmt.Errorf("moex candles %s: %w", symbol, err)
		}
		bars = append(bars, page...)
		if len(page) < 500 {
			break
		}
		start += len(page)
	}
	return bars, nil
}

func parseCandles(body []byte) ([]Bar, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid ISS response")
	}
	table := gjson.GetBytes(body, "candles")
	cols := columnIndex(table.Get("columns"))
	for _, c := range []string{"open", "close", "high", "low", "volume", "begin"} {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("candles table lacks %q column", c)
		}
	}

	var bars []Bar
	for _, row := range table.Get("data").Array() {
		cells := row.Array()
		at := func(name string) gjson.Result {
			i := cols[name]
			if i >= len(cells) {
				return gjson.Result{}
			}
			return cells[i]
		}
		ts, err := time.Parse(time.DateTime, at("begin").String())
		if err != nil {
			continue
		}
		bars = append(bars, Bar{
			Time:   ts,
			Open:   at("open").Float(),
			High:   at("high").Float(),
			Low:    at("low").Float(),
			Close:  at("close").Float(),
			Volume: at("volume").Float(),
		})
	}
	return bars, nil
}

func (m *MOEXSource) LastPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}
	resp, err := m.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"securities":         strings.Join(symbols, ","),
			"iss.meta":           "off",
			"iss.only":           "marketdata",
			"marketdata.columns": "SECID,LAST",
		}).
		Get(moexBoard + ".json")
	if err != nil {
		return nil, fmt.Errorf("moex last prices: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("moex last prices: status %d", resp.StatusCode())
	}
	return parseLastPrices(resp.Body()), nil
}

// parseLastPrices skips rows without a LAST value (suspended trading).
func parseLastPrices(body []byte) map[string]float64 {
	table := gjson.GetBytes(body, "marketdata")
	cols := columnIndex(table.Get("columns"))
	secid, okID := cols["SECID"]
	last, okLast := cols["LAST"]

	out := map[string]float64{}
	if !okID || !okLast {
		return out
	}
	for _, row := range table.Get("data").Array() {
		cells := row.Array()
		if secid >= len(cells) || last >= len(cells) {
			continue
		}
		if p := cells[last].Float(); p > 0 {
			out[cells[secid].String()] = p
		}
	}
	return out
}

func columnIndex(columns gjson.Result) map[string]int {
	idx := map[string]int{}
	for i, c := range columns.Array() {
		idx[c.String()] = i
	}
	return idx
}
