package market

import (
	"fmt"
	"math"
	"time"

	"github.com/markcheno/go-talib"
)

// ComputeSnapshot derives the prompt indicators from daily bars (oldest
// first): EMA20, MACD(12,26,9), RSI7 and RSI14 on the daily closes, plus a
// weekly context with EMA20/EMA50, ATR3/ATR14, volume and weekly MACD/RSI14.
func ComputeSnapshot(symbol string, daily []Bar, window int) (Snapshot, error) {
	if len(daily) < 2 {
		return Snapshot{}, fmt.Errorf("need at least 2 bars for %s, got %d", symbol, len(daily))
	}

	closes := make([]float64, len(daily))
	mids := make([]float64, len(daily))
	for i, b := range daily {
		closes[i] = b.Close
		mids[i] = (b.High + b.Low) / 2
	}

	ema20 := ema(closes, 20)
	macd := macdLine(closes)
	rsi7 := rsi(closes, 7)
	rsi14 := rsi(closes, 14)

	snap := Snapshot{
		Symbol:       symbol,
		CurrentPrice: closes[len(closes)-1],
		CurrentEMA20: last(ema20),
		CurrentMACD:  last(macd),
		CurrentRSI7:  last(rsi7),
		MidPrices:    tail(mids, window),
		EMA20Series:  tail(ema20, window),
		MACDSeries:   tail(macd, window),
		RSI7Series:   tail(rsi7, window),
		RSI14Series:  tail(rsi14, window),
	}

	weekly := ResampleWeekly(daily)
	if len(weekly) > 0 {
		wCloses := make([]float64, len(weekly))
		wHighs := make([]float64, len(weekly))
		wLows := make([]float64, len(weekly))
		wVolumes := make([]float64, len(weekly))
		for i, b := range weekly {
			wCloses[i] = b.Close
			wHighs[i] = b.High
			wLows[i] = b.Low
			wVolumes[i] = b.Volume
		}
		snap.Weekly = LongTermContext{
			EMA20:         last(ema(wCloses, 20)),
			EMA50:         last(ema(wCloses, 50)),
			ATR3:          last(atr(wHighs, wLows, wCloses, 3)),
			ATR14:         last(atr(wHighs, wLows, wCloses, 14)),
			CurrentVolume: last(wVolumes),
			AverageVolume: round4(mean(wVolumes)),
			MACDSeries:    tail(macdLine(wCloses), window),
			RSI14Series:   tail(rsi(wCloses, 14), window),
		}
	}

	return snap, nil
}

// ResampleWeekly folds daily bars into ISO weeks: first open, max high,
// min low, last close, summed volume.
func ResampleWeekly(daily []Bar) []Bar {
	var out []Bar
	var curYear, curWeek int
	for i, b := range daily {
		y, w := b.Time.ISOWeek()
		if i == 0 || y != curYear || w != curWeek {
			out = append(out, Bar{Time: weekStart(b.Time), Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume})
			curYear, curWeek = y, w
			continue
		}
		cur := &out[len(out)-1]
		cur.High = math.Max(cur.High, b.High)
		cur.Low = math.Min(cur.Low, b.Low)
		cur.Close = b.Close
		cur.Volume += b.Volume
	}
	return out
}

func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	d := t.AddDate(0, 0, -offset)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, t.Location())
}

// The talib routines index past the end of short inputs, so periods are
// clamped to the available history.

func ema(series []float64, period int) []float64 {
	if len(series) == 0 {
		return nil
	}
	if period > len(series) {
		period = len(series)
	}
	if period < 2 {
		return sanitizeSeries(series)
	}
	return sanitizeSeries(talib.Ema(series, period))
}

func rsi(series []float64, period int) []float64 {
	if len(series) < 3 {
		return make([]float64, len(series))
	}
	if period > len(series)-1 {
		period = len(series) - 1
	}
	return sanitizeSeries(talib.Rsi(series, period))
}

func atr(highs, lows, closes []float64, period int) []float64 {
	if len(closes) < 3 {
		return make([]float64, len(closes))
	}
	if period > len(closes)-1 {
		period = len(closes) - 1
	}
	return sanitizeSeries(talib.Atr(highs, lows, closes, period))
}

func macdLine(series []float64) []float64 {
	if len(series) < 34 {
		return make([]float64, len(series))
	}
	macd, _, _ := talib.Macd(series, 12, 26, 9)
	return sanitizeSeries(macd)
}

func sanitizeSeries(src []float64) []float64 {
	out := make([]float64, len(src))
	for i, v := range src {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = round4(v)
	}
	return out
}

func tail(series []float64, n int) []float64 {
	if n <= 0 || n >= len(series) {
		return append([]float64(nil), series...)
	}
	return append([]float64(nil), series[len(series)-n:]...)
}

func last(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return series[len(series)-1]
}

func mean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	var sum float64
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
