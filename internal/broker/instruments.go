package broker

import (
	"fmt"
	"math"
)

func (tc *TinkoffConnector) cacheInstrument(uid, ticker string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.uidToTicker[uid] = ticker
	tc.tickerToUID[ticker] = uid
}

func (tc *TinkoffConnector) resolveInstrumentUID(uid string) (string, error) {
	tc.mu.RLock()
	cached, ok := tc.uidToTicker[uid]
	tc.mu.RUnlock()
	if ok {
		return cached, nil
	}

	instruments := tc.client.NewInstrumentsServiceClient()
	resp, err := instruments.InstrumentByUid(uid)
	if err != nil {
		return "", fmt.Errorf("instrument by uid %s: %w", uid, err)
	}

	ticker := resp.GetInstrument().GetTicker()
	tc.cacheInstrument(uid, ticker)
	tc.cacheLotSize(uid, resp.GetInstrument().GetLot())
	return ticker, nil
}

func (tc *TinkoffConnector) cacheLotSize(uid string, lot int32) {
	if lot < 1 {
		return
	}
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.lotSizes[uid] = lot
}

// lotSize returns the number of shares in one lot of the instrument.
func (tc *TinkoffConnector) lotSize(uid string) (int32, error) {
	tc.mu.RLock()
	lot, ok := tc.lotSizes[uid]
	tc.mu.RUnlock()
	if ok {
		return lot, nil
	}

	instruments := tc.client.NewInstrumentsServiceClient()
	resp, err := instruments.InstrumentByUid(uid)
	if err != nil {
		return 0, fmt.Errorf("instrument by uid %s: %w", uid, err)
	}
	lot = resp.GetInstrument().GetLot()
	if lot < 1 {
		lot = 1
	}
	tc.cacheLotSize(uid, lot)
	return lot, nil
}

// sharesToLots rounds a share count down to whole lots.
func sharesToLots(shares float64, lot int32) int64 {
	if lot < 1 {
		lot = 1
	}
	return int64(math.Floor(shares/float64(lot) + 1e-9))
}

func lotsToShares(lots int64, lot int32) float64 {
	if lot < 1 {
		lot = 1
	}
	return float64(lots) * float64(lot)
}

// ResolveTickerToUID resolves a ticker to its instrument UID using the instruments service.
func (tc *TinkoffConnector) ResolveTickerToUID(ticker string) (string, error) {
	tc.mu.RLock()
	cached, ok := tc.tickerToUID[ticker]
	tc.mu.RUnlock()
	if ok {
		return cached, nil
	}

	instruments := tc.client.NewInstrumentsServiceClient()
	resp, err := instruments.FindInstrument(ticker)
	if err != nil {
		return "", fmt.Errorf("find instrument %s: %w", ticker, err)
	}

	for _, inst := range resp.GetInstruments() {
		if inst.GetTicker() == ticker {
			uid := inst.GetUid()
			tc.cacheInstrument(uid, ticker)
			return uid, nil
		}
	}

	if len(resp.GetInstruments()) > 0 {
		inst := resp.GetInstruments()[0]
		uid := inst.GetUid()
		tc.cacheInstrument(uid, inst.GetTicker())
		return uid, nil
	}

	return "", fmt.Errorf("instrument not found: %s", ticker)
}
