package broker

import (
	"context"
	"fmt"

	pb "github.com/russianinvestments/invest-api-go-sdk/proto"
)

type portfolioInfo struct {
	TotalRub     float64
	AvailableRub float64
	Positions    []Position
}

func (tc *TinkoffConnector) getPortfolio() (*portfolioInfo, error) {
	accountID := tc.AccountID()
	currency := pb.PortfolioRequest_RUB

	var resp interface {
		GetTotalAmountPortfolio() *pb.MoneyValue
		GetTotalAmountCurrencies() *pb.MoneyValue
		GetPositions() []*pb.PortfolioPosition
	}

	if tc.sandbox {
		sandbox := tc.client.NewSandboxServiceClient()
		r, err := sandbox.GetSandboxPortfolio(accountID, currency)
		if err != nil {
			return nil, fmt.Errorf("get sandbox portfolio: %w", err)
		}
		resp = r.PortfolioResponse
	} else {
		ops := tc.client.NewOperationsServiceClient()
		r, err := ops.GetPortfolio(accountID, currency)
		if err != nil {
			return nil, fmt.Errorf("get portfolio: %w", err)
		}
		resp = r.PortfolioResponse
	}

	info := &portfolioInfo{}
	if total := resp.GetTotalAmountPortfolio(); total != nil {
		info.TotalRub = total.ToFloat()
	}
	if currencies := resp.GetTotalAmountCurrencies(); currencies != nil {
		info.AvailableRub = currencies.ToFloat()
	}

	for _, pos := range resp.GetPositions() {
		if pos.GetInstrumentType() == "currency" {
			continue
		}
		ticker, err := tc.resolveInstrumentUID(pos.GetInstrumentUid())
		if err != nil {
			tc.logger.Warn("unresolved position skipped", "uid", pos.GetInstrumentUid(), "error", err)
			continue
		}
		p := Position{Symbol: ticker}
		// shares, matching the per-share average and current prices
		if q := pos.GetQuantity(); q != nil {
			p.Quantity = q.ToFloat()
		}
		if ap := pos.GetAveragePositionPrice(); ap != nil {
			p.AvgEntryPrice = ap.ToFloat()
		}
		if cp := pos.GetCurrentPrice(); cp != nil {
			p.CurrentPrice = cp.ToFloat()
		}
		if ey := pos.GetExpectedYield(); ey != nil {
			p.UnrealizedPnL = ey.ToFloat()
		}
		info.Positions = append(info.Positions, p)
	}

	return info, nil
}

func (tc *TinkoffConnector) GetPositions(ctx context.Context) ([]Position, error) {
	info, err := tc.getPortfolio()
	if err != nil {
		return nil, err
	}
	return info.Positions, nil
}

func (tc *TinkoffConnector) GetAccount(ctx context.Context) (Account, error) {
	info, err := tc.getPortfolio()
	if err != nil {
		return Account{}, err
	}
	return Account{Cash: info.AvailableRub, Equity: info.TotalRub}, nil
}
