package broker

import (
	"context"
	"fmt"

	"github.com/russianinvestments/invest-api-go-sdk/investgo"
	pb "github.com/russianinvestments/invest-api-go-sdk/proto"

	"github.com/camuig/llm-arena/internal/models"
)

// ExitOrders are broker-side protective orders mirroring an exit plan.
type ExitOrders struct {
	StopLossID   string
	TakeProfitID string
}

// ExitOrderPlacer is implemented by connectors that can rest stop-loss and
// take-profit orders at the exchange.
type ExitOrderPlacer interface {
	PlaceExitOrders(ctx context.Context, symbol string, quantity float64, plan models.ExitPlan) (ExitOrders, error)
	CancelExitOrders(ctx context.Context, orders ExitOrders)
}

func (tc *TinkoffConnector) PlaceExitOrders(ctx context.Context, symbol string, quantity float64, plan models.ExitPlan) (ExitOrders, error) {
	if tc.sandbox {
		// Stop orders are not supported in sandbox
		tc.logger.Info("exit orders skipped in sandbox mode", "symbol", symbol)
		return ExitOrders{}, nil
	}

	uid, err := tc.ResolveTickerToUID(symbol)
	if err != nil {
		return ExitOrders{}, err
	}
	lot, err := tc.lotSize(uid)
	if err != nil {
		return ExitOrders{}, err
	}
	lots := sharesToLots(quantity, lot)
	if lots < 1 {
		return ExitOrders{}, fmt.Errorf("exit orders for %s below one lot of %d", symbol, lot)
	}

	var out ExitOrders
	if plan.StopLoss > 0 {
		id, err := tc.postStopOrder(uid, lots, plan.StopLoss, pb.StopOrderType_STOP_ORDER_TYPE_STOP_LOSS)
		if err != nil {
			return out, fmt.Errorf("place stop loss: %w", err)
		}
		out.StopLossID = id
	}
	if plan.ProfitTarget > 0 {
		id, err := tc.postStopOrder(uid, lots, plan.ProfitTarget, pb.StopOrderType_STOP_ORDER_TYPE_TAKE_PROFIT)
		if err != nil {
			return out, fmt.Errorf("place take profit: %w", err)
		}
		out.TakeProfitID = id
	}
	return out, nil
}

func (tc *TinkoffConnector) postStopOrder(instrumentID string, lots int64, price float64, kind pb.StopOrderType) (string, error) {
	stopOrders := tc.client.NewStopOrdersServiceClient()
	resp, err := stopOrders.PostStopOrder(&investgo.PostStopOrderRequest{
		InstrumentId:   instrumentID,
		Quantity:       lots,
		StopPrice:      floatToSimpleQuotation(price),
		Direction:      pb.StopOrderDirection_STOP_ORDER_DIRECTION_SELL,
		AccountId:      tc.AccountID(),
		ExpirationType: pb.StopOrderExpirationType_STOP_ORDER_EXPIRATION_TYPE_GOOD_TILL_CANCEL,
		StopOrderType:  kind,
		OrderID:        investgo.CreateUid(),
	})
	if err != nil {
		return "", err
	}
	return resp.GetStopOrderId(), nil
}

func (tc *TinkoffConnector) CancelExitOrders(ctx context.Context, orders ExitOrders) {
	if tc.sandbox {
		return
	}

	stopOrders := tc.client.NewStopOrdersServiceClient()

	if orders.StopLossID != "" {
		if _, err := stopOrders.CancelStopOrder(tc.AccountID(), orders.StopLossID); err != nil {
			tc.logger.Error("cancel stop loss", "order_id", orders.StopLossID, "error", err)
		}
	}
	if orders.TakeProfitID != "" {
		if _, err := stopOrders.CancelStopOrder(tc.AccountID(), orders.TakeProfitID); err != nil {
			tc.logger.Error("cancel take profit", "order_id", orders.TakeProfitID, "error", err)
		}
	}
}

func floatToSimpleQuotation(value float64) *pb.Quotation {
	units := int64(value)
	nano := int32((value - float64(units)) * 1e9)
	return &pb.Quotation{Units: units, Nano: nano}
}
