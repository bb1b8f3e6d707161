package broker

import (
	"context"
	"errors"

	"github.com/camuig/llm-arena/internal/models"
)

var ErrNoPosition = errors.New("no open position")

// Connector is the brokerage boundary used by the portfolio.
type Connector interface {
	GetPositions(ctx context.Context) ([]Position, error)
	GetAccount(ctx context.Context) (Account, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (*Order, error)
	ClosePosition(ctx context.Context, symbol string) error
}

type Position struct {
	Symbol        string
	Quantity      float64
	AvgEntryPrice float64
	CurrentPrice  float64
	UnrealizedPnL float64
}

type Account struct {
	Cash   float64
	Equity float64
}

// OrderRequest is a market order. ReferencePrice is the last known price,
// used by connectors that do not fill against a real book.
type OrderRequest struct {
	Symbol         string
	Quantity       float64
	Side           models.Action
	ReferencePrice float64
}

type Order struct {
	ID          string
	Symbol      string
	Side        models.Action
	Quantity    float64
	FilledPrice float64
}
