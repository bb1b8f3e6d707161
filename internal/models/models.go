package models

import "time"

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

type Signal string

const (
	SignalBuyToEnter  Signal = "buy_to_enter"
	SignalSellToEnter Signal = "sell_to_enter"
	SignalHold        Signal = "hold"
	SignalClose       Signal = "close"
)

// TradeStatus records whether the broker acknowledged the order behind a trade.
type TradeStatus string

const (
	TradeFilled   TradeStatus = "filled"
	TradeRejected TradeStatus = "rejected"
	TradeSkipped  TradeStatus = "skipped"
)

type ExitPlan struct {
	ProfitTarget          float64 `json:"profit_target"`
	StopLoss              float64 `json:"stop_loss"`
	InvalidationCondition string  `json:"invalidation_condition"`
}

// Position is a shadow-ledger entry. Long only.
type Position struct {
	Symbol       string    `json:"symbol"`
	Quantity     float64   `json:"quantity"`
	AveragePrice float64   `json:"average_price"`
	ExitPlan     *ExitPlan `json:"exit_plan,omitempty"`
}

type PositionDetails struct {
	Symbol           string    `json:"symbol"`
	Quantity         float64   `json:"quantity"`
	EntryPrice       float64   `json:"entry_price"`
	CurrentPrice     float64   `json:"current_price"`
	LiquidationPrice float64   `json:"liquidation_price"`
	UnrealizedPnL    float64   `json:"unrealized_pnl"`
	Leverage         float64   `json:"leverage"`
	ExitPlan         *ExitPlan `json:"exit_plan"`
	Confidence       float64   `json:"confidence"`
	RiskUSD          float64   `json:"risk_usd"`
	SLOrderID        int64     `json:"sl_oid"`
	TPOrderID        int64     `json:"tp_oid"`
	WaitForFill      bool      `json:"wait_for_fill"`
	EntryOrderID     int64     `json:"entry_oid"`
	NotionalUSD      float64   `json:"notional_usd"`
}

type Trade struct {
	ID        string      `json:"id"`
	Symbol    string      `json:"symbol"`
	Action    Action      `json:"action"`
	Quantity  float64     `json:"quantity"`
	Price     float64     `json:"price"`
	Timestamp time.Time   `json:"timestamp"`
	Status    TradeStatus `json:"status"`
}

type PortfolioStatus struct {
	Cash                 float64             `json:"cash"`
	Positions            map[string]Position `json:"positions"`
	LivePositionsDetails []PositionDetails   `json:"live_positions_details"`
	TotalValue           float64             `json:"total_value"`
	PnL                  float64             `json:"pnl"`
	TotalReturnPercent   float64             `json:"total_return_percent"`
	SharpeRatio          float64             `json:"sharpe_ratio"`
}

// TradeDecision is one structured decision returned by a language model.
// Optional fields are nil when the model omitted them.
type TradeDecision struct {
	Symbol                string   `json:"symbol"`
	Signal                Signal   `json:"signal"`
	Confidence            float64  `json:"confidence"`
	Justification         string   `json:"justification"`
	StopLoss              *float64 `json:"stop_loss,omitempty"`
	Leverage              *float64 `json:"leverage,omitempty"`
	RiskUSD               *float64 `json:"risk_usd,omitempty"`
	ProfitTarget          *float64 `json:"profit_target,omitempty"`
	Quantity              *float64 `json:"quantity,omitempty"`
	InvalidationCondition *string  `json:"invalidation_condition,omitempty"`
}

type DecisionList struct {
	Decisions []TradeDecision `json:"decisions"`
}

type AgentState struct {
	AgentID      string          `json:"agent_id"`
	Name         string          `json:"name"`
	LLMProvider  string          `json:"llm_provider"`
	Portfolio    PortfolioStatus `json:"portfolio"`
	TradeHistory []Trade         `json:"trade_history"`
}

func Float(v float64) *float64 { return &v }

func String(v string) *string { return &v }
