package storage

import (
	"time"

	"gorm.io/datatypes"
)

type TradeRecord struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	TradeID  string    `gorm:"uniqueIndex;not null" json:"trade_id"`
	AgentID  string    `gorm:"index;not null" json:"agent_id"`
	Symbol   string    `gorm:"index;not null" json:"symbol"`
	Action   string    `gorm:"not null" json:"action"` // BUY or SELL
	Quantity float64   `gorm:"not null" json:"quantity"`
	Price    float64   `gorm:"not null" json:"price"`
	Status   string    `gorm:"not null" json:"status"` // filled, rejected, skipped
	TradedAt time.Time `json:"traded_at"`
}

type CycleLog struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	AgentID        string         `gorm:"index;not null" json:"agent_id"`
	DecisionsCount int            `json:"decisions_count"`
	Decisions      datatypes.JSON `gorm:"column:decisions_json;type:TEXT" json:"decisions"`
	Error          string         `json:"error"`
}

type PortfolioSnapshot struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	AgentID        string         `gorm:"index;not null" json:"agent_id"`
	Cash           float64        `json:"cash"`
	TotalValue     float64        `json:"total_value"`
	PnL            float64        `gorm:"column:pnl" json:"pnl"`
	SharpeRatio    float64        `json:"sharpe_ratio"`
	PositionsCount int            `json:"positions_count"`
	Positions      datatypes.JSON `gorm:"column:positions_json;type:TEXT" json:"positions"`
}
