package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade type constants
const (
	TradeTypeBuy  = "buy"
	TradeTypeSell = "sell"
)

// Trade status constants
const (
	TradeStatusOpen    = "open"
	TradeStatusClosed  = "closed"
	TradeStatusPartial = "partial"
)

// Timeframe constants
const (
	TimeframeIntraday   = "intraday"
	TimeframeSwing      = "swing"
	TimeframePositional = "positional"
	TimeframeLongTerm   = "long_term"
)

// Trade represents one execution recorded in the journal
type Trade struct {
	ID               int64               `json:"id"`
	UserID           int64               `json:"user_id"`
	TradingAccountID int64               `json:"trading_account_id"`
	SecurityID       int64               `json:"security_id"`
	TradeType        string              `json:"trade_type"`
	Quantity         decimal.Decimal     `json:"quantity"`
	EntryPrice       decimal.Decimal     `json:"entry_price"`
	EntryDate        time.Time           `json:"entry_date"`
	ExitPrice        decimal.NullDecimal `json:"exit_price"`
	ExitDate         *time.Time          `json:"exit_date,omitempty"`
	Brokerage        decimal.Decimal     `json:"brokerage"`
	Taxes            decimal.Decimal     `json:"taxes"`
	GrossPnl         decimal.NullDecimal `json:"gross_pnl"`
	NetPnl           decimal.NullDecimal `json:"net_pnl"`
	Strategy         string              `json:"strategy,omitempty"`
	Timeframe        string              `json:"timeframe"`
	Status           string              `json:"status"`
	PlannedStopLoss  decimal.NullDecimal `json:"planned_stop_loss"`
	PlannedTarget    decimal.NullDecimal `json:"planned_target"`
	RiskAmount       decimal.NullDecimal `json:"risk_amount"`
	RiskRewardRatio  decimal.NullDecimal `json:"risk_reward_ratio"`
	PositionID       *int64              `json:"position_id,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// IsClosed reports whether the trade has been exited
func (t *Trade) IsClosed() bool {
	return t.Status == TradeStatusClosed
}

// PositionValue is the capital committed at entry
func (t *Trade) PositionValue() decimal.Decimal {
	return t.EntryPrice.Mul(t.Quantity)
}

// TradeFilter narrows trade listings
type TradeFilter struct {
	TradingAccountID int64
	SecurityID       int64
	Status           string
	Strategy         string
	From             *time.Time
	To               *time.Time
	Limit            int
}

// TradeStats holds aggregated trade statistics for one tenant
type TradeStats struct {
	TotalTrades       int                      `json:"total_trades"`
	ClosedTrades      int                      `json:"closed_trades"`
	WinningTrades     int                      `json:"winning_trades"`
	LosingTrades      int                      `json:"losing_trades"`
	BreakevenTrades   int                      `json:"breakeven_trades"`
	WinRate           decimal.Decimal          `json:"win_rate"`
	TotalNetPnl       decimal.Decimal          `json:"total_net_pnl"`
	AvgWin            decimal.Decimal          `json:"avg_win"`
	AvgLoss           decimal.Decimal          `json:"avg_loss"`
	StrategyBreakdown map[string]StrategyStats `json:"strategy_breakdown"`
}

// StrategyStats counts closed trades per outcome for one strategy
type StrategyStats struct {
	Profit int `json:"profit"`
	Loss   int `json:"loss"`
}
