package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SyncSourceLedger marks snapshots produced by the aggregator
const SyncSourceLedger = "ledger"

// AccountSnapshot is the dated rollup of one trading account
type AccountSnapshot struct {
	ID                int64           `json:"id"`
	TradingAccountID  int64           `json:"trading_account_id"`
	Date              time.Time       `json:"date"`
	TotalValue        decimal.Decimal `json:"total_value"`
	CashBalance       decimal.Decimal `json:"cash_balance"`
	InvestedAmount    decimal.Decimal `json:"invested_amount"`
	UnrealizedPnl     decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnl       decimal.Decimal `json:"realized_pnl"`
	DayPnl            decimal.Decimal `json:"day_pnl"`
	DayPnlPercent     decimal.Decimal `json:"day_pnl_percent"`
	PercentDeployed   decimal.Decimal `json:"percent_deployed"`
	NumberOfPositions int             `json:"number_of_positions"`
	SyncedAt          time.Time       `json:"synced_at"`
	SyncSource        string          `json:"sync_source"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
