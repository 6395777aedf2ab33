package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position status constants
const (
	PositionStatusOpen   = "open"
	PositionStatusClosed = "closed"
)

// Position type constants
const (
	PositionTypeLong  = "long"
	PositionTypeShort = "short"
)

// Position is the holding derived from trades on one security in one account.
// Successive lifecycles of the same holding are distinguished by Generation.
type Position struct {
	ID               int64           `json:"id"`
	UserID           int64           `json:"user_id"`
	TradingAccountID int64           `json:"trading_account_id"`
	SecurityID       int64           `json:"security_id"`
	Generation       int             `json:"generation"`
	Status           string          `json:"status"`
	Quantity         decimal.Decimal `json:"quantity"`
	AveragePrice     decimal.Decimal `json:"average_price"`
	PositionType     string          `json:"position_type"`
	UnrealizedPnl    decimal.Decimal `json:"unrealized_pnl"`
	LastUpdated      *time.Time      `json:"last_updated,omitempty"`
	OpenedAt         time.Time       `json:"opened_at"`
	ClosedAt         *time.Time      `json:"closed_at,omitempty"`
	HoldingSectionID *int64          `json:"holding_section_id,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// IsOpen reports whether the position is still tracked
func (p *Position) IsOpen() bool {
	return p.Status == PositionStatusOpen
}

// PositionKey identifies the lifecycle family of a position
type PositionKey struct {
	UserID           int64
	TradingAccountID int64
	SecurityID       int64
}

// Key returns the identity triple shared by every generation of the position
func (p *Position) Key() PositionKey {
	return PositionKey{UserID: p.UserID, TradingAccountID: p.TradingAccountID, SecurityID: p.SecurityID}
}
