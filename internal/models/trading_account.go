package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account type constants
const (
	AccountTypePersonal     = "personal"
	AccountTypeAggressive   = "aggressive"
	AccountTypeConservative = "conservative"
	AccountTypeFamily       = "family"
	AccountTypeRetirement   = "retirement"
)

// TradingAccount is a brokerage account owned by a user
type TradingAccount struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	AccountName string          `json:"account_name"`
	AccountType string          `json:"account_type"`
	CashBalance decimal.Decimal `json:"cash_balance"`
	IsPrimary   bool            `json:"is_primary"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
