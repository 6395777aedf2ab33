// Package ledger implements the position and trade ledger: the trade write
// pipeline, position lifecycle, account snapshot rollups and holding sections.
//
// Every exported operation takes an explicit tenant.Tenant and refuses to run
// without one. Storage is reached through the interfaces below, which
// internal/database implements on Postgres.
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/trade-ledger/internal/apperrors"
	"github.com/trogers1052/trade-ledger/internal/models"
)

// Transactor runs fn in one database transaction carried by ctx. Nested calls
// join the outer transaction.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PriceSource is the read-only security catalog
type PriceSource interface {
	Security(ctx context.Context, id int64) (*models.Security, error)
	Price(ctx context.Context, securityID int64) (decimal.NullDecimal, *apperrors.StaleDataWarning, error)
}

// AccountStore reads trading accounts
type AccountStore interface {
	GetTradingAccount(ctx context.Context, userID, id int64) (*models.TradingAccount, error)
	ListTradingAccounts(ctx context.Context) ([]*models.TradingAccount, error)
}

// PositionStore persists positions
type PositionStore interface {
	Transactor
	GetOpenPosition(ctx context.Context, key models.PositionKey) (*models.Position, error)
	MaxGeneration(ctx context.Context, key models.PositionKey) (int, error)
	// InsertPosition reports false, without error, when a uniqueness
	// constraint rejected the row.
	InsertPosition(ctx context.Context, p *models.Position) (bool, error)
	GetPosition(ctx context.Context, userID, id int64) (*models.Position, error)
	LockPosition(ctx context.Context, userID, id int64) (*models.Position, error)
	UpdatePosition(ctx context.Context, p *models.Position) error
	ListPositions(ctx context.Context, userID, accountID int64, status string) ([]*models.Position, error)
	SetPositionSection(ctx context.Context, userID, positionID int64, sectionID *int64) error
}

// TradeStore persists trades and their journal entries
type TradeStore interface {
	Transactor
	AccountStore
	CreateTrade(ctx context.Context, t *models.Trade) error
	GetTrade(ctx context.Context, userID, id int64) (*models.Trade, error)
	UpdateTrade(ctx context.Context, t *models.Trade) error
	DeleteTrade(ctx context.Context, userID, id int64) error
	ListTrades(ctx context.Context, userID int64, filter models.TradeFilter) ([]*models.Trade, error)
	GetTradeStats(ctx context.Context, userID int64) (*models.TradeStats, error)
	CreateJournalEntry(ctx context.Context, e *models.JournalEntry) error
	GetJournalEntryByTrade(ctx context.Context, userID, tradeID int64) (*models.JournalEntry, error)
}

// SnapshotStore persists account snapshots
type SnapshotStore interface {
	AccountStore
	ListPositions(ctx context.Context, userID, accountID int64, status string) ([]*models.Position, error)
	RealizedPnl(ctx context.Context, userID, accountID int64, through time.Time) (decimal.Decimal, error)
	UpsertAccountSnapshot(ctx context.Context, s *models.AccountSnapshot) error
	GetPreviousAccountSnapshot(ctx context.Context, accountID int64, before time.Time) (*models.AccountSnapshot, error)
	ListAccountSnapshots(ctx context.Context, accountID int64, from, to time.Time) ([]*models.AccountSnapshot, error)
}

// SectionStore persists holding sections
type SectionStore interface {
	Transactor
	CreateHoldingSection(ctx context.Context, s *models.HoldingSection) error
	GetHoldingSection(ctx context.Context, userID, id int64) (*models.HoldingSection, error)
	ListHoldingSections(ctx context.Context, userID int64) ([]*models.HoldingSection, error)
	UpdateHoldingSection(ctx context.Context, s *models.HoldingSection) error
	DeleteHoldingSection(ctx context.Context, userID, id int64) error
	MaxSectionPosition(ctx context.Context, userID int64) (int, bool, error)
	SetSectionOrder(ctx context.Context, userID int64, orderedIDs []int64) error
	GetPosition(ctx context.Context, userID, id int64) (*models.Position, error)
	ListPositions(ctx context.Context, userID, accountID int64, status string) ([]*models.Position, error)
	SetPositionSection(ctx context.Context, userID, positionID int64, sectionID *int64) error
}

// RollupNotifier asks the snapshot aggregator to refresh an account
type RollupNotifier interface {
	RequestRollup(ctx context.Context, userID, accountID int64, date time.Time, reason string) error
}
