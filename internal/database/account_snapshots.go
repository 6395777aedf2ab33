package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/trogers1052/trade-ledger/internal/apperrors"
	"github.com/trogers1052/trade-ledger/internal/models"
)

const snapshotColumns = `
	id, trading_account_id, date, total_value, cash_balance, invested_amount, unrealized_pnl,
	realized_pnl, day_pnl, day_pnl_percent, percent_deployed, number_of_positions,
	synced_at, sync_source, created_at, updated_at`

// UpsertAccountSnapshot writes the snapshot for an account and date,
// replacing any earlier row for the same pair
func (db *DB) UpsertAccountSnapshot(ctx context.Context, s *models.AccountSnapshot) error {
	query := `
		INSERT INTO account_snapshots (
			trading_account_id, date, total_value, cash_balance, invested_amount, unrealized_pnl,
			realized_pnl, day_pnl, day_pnl_percent, percent_deployed, number_of_positions,
			synced_at, sync_source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (trading_account_id, date) DO UPDATE SET
			total_value = EXCLUDED.total_value,
			cash_balance = EXCLUDED.cash_balance,
			invested_amount = EXCLUDED.invested_amount,
			unrealized_pnl = EXCLUDED.unrealized_pnl,
			realized_pnl = EXCLUDED.realized_pnl,
			day_pnl = EXCLUDED.day_pnl,
			day_pnl_percent = EXCLUDED.day_pnl_percent,
			percent_deployed = EXCLUDED.percent_deployed,
			number_of_positions = EXCLUDED.number_of_positions,
			synced_at = EXCLUDED.synced_at,
			sync_source = EXCLUDED.sync_source,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err := db.q(ctx).QueryRowContext(ctx, query,
		s.TradingAccountID, s.Date, s.TotalValue, s.CashBalance, s.InvestedAmount, s.UnrealizedPnl,
		s.RealizedPnl, s.DayPnl, s.DayPnlPercent, s.PercentDeployed, s.NumberOfPositions,
		s.SyncedAt, s.SyncSource,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert account snapshot: %w", err)
	}
	return nil
}

// GetPreviousAccountSnapshot returns the latest snapshot dated before the given date
func (db *DB) GetPreviousAccountSnapshot(ctx context.Context, accountID int64, before time.Time) (*models.AccountSnapshot, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM account_snapshots
		WHERE trading_account_id = $1 AND date < $2
		ORDER BY date DESC
		LIMIT 1`
	s, err := scanSnapshot(db.q(ctx).QueryRowContext(ctx, query, accountID, before))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snapshot before %s for account %d: %w",
			before.Format("2006-01-02"), accountID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get previous snapshot: %w", err)
	}
	return s, nil
}

// ListAccountSnapshots returns an account's snapshots dated from..to inclusive, oldest first
func (db *DB) ListAccountSnapshots(ctx context.Context, accountID int64, from, to time.Time) ([]*models.AccountSnapshot, error) {
	query := `SELECT ` + snapshotColumns + `
		FROM account_snapshots
		WHERE trading_account_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date ASC`
	rows, err := db.q(ctx).QueryContext(ctx, query, accountID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*models.AccountSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

func scanSnapshot(row rowScanner) (*models.AccountSnapshot, error) {
	var s models.AccountSnapshot
	err := row.Scan(
		&s.ID, &s.TradingAccountID, &s.Date, &s.TotalValue, &s.CashBalance, &s.InvestedAmount, &s.UnrealizedPnl,
		&s.RealizedPnl, &s.DayPnl, &s.DayPnlPercent, &s.PercentDeployed, &s.NumberOfPositions,
		&s.SyncedAt, &s.SyncSource, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Date = s.Date.UTC()
	return &s, nil
}
