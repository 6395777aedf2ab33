package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/trogers1052/trade-ledger/internal/apperrors"
	"github.com/trogers1052/trade-ledger/internal/models"
)

const tradingAccountColumns = `id, user_id, account_name, account_type, cash_balance, is_primary, created_at, updated_at`

// CreateTradingAccount inserts a new trading account
func (db *DB) CreateTradingAccount(ctx context.Context, a *models.TradingAccount) error {
	if a.AccountType == "" {
		a.AccountType = models.AccountTypePersonal
	}
	query := `
		INSERT INTO trading_accounts (user_id, account_name, account_type, cash_balance, is_primary)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := db.q(ctx).QueryRowContext(ctx, query,
		a.UserID, a.AccountName, a.AccountType, a.CashBalance, a.IsPrimary,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			v := &apperrors.ValidationError{}
			v.Add("account_name", "has already been taken")
			return v
		}
		return fmt.Errorf("failed to create trading account: %w", err)
	}
	return nil
}

// GetTradingAccount retrieves one of a user's trading accounts
func (db *DB) GetTradingAccount(ctx context.Context, userID, id int64) (*models.TradingAccount, error) {
	query := `SELECT ` + tradingAccountColumns + ` FROM trading_accounts WHERE id = $1 AND user_id = $2`
	a, err := scanTradingAccount(db.q(ctx).QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("trading account", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trading account: %w", err)
	}
	return a, nil
}

// ListTradingAccounts returns every account of every user
func (db *DB) ListTradingAccounts(ctx context.Context) ([]*models.TradingAccount, error) {
	query := `SELECT ` + tradingAccountColumns + ` FROM trading_accounts ORDER BY id`
	return db.queryTradingAccounts(ctx, query)
}

// ListTradingAccountsByUser returns a user's accounts, primary first
func (db *DB) ListTradingAccountsByUser(ctx context.Context, userID int64) ([]*models.TradingAccount, error) {
	query := `SELECT ` + tradingAccountColumns + ` FROM trading_accounts WHERE user_id = $1 ORDER BY is_primary DESC, id`
	return db.queryTradingAccounts(ctx, query, userID)
}

func (db *DB) queryTradingAccounts(ctx context.Context, query string, args ...any) ([]*models.TradingAccount, error) {
	rows, err := db.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trading accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.TradingAccount
	for rows.Next() {
		a, err := scanTradingAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trading account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func scanTradingAccount(row rowScanner) (*models.TradingAccount, error) {
	var a models.TradingAccount
	err := row.Scan(&a.ID, &a.UserID, &a.AccountName, &a.AccountType, &a.CashBalance, &a.IsPrimary, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
