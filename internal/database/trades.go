package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/trade-ledger/internal/apperrors"
	"github.com/trogers1052/trade-ledger/internal/models"
)

const tradeColumns = `
	id, user_id, trading_account_id, security_id, trade_type, quantity, entry_price, entry_date,
	exit_price, exit_date, brokerage, taxes, gross_pnl, net_pnl, strategy, timeframe, status,
	planned_stop_loss, planned_target, risk_amount, risk_reward_ratio, position_id,
	created_at, updated_at`

// CreateTrade inserts a new trade
func (db *DB) CreateTrade(ctx context.Context, t *models.Trade) error {
	query := `
		INSERT INTO trades (
			user_id, trading_account_id, security_id, trade_type, quantity, entry_price, entry_date,
			exit_price, exit_date, brokerage, taxes, gross_pnl, net_pnl, strategy, timeframe, status,
			planned_stop_loss, planned_target, risk_amount, risk_reward_ratio, position_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21
		)
		RETURNING id, created_at, updated_at
	`
	err := db.q(ctx).QueryRowContext(ctx, query,
		t.UserID, t.TradingAccountID, t.SecurityID, t.TradeType, t.Quantity, t.EntryPrice, t.EntryDate,
		t.ExitPrice, nullTime(t.ExitDate), t.Brokerage, t.Taxes, t.GrossPnl, t.NetPnl,
		nullString(t.Strategy), t.Timeframe, t.Status,
		t.PlannedStopLoss, t.PlannedTarget, t.RiskAmount, t.RiskRewardRatio, nullInt64(t.PositionID),
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}
	return nil
}

// GetTrade retrieves one of a user's trades
func (db *DB) GetTrade(ctx context.Context, userID, id int64) (*models.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE id = $1 AND user_id = $2`
	t, err := scanTrade(db.q(ctx).QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("trade", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trade: %w", err)
	}
	return t, nil
}

// UpdateTrade writes every mutable field of a trade
func (db *DB) UpdateTrade(ctx context.Context, t *models.Trade) error {
	query := `
		UPDATE trades SET
			quantity = $3, entry_price = $4, entry_date = $5, exit_price = $6, exit_date = $7,
			brokerage = $8, taxes = $9, gross_pnl = $10, net_pnl = $11, strategy = $12,
			timeframe = $13, status = $14, planned_stop_loss = $15, planned_target = $16,
			risk_amount = $17, risk_reward_ratio = $18, position_id = $19, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at
	`
	err := db.q(ctx).QueryRowContext(ctx, query,
		t.ID, t.UserID, t.Quantity, t.EntryPrice, t.EntryDate, t.ExitPrice, nullTime(t.ExitDate),
		t.Brokerage, t.Taxes, t.GrossPnl, t.NetPnl, nullString(t.Strategy),
		t.Timeframe, t.Status, t.PlannedStopLoss, t.PlannedTarget,
		t.RiskAmount, t.RiskRewardRatio, nullInt64(t.PositionID),
	).Scan(&t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound("trade", t.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update trade: %w", err)
	}
	return nil
}

// DeleteTrade removes a trade; its journal entry goes with it
func (db *DB) DeleteTrade(ctx context.Context, userID, id int64) error {
	result, err := db.q(ctx).ExecContext(ctx, `DELETE FROM trades WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete trade: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return apperrors.NotFound("trade", id)
	}
	return nil
}

// ListTrades returns a user's trades matching filter, newest entry first
func (db *DB) ListTrades(ctx context.Context, userID int64, filter models.TradeFilter) ([]*models.Trade, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if filter.TradingAccountID != 0 {
		add("trading_account_id = $%d", filter.TradingAccountID)
	}
	if filter.SecurityID != 0 {
		add("security_id = $%d", filter.SecurityID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.Strategy != "" {
		add("strategy = $%d", filter.Strategy)
	}
	if filter.From != nil {
		add("entry_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("entry_date <= $%d", *filter.To)
	}

	query := `SELECT ` + tradeColumns + ` FROM trades WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY entry_date DESC, id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := db.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []*models.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// RealizedPnl sums the net P&L of an account's trades closed by through
func (db *DB) RealizedPnl(ctx context.Context, userID, accountID int64, through time.Time) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(net_pnl), 0)
		FROM trades
		WHERE user_id = $1 AND trading_account_id = $2 AND status = 'closed' AND exit_date <= $3
	`
	var total decimal.Decimal
	if err := db.q(ctx).QueryRowContext(ctx, query, userID, accountID, through).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum realized pnl: %w", err)
	}
	return total, nil
}

// GetTradeStats aggregates a user's closed trades. Results within 10 of zero
// count as breakeven.
func (db *DB) GetTradeStats(ctx context.Context, userID int64) (*models.TradeStats, error) {
	query := `
		SELECT
			COUNT(*) as total_trades,
			COUNT(*) FILTER (WHERE status = 'closed') as closed_trades,
			COUNT(*) FILTER (WHERE status = 'closed' AND net_pnl >= 10) as winning_trades,
			COUNT(*) FILTER (WHERE status = 'closed' AND net_pnl <= -10) as losing_trades,
			COUNT(*) FILTER (WHERE status = 'closed' AND ABS(net_pnl) < 10) as breakeven_trades,
			COALESCE(SUM(net_pnl) FILTER (WHERE status = 'closed'), 0) as total_net_pnl,
			COALESCE(AVG(net_pnl) FILTER (WHERE status = 'closed' AND net_pnl >= 10), 0) as avg_win,
			COALESCE(AVG(net_pnl) FILTER (WHERE status = 'closed' AND net_pnl <= -10), 0) as avg_loss
		FROM trades
		WHERE user_id = $1
	`
	stats := models.TradeStats{StrategyBreakdown: make(map[string]models.StrategyStats)}
	err := db.q(ctx).QueryRowContext(ctx, query, userID).Scan(
		&stats.TotalTrades, &stats.ClosedTrades, &stats.WinningTrades, &stats.LosingTrades,
		&stats.BreakevenTrades, &stats.TotalNetPnl, &stats.AvgWin, &stats.AvgLoss,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get trade stats: %w", err)
	}
	stats.AvgWin = stats.AvgWin.Round(2)
	stats.AvgLoss = stats.AvgLoss.Round(2)

	if stats.ClosedTrades > 0 {
		stats.WinRate = decimal.NewFromInt(int64(stats.WinningTrades)).
			Div(decimal.NewFromInt(int64(stats.ClosedTrades))).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}

	breakdown := `
		SELECT
			strategy,
			COUNT(*) FILTER (WHERE net_pnl >= 10) as profit,
			COUNT(*) FILTER (WHERE net_pnl <= -10) as loss
		FROM trades
		WHERE user_id = $1 AND status = 'closed' AND strategy IS NOT NULL
		GROUP BY strategy
	`
	rows, err := db.q(ctx).QueryContext(ctx, breakdown, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get strategy breakdown: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var strategy string
		var s models.StrategyStats
		if err := rows.Scan(&strategy, &s.Profit, &s.Loss); err != nil {
			return nil, fmt.Errorf("failed to scan strategy breakdown: %w", err)
		}
		stats.StrategyBreakdown[strategy] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read strategy breakdown: %w", err)
	}

	return &stats, nil
}

func scanTrade(row rowScanner) (*models.Trade, error) {
	var t models.Trade
	var exitDate sql.NullTime
	var strategy sql.NullString
	var positionID sql.NullInt64

	err := row.Scan(
		&t.ID, &t.UserID, &t.TradingAccountID, &t.SecurityID, &t.TradeType, &t.Quantity, &t.EntryPrice, &t.EntryDate,
		&t.ExitPrice, &exitDate, &t.Brokerage, &t.Taxes, &t.GrossPnl, &t.NetPnl, &strategy, &t.Timeframe, &t.Status,
		&t.PlannedStopLoss, &t.PlannedTarget, &t.RiskAmount, &t.RiskRewardRatio, &positionID,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.ExitDate = timePtr(exitDate)
	t.Strategy = strategy.String
	t.PositionID = int64Ptr(positionID)
	return &t, nil
}
