package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/trogers1052/trade-ledger/internal/apperrors"
	"github.com/trogers1052/trade-ledger/internal/models"
)

const positionColumns = `
	id, user_id, trading_account_id, security_id, generation, status, quantity,
	average_price, position_type, unrealized_pnl, last_updated, opened_at, closed_at,
	holding_section_id, created_at, updated_at`

// GetOpenPosition returns the open position for a user, account and security
func (db *DB) GetOpenPosition(ctx context.Context, key models.PositionKey) (*models.Position, error) {
	query := `SELECT ` + positionColumns + `
		FROM positions
		WHERE user_id = $1 AND trading_account_id = $2 AND security_id = $3 AND status = 'open'`
	p, err := scanPosition(db.q(ctx).QueryRowContext(ctx, query, key.UserID, key.TradingAccountID, key.SecurityID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("open position for account %d security %d: %w",
			key.TradingAccountID, key.SecurityID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get open position: %w", err)
	}
	return p, nil
}

// MaxGeneration returns the highest generation used for the key, 0 if none
func (db *DB) MaxGeneration(ctx context.Context, key models.PositionKey) (int, error) {
	query := `
		SELECT COALESCE(MAX(generation), 0)
		FROM positions
		WHERE user_id = $1 AND trading_account_id = $2 AND security_id = $3`
	var gen int
	err := db.q(ctx).QueryRowContext(ctx, query, key.UserID, key.TradingAccountID, key.SecurityID).Scan(&gen)
	if err != nil {
		return 0, fmt.Errorf("failed to get max generation: %w", err)
	}
	return gen, nil
}

// InsertPosition inserts a new position. It returns false when either the
// open-position index or the generation index already holds a row for the key.
func (db *DB) InsertPosition(ctx context.Context, p *models.Position) (bool, error) {
	query := `
		INSERT INTO positions (
			user_id, trading_account_id, security_id, generation, status, quantity,
			average_price, position_type, unrealized_pnl, last_updated, opened_at, closed_at,
			holding_section_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT DO NOTHING
		RETURNING id, created_at, updated_at
	`
	err := db.q(ctx).QueryRowContext(ctx, query,
		p.UserID, p.TradingAccountID, p.SecurityID, p.Generation, p.Status, p.Quantity,
		p.AveragePrice, p.PositionType, p.UnrealizedPnl, nullTime(p.LastUpdated), p.OpenedAt, nullTime(p.ClosedAt),
		nullInt64(p.HoldingSectionID),
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to insert position: %w", err)
	}
	return true, nil
}

// GetPosition retrieves one of a user's positions
func (db *DB) GetPosition(ctx context.Context, userID, id int64) (*models.Position, error) {
	return db.getPosition(ctx, userID, id, "")
}

// LockPosition retrieves a position and locks its row until the transaction ends
func (db *DB) LockPosition(ctx context.Context, userID, id int64) (*models.Position, error) {
	return db.getPosition(ctx, userID, id, " FOR UPDATE")
}

func (db *DB) getPosition(ctx context.Context, userID, id int64, suffix string) (*models.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE id = $1 AND user_id = $2` + suffix
	p, err := scanPosition(db.q(ctx).QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("position", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	return p, nil
}

// UpdatePosition writes the mutable fields of a position
func (db *DB) UpdatePosition(ctx context.Context, p *models.Position) error {
	query := `
		UPDATE positions SET
			status = $3, quantity = $4, average_price = $5, position_type = $6,
			unrealized_pnl = $7, last_updated = $8, closed_at = $9, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at
	`
	err := db.q(ctx).QueryRowContext(ctx, query,
		p.ID, p.UserID, p.Status, p.Quantity, p.AveragePrice, p.PositionType,
		p.UnrealizedPnl, nullTime(p.LastUpdated), nullTime(p.ClosedAt),
	).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound("position", p.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to update position: %w", err)
	}
	return nil
}

// ListPositions lists a user's positions. accountID 0 and status "" do not filter.
func (db *DB) ListPositions(ctx context.Context, userID, accountID int64, status string) ([]*models.Position, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}
	if accountID != 0 {
		args = append(args, accountID)
		where = append(where, fmt.Sprintf("trading_account_id = $%d", len(args)))
	}
	if status != "" {
		args = append(args, status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + positionColumns + ` FROM positions WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY opened_at, id`
	rows, err := db.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []*models.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// SetPositionSection moves a position into a holding section, or out of any
// section when sectionID is nil
func (db *DB) SetPositionSection(ctx context.Context, userID, positionID int64, sectionID *int64) error {
	query := `UPDATE positions SET holding_section_id = $3, updated_at = NOW() WHERE id = $1 AND user_id = $2`
	result, err := db.q(ctx).ExecContext(ctx, query, positionID, userID, nullInt64(sectionID))
	if err != nil {
		return fmt.Errorf("failed to set position section: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return apperrors.NotFound("position", positionID)
	}
	return nil
}

func scanPosition(row rowScanner) (*models.Position, error) {
	var p models.Position
	var lastUpdated, closedAt sql.NullTime
	var sectionID sql.NullInt64

	err := row.Scan(
		&p.ID, &p.UserID, &p.TradingAccountID, &p.SecurityID, &p.Generation, &p.Status, &p.Quantity,
		&p.AveragePrice, &p.PositionType, &p.UnrealizedPnl, &lastUpdated, &p.OpenedAt, &closedAt,
		&sectionID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.LastUpdated = timePtr(lastUpdated)
	p.ClosedAt = timePtr(closedAt)
	p.HoldingSectionID = int64Ptr(sectionID)
	return &p, nil
}
