package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/trogers1052/trade-ledger/internal/apperrors"
	"github.com/trogers1052/trade-ledger/internal/models"
)

// CreateJournalEntry inserts the journal entry of a trade
func (db *DB) CreateJournalEntry(ctx context.Context, e *models.JournalEntry) error {
	if e.Tags == nil {
		e.Tags = []string{}
	}
	query := `
		INSERT INTO journal_entries (trade_id, user_id, entry_type, mood, content, tags)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := db.q(ctx).QueryRowContext(ctx, query,
		e.TradeID, e.UserID, e.EntryType, nullString(e.Mood), e.Content, pq.Array(e.Tags),
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if _, ok := uniqueViolation(err); ok {
			v := &apperrors.ValidationError{}
			v.Add("trade_id", "already has a journal entry")
			return v
		}
		return fmt.Errorf("failed to create journal entry: %w", err)
	}
	return nil
}

// GetJournalEntryByTrade returns the journal entry of one of a user's trades
func (db *DB) GetJournalEntryByTrade(ctx context.Context, userID, tradeID int64) (*models.JournalEntry, error) {
	query := `
		SELECT id, trade_id, user_id, entry_type, mood, content, tags, created_at, updated_at
		FROM journal_entries
		WHERE trade_id = $1 AND user_id = $2
	`
	var e models.JournalEntry
	var mood sql.NullString
	err := db.q(ctx).QueryRowContext(ctx, query, tradeID, userID).Scan(
		&e.ID, &e.TradeID, &e.UserID, &e.EntryType, &mood, &e.Content, pq.Array(&e.Tags),
		&e.CreatedAt, &e.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("journal entry for trade", tradeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get journal entry: %w", err)
	}
	e.Mood = mood.String
	return &e, nil
}
