package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/trogers1052/trade-ledger/internal/apperrors"
	"github.com/trogers1052/trade-ledger/internal/models"
)

const securityColumns = `id, symbol, exchange, company_name, sector, industry, last_price, last_updated`

// UpsertSecurity inserts or refreshes a security keyed by symbol and exchange
func (db *DB) UpsertSecurity(ctx context.Context, s *models.Security) error {
	query := `
		INSERT INTO securities (symbol, exchange, company_name, sector, industry, last_price, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol, exchange) DO UPDATE SET
			company_name = EXCLUDED.company_name,
			sector = EXCLUDED.sector,
			industry = EXCLUDED.industry,
			last_price = EXCLUDED.last_price,
			last_updated = EXCLUDED.last_updated,
			updated_at = NOW()
		RETURNING id
	`
	err := db.q(ctx).QueryRowContext(ctx, query,
		s.Symbol, s.Exchange, nullString(s.CompanyName), nullString(s.Sector), nullString(s.Industry),
		s.LastPrice, nullTime(s.LastUpdated),
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert security: %w", err)
	}
	return nil
}

// GetSecurity retrieves a security by id
func (db *DB) GetSecurity(ctx context.Context, id int64) (*models.Security, error) {
	query := `SELECT ` + securityColumns + ` FROM securities WHERE id = $1`
	s, err := scanSecurity(db.q(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("security", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get security: %w", err)
	}
	return s, nil
}

// GetSecurityBySymbol retrieves a security by symbol and exchange
func (db *DB) GetSecurityBySymbol(ctx context.Context, symbol, exchange string) (*models.Security, error) {
	query := `SELECT ` + securityColumns + ` FROM securities WHERE symbol = $1 AND exchange = $2`
	s, err := scanSecurity(db.q(ctx).QueryRowContext(ctx, query, symbol, exchange))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("security %s:%s: %w", exchange, symbol, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get security: %w", err)
	}
	return s, nil
}

func scanSecurity(row rowScanner) (*models.Security, error) {
	var s models.Security
	var companyName, sector, industry sql.NullString
	var lastUpdated sql.NullTime

	err := row.Scan(&s.ID, &s.Symbol, &s.Exchange, &companyName, &sector, &industry, &s.LastPrice, &lastUpdated)
	if err != nil {
		return nil, err
	}
	s.CompanyName = companyName.String
	s.Sector = sector.String
	s.Industry = industry.String
	s.LastUpdated = timePtr(lastUpdated)
	return &s, nil
}
