package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/trogers1052/trade-ledger/internal/apperrors"
	"github.com/trogers1052/trade-ledger/internal/models"
)

const sectionColumns = `id, user_id, name, description, position, color, is_default, created_at, updated_at`

func sectionNameTaken(err error) error {
	if _, ok := uniqueViolation(err); ok {
		v := &apperrors.ValidationError{}
		v.Add("name", "has already been taken")
		return v
	}
	return nil
}

// CreateHoldingSection inserts a new holding section
func (db *DB) CreateHoldingSection(ctx context.Context, s *models.HoldingSection) error {
	query := `
		INSERT INTO holding_sections (user_id, name, description, position, color, is_default)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := db.q(ctx).QueryRowContext(ctx, query,
		s.UserID, s.Name, nullString(s.Description), s.Position, s.Color, s.IsDefault,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if verr := sectionNameTaken(err); verr != nil {
			return verr
		}
		return fmt.Errorf("failed to create holding section: %w", err)
	}
	return nil
}

// GetHoldingSection retrieves one of a user's sections
func (db *DB) GetHoldingSection(ctx context.Context, userID, id int64) (*models.HoldingSection, error) {
	query := `SELECT ` + sectionColumns + ` FROM holding_sections WHERE id = $1 AND user_id = $2`
	s, err := scanSection(db.q(ctx).QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("holding section", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding section: %w", err)
	}
	return s, nil
}

// ListHoldingSections returns a user's sections in display order
func (db *DB) ListHoldingSections(ctx context.Context, userID int64) ([]*models.HoldingSection, error) {
	query := `SELECT ` + sectionColumns + ` FROM holding_sections WHERE user_id = $1 ORDER BY position, id`
	rows, err := db.q(ctx).QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holding sections: %w", err)
	}
	defer rows.Close()

	var sections []*models.HoldingSection
	for rows.Next() {
		s, err := scanSection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding section: %w", err)
		}
		sections = append(sections, s)
	}
	return sections, rows.Err()
}

// UpdateHoldingSection writes a section's name, description and color
func (db *DB) UpdateHoldingSection(ctx context.Context, s *models.HoldingSection) error {
	query := `
		UPDATE holding_sections SET name = $3, description = $4, color = $5, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at
	`
	err := db.q(ctx).QueryRowContext(ctx, query, s.ID, s.UserID, s.Name, nullString(s.Description), s.Color).
		Scan(&s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return apperrors.NotFound("holding section", s.ID)
	}
	if err != nil {
		if verr := sectionNameTaken(err); verr != nil {
			return verr
		}
		return fmt.Errorf("failed to update holding section: %w", err)
	}
	return nil
}

// DeleteHoldingSection removes a section after detaching its positions
func (db *DB) DeleteHoldingSection(ctx context.Context, userID, id int64) error {
	return db.InTx(ctx, func(ctx context.Context) error {
		_, err := db.q(ctx).ExecContext(ctx,
			`UPDATE positions SET holding_section_id = NULL, updated_at = NOW() WHERE holding_section_id = $1 AND user_id = $2`,
			id, userID)
		if err != nil {
			return fmt.Errorf("failed to detach positions: %w", err)
		}

		result, err := db.q(ctx).ExecContext(ctx, `DELETE FROM holding_sections WHERE id = $1 AND user_id = $2`, id, userID)
		if err != nil {
			return fmt.Errorf("failed to delete holding section: %w", err)
		}
		rowsAffected, _ := result.RowsAffected()
		if rowsAffected == 0 {
			return apperrors.NotFound("holding section", id)
		}
		return nil
	})
}

// MaxSectionPosition returns the highest ordering index of a user's
// sections; false when the user has none
func (db *DB) MaxSectionPosition(ctx context.Context, userID int64) (int, bool, error) {
	var max sql.NullInt64
	err := db.q(ctx).QueryRowContext(ctx, `SELECT MAX(position) FROM holding_sections WHERE user_id = $1`, userID).Scan(&max)
	if err != nil {
		return 0, false, fmt.Errorf("failed to get max section position: %w", err)
	}
	return int(max.Int64), max.Valid, nil
}

// SetSectionOrder stores orderedIDs[i] at position i
func (db *DB) SetSectionOrder(ctx context.Context, userID int64, orderedIDs []int64) error {
	return db.InTx(ctx, func(ctx context.Context) error {
		for i, id := range orderedIDs {
			result, err := db.q(ctx).ExecContext(ctx,
				`UPDATE holding_sections SET position = $3, updated_at = NOW() WHERE id = $1 AND user_id = $2`,
				id, userID, i)
			if err != nil {
				return fmt.Errorf("failed to reorder holding sections: %w", err)
			}
			rowsAffected, _ := result.RowsAffected()
			if rowsAffected == 0 {
				return apperrors.NotFound("holding section", id)
			}
		}
		return nil
	})
}

func scanSection(row rowScanner) (*models.HoldingSection, error) {
	var s models.HoldingSection
	var description sql.NullString
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &description, &s.Position, &s.Color, &s.IsDefault, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	s.Description = description.String
	return &s, nil
}
