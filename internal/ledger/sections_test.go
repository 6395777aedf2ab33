package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/trade-ledger/internal/apperrors"
	"github.com/trogers1052/trade-ledger/internal/models"
)

func TestReorder(t *testing.T) {
	sections := func() []*models.HoldingSection {
		return []*models.HoldingSection{{ID: 1, Position: 0}, {ID: 2, Position: 1}, {ID: 3, Position: 2}}
	}

	t.Run("assigns contiguous positions", func(t *testing.T) {
		s := sections()
		require.NoError(t, Reorder(s, []int64{3, 1, 2}))
		assert.Equal(t, 1, s[0].Position)
		assert.Equal(t, 2, s[1].Position)
		assert.Equal(t, 0, s[2].Position)
	})

	tests := []struct {
		name string
		ids  []int64
	}{
		{"missing id", []int64{1, 2}},
		{"duplicate id", []int64{1, 1, 2}},
		{"unknown id", []int64{1, 2, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sections()
			err := Reorder(s, tt.ids)
			assert.True(t, apperrors.IsValidation(err))
			assert.Equal(t, 0, s[0].Position)
		})
	}
}

func TestSections(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults and appended positions", func(t *testing.T) {
		f := newFixture(t)
		svc := NewSections(f.repo)

		defaults, err := svc.CreateDefaults(ctx, f.tn)
		require.NoError(t, err)
		require.Len(t, defaults, 2)
		assert.Equal(t, "Core Holdings", defaults[0].Name)
		assert.Equal(t, 0, defaults[0].Position)
		assert.Equal(t, 1, defaults[1].Position)

		sec, err := svc.Create(ctx, f.tn, &models.HoldingSection{Name: "  Speculative "})
		require.NoError(t, err)
		assert.Equal(t, "Speculative", sec.Name)
		assert.Equal(t, 2, sec.Position)
		assert.Equal(t, models.DefaultSectionColor, sec.Color)
	})

	t.Run("names are unique per user", func(t *testing.T) {
		f := newFixture(t)
		svc := NewSections(f.repo)
		_, err := svc.Create(ctx, f.tn, &models.HoldingSection{Name: "Core"})
		require.NoError(t, err)
		_, err = svc.Create(ctx, f.tn, &models.HoldingSection{Name: "Core"})
		assert.True(t, apperrors.IsValidation(err))

		_, err = svc.Create(ctx, mustTenant(8), &models.HoldingSection{Name: "Core"})
		assert.NoError(t, err)
	})

	t.Run("blank name", func(t *testing.T) {
		f := newFixture(t)
		_, err := NewSections(f.repo).Create(ctx, f.tn, &models.HoldingSection{Name: " "})
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("reorder persists", func(t *testing.T) {
		f := newFixture(t)
		svc := NewSections(f.repo)
		defaults, err := svc.CreateDefaults(ctx, f.tn)
		require.NoError(t, err)

		ordered, err := svc.ReorderSections(ctx, f.tn, []int64{defaults[1].ID, defaults[0].ID})
		require.NoError(t, err)
		require.Len(t, ordered, 2)
		assert.Equal(t, "Probe Holdings", ordered[0].Name)
		assert.Equal(t, 0, ordered[0].Position)
	})

	t.Run("move position and delete section", func(t *testing.T) {
		f := newFixture(t)
		svc := NewSections(f.repo)
		trade, err := f.trades.Create(ctx, f.tn, f.openTrade(models.TradeTypeBuy, "10", "50"))
		require.NoError(t, err)
		sec, err := svc.Create(ctx, f.tn, &models.HoldingSection{Name: "Core"})
		require.NoError(t, err)

		p, err := svc.MovePosition(ctx, f.tn, *trade.PositionID, &sec.ID)
		require.NoError(t, err)
		require.NotNil(t, p.HoldingSectionID)
		assert.Equal(t, sec.ID, *p.HoldingSectionID)

		groups, unassigned, err := svc.Holdings(ctx, f.tn)
		require.NoError(t, err)
		require.Len(t, groups, 1)
		assert.Len(t, groups[0].Positions, 1)
		assert.Empty(t, unassigned)

		require.NoError(t, svc.Delete(ctx, f.tn, sec.ID))
		stored, err := f.ledger.GetPosition(ctx, f.tn, p.ID)
		require.NoError(t, err)
		assert.Nil(t, stored.HoldingSectionID)
	})

	t.Run("move into another tenant's section", func(t *testing.T) {
		f := newFixture(t)
		svc := NewSections(f.repo)
		trade, err := f.trades.Create(ctx, f.tn, f.openTrade(models.TradeTypeBuy, "10", "50"))
		require.NoError(t, err)
		foreign, err := svc.Create(ctx, mustTenant(8), &models.HoldingSection{Name: "Theirs"})
		require.NoError(t, err)

		_, err = svc.MovePosition(ctx, f.tn, *trade.PositionID, &foreign.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("update", func(t *testing.T) {
		f := newFixture(t)
		svc := NewSections(f.repo)
		sec, err := svc.Create(ctx, f.tn, &models.HoldingSection{Name: "Core"})
		require.NoError(t, err)

		color := "#000000"
		updated, err := svc.Update(ctx, f.tn, sec.ID, SectionUpdate{Color: &color})
		require.NoError(t, err)
		assert.Equal(t, "#000000", updated.Color)
		assert.Equal(t, "Core", updated.Name)
	})
}
