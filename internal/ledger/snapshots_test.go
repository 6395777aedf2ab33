package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/trade-ledger/internal/apperrors"
	"github.com/trogers1052/trade-ledger/internal/models"
	"github.com/trogers1052/trade-ledger/internal/tenant"
)

func TestSnapshotDate(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	got := SnapshotDate(time.Date(2024, 3, 10, 2, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), got)
}

func TestAggregator_Rollup(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	setup := func(t *testing.T) (*fixture, *Aggregator) {
		f := newFixture(t)
		_, err := f.trades.Create(ctx, f.tn, f.openTrade(models.TradeTypeBuy, "100", "50"))
		require.NoError(t, err)
		closed := f.closedTrade("100", "50", "60")
		closed.Brokerage = d("20")
		closed.Taxes = d("5.50")
		_, err = f.trades.Create(ctx, f.tn, closed)
		require.NoError(t, err)
		return f, NewAggregator(f.repo, f.prices)
	}

	t.Run("aggregates open positions and cash", func(t *testing.T) {
		f, agg := setup(t)
		s, err := agg.Rollup(ctx, f.tn, f.account.ID, day.Add(13*time.Hour))
		require.NoError(t, err)

		assert.Equal(t, day, s.Date)
		assert.True(t, s.TotalValue.Equal(d("7000")), "got %s", s.TotalValue)
		assert.True(t, s.CashBalance.Equal(d("1000")))
		assert.True(t, s.InvestedAmount.Equal(d("5000")))
		assert.True(t, s.UnrealizedPnl.Equal(d("1000")))
		assert.True(t, s.RealizedPnl.Equal(d("974.50")))
		assert.True(t, s.PercentDeployed.Equal(d("71.43")), "got %s", s.PercentDeployed)
		assert.True(t, s.DayPnl.IsZero())
		assert.Equal(t, 1, s.NumberOfPositions)
		assert.Equal(t, models.SyncSourceLedger, s.SyncSource)
	})

	t.Run("is idempotent per account and date", func(t *testing.T) {
		f, agg := setup(t)
		_, err := agg.Rollup(ctx, f.tn, f.account.ID, day)
		require.NoError(t, err)
		_, err = agg.Rollup(ctx, f.tn, f.account.ID, day.Add(5*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, f.repo.SnapshotCount())
	})

	t.Run("day pnl against the previous snapshot", func(t *testing.T) {
		f, agg := setup(t)
		_, err := agg.Rollup(ctx, f.tn, f.account.ID, day)
		require.NoError(t, err)

		f.prices.add(testSecurityID, "Technology", "61")
		s, err := agg.Rollup(ctx, f.tn, f.account.ID, day.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.True(t, s.DayPnl.Equal(d("100")), "got %s", s.DayPnl)
		assert.True(t, s.DayPnlPercent.Equal(d("1.4286")), "got %s", s.DayPnlPercent)
	})

	t.Run("realized pnl only counts trades closed by the date", func(t *testing.T) {
		f, agg := setup(t)
		s, err := agg.Rollup(ctx, f.tn, f.account.ID, day.AddDate(0, 0, -1))
		require.NoError(t, err)
		assert.True(t, s.RealizedPnl.IsZero())
	})

	t.Run("empty account deploys nothing", func(t *testing.T) {
		repo := NewMockRepository()
		acc := repo.AddAccount(7, d("0"))
		agg := NewAggregator(repo, newMockPrices())

		s, err := agg.Rollup(ctx, mustTenant(7), acc.ID, day)
		require.NoError(t, err)
		assert.True(t, s.TotalValue.IsZero())
		assert.True(t, s.PercentDeployed.IsZero())
		assert.Equal(t, 0, s.NumberOfPositions)
	})

	t.Run("other tenant's account", func(t *testing.T) {
		f, agg := setup(t)
		_, err := agg.Rollup(ctx, mustTenant(8), f.account.ID, day)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("zero tenant", func(t *testing.T) {
		f, agg := setup(t)
		_, err := agg.Rollup(ctx, tenant.Tenant{}, f.account.ID, day)
		assert.ErrorIs(t, err, apperrors.ErrNoTenant)
	})
}

func TestAggregator_RollupAll(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepository()
	repo.AddAccount(7, d("100"))
	repo.AddAccount(8, d("200"))
	agg := NewAggregator(repo, newMockPrices())

	n, err := agg.RollupAll(ctx, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, repo.SnapshotCount())
}

func TestAggregator_HistoryAndMonthlyPerformance(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepository()
	acc := repo.AddAccount(7, d("1000"))
	agg := NewAggregator(repo, newMockPrices())
	agg.now = func() time.Time { return time.Date(2024, 4, 20, 12, 0, 0, 0, time.UTC) }
	tn := mustTenant(7)

	_, err := agg.Rollup(ctx, tn, acc.ID, time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = agg.Rollup(ctx, tn, acc.ID, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	repo.accounts[acc.ID].CashBalance = d("1100")
	_, err = agg.Rollup(ctx, tn, acc.ID, time.Date(2024, 4, 19, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	history, err := agg.History(ctx, tn, acc.ID, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 4, 30, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].Date.Before(history[1].Date))

	perf, err := agg.MonthlyPerformance(ctx, tn, acc.ID)
	require.NoError(t, err)
	assert.True(t, perf.Equal(d("10")), "got %s", perf)
}

func TestAggregator_Latest(t *testing.T) {
	ctx := context.Background()
	repo := NewMockRepository()
	acc := repo.AddAccount(7, d("1000"))
	agg := NewAggregator(repo, newMockPrices())
	agg.now = func() time.Time { return time.Date(2024, 4, 20, 23, 0, 0, 0, time.UTC) }
	tn := mustTenant(7)

	_, err := agg.Latest(ctx, tn, acc.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	for _, day := range []int{18, 20, 21} {
		_, err := agg.Rollup(ctx, tn, acc.ID, time.Date(2024, 4, day, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
	}

	latest, err := agg.Latest(ctx, tn, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC), latest.Date)

	_, err = agg.Latest(ctx, mustTenant(8), acc.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
