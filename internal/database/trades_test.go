package database

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/trade-ledger/internal/apperrors"
	"github.com/trogers1052/trade-ledger/internal/models"
)

func TestTradesRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)
	ctx := context.Background()

	closedTrade := func(account *models.TradingAccount, security *models.Security, strategy string, net int64, exit time.Time) *models.Trade {
		return &models.Trade{
			UserID:           account.UserID,
			TradingAccountID: account.ID,
			SecurityID:       security.ID,
			TradeType:        models.TradeTypeBuy,
			Quantity:         decimal.NewFromInt(10),
			EntryPrice:       decimal.NewFromInt(100),
			EntryDate:        exit.Add(-48 * time.Hour),
			ExitPrice:        decimal.NewNullDecimal(decimal.NewFromInt(110)),
			ExitDate:         &exit,
			GrossPnl:         decimal.NewNullDecimal(decimal.NewFromInt(net)),
			NetPnl:           decimal.NewNullDecimal(decimal.NewFromInt(net)),
			Strategy:         strategy,
			Timeframe:        models.TimeframeSwing,
			Status:           models.TradeStatusClosed,
		}
	}

	t.Run("CreateTrade and GetTrade round trip", func(t *testing.T) {
		testDB.TruncateAll(t)
		account := testDB.SeedAccount(t, 1, "main")
		security := testDB.SeedSecurity(t, "TCS", "3500")

		trade := closedTrade(account, security, "breakout", 100, time.Now().UTC().Truncate(time.Second))
		trade.PlannedStopLoss = decimal.NewNullDecimal(decimal.NewFromInt(95))
		require.NoError(t, testDB.CreateTrade(ctx, trade))
		assert.NotZero(t, trade.ID)
		assert.False(t, trade.CreatedAt.IsZero())

		got, err := testDB.GetTrade(ctx, 1, trade.ID)
		require.NoError(t, err)
		assert.Equal(t, "breakout", got.Strategy)
		assert.True(t, got.NetPnl.Decimal.Equal(decimal.NewFromInt(100)))
		assert.True(t, got.PlannedStopLoss.Valid)
		assert.False(t, got.PlannedTarget.Valid)
		assert.Nil(t, got.PositionID)
		require.NotNil(t, got.ExitDate)
	})

	t.Run("GetTrade hides other tenants", func(t *testing.T) {
		testDB.TruncateAll(t)
		account := testDB.SeedAccount(t, 1, "main")
		security := testDB.SeedSecurity(t, "TCS", "3500")

		trade := closedTrade(account, security, "", 100, time.Now().UTC())
		require.NoError(t, testDB.CreateTrade(ctx, trade))

		_, err := testDB.GetTrade(ctx, 2, trade.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("exit fields on an open trade violate the check", func(t *testing.T) {
		testDB.TruncateAll(t)
		account := testDB.SeedAccount(t, 1, "main")
		security := testDB.SeedSecurity(t, "TCS", "3500")

		trade := closedTrade(account, security, "", 100, time.Now().UTC())
		trade.Status = models.TradeStatusOpen
		assert.Error(t, testDB.CreateTrade(ctx, trade))
	})

	t.Run("DeleteTrade cascades to the journal entry", func(t *testing.T) {
		testDB.TruncateAll(t)
		account := testDB.SeedAccount(t, 1, "main")
		security := testDB.SeedSecurity(t, "TCS", "3500")

		trade := closedTrade(account, security, "", 100, time.Now().UTC())
		require.NoError(t, testDB.CreateTrade(ctx, trade))
		entry := &models.JournalEntry{TradeID: trade.ID, UserID: 1, EntryType: models.EntryTypePostTrade, Content: "ok", Tags: []string{"patience"}}
		require.NoError(t, testDB.CreateJournalEntry(ctx, entry))

		dup := &models.JournalEntry{TradeID: trade.ID, UserID: 1, EntryType: models.EntryTypePostTrade, Content: "again"}
		assert.True(t, apperrors.IsValidation(testDB.CreateJournalEntry(ctx, dup)))

		got, err := testDB.GetJournalEntryByTrade(ctx, 1, trade.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"patience"}, got.Tags)

		require.NoError(t, testDB.DeleteTrade(ctx, 1, trade.ID))
		_, err = testDB.GetJournalEntryByTrade(ctx, 1, trade.ID)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("ListTrades filters and limits", func(t *testing.T) {
		testDB.TruncateAll(t)
		account := testDB.SeedAccount(t, 1, "main")
		security := testDB.SeedSecurity(t, "TCS", "3500")

		base := time.Now().UTC()
		for i := 0; i < 5; i++ {
			strategy := "breakout"
			if i%2 == 0 {
				strategy = "pullback"
			}
			require.NoError(t, testDB.CreateTrade(ctx, closedTrade(account, security, strategy, 100, base.Add(time.Duration(i)*time.Hour))))
		}

		pullbacks, err := testDB.ListTrades(ctx, 1, models.TradeFilter{Strategy: "pullback"})
		require.NoError(t, err)
		assert.Len(t, pullbacks, 3)

		limited, err := testDB.ListTrades(ctx, 1, models.TradeFilter{Limit: 2})
		require.NoError(t, err)
		require.Len(t, limited, 2)
		assert.True(t, limited[0].EntryDate.After(limited[1].EntryDate))
	})

	t.Run("GetTradeStats classifies breakeven", func(t *testing.T) {
		testDB.TruncateAll(t)
		account := testDB.SeedAccount(t, 1, "main")
		security := testDB.SeedSecurity(t, "TCS", "3500")

		now := time.Now().UTC()
		for _, net := range []int64{500, 300, -200, 5} {
			require.NoError(t, testDB.CreateTrade(ctx, closedTrade(account, security, "breakout", net, now)))
		}

		stats, err := testDB.GetTradeStats(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 4, stats.ClosedTrades)
		assert.Equal(t, 2, stats.WinningTrades)
		assert.Equal(t, 1, stats.LosingTrades)
		assert.Equal(t, 1, stats.BreakevenTrades)
		assert.True(t, stats.WinRate.Equal(decimal.NewFromInt(50)))
		assert.True(t, stats.TotalNetPnl.Equal(decimal.NewFromInt(605)))
		assert.True(t, stats.AvgWin.Equal(decimal.NewFromInt(400)))
		assert.Equal(t, models.StrategyStats{Profit: 2, Loss: 1}, stats.StrategyBreakdown["breakout"])
	})

	t.Run("RealizedPnl counts trades closed by the cutoff", func(t *testing.T) {
		testDB.TruncateAll(t)
		account := testDB.SeedAccount(t, 1, "main")
		security := testDB.SeedSecurity(t, "TCS", "3500")

		day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
		require.NoError(t, testDB.CreateTrade(ctx, closedTrade(account, security, "", 100, day.Add(10*time.Hour))))
		require.NoError(t, testDB.CreateTrade(ctx, closedTrade(account, security, "", 50, day.Add(34*time.Hour))))

		total, err := testDB.RealizedPnl(ctx, 1, account.ID, day.Add(24*time.Hour-time.Nanosecond))
		require.NoError(t, err)
		assert.True(t, total.Equal(decimal.NewFromInt(100)))
	})
}

func TestSnapshotsAndSectionsRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)
	ctx := context.Background()

	t.Run("UpsertAccountSnapshot overwrites the same date", func(t *testing.T) {
		testDB.TruncateAll(t)
		account := testDB.SeedAccount(t, 1, "main")
		day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

		first := &models.AccountSnapshot{TradingAccountID: account.ID, Date: day, TotalValue: decimal.NewFromInt(100), SyncedAt: time.Now(), SyncSource: models.SyncSourceLedger}
		require.NoError(t, testDB.UpsertAccountSnapshot(ctx, first))
		second := &models.AccountSnapshot{TradingAccountID: account.ID, Date: day, TotalValue: decimal.NewFromInt(200), SyncedAt: time.Now(), SyncSource: models.SyncSourceLedger}
		require.NoError(t, testDB.UpsertAccountSnapshot(ctx, second))
		assert.Equal(t, first.ID, second.ID)

		snapshots, err := testDB.ListAccountSnapshots(ctx, account.ID, day, day)
		require.NoError(t, err)
		require.Len(t, snapshots, 1)
		assert.True(t, snapshots[0].TotalValue.Equal(decimal.NewFromInt(200)))

		_, err = testDB.GetPreviousAccountSnapshot(ctx, account.ID, day)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		prev, err := testDB.GetPreviousAccountSnapshot(ctx, account.ID, day.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Equal(t, second.ID, prev.ID)
	})

	t.Run("section names are unique per user and reorder persists", func(t *testing.T) {
		testDB.TruncateAll(t)

		a := &models.HoldingSection{UserID: 1, Name: "Core", Color: "#3B82F6"}
		b := &models.HoldingSection{UserID: 1, Name: "Probe", Color: "#10B981", Position: 1}
		require.NoError(t, testDB.CreateHoldingSection(ctx, a))
		require.NoError(t, testDB.CreateHoldingSection(ctx, b))
		assert.True(t, apperrors.IsValidation(testDB.CreateHoldingSection(ctx, &models.HoldingSection{UserID: 1, Name: "Core", Color: "#000000"})))
		require.NoError(t, testDB.CreateHoldingSection(ctx, &models.HoldingSection{UserID: 2, Name: "Core", Color: "#000000"}))

		require.NoError(t, testDB.SetSectionOrder(ctx, 1, []int64{b.ID, a.ID}))
		sections, err := testDB.ListHoldingSections(ctx, 1)
		require.NoError(t, err)
		require.Len(t, sections, 2)
		assert.Equal(t, "Probe", sections[0].Name)

		max, ok, err := testDB.MaxSectionPosition(ctx, 1)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, max)
	})
}
