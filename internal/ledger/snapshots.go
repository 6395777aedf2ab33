package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/trade-ledger/internal/apperrors"
	"github.com/trogers1052/trade-ledger/internal/models"
	"github.com/trogers1052/trade-ledger/internal/pnl"
	"github.com/trogers1052/trade-ledger/internal/tenant"
)

// Aggregator rolls an account's positions into one snapshot per date
type Aggregator struct {
	store  SnapshotStore
	prices PriceSource
	now    func() time.Time
}

// NewAggregator creates an Aggregator
func NewAggregator(store SnapshotStore, prices PriceSource) *Aggregator {
	return &Aggregator{store: store, prices: prices, now: time.Now}
}

// SnapshotDate truncates t to its UTC calendar date
func SnapshotDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Rollup computes and upserts the snapshot of an account for a date. Running
// it again for the same date overwrites the row.
func (a *Aggregator) Rollup(ctx context.Context, tn tenant.Tenant, accountID int64, date time.Time) (*models.AccountSnapshot, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}
	date = SnapshotDate(date)

	account, err := a.store.GetTradingAccount(ctx, tn.UserID(), accountID)
	if err != nil {
		return nil, err
	}
	positions, err := a.store.ListPositions(ctx, tn.UserID(), accountID, models.PositionStatusOpen)
	if err != nil {
		return nil, err
	}
	vals, warnings, err := valuePositions(ctx, a.prices, positions)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		slog.Warn("snapshot uses zero value for unpriced position", "account_id", accountID, "warning", w.Error())
	}

	current, invested, unrealized := decimal.Zero, decimal.Zero, decimal.Zero
	for _, v := range vals {
		current = current.Add(v.CurrentValue)
		invested = invested.Add(v.InvestedAmount)
		unrealized = unrealized.Add(v.UnrealizedPnl)
	}
	total := current.Add(account.CashBalance)

	endOfDay := date.Add(24*time.Hour - time.Nanosecond)
	realized, err := a.store.RealizedPnl(ctx, tn.UserID(), accountID, endOfDay)
	if err != nil {
		return nil, err
	}

	dayPnl, dayPnlPct := decimal.Zero, decimal.Zero
	prev, err := a.store.GetPreviousAccountSnapshot(ctx, accountID, date)
	switch {
	case err == nil:
		dayPnl = total.Sub(prev.TotalValue)
		if !prev.TotalValue.IsZero() {
			dayPnlPct = dayPnl.Div(prev.TotalValue).Mul(decimal.NewFromInt(100)).Round(4)
		}
	case !errors.Is(err, apperrors.ErrNotFound):
		return nil, err
	}

	s := &models.AccountSnapshot{
		TradingAccountID:  accountID,
		Date:              date,
		TotalValue:        total,
		CashBalance:       account.CashBalance,
		InvestedAmount:    invested,
		UnrealizedPnl:     unrealized,
		RealizedPnl:       realized,
		DayPnl:            dayPnl,
		DayPnlPercent:     dayPnlPct,
		PercentDeployed:   pnl.PercentDeployed(invested, total),
		NumberOfPositions: len(positions),
		SyncedAt:          a.now(),
		SyncSource:        models.SyncSourceLedger,
	}
	if err := a.store.UpsertAccountSnapshot(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// RollupAll refreshes the snapshot of every account for a date. A failing
// account is logged and skipped; the joined failures are returned.
func (a *Aggregator) RollupAll(ctx context.Context, date time.Time) (int, error) {
	accounts, err := a.store.ListTradingAccounts(ctx)
	if err != nil {
		return 0, err
	}

	var errs []error
	done := 0
	for _, acc := range accounts {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		tn, err := tenant.New(acc.UserID)
		if err != nil {
			errs = append(errs, fmt.Errorf("account %d: %w", acc.ID, err))
			continue
		}
		if _, err := a.Rollup(ctx, tn, acc.ID, date); err != nil {
			slog.Error("snapshot rollup failed", "account_id", acc.ID, "err", err)
			errs = append(errs, fmt.Errorf("account %d: %w", acc.ID, err))
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

// History returns an account's snapshots between from and to, oldest first
func (a *Aggregator) History(ctx context.Context, tn tenant.Tenant, accountID int64, from, to time.Time) ([]*models.AccountSnapshot, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}
	if _, err := a.store.GetTradingAccount(ctx, tn.UserID(), accountID); err != nil {
		return nil, err
	}
	return a.store.ListAccountSnapshots(ctx, accountID, SnapshotDate(from), SnapshotDate(to))
}

// MonthlyPerformance is the percent change of total value from the first
// snapshot of last month to the latest snapshot
func (a *Aggregator) MonthlyPerformance(ctx context.Context, tn tenant.Tenant, accountID int64) (decimal.Decimal, error) {
	now := a.now().UTC()
	from := time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, time.UTC)
	snapshots, err := a.History(ctx, tn, accountID, from, now)
	if err != nil {
		return decimal.Zero, err
	}
	if len(snapshots) == 0 {
		return decimal.Zero, nil
	}
	start := snapshots[0].TotalValue
	end := snapshots[len(snapshots)-1].TotalValue
	if start.IsZero() {
		return decimal.Zero, nil
	}
	return end.Sub(start).Div(start).Mul(decimal.NewFromInt(100)).Round(2), nil
}

// Latest returns the most recent snapshot dated today or earlier
func (a *Aggregator) Latest(ctx context.Context, tn tenant.Tenant, accountID int64) (*models.AccountSnapshot, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}
	if _, err := a.store.GetTradingAccount(ctx, tn.UserID(), accountID); err != nil {
		return nil, err
	}
	tomorrow := SnapshotDate(a.now()).AddDate(0, 0, 1)
	return a.store.GetPreviousAccountSnapshot(ctx, accountID, tomorrow)
}
