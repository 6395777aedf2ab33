package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/trogers1052/trade-ledger/internal/ledger"
	"github.com/trogers1052/trade-ledger/internal/pnl"
	"github.com/trogers1052/trade-ledger/internal/tenant"
)

var (
	rollupDate    string
	rollupUser    int64
	rollupAccount int64
)

var rollupCmd = &cobra.Command{
	Use:   "rollup",
	Short: "Snapshot trading accounts for a date",
	Long: `Compute and store account snapshots. Without --account every trading
account is snapshotted; with it, --user must name the owner.

Examples:
  ledger rollup
  ledger rollup --date 2024-03-15
  ledger rollup --user 7 --account 3`,
	Args: cobra.NoArgs,
	RunE: runRollup,
}

func init() {
	rollupCmd.Flags().StringVar(&rollupDate, "date", "", "snapshot date YYYY-MM-DD (default today, UTC)")
	rollupCmd.Flags().Int64Var(&rollupUser, "user", 0, "owner of --account")
	rollupCmd.Flags().Int64Var(&rollupAccount, "account", 0, "single trading account to snapshot")
}

func parseRollupDate(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return ledger.SnapshotDate(now), nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: %w", s, err)
	}
	return d, nil
}

func runRollup(cmd *cobra.Command, args []string) error {
	date, err := parseRollupDate(rollupDate, time.Now())
	if err != nil {
		return err
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	cat, closeCache := newCatalog(db)
	defer closeCache()
	agg := ledger.NewAggregator(db, cat)
	ctx := cmd.Context()

	if rollupAccount == 0 {
		n, err := agg.RollupAll(ctx, date)
		slog.Info("rollup finished", "date", date.Format(time.DateOnly), "snapshots", n)
		return err
	}

	tn, err := tenant.New(rollupUser)
	if err != nil {
		return fmt.Errorf("--user is required with --account: %w", err)
	}
	snap, err := agg.Rollup(ctx, tn, rollupAccount, date)
	if err != nil {
		return err
	}
	cur := cfg.Ledger.Currency
	fmt.Fprintf(cmd.OutOrStdout(), "account %d on %s: total %s, invested %s, unrealized %s, realized %s, deployed %s%%\n",
		rollupAccount, date.Format(time.DateOnly),
		pnl.Format(snap.TotalValue, cur), pnl.Format(snap.InvestedAmount, cur),
		pnl.FormatSigned(snap.UnrealizedPnl, cur), pnl.FormatSigned(snap.RealizedPnl, cur),
		snap.PercentDeployed.StringFixed(2))
	return nil
}
