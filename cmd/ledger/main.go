package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/trogers1052/trade-ledger/internal/catalog"
	"github.com/trogers1052/trade-ledger/internal/config"
	"github.com/trogers1052/trade-ledger/internal/database"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Position and trade ledger for a personal trading journal",
	Long: `ledger records trades, keeps one open position per security and account,
and rolls account values up into daily snapshots.

Commands:
  serve    - run the HTTP API, snapshot scheduler and rollup consumer
  migrate  - apply database migrations
  rollup   - snapshot accounts for a date`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		setupLogging(cfg.LogLevel)
		return nil
	},
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd, rollupCmd)
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func openDB() (*database.DB, error) {
	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	slog.Info("connected to database", "host", cfg.Database.Host, "name", cfg.Database.DBName)
	return db, nil
}

// newCatalog fronts the securities table with Redis when REDIS_ADDR is set.
// The returned close func is never nil.
func newCatalog(db *database.DB) (*catalog.Catalog, func() error) {
	if cfg.Redis.Addr == "" {
		return catalog.New(db, nil, 0, cfg.Ledger.PriceFreshness), func() error { return nil }
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Redis.Addr,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		DialTimeout: 5 * time.Second,
	})
	slog.Info("security quote cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.PriceTTL)
	return catalog.New(db, rdb, cfg.Redis.PriceTTL, cfg.Ledger.PriceFreshness), rdb.Close
}
