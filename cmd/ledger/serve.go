package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/trogers1052/trade-ledger/internal/api"
	"github.com/trogers1052/trade-ledger/internal/kafka"
	"github.com/trogers1052/trade-ledger/internal/ledger"
	"github.com/trogers1052/trade-ledger/internal/scheduler"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, snapshot scheduler and rollup consumer",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply pending migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if serveMigrate {
		if err := db.Migrate(cfg.Database.MigrationsDir, 0); err != nil {
			return err
		}
	}

	cat, closeCache := newCatalog(db)
	defer closeCache()

	positions := ledger.NewLedger(db, cat, cfg.Ledger.MaxCreateAttempts)
	aggregator := ledger.NewAggregator(db, cat)

	var notifier ledger.RollupNotifier
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.RollupTopic)
		defer producer.Close()
		notifier = producer

		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.RollupTopic, cfg.Kafka.GroupID, aggregator)
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("kafka consumer stopped", "err", err)
			}
		}()
	} else {
		slog.Warn("KAFKA_BROKERS not set; closed trades wait for the scheduled rollup")
	}

	trades := ledger.NewTradeService(db, positions, cat, notifier)
	handler := api.NewHandler(api.Deps{
		Trades:    trades,
		Positions: positions,
		Sections:  ledger.NewSections(db),
		Snapshots: aggregator,
		Accounts:  db,
		Quotes:    cat,
		Health:    db,
		Currency:  cfg.Ledger.Currency,
	})

	go scheduler.New(aggregator, cfg.Ledger.RollupInterval).Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.SetupRoutes(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
