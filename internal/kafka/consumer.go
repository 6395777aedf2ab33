package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/trade-ledger/internal/models"
	"github.com/trogers1052/trade-ledger/internal/tenant"
)

// Roller refreshes one account snapshot
type Roller interface {
	Rollup(ctx context.Context, tn tenant.Tenant, accountID int64, date time.Time) (*models.AccountSnapshot, error)
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Config() kafka.ReaderConfig
	Close() error
}

// Consumer runs the snapshot rollups requested on the rollup topic
type Consumer struct {
	reader messageReader
	roller Roller
}

// NewConsumer creates a new Kafka consumer for rollup requests
func NewConsumer(brokers []string, topic, groupID string, roller Roller) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.FirstOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader: reader,
		roller: roller,
	}
}

// Start consumes messages until ctx is cancelled
func (c *Consumer) Start(ctx context.Context) error {
	slog.Info("starting kafka consumer", "topic", c.reader.Config().Topic)

	for {
		select {
		case <-ctx.Done():
			slog.Info("kafka consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return c.reader.Close()
				}
				slog.Error("error reading message", "err", err)
				continue
			}

			// a failed rollup is retried by the next request or scheduled run
			if err := c.processMessage(ctx, msg); err != nil {
				slog.Error("error processing message",
					"partition", msg.Partition, "offset", msg.Offset, "err", err)
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event models.RollupRequestedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal rollup event: %w", err)
	}

	if event.EventType != models.EventTypeRollupRequested {
		slog.Debug("ignoring event", "event_type", event.EventType)
		return nil
	}

	tn, err := tenant.New(event.UserID)
	if err != nil {
		return fmt.Errorf("event %s: %w", event.EventID, err)
	}
	date, err := time.Parse(DateLayout, event.Date)
	if err != nil {
		return fmt.Errorf("event %s: invalid date %q: %w", event.EventID, event.Date, err)
	}

	snapshot, err := c.roller.Rollup(ctx, tn, event.TradingAccountID, date)
	if err != nil {
		return fmt.Errorf("failed to roll up account %d: %w", event.TradingAccountID, err)
	}

	slog.Info("account snapshot rolled up",
		"event_id", event.EventID, "account_id", event.TradingAccountID,
		"date", event.Date, "total_value", snapshot.TotalValue.String(), "reason", event.Reason)
	return nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
