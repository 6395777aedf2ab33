package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/trade-ledger/internal/models"
)

// DateLayout is the wire format of snapshot dates
const DateLayout = "2006-01-02"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes rollup requests
type Producer struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
		now:    time.Now,
	}
}

// RequestRollup publishes a request to refresh an account's snapshot for a
// date. Messages are keyed by account so requests for one account stay ordered.
func (p *Producer) RequestRollup(ctx context.Context, userID, accountID int64, date time.Time, reason string) error {
	now := p.now()
	id, err := newEventID(now)
	if err != nil {
		return fmt.Errorf("failed to generate event id: %w", err)
	}

	event := models.RollupRequestedEvent{
		EventID:          id,
		EventType:        models.EventTypeRollupRequested,
		UserID:           userID,
		TradingAccountID: accountID,
		Date:             date.UTC().Format(DateLayout),
		Reason:           reason,
		Timestamp:        now,
	}
	return p.publish(ctx, strconv.FormatInt(accountID, 10), event)
}

func (p *Producer) publish(ctx context.Context, key string, event models.RollupRequestedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
