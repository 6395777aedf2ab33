package models

import "time"

// Event type constants
const (
	EventTypeRollupRequested = "ROLLUP_REQUESTED"
)

// RollupRequestedEvent asks the aggregator to refresh one account snapshot
type RollupRequestedEvent struct {
	EventID          string    `json:"event_id"`
	EventType        string    `json:"event_type"`
	UserID           int64     `json:"user_id"`
	TradingAccountID int64     `json:"trading_account_id"`
	Date             string    `json:"date"`
	Reason           string    `json:"reason,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}
