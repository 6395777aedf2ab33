package models

import "time"

// Journal entry type constants
const (
	EntryTypePreTrade      = "pre_trade"
	EntryTypeDuringTrade   = "during_trade"
	EntryTypePostTrade     = "post_trade"
	EntryTypeLessonLearned = "lesson_learned"
)

// JournalEntry annotates a single trade
type JournalEntry struct {
	ID        int64     `json:"id"`
	TradeID   int64     `json:"trade_id"`
	UserID    int64     `json:"user_id"`
	EntryType string    `json:"entry_type"`
	Mood      string    `json:"mood,omitempty"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
