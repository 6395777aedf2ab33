package models

import "time"

// HoldingSection is a user-defined bucket that positions may be grouped into
type HoldingSection struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Position    int       `json:"position"`
	Color       string    `json:"color"`
	IsDefault   bool      `json:"is_default"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DefaultSectionColor is used when a section is created without a color
const DefaultSectionColor = "#6B7280"
