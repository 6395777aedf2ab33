// Package apperrors defines the error taxonomy shared by the ledger, its
// storage layer and the HTTP surface.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned for missing rows and for rows owned by another tenant
	ErrNotFound = errors.New("not found")

	// ErrInvariantViolation is returned when a write would break a ledger invariant
	ErrInvariantViolation = errors.New("invariant violation")

	// ErrNoTenant is returned when a call arrives without a resolved tenant
	ErrNoTenant = errors.New("tenant not resolved")
)

// NotFound wraps ErrNotFound with the kind and id of the missing row
func NotFound(kind string, id int64) error {
	return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
}

// Invariant wraps ErrInvariantViolation with a description
func Invariant(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariantViolation, fmt.Sprintf(format, args...))
}

// FieldError describes one rejected input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects field-level problems found before persistence
type ValidationError struct {
	Fields []FieldError `json:"errors"`
}

// Add records a problem with a field
func (v *ValidationError) Add(field, message string) {
	v.Fields = append(v.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field was rejected
func (v *ValidationError) HasErrors() bool {
	return len(v.Fields) > 0
}

// Err returns v as an error, or nil when nothing was rejected
func (v *ValidationError) Err() error {
	if !v.HasErrors() {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	parts := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// IsValidation reports whether err carries a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// StaleDataWarning is raised when a security has no usable price. It never
// fails an operation; P&L derived from the price degrades to zero.
type StaleDataWarning struct {
	SecurityID  int64
	LastUpdated *time.Time
}

func (w StaleDataWarning) Error() string {
	if w.LastUpdated == nil {
		return fmt.Sprintf("security %d has no price", w.SecurityID)
	}
	return fmt.Sprintf("security %d price is stale (last updated %s)", w.SecurityID, w.LastUpdated.Format(time.RFC3339))
}
