// Package tenant carries the acting user through every ledger call.
//
// A Tenant can only be built through New, so holding a valid one proves the
// session layer resolved a user. The zero value is rejected by the ledger.
package tenant

import (
	"fmt"
	"strconv"

	"github.com/trogers1052/trade-ledger/internal/apperrors"
)

// Tenant is the owning user of all ledger rows touched by a call
type Tenant struct {
	userID int64
}

// New resolves a tenant from a user id
func New(userID int64) (Tenant, error) {
	if userID <= 0 {
		return Tenant{}, fmt.Errorf("invalid user id %d: %w", userID, apperrors.ErrNoTenant)
	}
	return Tenant{userID: userID}, nil
}

// Parse resolves a tenant from its string form, as sent by the session layer
func Parse(s string) (Tenant, error) {
	if s == "" {
		return Tenant{}, apperrors.ErrNoTenant
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Tenant{}, fmt.Errorf("invalid user id %q: %w", s, apperrors.ErrNoTenant)
	}
	return New(id)
}

// UserID returns the tenant's user id
func (t Tenant) UserID() int64 {
	return t.userID
}

// Valid reports whether the tenant was resolved
func (t Tenant) Valid() bool {
	return t.userID > 0
}

// Check returns ErrNoTenant for an unresolved tenant
func (t Tenant) Check() error {
	if !t.Valid() {
		return apperrors.ErrNoTenant
	}
	return nil
}

func (t Tenant) String() string {
	return "user:" + strconv.FormatInt(t.userID, 10)
}
