package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/trade-ledger/internal/apperrors"
	"github.com/trogers1052/trade-ledger/internal/models"
	"github.com/trogers1052/trade-ledger/internal/pnl"
	"github.com/trogers1052/trade-ledger/internal/tenant"
)

// DefaultMaxCreateAttempts bounds the find-or-create loop
const DefaultMaxCreateAttempts = 3

// averagePricePlaces matches the scale of positions.average_price
const averagePricePlaces = 6

// Ledger owns position identity, generations and the open/closed lifecycle
type Ledger struct {
	store       PositionStore
	prices      PriceSource
	maxAttempts int
	now         func() time.Time
}

// NewLedger creates a position ledger. maxAttempts <= 0 selects DefaultMaxCreateAttempts.
func NewLedger(store PositionStore, prices PriceSource, maxAttempts int) *Ledger {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxCreateAttempts
	}
	return &Ledger{
		store:       store,
		prices:      prices,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// FindOrCreateForTrade returns the open position for the trade's account and
// security, creating the next generation when none is open. The returned
// position is not changed by the trade; see ApplyFill.
//
// Concurrent creators are arbitrated by the open-position unique index: the
// loser's insert is skipped and it retries as a lookup.
func (l *Ledger) FindOrCreateForTrade(ctx context.Context, tn tenant.Tenant, trade *models.Trade) (*models.Position, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}
	key := models.PositionKey{
		UserID:           tn.UserID(),
		TradingAccountID: trade.TradingAccountID,
		SecurityID:       trade.SecurityID,
	}

	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		p, err := l.store.GetOpenPosition(ctx, key)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}

		maxGen, err := l.store.MaxGeneration(ctx, key)
		if err != nil {
			return nil, err
		}

		p = l.newPosition(key, maxGen+1, trade)
		created, err := l.store.InsertPosition(ctx, p)
		if err != nil {
			return nil, err
		}
		if created {
			slog.Info("opened position",
				"user_id", key.UserID, "account_id", key.TradingAccountID,
				"security_id", key.SecurityID, "generation", p.Generation)
			return p, nil
		}
		slog.Debug("position insert lost a race, retrying as lookup",
			"user_id", key.UserID, "account_id", key.TradingAccountID,
			"security_id", key.SecurityID, "attempt", attempt)
	}

	return nil, apperrors.Invariant("no single open position for account %d security %d after %d attempts",
		key.TradingAccountID, key.SecurityID, l.maxAttempts)
}

func (l *Ledger) newPosition(key models.PositionKey, generation int, trade *models.Trade) *models.Position {
	positionType := models.PositionTypeLong
	if trade.TradeType == models.TradeTypeSell {
		positionType = models.PositionTypeShort
	}
	openedAt := trade.EntryDate
	if openedAt.IsZero() {
		openedAt = l.now()
	}
	return &models.Position{
		UserID:           key.UserID,
		TradingAccountID: key.TradingAccountID,
		SecurityID:       key.SecurityID,
		Generation:       generation,
		Status:           models.PositionStatusOpen,
		Quantity:         decimal.Zero,
		AveragePrice:     trade.EntryPrice,
		PositionType:     positionType,
		UnrealizedPnl:    decimal.Zero,
		OpenedAt:         openedAt,
	}
}

// ApplyQuantityChange sets the quantity of an open position. Zero closes it
// for good; negative quantities and closed positions are rejected.
func (l *Ledger) ApplyQuantityChange(ctx context.Context, tn tenant.Tenant, positionID int64, newQuantity decimal.Decimal) (*models.Position, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}
	if newQuantity.IsNegative() {
		return nil, apperrors.Invariant("quantity %s is negative", newQuantity)
	}

	var p *models.Position
	err := l.store.InTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = l.store.LockPosition(ctx, tn.UserID(), positionID)
		if err != nil {
			return err
		}
		if err := setQuantity(p, newQuantity, l.now()); err != nil {
			return err
		}
		return l.store.UpdatePosition(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// setQuantity is the position state machine: open -> closed on zero quantity,
// nothing else.
func setQuantity(p *models.Position, newQuantity decimal.Decimal, now time.Time) error {
	if !p.IsOpen() {
		return apperrors.Invariant("position %d is closed", p.ID)
	}
	if newQuantity.IsNegative() {
		return apperrors.Invariant("quantity %s is negative", newQuantity)
	}

	p.Quantity = newQuantity
	if newQuantity.IsZero() {
		p.Status = models.PositionStatusClosed
		p.ClosedAt = &now
		p.UnrealizedPnl = decimal.Zero
	}
	return nil
}

// ApplyFill moves an open position by one trade. An opening fill in the
// position's direction adds quantity and re-weights the average price; a
// closing fill, or an opening fill against the position's direction, takes
// quantity away. Reducing below zero is rejected.
func (l *Ledger) ApplyFill(ctx context.Context, tn tenant.Tenant, positionID int64, trade *models.Trade, opening bool) (*models.Position, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}

	var p *models.Position
	err := l.store.InTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = l.store.LockPosition(ctx, tn.UserID(), positionID)
		if err != nil {
			return err
		}
		if err := fill(p, trade, opening, l.now()); err != nil {
			return err
		}
		if p.IsOpen() {
			if _, err := l.markToMarket(ctx, p); err != nil {
				slog.Warn("keeping previous unrealized P&L", "position_id", p.ID, "err", err)
			}
		}
		return l.store.UpdatePosition(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// AmendFill replaces the fill an open trade made on its position with the
// trade's edited quantity and entry price. Average price is re-weighted as if
// the edited trade had been filled in the first place.
func (l *Ledger) AmendFill(ctx context.Context, tn tenant.Tenant, positionID int64, before, after *models.Trade) (*models.Position, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}

	var p *models.Position
	err := l.store.InTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = l.store.LockPosition(ctx, tn.UserID(), positionID)
		if err != nil {
			return err
		}
		if err := amend(p, before, after, l.now()); err != nil {
			return err
		}
		if p.IsOpen() {
			if _, err := l.markToMarket(ctx, p); err != nil {
				slog.Warn("keeping previous unrealized P&L", "position_id", p.ID, "err", err)
			}
		}
		return l.store.UpdatePosition(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func amend(p *models.Position, before, after *models.Trade, now time.Time) error {
	if !p.IsOpen() {
		return apperrors.Invariant("position %d is closed", p.ID)
	}

	if !sameDirection(p, after) {
		return setQuantity(p, p.Quantity.Add(before.Quantity).Sub(after.Quantity), now)
	}

	newQuantity := p.Quantity.Sub(before.Quantity).Add(after.Quantity)
	if newQuantity.IsPositive() {
		cost := p.Quantity.Mul(p.AveragePrice).
			Sub(before.Quantity.Mul(before.EntryPrice)).
			Add(after.Quantity.Mul(after.EntryPrice))
		if cost.IsNegative() {
			return apperrors.Invariant("amended cost of position %d is negative", p.ID)
		}
		p.AveragePrice = cost.Div(newQuantity).Round(averagePricePlaces)
	}
	return setQuantity(p, newQuantity, now)
}

func fill(p *models.Position, trade *models.Trade, opening bool, now time.Time) error {
	if !p.IsOpen() {
		return apperrors.Invariant("position %d is closed", p.ID)
	}

	adds := opening && sameDirection(p, trade)
	if adds {
		newQuantity := p.Quantity.Add(trade.Quantity)
		cost := p.Quantity.Mul(p.AveragePrice).Add(trade.Quantity.Mul(trade.EntryPrice))
		p.AveragePrice = cost.Div(newQuantity).Round(averagePricePlaces)
		return setQuantity(p, newQuantity, now)
	}

	newQuantity := p.Quantity.Sub(trade.Quantity)
	if newQuantity.IsNegative() {
		return apperrors.Invariant("trade quantity %s exceeds position %d quantity %s",
			trade.Quantity, p.ID, p.Quantity)
	}
	return setQuantity(p, newQuantity, now)
}

func sameDirection(p *models.Position, trade *models.Trade) bool {
	if trade.TradeType == models.TradeTypeSell {
		return p.PositionType == models.PositionTypeShort
	}
	return p.PositionType == models.PositionTypeLong
}

// RecomputeUnrealized marks the position to the catalog's last price. It
// never changes quantity or status. A missing or stale price yields zero and
// a warning; a catalog failure is returned and nothing is saved.
func (l *Ledger) RecomputeUnrealized(ctx context.Context, tn tenant.Tenant, positionID int64) (*models.Position, *apperrors.StaleDataWarning, error) {
	if err := tn.Check(); err != nil {
		return nil, nil, err
	}

	var (
		p    *models.Position
		warn *apperrors.StaleDataWarning
	)
	err := l.store.InTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = l.store.LockPosition(ctx, tn.UserID(), positionID)
		if err != nil {
			return err
		}
		warn, err = l.markToMarket(ctx, p)
		if err != nil {
			return err
		}
		return l.store.UpdatePosition(ctx, p)
	})
	if err != nil {
		return nil, nil, err
	}
	return p, warn, nil
}

// markToMarket refreshes UnrealizedPnl and LastUpdated in memory. A missing
// or stale price yields zero and a warning; a failed lookup leaves the
// position untouched and returns the error.
func (l *Ledger) markToMarket(ctx context.Context, p *models.Position) (*apperrors.StaleDataWarning, error) {
	price, warn, err := l.prices.Price(ctx, p.SecurityID)
	if err != nil {
		return nil, fmt.Errorf("failed to price security %d: %w", p.SecurityID, err)
	}
	if warn != nil {
		slog.Warn("using zero unrealized P&L", "position_id", p.ID, "warning", warn.Error())
	}
	now := l.now()
	p.UnrealizedPnl = pnl.UnrealizedPnL(p, price)
	p.LastUpdated = &now
	return warn, nil
}

// GetPosition returns one of the tenant's positions
func (l *Ledger) GetPosition(ctx context.Context, tn tenant.Tenant, id int64) (*models.Position, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}
	return l.store.GetPosition(ctx, tn.UserID(), id)
}

// ListPositions lists the tenant's positions. accountID 0 means every account,
// status "" means every status.
func (l *Ledger) ListPositions(ctx context.Context, tn tenant.Tenant, accountID int64, status string) ([]*models.Position, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}
	return l.store.ListPositions(ctx, tn.UserID(), accountID, status)
}

// PortfolioWeight returns the share, in percent, of the tenant's open
// portfolio value held in the given position
func (l *Ledger) PortfolioWeight(ctx context.Context, tn tenant.Tenant, positionID int64) (decimal.Decimal, error) {
	if err := tn.Check(); err != nil {
		return decimal.Zero, err
	}
	target, err := l.store.GetPosition(ctx, tn.UserID(), positionID)
	if err != nil {
		return decimal.Zero, err
	}
	open, err := l.store.ListPositions(ctx, tn.UserID(), 0, models.PositionStatusOpen)
	if err != nil {
		return decimal.Zero, err
	}
	vals, _, err := valuePositions(ctx, l.prices, open)
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	current := decimal.Zero
	for _, v := range vals {
		total = total.Add(v.CurrentValue)
		if v.Position.ID == target.ID {
			current = v.CurrentValue
		}
	}
	return pnl.PortfolioWeight(current, total), nil
}

// Valuation is one position marked to market
type Valuation struct {
	Position       *models.Position    `json:"position"`
	Sector         string              `json:"sector,omitempty"`
	LastPrice      decimal.NullDecimal `json:"last_price"`
	CurrentValue   decimal.Decimal     `json:"current_value"`
	InvestedAmount decimal.Decimal     `json:"invested_amount"`
	UnrealizedPnl  decimal.Decimal     `json:"unrealized_pnl"`
	UnrealizedPct  decimal.Decimal     `json:"unrealized_pnl_percent"`
}

func valuePositions(ctx context.Context, prices PriceSource, positions []*models.Position) ([]Valuation, []apperrors.StaleDataWarning, error) {
	vals := make([]Valuation, 0, len(positions))
	var warnings []apperrors.StaleDataWarning
	for _, p := range positions {
		sec, err := prices.Security(ctx, p.SecurityID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load security %d: %w", p.SecurityID, err)
		}
		price, warn, err := prices.Price(ctx, p.SecurityID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to price security %d: %w", p.SecurityID, err)
		}
		if warn != nil {
			warnings = append(warnings, *warn)
		}
		vals = append(vals, Valuation{
			Position:       p,
			Sector:         sec.Sector,
			LastPrice:      price,
			CurrentValue:   pnl.CurrentValue(p, price),
			InvestedAmount: pnl.InvestedAmount(p),
			UnrealizedPnl:  pnl.UnrealizedPnL(p, price),
			UnrealizedPct:  pnl.UnrealizedPnLPercent(p, price),
		})
	}
	return vals, warnings, nil
}

// PortfolioSummary is the tenant-wide view of open positions
type PortfolioSummary struct {
	TotalValue         decimal.Decimal            `json:"total_value"`
	InvestedAmount     decimal.Decimal            `json:"invested_amount"`
	UnrealizedPnl      decimal.Decimal            `json:"unrealized_pnl"`
	Outcome            pnl.Outcome                `json:"outcome"`
	AllocationBySector map[string]decimal.Decimal `json:"allocation_by_sector"`
	Positions          []Valuation                `json:"positions"`
	Warnings           []string                   `json:"warnings,omitempty"`
}

// Summary values every open position of the tenant. Prices that are missing
// or stale count as zero and are reported as warnings; any other failure is
// returned.
func (l *Ledger) Summary(ctx context.Context, tn tenant.Tenant) (*PortfolioSummary, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}
	open, err := l.store.ListPositions(ctx, tn.UserID(), 0, models.PositionStatusOpen)
	if err != nil {
		return nil, err
	}
	vals, warnings, err := valuePositions(ctx, l.prices, open)
	if err != nil {
		return nil, err
	}

	s := &PortfolioSummary{
		TotalValue:         decimal.Zero,
		InvestedAmount:     decimal.Zero,
		UnrealizedPnl:      decimal.Zero,
		AllocationBySector: make(map[string]decimal.Decimal),
		Positions:          vals,
	}
	for _, v := range vals {
		s.TotalValue = s.TotalValue.Add(v.CurrentValue)
		s.InvestedAmount = s.InvestedAmount.Add(v.InvestedAmount)
		s.UnrealizedPnl = s.UnrealizedPnl.Add(v.UnrealizedPnl)

		sector := v.Sector
		if sector == "" {
			sector = "Unknown"
		}
		s.AllocationBySector[sector] = s.AllocationBySector[sector].Add(v.InvestedAmount)
	}
	s.Outcome = pnl.Classify(s.UnrealizedPnl)
	for _, w := range warnings {
		s.Warnings = append(s.Warnings, w.Error())
	}
	return s, nil
}
