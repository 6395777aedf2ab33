package ledger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/trade-ledger/internal/apperrors"
	"github.com/trogers1052/trade-ledger/internal/models"
	"github.com/trogers1052/trade-ledger/internal/pnl"
	"github.com/trogers1052/trade-ledger/internal/tenant"
)

// TradeService is the write path for trades. P&L and risk fields are
// recomputed by explicit pipeline steps before every save.
type TradeService struct {
	store    TradeStore
	ledger   *Ledger
	prices   PriceSource
	notifier RollupNotifier
	now      func() time.Time
}

// NewTradeService creates a TradeService. notifier may be nil.
func NewTradeService(store TradeStore, ledger *Ledger, prices PriceSource, notifier RollupNotifier) *TradeService {
	return &TradeService{
		store:    store,
		ledger:   ledger,
		prices:   prices,
		notifier: notifier,
		now:      time.Now,
	}
}

// TradeChanges lists the fields an update may set; nil leaves a field alone.
// The Clear flags remove a planned level.
type TradeChanges struct {
	Quantity        *decimal.Decimal `json:"quantity,omitempty"`
	EntryPrice      *decimal.Decimal `json:"entry_price,omitempty"`
	EntryDate       *time.Time       `json:"entry_date,omitempty"`
	ExitPrice       *decimal.Decimal `json:"exit_price,omitempty"`
	ExitDate        *time.Time       `json:"exit_date,omitempty"`
	Brokerage       *decimal.Decimal `json:"brokerage,omitempty"`
	Taxes           *decimal.Decimal `json:"taxes,omitempty"`
	Strategy        *string          `json:"strategy,omitempty"`
	Timeframe       *string          `json:"timeframe,omitempty"`
	Status          *string          `json:"status,omitempty"`
	PlannedStopLoss *decimal.Decimal `json:"planned_stop_loss,omitempty"`
	PlannedTarget   *decimal.Decimal `json:"planned_target,omitempty"`

	ClearPlannedStopLoss bool `json:"clear_planned_stop_loss,omitempty"`
	ClearPlannedTarget   bool `json:"clear_planned_target,omitempty"`
}

// changeSet records which inputs of the derived fields moved
type changeSet struct {
	quantity   bool
	entryPrice bool
	exitPrice  bool
	costs      bool
	stopLoss   bool
	target     bool
	closed     bool
}

func allChanged() changeSet {
	return changeSet{quantity: true, entryPrice: true, exitPrice: true, costs: true, stopLoss: true, target: true}
}

// pnlStep fills gross and net P&L of a closed trade when any of their inputs changed
func pnlStep(t *models.Trade, ch changeSet) {
	if !t.IsClosed() {
		return
	}
	if !(ch.exitPrice || ch.quantity || ch.entryPrice || ch.costs || ch.closed) {
		return
	}
	gross, net, ok := pnl.TradePnL(t)
	if !ok {
		return
	}
	t.GrossPnl = decimal.NewNullDecimal(gross)
	t.NetPnl = decimal.NewNullDecimal(net)
}

// riskStep fills risk/reward and the risk amount when the planned levels or the entry moved
func riskStep(t *models.Trade, ch changeSet) {
	if !(ch.stopLoss || ch.target || ch.entryPrice || ch.quantity) {
		return
	}
	if t.PlannedStopLoss.Valid && t.PlannedTarget.Valid {
		t.RiskRewardRatio = decimal.NewNullDecimal(pnl.RiskReward(t))
	} else {
		t.RiskRewardRatio = decimal.NullDecimal{}
	}
	if t.PlannedStopLoss.Valid {
		t.RiskAmount = decimal.NewNullDecimal(pnl.RiskAmount(t))
	} else {
		t.RiskAmount = decimal.NullDecimal{}
	}
}

func runPipeline(t *models.Trade, ch changeSet) {
	pnlStep(t, ch)
	riskStep(t, ch)
}

func validateTrade(t *models.Trade) error {
	v := &apperrors.ValidationError{}

	if t.TradingAccountID <= 0 {
		v.Add("trading_account_id", "is required")
	}
	if t.SecurityID <= 0 {
		v.Add("security_id", "is required")
	}
	if t.TradeType != models.TradeTypeBuy && t.TradeType != models.TradeTypeSell {
		v.Add("trade_type", "must be buy or sell")
	}
	if !t.Quantity.IsPositive() {
		v.Add("quantity", "must be greater than 0")
	}
	if !t.EntryPrice.IsPositive() {
		v.Add("entry_price", "must be greater than 0")
	}
	if t.EntryDate.IsZero() {
		v.Add("entry_date", "is required")
	}
	if t.Brokerage.IsNegative() {
		v.Add("brokerage", "must not be negative")
	}
	if t.Taxes.IsNegative() {
		v.Add("taxes", "must not be negative")
	}
	switch t.Timeframe {
	case models.TimeframeIntraday, models.TimeframeSwing, models.TimeframePositional, models.TimeframeLongTerm:
	default:
		v.Add("timeframe", "is not a known timeframe")
	}

	switch t.Status {
	case models.TradeStatusClosed:
		if !t.ExitPrice.Valid {
			v.Add("exit_price", "is required when closed")
		}
		if t.ExitDate == nil {
			v.Add("exit_date", "is required when closed")
		}
		validateExit(v, t)
	case models.TradeStatusPartial:
		if t.ExitPrice.Valid != (t.ExitDate != nil) {
			v.Add("exit_date", "must be given together with exit_price")
		}
		validateExit(v, t)
	case models.TradeStatusOpen:
		if t.ExitPrice.Valid {
			v.Add("exit_price", "is not allowed while open")
		}
		if t.ExitDate != nil {
			v.Add("exit_date", "is not allowed while open")
		}
	default:
		v.Add("status", "must be open, closed or partial")
	}

	if t.PlannedStopLoss.Valid && !t.PlannedStopLoss.Decimal.IsPositive() {
		v.Add("planned_stop_loss", "must be greater than 0")
	}
	if t.PlannedTarget.Valid && !t.PlannedTarget.Decimal.IsPositive() {
		v.Add("planned_target", "must be greater than 0")
	}
	return v.Err()
}

func validateExit(v *apperrors.ValidationError, t *models.Trade) {
	if t.ExitPrice.Valid && !t.ExitPrice.Decimal.IsPositive() {
		v.Add("exit_price", "must be greater than 0")
	}
	if t.ExitDate != nil && !t.EntryDate.IsZero() && t.ExitDate.Before(t.EntryDate) {
		v.Add("exit_date", "must not be before entry_date")
	}
}

func applyDefaults(t *models.Trade) {
	if t.Status == "" {
		t.Status = models.TradeStatusOpen
	}
	if t.Timeframe == "" {
		t.Timeframe = models.TimeframeSwing
	}
	t.TradeType = strings.ToLower(t.TradeType)
	t.Strategy = strings.TrimSpace(t.Strategy)
}

// Create validates and records a trade. An open or partial trade is applied to
// its position in the same transaction; a trade recorded already closed is a
// finished round trip and leaves positions alone.
func (s *TradeService) Create(ctx context.Context, tn tenant.Tenant, t *models.Trade) (*models.Trade, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}
	t.UserID = tn.UserID()
	applyDefaults(t)
	if err := validateTrade(t); err != nil {
		return nil, err
	}

	err := s.store.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.GetTradingAccount(ctx, tn.UserID(), t.TradingAccountID); err != nil {
			return err
		}
		if _, err := s.prices.Security(ctx, t.SecurityID); err != nil {
			return err
		}

		runPipeline(t, allChanged())

		if !t.IsClosed() {
			p, err := s.ledger.FindOrCreateForTrade(ctx, tn, t)
			if err != nil {
				return err
			}
			p, err = s.ledger.ApplyFill(ctx, tn, p.ID, t, true)
			if err != nil {
				return err
			}
			t.PositionID = &p.ID
		}
		return s.store.CreateTrade(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	if t.IsClosed() {
		s.requestRollup(ctx, t, "trade recorded closed")
	}
	return t, nil
}

// Update applies changes to a trade and re-runs the pipeline steps whose
// inputs moved. Closing an open trade takes its quantity off the linked
// position; a closed trade cannot be reopened.
func (s *TradeService) Update(ctx context.Context, tn tenant.Tenant, id int64, changes TradeChanges) (*models.Trade, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}

	var (
		t       *models.Trade
		closing bool
	)
	err := s.store.InTx(ctx, func(ctx context.Context) error {
		var err error
		t, err = s.store.GetTrade(ctx, tn.UserID(), id)
		if err != nil {
			return err
		}
		wasClosed := t.IsClosed()
		before := *t

		ch := applyChanges(t, changes)
		if wasClosed && !t.IsClosed() {
			v := &apperrors.ValidationError{}
			v.Add("status", "cannot change once closed")
			return v
		}
		if err := validateTrade(t); err != nil {
			return err
		}

		closing = !wasClosed && t.IsClosed()
		ch.closed = closing
		runPipeline(t, ch)

		if t.PositionID != nil && !wasClosed {
			if err := s.syncPosition(ctx, tn, &before, t, closing); err != nil {
				return err
			}
		}
		return s.store.UpdateTrade(ctx, t)
	})
	if err != nil {
		return nil, err
	}

	if closing {
		s.requestRollup(ctx, t, "trade closed")
	}
	return t, nil
}

// syncPosition carries an open trade's quantity and entry price edits, and
// its closing exit, onto the linked position
func (s *TradeService) syncPosition(ctx context.Context, tn tenant.Tenant, before, t *models.Trade, closing bool) error {
	p, err := s.ledger.GetPosition(ctx, tn, *t.PositionID)
	if err != nil {
		return err
	}
	if !p.IsOpen() {
		slog.Warn("trade is linked to a closed position, leaving it unchanged",
			"trade_id", t.ID, "position_id", p.ID)
		return nil
	}

	if !t.Quantity.Equal(before.Quantity) || !t.EntryPrice.Equal(before.EntryPrice) {
		if _, err := s.ledger.AmendFill(ctx, tn, p.ID, before, t); err != nil {
			return err
		}
	}
	if closing {
		if _, err := s.ledger.ApplyFill(ctx, tn, p.ID, t, false); err != nil {
			return err
		}
	}
	return nil
}

func applyChanges(t *models.Trade, c TradeChanges) changeSet {
	var ch changeSet
	if c.Quantity != nil {
		ch.quantity = !c.Quantity.Equal(t.Quantity)
		t.Quantity = *c.Quantity
	}
	if c.EntryPrice != nil {
		ch.entryPrice = !c.EntryPrice.Equal(t.EntryPrice)
		t.EntryPrice = *c.EntryPrice
	}
	if c.EntryDate != nil {
		t.EntryDate = *c.EntryDate
	}
	if c.ExitPrice != nil {
		ch.exitPrice = !t.ExitPrice.Valid || !c.ExitPrice.Equal(t.ExitPrice.Decimal)
		t.ExitPrice = decimal.NewNullDecimal(*c.ExitPrice)
	}
	if c.ExitDate != nil {
		exit := *c.ExitDate
		t.ExitDate = &exit
	}
	if c.Brokerage != nil {
		ch.costs = ch.costs || !c.Brokerage.Equal(t.Brokerage)
		t.Brokerage = *c.Brokerage
	}
	if c.Taxes != nil {
		ch.costs = ch.costs || !c.Taxes.Equal(t.Taxes)
		t.Taxes = *c.Taxes
	}
	if c.Strategy != nil {
		t.Strategy = strings.TrimSpace(*c.Strategy)
	}
	if c.Timeframe != nil {
		t.Timeframe = *c.Timeframe
	}
	if c.Status != nil {
		t.Status = *c.Status
	}
	if c.PlannedStopLoss != nil {
		ch.stopLoss = !t.PlannedStopLoss.Valid || !c.PlannedStopLoss.Equal(t.PlannedStopLoss.Decimal)
		t.PlannedStopLoss = decimal.NewNullDecimal(*c.PlannedStopLoss)
	}
	if c.PlannedTarget != nil {
		ch.target = !t.PlannedTarget.Valid || !c.PlannedTarget.Equal(t.PlannedTarget.Decimal)
		t.PlannedTarget = decimal.NewNullDecimal(*c.PlannedTarget)
	}
	if c.ClearPlannedStopLoss {
		ch.stopLoss = ch.stopLoss || t.PlannedStopLoss.Valid
		t.PlannedStopLoss = decimal.NullDecimal{}
	}
	if c.ClearPlannedTarget {
		ch.target = ch.target || t.PlannedTarget.Valid
		t.PlannedTarget = decimal.NullDecimal{}
	}
	return ch
}

func (s *TradeService) requestRollup(ctx context.Context, t *models.Trade, reason string) {
	if s.notifier == nil {
		return
	}
	date := s.now()
	if t.ExitDate != nil {
		date = *t.ExitDate
	}
	if err := s.notifier.RequestRollup(ctx, t.UserID, t.TradingAccountID, date, reason); err != nil {
		slog.Error("failed to request snapshot rollup",
			"trade_id", t.ID, "account_id", t.TradingAccountID, "err", err)
	}
}

// Get returns one of the tenant's trades
func (s *TradeService) Get(ctx context.Context, tn tenant.Tenant, id int64) (*models.Trade, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}
	return s.store.GetTrade(ctx, tn.UserID(), id)
}

// List returns the tenant's trades, newest entry first
func (s *TradeService) List(ctx context.Context, tn tenant.Tenant, filter models.TradeFilter) ([]*models.Trade, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}
	return s.store.ListTrades(ctx, tn.UserID(), filter)
}

// Delete removes a trade and its journal entry
func (s *TradeService) Delete(ctx context.Context, tn tenant.Tenant, id int64) error {
	if err := tn.Check(); err != nil {
		return err
	}
	return s.store.DeleteTrade(ctx, tn.UserID(), id)
}

// Stats aggregates the tenant's closed trades
func (s *TradeService) Stats(ctx context.Context, tn tenant.Tenant) (*models.TradeStats, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}
	return s.store.GetTradeStats(ctx, tn.UserID())
}

var journalEntryTypes = map[string]bool{
	models.EntryTypePreTrade:      true,
	models.EntryTypeDuringTrade:   true,
	models.EntryTypePostTrade:     true,
	models.EntryTypeLessonLearned: true,
}

// AddJournalEntry annotates a trade. Each trade carries at most one entry.
func (s *TradeService) AddJournalEntry(ctx context.Context, tn tenant.Tenant, tradeID int64, e *models.JournalEntry) (*models.JournalEntry, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}

	v := &apperrors.ValidationError{}
	if !journalEntryTypes[e.EntryType] {
		v.Add("entry_type", "is not a known entry type")
	}
	if strings.TrimSpace(e.Content) == "" {
		v.Add("content", "can't be blank")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	err := s.store.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.store.GetTrade(ctx, tn.UserID(), tradeID); err != nil {
			return err
		}
		_, err := s.store.GetJournalEntryByTrade(ctx, tn.UserID(), tradeID)
		if err == nil {
			v.Add("trade_id", "already has a journal entry")
			return v
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}

		e.TradeID = tradeID
		e.UserID = tn.UserID()
		return s.store.CreateJournalEntry(ctx, e)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetJournalEntry returns the journal entry of one of the tenant's trades
func (s *TradeService) GetJournalEntry(ctx context.Context, tn tenant.Tenant, tradeID int64) (*models.JournalEntry, error) {
	if err := tn.Check(); err != nil {
		return nil, err
	}
	return s.store.GetJournalEntryByTrade(ctx, tn.UserID(), tradeID)
}
