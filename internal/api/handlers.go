package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/trade-ledger/internal/apperrors"
	"github.com/trogers1052/trade-ledger/internal/ledger"
	"github.com/trogers1052/trade-ledger/internal/models"
	"github.com/trogers1052/trade-ledger/internal/pnl"
	"github.com/trogers1052/trade-ledger/internal/tenant"
)

// TradeService is the trade write pipeline and trade queries
type TradeService interface {
	Create(ctx context.Context, tn tenant.Tenant, t *models.Trade) (*models.Trade, error)
	Update(ctx context.Context, tn tenant.Tenant, id int64, changes ledger.TradeChanges) (*models.Trade, error)
	Get(ctx context.Context, tn tenant.Tenant, id int64) (*models.Trade, error)
	List(ctx context.Context, tn tenant.Tenant, filter models.TradeFilter) ([]*models.Trade, error)
	Delete(ctx context.Context, tn tenant.Tenant, id int64) error
	Stats(ctx context.Context, tn tenant.Tenant) (*models.TradeStats, error)
	AddJournalEntry(ctx context.Context, tn tenant.Tenant, tradeID int64, e *models.JournalEntry) (*models.JournalEntry, error)
	GetJournalEntry(ctx context.Context, tn tenant.Tenant, tradeID int64) (*models.JournalEntry, error)
}

// PositionService reads and adjusts positions
type PositionService interface {
	GetPosition(ctx context.Context, tn tenant.Tenant, id int64) (*models.Position, error)
	ListPositions(ctx context.Context, tn tenant.Tenant, accountID int64, status string) ([]*models.Position, error)
	ApplyQuantityChange(ctx context.Context, tn tenant.Tenant, positionID int64, newQuantity decimal.Decimal) (*models.Position, error)
	RecomputeUnrealized(ctx context.Context, tn tenant.Tenant, positionID int64) (*models.Position, *apperrors.StaleDataWarning, error)
	PortfolioWeight(ctx context.Context, tn tenant.Tenant, positionID int64) (decimal.Decimal, error)
	Summary(ctx context.Context, tn tenant.Tenant) (*ledger.PortfolioSummary, error)
}

// SectionService manages holding sections
type SectionService interface {
	List(ctx context.Context, tn tenant.Tenant) ([]*models.HoldingSection, error)
	Create(ctx context.Context, tn tenant.Tenant, sec *models.HoldingSection) (*models.HoldingSection, error)
	CreateDefaults(ctx context.Context, tn tenant.Tenant) ([]*models.HoldingSection, error)
	Update(ctx context.Context, tn tenant.Tenant, id int64, u ledger.SectionUpdate) (*models.HoldingSection, error)
	Delete(ctx context.Context, tn tenant.Tenant, id int64) error
	ReorderSections(ctx context.Context, tn tenant.Tenant, orderedIDs []int64) ([]*models.HoldingSection, error)
	MovePosition(ctx context.Context, tn tenant.Tenant, positionID int64, sectionID *int64) (*models.Position, error)
	Holdings(ctx context.Context, tn tenant.Tenant) ([]ledger.SectionHoldings, []*models.Position, error)
}

// SnapshotService rolls up and reads account snapshots
type SnapshotService interface {
	Rollup(ctx context.Context, tn tenant.Tenant, accountID int64, date time.Time) (*models.AccountSnapshot, error)
	History(ctx context.Context, tn tenant.Tenant, accountID int64, from, to time.Time) ([]*models.AccountSnapshot, error)
	Latest(ctx context.Context, tn tenant.Tenant, accountID int64) (*models.AccountSnapshot, error)
	MonthlyPerformance(ctx context.Context, tn tenant.Tenant, accountID int64) (decimal.Decimal, error)
}

// AccountStore persists trading accounts
type AccountStore interface {
	CreateTradingAccount(ctx context.Context, a *models.TradingAccount) error
	ListTradingAccountsByUser(ctx context.Context, userID int64) ([]*models.TradingAccount, error)
}

// QuoteSource is the security catalog
type QuoteSource interface {
	Quote(ctx context.Context, id int64) (models.Quote, error)
}

// Pinger reports database reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services a Handler serves
type Deps struct {
	Trades    TradeService
	Positions PositionService
	Sections  SectionService
	Snapshots SnapshotService
	Accounts  AccountStore
	Quotes    QuoteSource
	Health    Pinger
	// Currency is the ISO code used for display labels
	Currency string
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	Deps
	now func() time.Time
}

// NewHandler creates a new Handler
func NewHandler(deps Deps) *Handler {
	if deps.Currency == "" {
		deps.Currency = "INR"
	}
	return &Handler{Deps: deps, now: time.Now}
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.Health != nil {
		if err := h.Health.Ping(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// tradeView adds the derived read-only figures to a trade
type tradeView struct {
	*models.Trade
	Outcome          pnl.Outcome     `json:"outcome,omitempty"`
	NetPnlLabel      string          `json:"net_pnl_label,omitempty"`
	RMultiple        decimal.Decimal `json:"r_multiple"`
	DaysHeld         int             `json:"days_held"`
	AnnualizedReturn decimal.Decimal `json:"annualized_return"`
}

func (h *Handler) viewTrade(t *models.Trade) tradeView {
	now := h.now()
	v := tradeView{
		Trade:            t,
		RMultiple:        pnl.RMultiple(t),
		DaysHeld:         pnl.DaysHeld(t, now),
		AnnualizedReturn: pnl.AnnualizedReturn(t, now),
	}
	if t.NetPnl.Valid {
		v.Outcome = pnl.Classify(t.NetPnl.Decimal)
		v.NetPnlLabel = pnl.FormatSigned(t.NetPnl.Decimal, h.Currency)
	}
	return v
}

type createTradeRequest struct {
	TradingAccountID int64               `json:"trading_account_id"`
	SecurityID       int64               `json:"security_id"`
	TradeType        string              `json:"trade_type"`
	Quantity         decimal.Decimal     `json:"quantity"`
	EntryPrice       decimal.Decimal     `json:"entry_price"`
	EntryDate        time.Time           `json:"entry_date"`
	ExitPrice        decimal.NullDecimal `json:"exit_price"`
	ExitDate         *time.Time          `json:"exit_date"`
	Brokerage        decimal.Decimal     `json:"brokerage"`
	Taxes            decimal.Decimal     `json:"taxes"`
	Strategy         string              `json:"strategy"`
	Timeframe        string              `json:"timeframe"`
	Status           string              `json:"status"`
	PlannedStopLoss  decimal.NullDecimal `json:"planned_stop_loss"`
	PlannedTarget    decimal.NullDecimal `json:"planned_target"`
}

func (req createTradeRequest) trade() *models.Trade {
	return &models.Trade{
		TradingAccountID: req.TradingAccountID,
		SecurityID:       req.SecurityID,
		TradeType:        req.TradeType,
		Quantity:         req.Quantity,
		EntryPrice:       req.EntryPrice,
		EntryDate:        req.EntryDate,
		ExitPrice:        req.ExitPrice,
		ExitDate:         req.ExitDate,
		Brokerage:        req.Brokerage,
		Taxes:            req.Taxes,
		Strategy:         req.Strategy,
		Timeframe:        req.Timeframe,
		Status:           req.Status,
		PlannedStopLoss:  req.PlannedStopLoss,
		PlannedTarget:    req.PlannedTarget,
	}
}

// CreateTrade handles POST /trades
func (h *Handler) CreateTrade(w http.ResponseWriter, r *http.Request) {
	var req createTradeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	t, err := h.Trades.Create(r.Context(), tenantFrom(r), req.trade())
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.viewTrade(t))
}

// UpdateTrade handles PATCH /trades/{id}
func (h *Handler) UpdateTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var changes ledger.TradeChanges
	if !decodeBody(w, r, &changes) {
		return
	}
	t, err := h.Trades.Update(r.Context(), tenantFrom(r), id, changes)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.viewTrade(t))
}

// GetTrade handles GET /trades/{id}
func (h *Handler) GetTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	t, err := h.Trades.Get(r.Context(), tenantFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.viewTrade(t))
}

// ListTrades handles GET /trades
func (h *Handler) ListTrades(w http.ResponseWriter, r *http.Request) {
	filter, err := tradeFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	trades, err := h.Trades.List(r.Context(), tenantFrom(r), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]tradeView, 0, len(trades))
	for _, t := range trades {
		views = append(views, h.viewTrade(t))
	}
	respondJSON(w, http.StatusOK, views)
}

func tradeFilter(r *http.Request) (models.TradeFilter, error) {
	var (
		f   models.TradeFilter
		err error
	)
	q := r.URL.Query()
	f.Status = q.Get("status")
	f.Strategy = q.Get("strategy")
	if f.TradingAccountID, err = queryInt64(r, "account_id"); err != nil {
		return f, errInvalidQuery("account_id")
	}
	if f.SecurityID, err = queryInt64(r, "security_id"); err != nil {
		return f, errInvalidQuery("security_id")
	}
	limit, err := queryInt64(r, "limit")
	if err != nil || limit < 0 {
		return f, errInvalidQuery("limit")
	}
	f.Limit = int(limit)
	if f.From, err = queryDate(r, "from"); err != nil {
		return f, errInvalidQuery("from")
	}
	if f.To, err = queryDate(r, "to"); err != nil {
		return f, errInvalidQuery("to")
	}
	return f, nil
}

type queryError string

func (e queryError) Error() string { return "invalid query parameter " + string(e) }

func errInvalidQuery(name string) error { return queryError(name) }

// DeleteTrade handles DELETE /trades/{id}
func (h *Handler) DeleteTrade(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Trades.Delete(r.Context(), tenantFrom(r), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statsView struct {
	*models.TradeStats
	TotalNetPnlLabel string `json:"total_net_pnl_label"`
}

// TradeStats handles GET /trades/stats
func (h *Handler) TradeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Trades.Stats(r.Context(), tenantFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, statsView{
		TradeStats:       stats,
		TotalNetPnlLabel: pnl.FormatSigned(stats.TotalNetPnl, h.Currency),
	})
}

type journalRequest struct {
	EntryType string   `json:"entry_type"`
	Mood      string   `json:"mood"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
}

// AddJournalEntry handles POST /trades/{id}/journal
func (h *Handler) AddJournalEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req journalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	e := &models.JournalEntry{
		EntryType: req.EntryType,
		Mood:      strings.TrimSpace(req.Mood),
		Content:   req.Content,
		Tags:      req.Tags,
	}
	e, err := h.Trades.AddJournalEntry(r.Context(), tenantFrom(r), id, e)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, e)
}

// GetJournalEntry handles GET /trades/{id}/journal
func (h *Handler) GetJournalEntry(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	e, err := h.Trades.GetJournalEntry(r.Context(), tenantFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}
