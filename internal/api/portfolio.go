package api

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/trade-ledger/internal/apperrors"
	"github.com/trogers1052/trade-ledger/internal/ledger"
	"github.com/trogers1052/trade-ledger/internal/models"
	"github.com/trogers1052/trade-ledger/internal/pnl"
)

// ListPositions handles GET /positions
func (h *Handler) ListPositions(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryInt64(r, "account_id")
	if err != nil {
		badRequest(w, errInvalidQuery("account_id").Error())
		return
	}
	status := r.URL.Query().Get("status")
	if status != "" && status != models.PositionStatusOpen && status != models.PositionStatusClosed {
		badRequest(w, errInvalidQuery("status").Error())
		return
	}
	positions, err := h.Positions.ListPositions(r.Context(), tenantFrom(r), accountID, status)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, positions)
}

// GetPosition handles GET /positions/{id}
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.Positions.GetPosition(r.Context(), tenantFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// SetPositionQuantity handles PUT /positions/{id}/quantity
func (h *Handler) SetPositionQuantity(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		Quantity *decimal.Decimal `json:"quantity"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		writeError(w, &apperrors.ValidationError{Fields: []apperrors.FieldError{{Field: "quantity", Message: "is required"}}})
		return
	}
	p, err := h.Positions.ApplyQuantityChange(r.Context(), tenantFrom(r), id, *req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// MovePosition handles PUT /positions/{id}/section. A null section_id
// removes the position from its section.
func (h *Handler) MovePosition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		SectionID *int64 `json:"section_id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.Sections.MovePosition(r.Context(), tenantFrom(r), id, req.SectionID)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// RefreshPosition handles POST /positions/{id}/refresh
func (h *Handler) RefreshPosition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, warn, err := h.Positions.RecomputeUnrealized(r.Context(), tenantFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := struct {
		Position *models.Position `json:"position"`
		Label    string           `json:"unrealized_pnl_label"`
		Warning  string           `json:"warning,omitempty"`
	}{Position: p, Label: pnl.FormatSigned(p.UnrealizedPnl, h.Currency)}
	if warn != nil {
		resp.Warning = warn.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

// PositionWeight handles GET /positions/{id}/weight
func (h *Handler) PositionWeight(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	weight, err := h.Positions.PortfolioWeight(r.Context(), tenantFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"position_id": id, "portfolio_weight": weight})
}

type summaryView struct {
	*ledger.PortfolioSummary
	TotalValueLabel    string `json:"total_value_label"`
	UnrealizedPnlLabel string `json:"unrealized_pnl_label"`
}

// PortfolioSummary handles GET /positions/summary
func (h *Handler) PortfolioSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Positions.Summary(r.Context(), tenantFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summaryView{
		PortfolioSummary:   s,
		TotalValueLabel:    pnl.Format(s.TotalValue, h.Currency),
		UnrealizedPnlLabel: pnl.FormatSigned(s.UnrealizedPnl, h.Currency),
	})
}

// ListSections handles GET /sections
func (h *Handler) ListSections(w http.ResponseWriter, r *http.Request) {
	sections, err := h.Sections.List(r.Context(), tenantFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sections)
}

// CreateSection handles POST /sections
func (h *Handler) CreateSection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Color       string `json:"color"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	sec, err := h.Sections.Create(r.Context(), tenantFrom(r), &models.HoldingSection{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sec)
}

// CreateDefaultSections handles POST /sections/defaults
func (h *Handler) CreateDefaultSections(w http.ResponseWriter, r *http.Request) {
	sections, err := h.Sections.CreateDefaults(r.Context(), tenantFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, sections)
}

// UpdateSection handles PATCH /sections/{id}
func (h *Handler) UpdateSection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var u ledger.SectionUpdate
	if !decodeBody(w, r, &u) {
		return
	}
	sec, err := h.Sections.Update(r.Context(), tenantFrom(r), id, u)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sec)
}

// DeleteSection handles DELETE /sections/{id}
func (h *Handler) DeleteSection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Sections.Delete(r.Context(), tenantFrom(r), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReorderSections handles PUT /sections/reorder
func (h *Handler) ReorderSections(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SectionIDs []int64 `json:"section_ids"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	sections, err := h.Sections.ReorderSections(r.Context(), tenantFrom(r), req.SectionIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, sections)
}

// SectionHoldings handles GET /sections/holdings
func (h *Handler) SectionHoldings(w http.ResponseWriter, r *http.Request) {
	grouped, unassigned, err := h.Sections.Holdings(r.Context(), tenantFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if unassigned == nil {
		unassigned = []*models.Position{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sections":   grouped,
		"unassigned": unassigned,
	})
}

// ListAccounts handles GET /accounts
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	tn := tenantFrom(r)
	accounts, err := h.Accounts.ListTradingAccountsByUser(r.Context(), tn.UserID())
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, accounts)
}

var accountTypes = map[string]bool{
	"":                             true,
	models.AccountTypePersonal:     true,
	models.AccountTypeAggressive:   true,
	models.AccountTypeConservative: true,
	models.AccountTypeFamily:       true,
	models.AccountTypeRetirement:   true,
}

// CreateAccount handles POST /accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountName string          `json:"account_name"`
		AccountType string          `json:"account_type"`
		CashBalance decimal.Decimal `json:"cash_balance"`
		IsPrimary   bool            `json:"is_primary"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	v := &apperrors.ValidationError{}
	req.AccountName = strings.TrimSpace(req.AccountName)
	if req.AccountName == "" {
		v.Add("account_name", "can't be blank")
	}
	if !accountTypes[req.AccountType] {
		v.Add("account_type", "is not a known account type")
	}
	if req.CashBalance.IsNegative() {
		v.Add("cash_balance", "must be greater than or equal to 0")
	}
	if err := v.Err(); err != nil {
		writeError(w, err)
		return
	}

	a := &models.TradingAccount{
		UserID:      tenantFrom(r).UserID(),
		AccountName: req.AccountName,
		AccountType: req.AccountType,
		CashBalance: req.CashBalance,
		IsPrimary:   req.IsPrimary,
	}
	if err := h.Accounts.CreateTradingAccount(r.Context(), a); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

// RollupSnapshot handles POST /accounts/{id}/snapshots. The date defaults to
// today (UTC).
func (h *Handler) RollupSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	date, err := queryDate(r, "date")
	if err != nil {
		badRequest(w, errInvalidQuery("date").Error())
		return
	}
	day := ledger.SnapshotDate(h.now())
	if date != nil {
		day = *date
	}
	snap, err := h.Snapshots.Rollup(r.Context(), tenantFrom(r), id, day)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, snap)
}

// SnapshotHistory handles GET /accounts/{id}/snapshots. Without a range it
// returns the last 30 days.
func (h *Handler) SnapshotHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	from, err := queryDate(r, "from")
	if err != nil {
		badRequest(w, errInvalidQuery("from").Error())
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		badRequest(w, errInvalidQuery("to").Error())
		return
	}
	end := h.now()
	if to != nil {
		end = *to
	}
	start := end.AddDate(0, 0, -30)
	if from != nil {
		start = *from
	}
	snapshots, err := h.Snapshots.History(r.Context(), tenantFrom(r), id, start, end)
	if err != nil {
		writeError(w, err)
		return
	}
	if snapshots == nil {
		snapshots = []*models.AccountSnapshot{}
	}
	respondJSON(w, http.StatusOK, snapshots)
}

// LatestSnapshot handles GET /accounts/{id}/snapshots/latest
func (h *Handler) LatestSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	snap, err := h.Snapshots.Latest(r.Context(), tenantFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// MonthlyPerformance handles GET /accounts/{id}/performance
func (h *Handler) MonthlyPerformance(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	pct, err := h.Snapshots.MonthlyPerformance(r.Context(), tenantFrom(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"account_id": id, "monthly_performance": pct})
}

// GetQuote handles GET /securities/{id}/quote
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	q, err := h.Quotes.Quote(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}
