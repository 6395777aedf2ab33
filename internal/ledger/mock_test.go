package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/trade-ledger/internal/apperrors"
	"github.com/trogers1052/trade-ledger/internal/models"
	"github.com/trogers1052/trade-ledger/internal/tenant"
)

// MockRepository is an in-memory store. InsertPosition enforces the same
// uniqueness rules as the positions table.
type MockRepository struct {
	mu sync.Mutex

	nextID    int64
	accounts  map[int64]*models.TradingAccount
	positions map[int64]*models.Position
	trades    map[int64]*models.Trade
	journal   map[int64]*models.JournalEntry
	sections  map[int64]*models.HoldingSection
	snapshots map[int64]*models.AccountSnapshot

	insertCalls int
	txCalls     int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		accounts:  make(map[int64]*models.TradingAccount),
		positions: make(map[int64]*models.Position),
		trades:    make(map[int64]*models.Trade),
		journal:   make(map[int64]*models.JournalEntry),
		sections:  make(map[int64]*models.HoldingSection),
		snapshots: make(map[int64]*models.AccountSnapshot),
	}
}

func (m *MockRepository) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *MockRepository) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.txCalls++
	m.mu.Unlock()
	return fn(ctx)
}

func (m *MockRepository) AddAccount(userID int64, cash decimal.Decimal) *models.TradingAccount {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &models.TradingAccount{ID: m.id(), UserID: userID, AccountName: "main", CashBalance: cash}
	m.accounts[a.ID] = a
	return a
}

func (m *MockRepository) GetTradingAccount(ctx context.Context, userID, id int64) (*models.TradingAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok || a.UserID != userID {
		return nil, apperrors.NotFound("trading account", id)
	}
	c := *a
	return &c, nil
}

func (m *MockRepository) ListTradingAccounts(ctx context.Context) ([]*models.TradingAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.TradingAccount
	for _, a := range m.accounts {
		c := *a
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// positions

func (m *MockRepository) GetOpenPosition(ctx context.Context, key models.PositionKey) (*models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.positions {
		if p.Key() == key && p.IsOpen() {
			c := *p
			return &c, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *MockRepository) MaxGeneration(ctx context.Context, key models.PositionKey) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max := 0
	for _, p := range m.positions {
		if p.Key() == key && p.Generation > max {
			max = p.Generation
		}
	}
	return max, nil
}

func (m *MockRepository) InsertPosition(ctx context.Context, p *models.Position) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertCalls++
	for _, existing := range m.positions {
		if existing.Key() != p.Key() {
			continue
		}
		if existing.IsOpen() || existing.Generation == p.Generation {
			return false, nil
		}
	}
	p.ID = m.id()
	c := *p
	m.positions[p.ID] = &c
	return true, nil
}

func (m *MockRepository) GetPosition(ctx context.Context, userID, id int64) (*models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[id]
	if !ok || p.UserID != userID {
		return nil, apperrors.NotFound("position", id)
	}
	c := *p
	return &c, nil
}

func (m *MockRepository) LockPosition(ctx context.Context, userID, id int64) (*models.Position, error) {
	return m.GetPosition(ctx, userID, id)
}

func (m *MockRepository) UpdatePosition(ctx context.Context, p *models.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.positions[p.ID]; !ok {
		return apperrors.NotFound("position", p.ID)
	}
	c := *p
	m.positions[p.ID] = &c
	return nil
}

func (m *MockRepository) ListPositions(ctx context.Context, userID, accountID int64, status string) ([]*models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Position
	for _, p := range m.positions {
		if p.UserID != userID {
			continue
		}
		if accountID != 0 && p.TradingAccountID != accountID {
			continue
		}
		if status != "" && p.Status != status {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockRepository) SetPositionSection(ctx context.Context, userID, positionID int64, sectionID *int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[positionID]
	if !ok || p.UserID != userID {
		return apperrors.NotFound("position", positionID)
	}
	p.HoldingSectionID = sectionID
	return nil
}

// trades

func (m *MockRepository) CreateTrade(ctx context.Context, t *models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.id()
	c := *t
	m.trades[t.ID] = &c
	return nil
}

func (m *MockRepository) GetTrade(ctx context.Context, userID, id int64) (*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[id]
	if !ok || t.UserID != userID {
		return nil, apperrors.NotFound("trade", id)
	}
	c := *t
	return &c, nil
}

func (m *MockRepository) UpdateTrade(ctx context.Context, t *models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.trades[t.ID]; !ok {
		return apperrors.NotFound("trade", t.ID)
	}
	c := *t
	m.trades[t.ID] = &c
	return nil
}

func (m *MockRepository) DeleteTrade(ctx context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trades[id]
	if !ok || t.UserID != userID {
		return apperrors.NotFound("trade", id)
	}
	delete(m.trades, id)
	for jid, e := range m.journal {
		if e.TradeID == id {
			delete(m.journal, jid)
		}
	}
	return nil
}

func (m *MockRepository) ListTrades(ctx context.Context, userID int64, filter models.TradeFilter) ([]*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Trade
	for _, t := range m.trades {
		if t.UserID != userID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryDate.After(out[j].EntryDate) })
	return out, nil
}

func (m *MockRepository) GetTradeStats(ctx context.Context, userID int64) (*models.TradeStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &models.TradeStats{StrategyBreakdown: map[string]models.StrategyStats{}}
	for _, t := range m.trades {
		if t.UserID != userID {
			continue
		}
		stats.TotalTrades++
		if t.IsClosed() {
			stats.ClosedTrades++
		}
	}
	return stats, nil
}

func (m *MockRepository) CreateJournalEntry(ctx context.Context, e *models.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.id()
	c := *e
	m.journal[e.ID] = &c
	return nil
}

func (m *MockRepository) GetJournalEntryByTrade(ctx context.Context, userID, tradeID int64) (*models.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.journal {
		if e.TradeID == tradeID && e.UserID == userID {
			c := *e
			return &c, nil
		}
	}
	return nil, apperrors.NotFound("journal entry for trade", tradeID)
}

// snapshots

func (m *MockRepository) RealizedPnl(ctx context.Context, userID, accountID int64, through time.Time) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, t := range m.trades {
		if t.UserID != userID || t.TradingAccountID != accountID || !t.IsClosed() || !t.NetPnl.Valid {
			continue
		}
		if t.ExitDate != nil && !t.ExitDate.After(through) {
			total = total.Add(t.NetPnl.Decimal)
		}
	}
	return total, nil
}

func (m *MockRepository) UpsertAccountSnapshot(ctx context.Context, s *models.AccountSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.snapshots {
		if existing.TradingAccountID == s.TradingAccountID && existing.Date.Equal(s.Date) {
			s.ID = existing.ID
			c := *s
			m.snapshots[s.ID] = &c
			return nil
		}
	}
	s.ID = m.id()
	c := *s
	m.snapshots[s.ID] = &c
	return nil
}

func (m *MockRepository) GetPreviousAccountSnapshot(ctx context.Context, accountID int64, before time.Time) (*models.AccountSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *models.AccountSnapshot
	for _, s := range m.snapshots {
		if s.TradingAccountID != accountID || !s.Date.Before(before) {
			continue
		}
		if best == nil || s.Date.After(best.Date) {
			best = s
		}
	}
	if best == nil {
		return nil, apperrors.ErrNotFound
	}
	c := *best
	return &c, nil
}

func (m *MockRepository) ListAccountSnapshots(ctx context.Context, accountID int64, from, to time.Time) ([]*models.AccountSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.AccountSnapshot
	for _, s := range m.snapshots {
		if s.TradingAccountID == accountID && !s.Date.Before(from) && !s.Date.After(to) {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *MockRepository) SnapshotCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snapshots)
}

// sections

func (m *MockRepository) CreateHoldingSection(ctx context.Context, s *models.HoldingSection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sections {
		if existing.UserID == s.UserID && existing.Name == s.Name {
			v := &apperrors.ValidationError{}
			v.Add("name", "has already been taken")
			return v
		}
	}
	s.ID = m.id()
	c := *s
	m.sections[s.ID] = &c
	return nil
}

func (m *MockRepository) GetHoldingSection(ctx context.Context, userID, id int64) (*models.HoldingSection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[id]
	if !ok || s.UserID != userID {
		return nil, apperrors.NotFound("holding section", id)
	}
	c := *s
	return &c, nil
}

func (m *MockRepository) ListHoldingSections(ctx context.Context, userID int64) ([]*models.HoldingSection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.HoldingSection
	for _, s := range m.sections {
		if s.UserID == userID {
			c := *s
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MockRepository) UpdateHoldingSection(ctx context.Context, s *models.HoldingSection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sections[s.ID]; !ok {
		return apperrors.NotFound("holding section", s.ID)
	}
	c := *s
	m.sections[s.ID] = &c
	return nil
}

func (m *MockRepository) DeleteHoldingSection(ctx context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sections[id]
	if !ok || s.UserID != userID {
		return apperrors.NotFound("holding section", id)
	}
	for _, p := range m.positions {
		if p.HoldingSectionID != nil && *p.HoldingSectionID == id {
			p.HoldingSectionID = nil
		}
	}
	delete(m.sections, id)
	return nil
}

func (m *MockRepository) MaxSectionPosition(ctx context.Context, userID int64) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	max, found := 0, false
	for _, s := range m.sections {
		if s.UserID == userID && (!found || s.Position > max) {
			max, found = s.Position, true
		}
	}
	return max, found, nil
}

func (m *MockRepository) SetSectionOrder(ctx context.Context, userID int64, orderedIDs []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range orderedIDs {
		s, ok := m.sections[id]
		if !ok || s.UserID != userID {
			return apperrors.NotFound("holding section", id)
		}
		s.Position = i
	}
	return nil
}

type mockPrices struct {
	mu         sync.Mutex
	securities map[int64]*models.Security
	prices     map[int64]decimal.Decimal
	err        error
}

func newMockPrices() *mockPrices {
	return &mockPrices{
		securities: make(map[int64]*models.Security),
		prices:     make(map[int64]decimal.Decimal),
	}
}

func (m *mockPrices) add(id int64, sector string, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.securities[id] = &models.Security{ID: id, Symbol: "SEC", Sector: sector}
	if price != "" {
		m.prices[id] = decimal.RequireFromString(price)
	}
}

func (m *mockPrices) Security(ctx context.Context, id int64) (*models.Security, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.securities[id]
	if !ok {
		return nil, apperrors.NotFound("security", id)
	}
	return s, nil
}

func (m *mockPrices) Price(ctx context.Context, securityID int64) (decimal.NullDecimal, *apperrors.StaleDataWarning, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return decimal.NullDecimal{}, nil, m.err
	}
	p, ok := m.prices[securityID]
	if !ok {
		return decimal.NullDecimal{}, &apperrors.StaleDataWarning{SecurityID: securityID}, nil
	}
	return decimal.NewNullDecimal(p), nil, nil
}

type rollupCall struct {
	userID, accountID int64
	date              time.Time
	reason            string
}

type mockNotifier struct {
	mu    sync.Mutex
	calls []rollupCall
	err   error
}

func (m *mockNotifier) RequestRollup(ctx context.Context, userID, accountID int64, date time.Time, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, rollupCall{userID, accountID, date, reason})
	return m.err
}

func (m *mockNotifier) Calls() []rollupCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]rollupCall(nil), m.calls...)
}

func mustTenant(userID int64) tenant.Tenant {
	tn, err := tenant.New(userID)
	if err != nil {
		panic(err)
	}
	return tn
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
