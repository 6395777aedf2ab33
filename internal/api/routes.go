package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes. Everything under /api/v1 requires
// the X-User-ID header.
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(requireTenant)

	// Trades
	api.HandleFunc("/trades", handler.ListTrades).Methods("GET")
	api.HandleFunc("/trades", handler.CreateTrade).Methods("POST")
	api.HandleFunc("/trades/stats", handler.TradeStats).Methods("GET")
	api.HandleFunc("/trades/{id:[0-9]+}", handler.GetTrade).Methods("GET")
	api.HandleFunc("/trades/{id:[0-9]+}", handler.UpdateTrade).Methods("PATCH")
	api.HandleFunc("/trades/{id:[0-9]+}", handler.DeleteTrade).Methods("DELETE")
	api.HandleFunc("/trades/{id:[0-9]+}/journal", handler.GetJournalEntry).Methods("GET")
	api.HandleFunc("/trades/{id:[0-9]+}/journal", handler.AddJournalEntry).Methods("POST")

	// Positions
	api.HandleFunc("/positions", handler.ListPositions).Methods("GET")
	api.HandleFunc("/positions/summary", handler.PortfolioSummary).Methods("GET")
	api.HandleFunc("/positions/{id:[0-9]+}", handler.GetPosition).Methods("GET")
	api.HandleFunc("/positions/{id:[0-9]+}/quantity", handler.SetPositionQuantity).Methods("PUT")
	api.HandleFunc("/positions/{id:[0-9]+}/section", handler.MovePosition).Methods("PUT")
	api.HandleFunc("/positions/{id:[0-9]+}/refresh", handler.RefreshPosition).Methods("POST")
	api.HandleFunc("/positions/{id:[0-9]+}/weight", handler.PositionWeight).Methods("GET")

	// Holding sections
	api.HandleFunc("/sections", handler.ListSections).Methods("GET")
	api.HandleFunc("/sections", handler.CreateSection).Methods("POST")
	api.HandleFunc("/sections/defaults", handler.CreateDefaultSections).Methods("POST")
	api.HandleFunc("/sections/reorder", handler.ReorderSections).Methods("PUT")
	api.HandleFunc("/sections/holdings", handler.SectionHoldings).Methods("GET")
	api.HandleFunc("/sections/{id:[0-9]+}", handler.UpdateSection).Methods("PATCH")
	api.HandleFunc("/sections/{id:[0-9]+}", handler.DeleteSection).Methods("DELETE")

	// Accounts and snapshots
	api.HandleFunc("/accounts", handler.ListAccounts).Methods("GET")
	api.HandleFunc("/accounts", handler.CreateAccount).Methods("POST")
	api.HandleFunc("/accounts/{id:[0-9]+}/snapshots", handler.SnapshotHistory).Methods("GET")
	api.HandleFunc("/accounts/{id:[0-9]+}/snapshots", handler.RollupSnapshot).Methods("POST")
	api.HandleFunc("/accounts/{id:[0-9]+}/snapshots/latest", handler.LatestSnapshot).Methods("GET")
	api.HandleFunc("/accounts/{id:[0-9]+}/performance", handler.MonthlyPerformance).Methods("GET")

	// Catalog
	api.HandleFunc("/securities/{id:[0-9]+}/quote", handler.GetQuote).Methods("GET")

	return r
}
