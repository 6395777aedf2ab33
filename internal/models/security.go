package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Security is an instrument from the read-only catalog
type Security struct {
	ID          int64               `json:"id"`
	Symbol      string              `json:"symbol"`
	Exchange    string              `json:"exchange"`
	CompanyName string              `json:"company_name"`
	Sector      string              `json:"sector,omitempty"`
	Industry    string              `json:"industry,omitempty"`
	LastPrice   decimal.NullDecimal `json:"last_price"`
	LastUpdated *time.Time          `json:"last_updated,omitempty"`
}

// Quote is the last traded price of a security as seen by the ledger
type Quote struct {
	SecurityID int64               `json:"security_id"`
	Sector     string              `json:"sector,omitempty"`
	Price      decimal.NullDecimal `json:"price"`
	AsOf       *time.Time          `json:"as_of,omitempty"`
}

// QuoteFromSecurity builds a quote from a catalog row
func QuoteFromSecurity(s *Security) Quote {
	return Quote{
		SecurityID: s.ID,
		Sector:     s.Sector,
		Price:      s.LastPrice,
		AsOf:       s.LastUpdated,
	}
}
