// Package pnl holds the profit-and-loss arithmetic of the ledger. Every
// function is pure: callers pass the trade or position and, where needed, the
// last traded price and the clock.
package pnl

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/trade-ledger/internal/models"
)

var hundred = decimal.NewFromInt(100)

// TradePnL returns gross and net P&L of a trade. ok is false while the trade
// has no exit price.
func TradePnL(t *models.Trade) (gross, net decimal.Decimal, ok bool) {
	if !t.ExitPrice.Valid {
		return decimal.Zero, decimal.Zero, false
	}
	exit := t.ExitPrice.Decimal

	switch t.TradeType {
	case models.TradeTypeSell:
		gross = t.EntryPrice.Sub(exit).Mul(t.Quantity)
	default:
		gross = exit.Sub(t.EntryPrice).Mul(t.Quantity)
	}
	net = gross.Sub(t.Brokerage).Sub(t.Taxes)
	return gross, net, true
}

// RiskReward returns reward/risk for the planned stop and target, rounded to
// two places. Zero when either level is missing or the stop equals the entry.
func RiskReward(t *models.Trade) decimal.Decimal {
	if !t.PlannedStopLoss.Valid || !t.PlannedTarget.Valid {
		return decimal.Zero
	}
	risk := t.EntryPrice.Sub(t.PlannedStopLoss.Decimal).Abs()
	reward := t.PlannedTarget.Decimal.Sub(t.EntryPrice).Abs()
	if !risk.IsPositive() {
		return decimal.Zero
	}
	return reward.Div(risk).Round(2)
}

// RiskAmount is the capital at risk between entry and the planned stop
func RiskAmount(t *models.Trade) decimal.Decimal {
	if !t.PlannedStopLoss.Valid {
		return decimal.Zero
	}
	return t.EntryPrice.Sub(t.PlannedStopLoss.Decimal).Abs().Mul(t.Quantity)
}

// RMultiple expresses the net result in units of the initial risk
func RMultiple(t *models.Trade) decimal.Decimal {
	if !t.RiskAmount.Valid || !t.RiskAmount.Decimal.IsPositive() || !t.NetPnl.Valid {
		return decimal.Zero
	}
	return t.NetPnl.Decimal.Div(t.RiskAmount.Decimal).Round(2)
}

// DaysHeld counts calendar days from entry to exit, or to now while open
func DaysHeld(t *models.Trade, now time.Time) int {
	if t.EntryDate.IsZero() {
		return 0
	}
	end := now
	if t.ExitDate != nil {
		end = *t.ExitDate
	}
	return calendarDays(t.EntryDate, end)
}

func calendarDays(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(f).Hours() / 24)
}

// AnnualizedReturn compounds the trade's return over a year, in percent.
// Only closed, profitable trades held at least one day have one.
func AnnualizedReturn(t *models.Trade, now time.Time) decimal.Decimal {
	if !t.IsClosed() || !t.NetPnl.Valid || !t.NetPnl.Decimal.IsPositive() {
		return decimal.Zero
	}
	days := DaysHeld(t, now)
	if days <= 0 {
		return decimal.Zero
	}
	investment := t.PositionValue()
	if investment.IsZero() {
		return decimal.Zero
	}

	daily := t.NetPnl.Decimal.Div(investment).InexactFloat64()
	annual := (math.Pow(1+daily, 365.0/float64(days)) - 1) * 100
	return decimal.NewFromFloat(annual).Round(2)
}

// UnrealizedPnL marks a position to market. An unknown price yields zero.
func UnrealizedPnL(p *models.Position, lastPrice decimal.NullDecimal) decimal.Decimal {
	if !lastPrice.Valid {
		return decimal.Zero
	}
	if p.PositionType == models.PositionTypeShort {
		return p.AveragePrice.Sub(lastPrice.Decimal).Mul(p.Quantity)
	}
	return lastPrice.Decimal.Sub(p.AveragePrice).Mul(p.Quantity)
}

// CurrentValue is quantity times the last price, zero when the price is unknown
func CurrentValue(p *models.Position, lastPrice decimal.NullDecimal) decimal.Decimal {
	if !lastPrice.Valid {
		return decimal.Zero
	}
	return p.Quantity.Mul(lastPrice.Decimal)
}

// InvestedAmount is quantity times average price
func InvestedAmount(p *models.Position) decimal.Decimal {
	return p.Quantity.Mul(p.AveragePrice)
}

// UnrealizedPnLPercent relates the unrealized result to the invested amount
func UnrealizedPnLPercent(p *models.Position, lastPrice decimal.NullDecimal) decimal.Decimal {
	invested := InvestedAmount(p)
	if invested.IsZero() {
		return decimal.Zero
	}
	return UnrealizedPnL(p, lastPrice).Div(invested).Mul(hundred).Round(2)
}

// PortfolioWeight is the share of total portfolio value held in one position
func PortfolioWeight(currentValue, totalPortfolioValue decimal.Decimal) decimal.Decimal {
	return percentOf(currentValue, totalPortfolioValue)
}

// PercentDeployed is the share of an account's value that is invested
func PercentDeployed(investedAmount, totalValue decimal.Decimal) decimal.Decimal {
	return percentOf(investedAmount, totalValue)
}

func percentOf(part, total decimal.Decimal) decimal.Decimal {
	if total.IsZero() {
		return decimal.Zero
	}
	return part.Div(total).Mul(hundred).Round(2)
}
