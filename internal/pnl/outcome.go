package pnl

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Outcome labels a P&L amount for display
type Outcome string

// Outcome values
const (
	OutcomeProfit    Outcome = "profit"
	OutcomeLoss      Outcome = "loss"
	OutcomeBreakeven Outcome = "breakeven"
)

// BreakevenThreshold is the band around zero, in currency units, shown as breakeven
var BreakevenThreshold = decimal.NewFromInt(10)

// Classify labels an amount. It does not change the amount itself.
func Classify(amount decimal.Decimal) Outcome {
	switch {
	case amount.Abs().LessThan(BreakevenThreshold):
		return OutcomeBreakeven
	case amount.IsPositive():
		return OutcomeProfit
	default:
		return OutcomeLoss
	}
}

// Format renders an amount in the given ISO currency, e.g. "₹1,000.00".
// Unknown currencies fall back to two fixed decimals.
func Format(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return amount.StringFixed(2)
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// FormatSigned prefixes non-negative amounts with "+"
func FormatSigned(amount decimal.Decimal, currency string) string {
	if amount.IsNegative() {
		return Format(amount, currency)
	}
	return "+" + Format(amount, currency)
}
