package pnl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		amount string
		want   Outcome
	}{
		{"0", OutcomeBreakeven},
		{"9.99", OutcomeBreakeven},
		{"-9.99", OutcomeBreakeven},
		{"10", OutcomeProfit},
		{"-10", OutcomeLoss},
		{"1500", OutcomeProfit},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(dec(tt.amount)), "amount %s", tt.amount)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "$1,000.00", Format(dec("1000"), "USD"))
	assert.Equal(t, "+$12.50", FormatSigned(dec("12.5"), "USD"))
	assert.Equal(t, "12.35", Format(dec("12.345"), "NOPE"))
}
