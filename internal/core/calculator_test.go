package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeLedger(t *testing.T) {
	tests := []struct {
		name string
		in   LedgerInputs
		want LedgerFigures
	}{
		{
			name: "amount and balance",
			in:   LedgerInputs{At20: "1000", Price: "1.5", Payments: "2000", Expenses: "100", Transport: "50"},
			want: LedgerFigures{Amount: "1500.00", Balance: "350.00"},
		},
		{
			name: "empty optional fields count as zero",
			in:   LedgerInputs{At20: "10", Price: "2"},
			want: LedgerFigures{Amount: "20.00", Balance: "-20.00"},
		},
		{
			name: "all empty",
			in:   LedgerInputs{},
			want: LedgerFigures{Amount: "0.00", Balance: "0.00"},
		},
		{
			name: "malformed input counts as zero",
			in:   LedgerInputs{At20: "abc", Price: "3", Payments: "."},
			want: LedgerFigures{Amount: "0.00", Balance: "0.00"},
		},
		{
			name: "half rounds away from zero",
			in:   LedgerInputs{At20: "0.5", Price: "0.01"},
			want: LedgerFigures{Amount: "0.01", Balance: "-0.01"},
		},
		{
			name: "balance uses rounded amount",
			in:   LedgerInputs{At20: "3.333", Price: "3", Payments: "10"},
			want: LedgerFigures{Amount: "10.00", Balance: "0.00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeLedger(tt.in))
		})
	}
}

func TestWalletAmount(t *testing.T) {
	got := WalletAmount(decimal.RequireFromString("12.5"), decimal.RequireFromString("3.333"))
	assert.Equal(t, "41.66", Money(got))

	got = WalletAmount(decimal.RequireFromString("1"), decimal.RequireFromString("0.125"))
	assert.Equal(t, "0.13", Money(got))
}

func TestSum(t *testing.T) {
	assert.True(t, Sum("1.5", "", "2", "x").Equal(decimal.RequireFromString("3.5")))
	assert.True(t, Sum().IsZero())
}
