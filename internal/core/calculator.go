package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Derived money fields are always computed here from the raw inputs; any
// value a client sends for them is discarded.

// Amount parses a user-entered numeric string. Empty or malformed input
// counts as zero.
func Amount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// round2 rounds half away from zero to two places.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Money formats d with exactly two decimal places.
func Money(d decimal.Decimal) string {
	return round2(d).StringFixed(2)
}

// LedgerInputs are the numeric fields of a ledger invoice.
type LedgerInputs struct {
	At20      string
	Price     string
	Expenses  string
	Payments  string
	Transport string
}

// LedgerFigures are the derived fields of a ledger invoice.
type LedgerFigures struct {
	Amount  string `json:"amount"`
	Balance string `json:"balance"`
}

// ComputeLedger applies
//
//	amount  = round2(at20 * price)
//	balance = round2(payments - amount - expenses - transport)
//
// where balance uses the already-rounded amount.
func ComputeLedger(in LedgerInputs) LedgerFigures {
	amount := round2(Amount(in.At20).Mul(Amount(in.Price)))
	balance := Amount(in.Payments).
		Sub(amount).
		Sub(Amount(in.Expenses)).
		Sub(Amount(in.Transport))

	return LedgerFigures{
		Amount:  Money(amount),
		Balance: Money(balance),
	}
}

// WalletAmount is round2(quantity * unitPrice).
func WalletAmount(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return round2(quantity.Mul(unitPrice))
}

// Sum adds a list of user-entered amounts.
func Sum(values ...string) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(Amount(v))
	}
	return total
}
