package model

import "github.com/shopspring/decimal"

// Totals aggregates one day's payments. ByMethod always carries every Method.
type Totals struct {
	ByMethod map[Method]decimal.Decimal
	Grand    decimal.Decimal
	Count    int
}

// ComputeTotals is a pure function of the payment list. The grand total is
// summed straight from the payments, not from ByMethod.
func ComputeTotals(payments []Payment) Totals {
	t := Totals{
		ByMethod: make(map[Method]decimal.Decimal, len(Methods)),
		Grand:    decimal.Zero,
		Count:    len(payments),
	}
	for _, m := range Methods {
		t.ByMethod[m] = decimal.Zero
	}
	for _, p := range payments {
		t.ByMethod[p.Method] = t.ByMethod[p.Method].Add(p.Amount)
		t.Grand = t.Grand.Add(p.Amount)
	}
	return t
}
