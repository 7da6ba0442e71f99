package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

// LineInput is one cart line supplied when a bill is created.
type LineInput struct {
	Name string  `json:"name"`
	Qty  int     `json:"qty"`
	Rate float64 `json:"rate"`
}

// Totals holds the amounts computed once when a bill is created.
type Totals struct {
	LineTotals []float64
	Subtotal   float64
	Total      float64
}

// ComputeTotals applies lineTotal = qty × rate, subtotal = Σ lineTotal and
// total = subtotal − discount + tax using decimal arithmetic so that values
// such as 0.1 + 0.2 do not drift.
func ComputeTotals(lines []LineInput, discount, tax float64) Totals {
	out := Totals{LineTotals: make([]float64, len(lines))}
	sub := decimal.Zero
	for i, l := range lines {
		lt := decimal.NewFromInt(int64(l.Qty)).Mul(decimal.NewFromFloat(l.Rate))
		out.LineTotals[i] = lt.InexactFloat64()
		sub = sub.Add(lt)
	}
	total := sub.Sub(decimal.NewFromFloat(discount)).Add(decimal.NewFromFloat(tax))
	out.Subtotal = sub.InexactFloat64()
	out.Total = total.InexactFloat64()
	return out
}

// ValidateLines checks a cart before a bill is built from it.
func ValidateLines(lines []LineInput, discount, tax float64) error {
	if len(lines) == 0 {
		return invalid("items", "at least one item is required")
	}
	for _, l := range lines {
		if strings.TrimSpace(l.Name) == "" {
			return invalid("items.name", "is required")
		}
		if l.Qty <= 0 {
			return invalid("items.qty", "must be positive")
		}
		if l.Rate < 0 {
			return invalid("items.rate", "must not be negative")
		}
	}
	if discount < 0 {
		return invalid("discount", "must not be negative")
	}
	if tax < 0 {
		return invalid("tax", "must not be negative")
	}
	return nil
}
