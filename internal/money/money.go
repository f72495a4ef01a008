// Package money holds the exact-precision helpers shared by the exchange
// adapters. No floating point arithmetic is used anywhere money is involved.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Round rounds d to the given number of decimal places using half-up
// rounding. Rounding is deterministic: the same input always produces the
// same output regardless of exchange quirks.
func Round(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}

// FormatAtScale renders d for the wire at the exchange's documented scale:
// half-up rounded to places decimal places, trailing zeros stripped. The
// output matches what the exchanges document for their amount/price fields,
// e.g. FormatAtScale(300.176, 2) == "300.18" and
// FormatAtScale(0.0005, 4) == "0.0005".
func FormatAtScale(d decimal.Decimal, places int32) string {
	s := d.Round(places).StringFixed(places)
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

// Total computes price * quantity. Derived totals are always recomputed
// locally after parsing; exchange-reported totals are ignored.
func Total(price, quantity decimal.Decimal) decimal.Decimal {
	return price.Mul(quantity)
}
