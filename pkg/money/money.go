// Package money provides currency-aware totals for statement amounts.
// Sums are accumulated with shopspring/decimal so long statements do not
// drift, and totals are rendered through go-money's ISO-4217 formatting.
package money

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ISO-4217 codes seen on statements.
const (
	TWD = "TWD"
	USD = "USD"
	JPY = "JPY"
	EUR = "EUR"
)

// DefaultCurrency replaces empty or unknown codes.
const DefaultCurrency = TWD

// Total is a statement amount rounded to its currency's minor unit.
type Total struct {
	m *money.Money
}

// NewTotal rounds amount half away from zero to the minor unit of code.
func NewTotal(amount float64, code string) Total {
	code = Code(code)
	fraction := int32(money.GetCurrency(code).Fraction)
	minor := decimal.NewFromFloat(amount).Shift(fraction).Round(0).IntPart()
	return Total{m: money.New(minor, code)}
}

// Code upper-cases code and falls back to DefaultCurrency when go-money
// does not know it.
func Code(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || money.GetCurrency(code) == nil {
		return DefaultCurrency
	}
	return code
}

// Currency is the ISO-4217 code of t.
func (t Total) Currency() string {
	if t.m == nil {
		return DefaultCurrency
	}
	return t.m.Currency().Code
}

// MinorUnits is t in cents (or whole yen).
func (t Total) MinorUnits() int64 {
	if t.m == nil {
		return 0
	}
	return t.m.Amount()
}

// Display renders t with symbol and grouping, e.g. "NT$1,234.56".
func (t Total) Display() string {
	if t.m == nil {
		return NewTotal(0, DefaultCurrency).Display()
	}
	return t.m.Display()
}

// Sum adds float amounts in decimal and returns the float result.
// An empty slice sums to 0.
func Sum(values []float64) float64 {
	return SumDecimal(values).InexactFloat64()
}

// SumDecimal adds float amounts in decimal.
func SumDecimal(values []float64) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total
}

// FormatTotal renders a statement total in the given currency, for example
// FormatTotal(1234.5, "TWD") == "NT$1,234.50".
func FormatTotal(amount float64, code string) string {
	return NewTotal(amount, code).Display()
}
