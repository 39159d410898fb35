// Package normalizer provides amount coercion and shop-name compaction.
// amount.go turns statement amount cells of unknown shape into numbers.
package normalizer

import (
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// AmountResult is the outcome of normalizing one amount cell.
// Defaulted is true when Value is the 0.0 fallback rather than a parsed number.
type AmountResult struct {
	Value     float64
	Defaulted bool
}

// NormalizeAmount coerces a raw cell into a number.
// A nil cell, an empty string or anything that does not parse after cleaning
// yields 0.0 with Defaulted set. It never fails.
func NormalizeAmount(value *string) AmountResult {
	if value == nil {
		return AmountResult{Defaulted: true}
	}

	cleaned := cleanAmount(*value)
	if cleaned == "" {
		return AmountResult{Defaulted: true}
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return AmountResult{Defaulted: true}
	}

	return AmountResult{Value: f}
}

// Amount is NormalizeAmount for a present cell, returning only the value.
func Amount(s string) float64 {
	return NormalizeAmount(&s).Value
}

// cleanAmount keeps digits, dots and minus signs. Full-width digits
// ("１５０") are folded to ASCII first.
func cleanAmount(raw string) string {
	folded := width.Narrow.String(raw)

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
