package parser

import (
	"regexp"
	"strings"
)

var (
	// columnGap treats two or more whitespace characters as a column delimiter.
	columnGap = regexp.MustCompile(`[\s\p{Zs}]{2,}`)

	// trailingAmount captures everything up to the final run of digits/commas.
	trailingAmount = regexp.MustCompile(`^(.*?)[\s\p{Zs}]*([\d,]+)$`)
)

// minPrimaryParts is the number of parts below which the gap split is
// considered to have missed the layout.
const minPrimaryParts = 3

// Split recovers fields from a single text blob that extraction collapsed
// into one cell.
//
// The primary strategy splits on whitespace runs of length two or more. When
// that yields fewer than three parts, the blob is matched against a trailing
// amount pattern and returned as [Null, description, amount]. If that does not
// match either, the primary parts are returned as-is; callers drop rows for
// which NonEmpty reports fewer than two parts.
func Split(blob string) []Cell {
	blob = strings.TrimSpace(blob)

	parts := make([]Cell, 0, 4)
	for _, p := range columnGap.Split(blob, -1) {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, Text(p))
		}
	}
	if len(parts) >= minPrimaryParts {
		return parts
	}

	if m := trailingAmount.FindStringSubmatch(blob); m != nil {
		return []Cell{Null, Text(strings.TrimSpace(m[1])), Text(m[2])}
	}
	return parts
}

// NonEmpty counts cells that are present and not blank.
func NonEmpty(cells []Cell) int {
	n := 0
	for _, c := range cells {
		if c.Valid && strings.TrimSpace(c.Text) != "" {
			n++
		}
	}
	return n
}

// SplitRecord turns the output of Split into a record. It returns false when
// fewer than two non-empty parts are available.
//
// Two parts are read as description and amount. Three or more are read as
// date, description (all middle parts joined by a space) and amount.
func SplitRecord(cells []Cell, rowIndex int) (Record, bool) {
	parts := make([]Cell, 0, len(cells))
	for i, c := range cells {
		// The leading slot of the fallback form is an absent date; keep it.
		if i == 0 && !c.Valid && len(cells) == 3 {
			parts = append(parts, c)
			continue
		}
		if c.Valid && strings.TrimSpace(c.Text) != "" {
			parts = append(parts, c)
		}
	}
	if NonEmpty(parts) < 2 {
		return Record{}, false
	}

	switch len(parts) {
	case 2:
		return newRecord("", parts[0].Text, parts[1], SourceSplit, rowIndex), true
	default:
		last := len(parts) - 1
		middle := make([]string, 0, last-1)
		for _, c := range parts[1:last] {
			if c.Valid {
				middle = append(middle, c.Text)
			}
		}
		return newRecord(parts[0].Text, strings.Join(middle, " "), parts[last], SourceSplit, rowIndex), true
	}
}
