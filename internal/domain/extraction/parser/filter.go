package parser

import "strings"

// DefaultHeaderLabels are date-column header texts seen on supported statements.
var DefaultHeaderLabels = []string{"日期", "交易日期", "消費日", "Date"}

// DropReason explains why Filter removed a record.
type DropReason string

const (
	DropBlank  DropReason = "blank"
	DropHeader DropReason = "header"
	DropZero   DropReason = "zero_amount"
	// DropIncomplete is used by strict column mode for rows missing a role cell.
	DropIncomplete DropReason = "incomplete"
)

// FilterOptions configures Filter.
type FilterOptions struct {
	// HeaderLabels are compared against the trimmed date field. Nil means
	// DefaultHeaderLabels; an empty non-nil slice disables the check.
	HeaderLabels []string
	// OnDrop, when set, is called once for every removed record.
	OnDrop func(Record, DropReason)
}

// Filter removes noise records: wholly blank ones, header rows echoed as data
// and records whose amount is exactly zero (which includes amounts that did
// not parse). The result is an order-preserving subsequence of records, and
// filtering twice gives the same result as filtering once. The input slice is
// not modified.
func Filter(records []Record, opts FilterOptions) []Record {
	labels := opts.HeaderLabels
	if labels == nil {
		labels = DefaultHeaderLabels
	}
	headers := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		headers[l] = struct{}{}
	}

	kept := make([]Record, 0, len(records))
	for _, r := range records {
		reason, drop := dropReason(r, headers)
		if drop {
			if opts.OnDrop != nil {
				opts.OnDrop(r, reason)
			}
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func dropReason(r Record, headers map[string]struct{}) (DropReason, bool) {
	if r.IsBlank() {
		return DropBlank, true
	}
	if _, ok := headers[strings.TrimSpace(r.Date)]; ok {
		return DropHeader, true
	}
	if r.AmountValue == 0.0 {
		return DropZero, true
	}
	return "", false
}
