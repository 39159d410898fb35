// Package parser turns raw statement table rows into canonical transaction records.
// It owns the structural matcher, the whitespace/regex row splitter, the
// column-role extractor and the noise filter.
package parser

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/normalizer"
)

// Cell is one table cell. Valid is false when the extractor produced no value.
type Cell struct {
	Text  string
	Valid bool
}

// Null is the absent cell.
var Null = Cell{}

// Text returns a present cell holding s.
func Text(s string) Cell {
	return Cell{Text: s, Valid: true}
}

// Ptr returns the cell as an optional string.
func (c Cell) Ptr() *string {
	if !c.Valid {
		return nil
	}
	s := c.Text
	return &s
}

// RawRow is one extracted table row, cells in column order.
type RawRow []Cell

// NewRow builds a row in which every cell is present.
func NewRow(values ...string) RawRow {
	row := make(RawRow, len(values))
	for i, v := range values {
		row[i] = Text(v)
	}
	return row
}

// Joined concatenates the present cells with single spaces.
func (r RawRow) Joined() string {
	parts := make([]string, 0, len(r))
	for _, c := range r {
		if c.Valid {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, " ")
}

// Source names the extraction path that produced a record.
type Source string

const (
	SourcePattern Source = "pattern"
	SourceSplit   Source = "split"
	SourceColumns Source = "columns"
)

// Record is a canonical transaction.
type Record struct {
	Date        string  `json:"date"`
	Description string  `json:"description"`
	AmountRaw   string  `json:"amount_raw"`
	AmountValue float64 `json:"amount_value"`
	// Defaulted is set when AmountValue is the 0.0 fallback for an unparsable amount.
	Defaulted bool   `json:"amount_defaulted,omitempty"`
	Source    Source `json:"source"`
	RowIndex  int    `json:"row_index"`
}

// newRecord fills AmountValue from amountRaw.
func newRecord(date, description string, amount Cell, source Source, rowIndex int) Record {
	res := normalizer.NormalizeAmount(amount.Ptr())
	return Record{
		Date:        date,
		Description: description,
		AmountRaw:   amount.Text,
		AmountValue: res.Value,
		Defaulted:   res.Defaulted,
		Source:      source,
		RowIndex:    rowIndex,
	}
}

// IsBlank reports whether every textual field is empty.
func (r Record) IsBlank() bool {
	return strings.TrimSpace(r.Date) == "" &&
		strings.TrimSpace(r.Description) == "" &&
		strings.TrimSpace(r.AmountRaw) == ""
}

// Row re-serializes the record into the statement row shape the matcher
// recognizes: date, posting date, description, amount, currency code.
// The posting date is not kept, so the transaction date is repeated.
func (r Record) Row(currencyCode string) RawRow {
	return NewRow(r.Date, r.Date, r.Description, r.AmountRaw, currencyCode)
}

func (r Record) String() string {
	return fmt.Sprintf("%s | %s | %s", r.Date, r.Description, r.AmountRaw)
}
