package parser

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRoles is returned when a column-role assignment cannot be used.
var ErrInvalidRoles = errors.New("invalid column roles")

// ColumnRoles says which column index holds each canonical field.
type ColumnRoles struct {
	Date        int `json:"date" yaml:"date"`
	Description int `json:"description" yaml:"description"`
	Amount      int `json:"amount" yaml:"amount"`
}

// Validate rejects negative indices.
func (r ColumnRoles) Validate() error {
	if r.Date < 0 || r.Description < 0 || r.Amount < 0 {
		return fmt.Errorf("%w: date=%d description=%d amount=%d", ErrInvalidRoles, r.Date, r.Description, r.Amount)
	}
	return nil
}

// DefaultRoles returns the picker defaults for a table of the given width:
// date=0, description=1, amount=2, each falling back to column 0 when the
// table is too narrow.
func DefaultRoles(width int) ColumnRoles {
	roles := ColumnRoles{Date: 0, Description: 1, Amount: 2}
	if width <= 1 {
		roles.Description = 0
	}
	if width <= 2 {
		roles.Amount = 0
	}
	return roles
}

// Width returns the widest row in rows.
func Width(rows []RawRow) int {
	w := 0
	for _, r := range rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// cellAt returns the cell at i, or Null when the row is too short.
func cellAt(row RawRow, i int) Cell {
	if i < 0 || i >= len(row) {
		return Null
	}
	return row[i]
}

// Extract reads one record per row using an explicit column-role assignment.
// Cells missing from a short row are treated as absent. Extract never drops
// rows; noise removal is left to Filter.
func Extract(rows []RawRow, roles ColumnRoles) ([]Record, error) {
	if err := roles.Validate(); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		date := cellAt(row, roles.Date)
		desc := cellAt(row, roles.Description)
		amount := cellAt(row, roles.Amount)

		records = append(records, newRecord(
			strings.TrimSpace(date.Text),
			strings.TrimSpace(desc.Text),
			amount,
			SourceColumns,
			i,
		))
	}
	return records, nil
}

// Complete reports whether all three role cells are present in row.
func Complete(row RawRow, roles ColumnRoles) bool {
	return cellAt(row, roles.Date).Valid &&
		cellAt(row, roles.Description).Valid &&
		cellAt(row, roles.Amount).Valid
}
