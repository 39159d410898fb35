package parser

import (
	"regexp"
	"strings"
)

// statementLine matches "<txn date> <posting date> <description> <amount> <CC>", for example
// "114/11/10 114/11/12 星巴克 台北店 150 TW". The description is non-greedy so the
// amount binds to the last numeral before the two-letter code.
var statementLine = regexp.MustCompile(
	`(\d+/\d+/\d+)\s+(\d+/\d+/\d+)\s+(.*?)\s+(-?[\d,]+(?:\.\d+)?)\s*([A-Z]{2})\b`,
)

// Join concatenates the present cells of a row with a single space, in order.
func Join(row RawRow) string {
	return row.Joined()
}

// Match applies the structured statement-line pattern to a row.
// The first date is the transaction date; the posting date is discarded.
// It returns false when the row does not have the expected shape, which is
// not an error: the caller either falls back to Split or drops the row.
func Match(row RawRow) (Record, bool) {
	return matchText(Join(row), 0)
}

func matchText(text string, rowIndex int) (Record, bool) {
	m := statementLine.FindStringSubmatch(text)
	if m == nil {
		return Record{}, false
	}

	rec := newRecord(m[1], strings.TrimSpace(m[3]), Text(m[4]), SourcePattern, rowIndex)
	return rec, true
}
