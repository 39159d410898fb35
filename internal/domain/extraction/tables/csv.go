package tables

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/parser"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVSource reads delimited text exports. The delimiter is detected from the
// first non-empty line unless set.
type CSVSource struct {
	Delimiter rune
}

func NewCSVSource() *CSVSource {
	return &CSVSource{}
}

func (s *CSVSource) Name() string { return string(FormatCSV) }

// Rows reads every record. Field counts may vary between rows.
func (s *CSVSource) Rows(ctx context.Context, data []byte, _ string) ([]parser.RawRow, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		return nil, accessError(FormatCSV, errors.New("not valid UTF-8 text"))
	}

	delim := s.Delimiter
	if delim == 0 {
		delim = detectDelimiter(firstLine(data))
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = delim
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	var rows []parser.RawRow
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		rows = append(rows, cellsOf(record))
	}
	return rows, nil
}

func firstLine(data []byte) string {
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// detectDelimiter picks the most frequent candidate, defaulting to comma.
func detectDelimiter(line string) rune {
	best, bestCount := ',', 0
	for _, d := range []rune{',', ';', '\t', '|'} {
		if count := strings.Count(line, string(d)); count > bestCount {
			best, bestCount = d, count
		}
	}
	return best
}
