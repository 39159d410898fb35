package tables

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"rsc.io/pdf"

	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/parser"
)

// PDFSource turns each visual text line of a PDF into one row. Glyphs on a
// line are grouped into phrases by horizontal gap; each phrase is a cell.
type PDFSource struct {
	// LineTolerance is the max baseline difference for glyphs on one line.
	LineTolerance float64
}

func NewPDFSource() *PDFSource {
	return &PDFSource{LineTolerance: 1}
}

func (s *PDFSource) Name() string { return string(FormatPDF) }

// Rows decrypts the document with password when it is encrypted. A wrong
// password or unreadable file is ErrDocumentAccess.
func (s *PDFSource) Rows(ctx context.Context, data []byte, password string) (rows []parser.RawRow, err error) {
	// rsc.io/pdf panics on malformed content streams.
	defer func() {
		if p := recover(); p != nil {
			rows, err = nil, accessError(FormatPDF, fmt.Errorf("malformed content: %v", p))
		}
	}()

	tried := false
	r, err := pdf.NewReaderEncrypted(bytes.NewReader(data), int64(len(data)), func() string {
		if tried {
			return ""
		}
		tried = true
		return password
	})
	if err != nil {
		return nil, accessError(FormatPDF, err)
	}

	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		rows = append(rows, s.lines(page.Content().Text)...)
	}
	return rows, nil
}

// lines groups glyphs top to bottom into rows of phrases.
func (s *PDFSource) lines(chars []pdf.Text) []parser.RawRow {
	if len(chars) == 0 {
		return nil
	}

	glyphs := make([]pdf.Text, len(chars))
	copy(glyphs, chars)

	// Snap baselines within tolerance to the line's first baseline.
	sort.Sort(pdf.TextVertical(glyphs))
	line := glyphs[0].Y
	for i := range glyphs {
		if math.Abs(glyphs[i].Y-line) <= s.LineTolerance {
			glyphs[i].Y = line
		} else {
			line = glyphs[i].Y
		}
	}
	sort.Sort(pdf.TextVertical(glyphs))

	var rows []parser.RawRow
	for i := 0; i < len(glyphs); {
		j := i + 1
		for j < len(glyphs) && glyphs[j].Y == glyphs[i].Y {
			j++
		}
		if row := phrases(glyphs[i:j]); len(row) > 0 {
			rows = append(rows, row)
		}
		i = j
	}
	return rows
}

// phrases joins glyphs of one line. A gap under a sixth of the font size
// continues the word, under two thirds inserts a space, wider starts a cell.
func phrases(line []pdf.Text) parser.RawRow {
	var (
		row parser.RawRow
		b   strings.Builder
		end float64
	)
	flush := func() {
		if text := strings.TrimSpace(b.String()); text != "" {
			row = append(row, parser.Text(text))
		}
		b.Reset()
	}

	for k, c := range line {
		if k > 0 {
			gap := c.X - end
			switch {
			case gap <= c.FontSize/6:
			case gap <= c.FontSize*2/3:
				b.WriteByte(' ')
			default:
				flush()
			}
		}
		b.WriteString(c.S)
		end = c.X + c.W
	}
	flush()
	return row
}
