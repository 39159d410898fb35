package tables

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/parser"
)

// XLSXSource reads every sheet of a workbook in sheet order.
type XLSXSource struct{}

func NewXLSXSource() *XLSXSource {
	return &XLSXSource{}
}

func (s *XLSXSource) Name() string { return string(FormatXLSX) }

// Rows opens the workbook, decrypting it with password when set.
func (s *XLSXSource) Rows(ctx context.Context, data []byte, password string) ([]parser.RawRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data), excelize.Options{Password: password})
	if err != nil {
		return nil, accessError(FormatXLSX, err)
	}
	defer f.Close()

	var rows []parser.RawRow
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sheetRows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		for _, r := range sheetRows {
			rows = append(rows, cellsOf(r))
		}
	}
	return rows, nil
}
