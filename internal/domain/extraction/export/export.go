// Package export writes extracted statements as spreadsheet-friendly files.
package export

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/statement-extractor/internal/domain/insights"
)

// BOM makes spreadsheet tools open the CSV as UTF-8.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// Column headers of the CSV export.
const (
	HeaderDate        = "日期"
	HeaderDescription = "消費明細"
	HeaderAmount      = "金額"
	HeaderCategory    = "分類"
)

// Row is one exported record. Amount keeps the statement's original text.
type Row struct {
	Date        string `csv:"日期"`
	Description string `csv:"消費明細"`
	Amount      string `csv:"金額"`
}

// CategorizedRow is Row with the assigned category.
type CategorizedRow struct {
	Date        string `csv:"日期"`
	Description string `csv:"消費明細"`
	Amount      string `csv:"金額"`
	Category    string `csv:"分類"`
}

// WriteCSV writes a UTF-8 CSV with BOM. The 分類 column is only present when
// withCategory is set.
func WriteCSV(w io.Writer, records []insights.Classified, withCategory bool) error {
	if _, err := w.Write(BOM); err != nil {
		return fmt.Errorf("failed to write BOM: %w", err)
	}

	var rows any
	if withCategory {
		out := make([]CategorizedRow, len(records))
		for i, r := range records {
			out[i] = CategorizedRow{Date: r.Date, Description: r.Description, Amount: r.AmountRaw, Category: r.Category}
		}
		rows = out
	} else {
		out := make([]Row, len(records))
		for i, r := range records {
			out[i] = Row{Date: r.Date, Description: r.Description, Amount: r.AmountRaw}
		}
		rows = out
	}

	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}

// Sheet names of the XLSX export.
const (
	SheetRecords    = "明細"
	SheetCategories = "分類統計"
	SheetShops      = "商店統計"
)

// WriteXLSX writes the records and both aggregations as a workbook.
func WriteXLSX(w io.Writer, records []insights.Classified) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetRecords); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	for _, name := range []string{SheetCategories, SheetShops} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	detail := [][]any{{HeaderDate, HeaderDescription, HeaderAmount, "數值", HeaderCategory, "商店"}}
	for _, r := range records {
		detail = append(detail, []any{r.Date, r.Description, r.AmountRaw, r.AmountValue, r.Category, r.Shop})
	}
	if err := writeSheet(f, SheetRecords, detail, header); err != nil {
		return err
	}

	categories := [][]any{{HeaderCategory, "合計", "筆數"}}
	for _, c := range insights.RankCategories(records, 0) {
		categories = append(categories, []any{c.Category, c.Total, c.TxCount})
	}
	if err := writeSheet(f, SheetCategories, categories, header); err != nil {
		return err
	}

	shops := [][]any{{"商店", "合計", "次數"}}
	for _, s := range insights.RankShops(insights.SumAndCountByShop(records), insights.ByTotal, 0) {
		shops = append(shops, []any{s.Shop, s.Total, s.Count})
	}
	if err := writeSheet(f, SheetShops, shops, header); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	return f.SetColWidth(sheet, "A", "B", 24)
}
