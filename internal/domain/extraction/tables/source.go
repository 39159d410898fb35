// Package tables adapts statement documents (PDF, XLSX, CSV) into raw table
// rows. Layout analysis is deliberately shallow: rows come out in page order
// then document order, one cell per visually separated phrase or sheet cell.
package tables

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/parser"
)

var (
	// ErrDocumentAccess means the document could not be opened or decrypted.
	ErrDocumentAccess = errors.New("document cannot be opened")
	// ErrUnsupportedFormat means no source handles the document.
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// Source extracts raw rows from one document. An empty password means the
// document is not encrypted.
type Source interface {
	Rows(ctx context.Context, data []byte, password string) ([]parser.RawRow, error)
	Name() string
}

// Format identifies a document type.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var (
	pdfMagic = []byte("%PDF-")
	zipMagic = []byte("PK\x03\x04")
	// Encrypted OOXML workbooks are wrapped in a compound file container.
	cfbMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// DetectFormat picks a format from the file extension, falling back to
// magic bytes when the extension is missing or unknown.
func DetectFormat(filename string, data []byte) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FormatPDF, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv", ".tsv", ".txt":
		return FormatCSV, nil
	}

	switch {
	case bytes.HasPrefix(data, pdfMagic):
		return FormatPDF, nil
	case bytes.HasPrefix(data, zipMagic), bytes.HasPrefix(data, cfbMagic):
		return FormatXLSX, nil
	case len(data) > 0 && !bytes.ContainsRune(data[:min(len(data), 512)], 0):
		return FormatCSV, nil
	}

	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
}

// Detect returns the Source for a document.
func Detect(filename string, data []byte) (Source, error) {
	format, err := DetectFormat(filename, data)
	if err != nil {
		return nil, err
	}
	return ForFormat(format)
}

// ForFormat returns the Source for a known format.
func ForFormat(format Format) (Source, error) {
	switch format {
	case FormatPDF:
		return NewPDFSource(), nil
	case FormatXLSX:
		return NewXLSXSource(), nil
	case FormatCSV:
		return NewCSVSource(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func accessError(format Format, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDocumentAccess, format, err)
}

// cellsOf turns extracted strings into cells; blank strings are absent.
func cellsOf(values []string) parser.RawRow {
	row := make(parser.RawRow, len(values))
	for i, v := range values {
		if strings.TrimSpace(v) == "" {
			row[i] = parser.Null
			continue
		}
		row[i] = parser.Text(v)
	}
	return row
}
