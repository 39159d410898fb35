// Package sniffer suggests column roles for a statement table.
// It is optional: the pipeline only uses it when the caller asks for role
// inference instead of supplying an explicit assignment.
package sniffer

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/normalizer"
	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/parser"
)

// ErrNoSuggestion is returned when neither headers nor data identify all three roles.
var ErrNoSuggestion = errors.New("could not infer column roles")

// Header keywords for each role (Traditional Chinese and English statements).
var (
	dateKeywords   = []string{"日期", "消費日", "交易日", "入帳日", "date"}
	descKeywords   = []string{"消費明細", "明細", "摘要", "說明", "商店", "description", "merchant", "details"}
	amountKeywords = []string{"金額", "新臺幣", "新台幣", "amount", "twd"}
)

var datePattern = regexp.MustCompile(`^\d{2,4}/\d{1,2}/\d{1,2}$`)

// sampleSize bounds the number of data rows scored per column.
const sampleSize = 50

// Suggestion is an inferred column-role assignment.
type Suggestion struct {
	Roles parser.ColumnRoles
	// HeaderRow is the index of the detected header row, -1 when roles came from data only.
	HeaderRow int
	// Headers holds the header cells when HeaderRow >= 0.
	Headers []string
	// Fingerprint identifies the header layout, stable across statements of one issuer.
	Fingerprint string
	// Confidence is 1.0 for a header match and the mean column score otherwise.
	Confidence float64
}

// SuggestRoles inspects the rows and proposes a column-role assignment.
// A header row naming all three roles wins; otherwise each column is scored
// by how its cells look (date-like, numeric, free text).
func SuggestRoles(rows []parser.RawRow) (*Suggestion, error) {
	if idx, roles, ok := findHeaderRow(rows); ok {
		headers := cellTexts(rows[idx])
		return &Suggestion{
			Roles:       roles,
			HeaderRow:   idx,
			Headers:     headers,
			Fingerprint: Fingerprint(headers),
			Confidence:  1.0,
		}, nil
	}

	roles, confidence, ok := scoreColumns(rows)
	if !ok {
		return nil, ErrNoSuggestion
	}
	return &Suggestion{Roles: roles, HeaderRow: -1, Confidence: confidence}, nil
}

// SuggestHeader maps header cell texts to roles. Each role keeps the first
// column whose header contains one of its keywords.
func SuggestHeader(headers []string) (parser.ColumnRoles, bool) {
	roles := parser.ColumnRoles{Date: -1, Description: -1, Amount: -1}

	for i, header := range headers {
		h := strings.ToLower(strings.TrimSpace(header))
		if h == "" {
			continue
		}

		// Date detection
		if roles.Date == -1 && containsAny(h, dateKeywords) {
			roles.Date = i
			continue
		}

		// Amount detection before description: "消費金額" names the amount.
		if roles.Amount == -1 && containsAny(h, amountKeywords) {
			roles.Amount = i
			continue
		}

		// Description detection
		if roles.Description == -1 && containsAny(h, descKeywords) {
			roles.Description = i
		}
	}

	ok := roles.Date >= 0 && roles.Description >= 0 && roles.Amount >= 0
	return roles, ok
}

func findHeaderRow(rows []parser.RawRow) (int, parser.ColumnRoles, bool) {
	limit := min(len(rows), sampleSize)
	for i := 0; i < limit; i++ {
		if roles, ok := SuggestHeader(cellTexts(rows[i])); ok {
			return i, roles, true
		}
	}
	return -1, parser.ColumnRoles{}, false
}

type columnScore struct {
	date, amount, text float64
}

// scoreColumns assigns the best date, amount and description columns, each
// column used at most once.
func scoreColumns(rows []parser.RawRow) (parser.ColumnRoles, float64, bool) {
	width := parser.Width(rows)
	if width < 3 {
		return parser.ColumnRoles{}, 0, false
	}

	scores := make([]columnScore, width)
	sampled := 0
	for _, row := range rows {
		if sampled >= sampleSize {
			break
		}
		if parser.NonEmpty(row) < 3 {
			continue
		}
		sampled++

		for col, cell := range row {
			if !cell.Valid {
				continue
			}
			v := strings.TrimSpace(cell.Text)
			switch {
			case datePattern.MatchString(v):
				scores[col].date++
			case looksNumeric(v):
				scores[col].amount++
			case v != "":
				scores[col].text += float64(utf8.RuneCountInString(v))
			}
		}
	}
	if sampled == 0 {
		return parser.ColumnRoles{}, 0, false
	}

	used := make(map[int]bool, 3)
	dateCol, dateScore := best(scores, used, false, func(s columnScore) float64 { return s.date })
	if dateCol < 0 {
		return parser.ColumnRoles{}, 0, false
	}
	used[dateCol] = true

	amountCol, amountScore := best(scores, used, true, func(s columnScore) float64 { return s.amount })
	if amountCol < 0 {
		return parser.ColumnRoles{}, 0, false
	}
	used[amountCol] = true

	descCol, _ := best(scores, used, false, func(s columnScore) float64 { return s.text })
	if descCol < 0 {
		return parser.ColumnRoles{}, 0, false
	}

	n := float64(sampled)
	confidence := (dateScore/n + amountScore/n + 1.0) / 3
	return parser.ColumnRoles{Date: dateCol, Description: descCol, Amount: amountCol}, confidence, true
}

// best returns the unused column with the highest positive score. With
// preferLast, ties go to the rightmost column since statements print the
// amount last.
func best(scores []columnScore, used map[int]bool, preferLast bool, key func(columnScore) float64) (int, float64) {
	bestCol, bestScore := -1, 0.0
	for col, s := range scores {
		if used[col] {
			continue
		}
		v := key(s)
		if v > bestScore || (preferLast && v > 0 && v == bestScore) {
			bestCol, bestScore = col, v
		}
	}
	return bestCol, bestScore
}

// looksNumeric reports whether v is an amount once currency glyphs are removed.
func looksNumeric(v string) bool {
	if v == "" {
		return false
	}
	hasDigit := false
	for _, r := range v {
		if unicode.IsDigit(r) {
			hasDigit = true
		} else if unicode.IsLetter(r) && !isCurrencyLetter(r) {
			return false
		}
	}
	return hasDigit && !normalizer.NormalizeAmount(&v).Defaulted
}

func isCurrencyLetter(r rune) bool {
	return strings.ContainsRune("NTDUSWE元$", r)
}

// Fingerprint creates a stable hash from header names. Statements from the
// same issuer share it, so it can key per-issuer rule sets.
func Fingerprint(headers []string) string {
	normalized := make([]string, 0, len(headers))
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func cellTexts(row parser.RawRow) []string {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = c.Text
	}
	return out
}
