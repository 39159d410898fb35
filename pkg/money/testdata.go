package money

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
)

// TestDataGenerator generates realistic credit-card statement data using gofakeit.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a new test data generator with a random seed.
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(0), // Random seed
	}
}

// NewTestDataGeneratorWithSeed creates a generator with a specific seed for reproducibility.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		faker: gofakeit.New(seed),
	}
}

// ============================================================================
// Statement Line Generation
// ============================================================================

// StatementLine is one generated card statement line.
type StatementLine struct {
	TransactionDate string // ROC calendar, e.g. "114/11/10"
	PostingDate     string
	Merchant        string
	Branch          string
	Amount          decimal.Decimal
	CountryCode     string
}

// Description joins merchant and branch the way statements print them.
func (l StatementLine) Description() string {
	if l.Branch == "" {
		return l.Merchant
	}
	return l.Merchant + " " + l.Branch
}

// AmountText renders the amount with thousands separators, no currency.
func (l StatementLine) AmountText() string {
	return groupThousands(l.Amount)
}

// Cells returns the line as table cells: both dates, description, amount, country code.
func (l StatementLine) Cells() []string {
	return []string{l.TransactionDate, l.PostingDate, l.Description(), l.AmountText(), l.CountryCode}
}

var merchants = []string{
	"星巴克", "麥當勞", "全聯福利中心", "全家便利商店", "7-ELEVEN", "蝦皮購物",
	"momo購物網", "台灣高鐵", "中油", "NETFLIX.COM", "Spotify", "家樂福",
	"好市多", "屈臣氏", "中華電信", "UBER EATS", "路易莎咖啡", "誠品書店",
}

var branches = []string{
	"台北店", "信義店", "市府店", "123號忠孝店", "板橋門市", "台中分店", "",
}

// Merchant returns a random merchant name.
func (g *TestDataGenerator) Merchant() string {
	return merchants[g.faker.Number(0, len(merchants)-1)]
}

// Branch returns a random branch suffix; may be empty.
func (g *TestDataGenerator) Branch() string {
	return branches[g.faker.Number(0, len(branches)-1)]
}

// Amount returns a whole-dollar purchase amount between 30 and 5000.
func (g *TestDataGenerator) Amount() decimal.Decimal {
	return decimal.NewFromInt(int64(g.faker.Number(30, 5000)))
}

// Date returns a date within the last year.
func (g *TestDataGenerator) Date() time.Time {
	return g.faker.DateRange(time.Now().AddDate(-1, 0, 0), time.Now())
}

// StatementLine generates one statement line. One in ten is a refund.
func (g *TestDataGenerator) StatementLine() StatementLine {
	txn := g.Date()
	posted := txn.AddDate(0, 0, g.faker.Number(0, 3))

	amount := g.Amount()
	if g.faker.Number(1, 10) == 1 {
		amount = amount.Neg()
	}

	return StatementLine{
		TransactionDate: ROCDate(txn),
		PostingDate:     ROCDate(posted),
		Merchant:        g.Merchant(),
		Branch:          g.Branch(),
		Amount:          amount,
		CountryCode:     "TW",
	}
}

// StatementLines generates count statement lines.
func (g *TestDataGenerator) StatementLines(count int) []StatementLine {
	lines := make([]StatementLine, count)
	for i := range lines {
		lines[i] = g.StatementLine()
	}
	return lines
}

// ROCDate formats t in the Minguo calendar used on Taiwanese statements.
func ROCDate(t time.Time) string {
	return fmt.Sprintf("%d/%02d/%02d", t.Year()-1911, int(t.Month()), t.Day())
}

func groupThousands(d decimal.Decimal) string {
	s := d.Abs().StringFixed(0)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if d.IsNegative() {
		return "-" + s
	}
	return s
}
