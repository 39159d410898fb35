package insights

import (
	"fmt"

	"github.com/FACorreiaa/statement-extractor/pkg/money"
)

// DefaultTopN is how many shops and categories a summary ranks.
const DefaultTopN = 5

// Summary is the statement-level report built from a classified record set.
type Summary struct {
	RecordCount     int             `json:"record_count"`
	Total           float64         `json:"total"`
	TotalDisplay    string          `json:"total_display"`
	Currency        string          `json:"currency"`
	RefundTotal     float64         `json:"refund_total"`
	TopCategories   []CategoryTotal `json:"top_categories"`
	TopShopsBySpend []ShopRank      `json:"top_shops_by_spend"`
	TopShopsByCount []ShopRank      `json:"top_shops_by_count"`
	Highlights      []string        `json:"highlights"`
}

// Summarize ranks categories and shops and renders the statement total in
// currency. topN <= 0 uses DefaultTopN.
func Summarize(records []Classified, currency string, topN int) *Summary {
	if topN <= 0 {
		topN = DefaultTopN
	}

	var refunds []float64
	for _, r := range records {
		if r.AmountValue < 0 {
			refunds = append(refunds, r.AmountValue)
		}
	}

	byShop := SumAndCountByShop(records)
	total := Total(records)

	s := &Summary{
		RecordCount:     len(records),
		Total:           total,
		TotalDisplay:    money.FormatTotal(total, currency),
		Currency:        money.Code(currency),
		RefundTotal:     money.Sum(refunds),
		TopCategories:   RankCategories(records, topN),
		TopShopsBySpend: RankShops(byShop, ByTotal, topN),
		TopShopsByCount: RankShops(byShop, ByCount, topN),
	}
	s.Highlights = highlights(s)
	return s
}

func highlights(s *Summary) []string {
	var out []string

	out = append(out, fmt.Sprintf("本月合計 %s", s.TotalDisplay))

	if len(s.TopCategories) > 0 {
		top := s.TopCategories[0]
		out = append(out, fmt.Sprintf("Top spending: %s (%s)", top.Category, money.FormatTotal(top.Total, s.Currency)))
	}

	if len(s.TopShopsByCount) > 0 && s.TopShopsByCount[0].Count > 1 {
		top := s.TopShopsByCount[0]
		out = append(out, fmt.Sprintf("Most visited: %s (%d times)", top.Shop, top.Count))
	}

	if s.RefundTotal < 0 {
		out = append(out, fmt.Sprintf("Refunds: %s", money.FormatTotal(-s.RefundTotal, s.Currency)))
	}

	return out
}
