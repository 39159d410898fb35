// Package insights reduces a classified record set into the per-category and
// per-shop summaries shown under a statement.
package insights

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/parser"
)

// Classified is a canonical record with its derived fields.
type Classified struct {
	parser.Record
	Category string `json:"category,omitempty"`
	Shop     string `json:"shop,omitempty"`
	// Suggested is an advisory category for records left in the default one.
	Suggested string `json:"suggested_category,omitempty"`
}

// ShopTotal is the spend and occurrence count for one compacted shop name.
type ShopTotal struct {
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// CategoryTotal is one row of a category ranking.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	TxCount  int     `json:"tx_count"`
}

// ShopRank is one row of a shop ranking.
type ShopRank struct {
	Shop string `json:"shop"`
	ShopTotal
}

// RankBy selects the ranking key for RankShops.
type RankBy int

const (
	ByTotal RankBy = iota
	ByCount
)

// SumByCategory totals AmountValue per category.
func SumByCategory(records []Classified) map[string]float64 {
	sums := make(map[string]decimal.Decimal)
	for _, r := range records {
		sums[r.Category] = sums[r.Category].Add(decimal.NewFromFloat(r.AmountValue))
	}
	return floats(sums)
}

// SumAndCountByShop totals AmountValue and counts occurrences per shop.
func SumAndCountByShop(records []Classified) map[string]ShopTotal {
	sums := make(map[string]decimal.Decimal)
	counts := make(map[string]int)
	for _, r := range records {
		sums[r.Shop] = sums[r.Shop].Add(decimal.NewFromFloat(r.AmountValue))
		counts[r.Shop]++
	}

	out := make(map[string]ShopTotal, len(sums))
	for shop, sum := range sums {
		out[shop] = ShopTotal{Total: sum.InexactFloat64(), Count: counts[shop]}
	}
	return out
}

// Total sums AmountValue over all records.
func Total(records []Classified) float64 {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(decimal.NewFromFloat(r.AmountValue))
	}
	return total.InexactFloat64()
}

// RankShops orders shops descending by total or by count, ties broken by
// the other key and then by name. limit <= 0 keeps every shop.
func RankShops(totals map[string]ShopTotal, by RankBy, limit int) []ShopRank {
	ranks := make([]ShopRank, 0, len(totals))
	for shop, t := range totals {
		ranks = append(ranks, ShopRank{Shop: shop, ShopTotal: t})
	}

	sort.Slice(ranks, func(i, j int) bool {
		a, b := ranks[i], ranks[j]
		if by == ByCount {
			if a.Count != b.Count {
				return a.Count > b.Count
			}
			if a.Total != b.Total {
				return a.Total > b.Total
			}
		} else {
			if a.Total != b.Total {
				return a.Total > b.Total
			}
			if a.Count != b.Count {
				return a.Count > b.Count
			}
		}
		return a.Shop < b.Shop
	})

	return head(ranks, limit)
}

// RankCategories orders categories descending by total, with their record
// counts. limit <= 0 keeps every category.
func RankCategories(records []Classified, limit int) []CategoryTotal {
	sums := SumByCategory(records)
	counts := make(map[string]int, len(sums))
	for _, r := range records {
		counts[r.Category]++
	}

	ranks := make([]CategoryTotal, 0, len(sums))
	for name, total := range sums {
		ranks = append(ranks, CategoryTotal{Category: name, Total: total, TxCount: counts[name]})
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].Total != ranks[j].Total {
			return ranks[i].Total > ranks[j].Total
		}
		return ranks[i].Category < ranks[j].Category
	})

	return head(ranks, limit)
}

func floats(sums map[string]decimal.Decimal) map[string]float64 {
	out := make(map[string]float64, len(sums))
	for k, v := range sums {
		out[k] = v.InexactFloat64()
	}
	return out
}

func head[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
