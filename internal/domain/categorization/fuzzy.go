package categorization

import (
	"sort"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// minSuggestRunes keeps single-character keywords out of fuzzy suggestions;
// as subsequences they match almost anything.
const minSuggestRunes = 2

// Suggestion is an advisory category for a description that fell through to
// the default. It never changes the assigned category.
type Suggestion struct {
	Category string `json:"category"`
	Keyword  string `json:"keyword"`
	// Distance is the number of description runes skipped to find the keyword
	// as a case-folded subsequence. Lower is closer.
	Distance int `json:"distance"`
}

// Suggest looks for a keyword whose characters appear in order, ignoring case
// and diacritics, inside description. It returns false when description
// already matches a rule exactly or when nothing comes close.
func (c *Categorizer) Suggest(description string) (Suggestion, bool) {
	if _, _, ok := c.Match(description); ok {
		return Suggestion{}, false
	}

	all := c.rankSuggestions(description)
	if len(all) == 0 {
		return Suggestion{}, false
	}
	return all[0], true
}

// SuggestAll returns up to limit suggestions ordered by distance, then by rule
// order. A non-positive limit returns every candidate.
func (c *Categorizer) SuggestAll(description string, limit int) []Suggestion {
	all := c.rankSuggestions(description)
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}

type rankedSuggestion struct {
	Suggestion
	rule int
}

func (c *Categorizer) rankSuggestions(description string) []Suggestion {
	var ranked []rankedSuggestion
	best := make(map[int]int) // rule index -> position in ranked

	for i, k := range c.patterns {
		if utf8.RuneCountInString(k) < minSuggestRunes {
			continue
		}
		d := fuzzy.RankMatchNormalizedFold(k, description)
		if d < 0 {
			continue
		}

		rule := c.owner[i]
		if pos, ok := best[rule]; ok {
			if d < ranked[pos].Distance {
				ranked[pos].Keyword, ranked[pos].Distance = k, d
			}
			continue
		}
		best[rule] = len(ranked)
		ranked = append(ranked, rankedSuggestion{
			Suggestion: Suggestion{Category: c.rules[rule].Name, Keyword: k, Distance: d},
			rule:       rule,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Distance != ranked[j].Distance {
			return ranked[i].Distance < ranked[j].Distance
		}
		return ranked[i].rule < ranked[j].rule
	})

	out := make([]Suggestion, len(ranked))
	for i, r := range ranked {
		out[i] = r.Suggestion
	}
	return out
}
