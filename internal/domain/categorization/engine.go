package categorization

import (
	"github.com/cloudflare/ahocorasick"
)

// Categorizer assigns a category to a description using an ordered rule set.
//
// All keywords are compiled into one Aho-Corasick automaton, so a description
// is scanned once regardless of how many keywords exist. The winner is the
// lowest rule index among every keyword found, which gives the same answer as
// testing the rules one by one in order. Matching is case-sensitive.
//
// A Categorizer is immutable after construction and safe for concurrent use.
type Categorizer struct {
	rules    RuleSet
	fallback string

	matcher  *ahocorasick.Matcher
	patterns []string
	// owner[i] is the lowest rule index that lists patterns[i].
	owner []int
}

// Option configures a Categorizer.
type Option func(*Categorizer)

// WithDefault overrides the catch-all category name.
func WithDefault(name string) Option {
	return func(c *Categorizer) {
		if name != "" {
			c.fallback = name
		}
	}
}

// NewCategorizer compiles rules. The rule set is copied; later changes to the
// caller's slice have no effect. Empty keywords are ignored.
func NewCategorizer(rules RuleSet, opts ...Option) *Categorizer {
	c := &Categorizer{
		rules:    rules.Clone(),
		fallback: DefaultCategory,
	}
	for _, opt := range opts {
		opt(c)
	}

	seen := make(map[string]struct{})
	for ruleIdx, r := range c.rules {
		for _, k := range r.Keywords {
			if k == "" {
				continue
			}
			// Keep the first (lowest) rule for a keyword listed twice.
			if _, exists := seen[k]; exists {
				continue
			}
			seen[k] = struct{}{}
			c.patterns = append(c.patterns, k)
			c.owner = append(c.owner, ruleIdx)
		}
	}

	if len(c.patterns) > 0 {
		c.matcher = ahocorasick.NewStringMatcher(c.patterns)
	}
	return c
}

// Categorize returns the category for description, or the default category
// when nothing matches. It never fails.
func (c *Categorizer) Categorize(description string) string {
	if r, _, ok := c.Match(description); ok {
		return r.Name
	}
	return c.fallback
}

// Match reports the winning rule and the keyword that selected it.
func (c *Categorizer) Match(description string) (Rule, string, bool) {
	if c.matcher == nil {
		return Rule{}, "", false
	}

	hits := c.matcher.MatchThreadSafe([]byte(description))
	best, keyword := -1, ""
	for _, p := range hits {
		if p < 0 || p >= len(c.owner) {
			continue
		}
		if best == -1 || c.owner[p] < best {
			best, keyword = c.owner[p], c.patterns[p]
		}
	}
	if best == -1 {
		return Rule{}, "", false
	}
	return c.rules[best], keyword, true
}

// CategorizeBatch categorizes several descriptions, preserving order.
func (c *Categorizer) CategorizeBatch(descriptions []string) []string {
	out := make([]string, len(descriptions))
	for i, d := range descriptions {
		out[i] = c.Categorize(d)
	}
	return out
}

// Rules returns a copy of the compiled rule set.
func (c *Categorizer) Rules() RuleSet {
	return c.rules.Clone()
}

// Default returns the catch-all category name.
func (c *Categorizer) Default() string {
	return c.fallback
}

// PatternCount returns the number of distinct keywords compiled.
func (c *Categorizer) PatternCount() int {
	return len(c.patterns)
}
