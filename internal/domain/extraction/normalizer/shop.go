package normalizer

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultShopNameMaxLen is the grouping-key length used when none is configured.
const DefaultShopNameMaxLen = 15

// CompactorConfig configures shop-name compaction.
type CompactorConfig struct {
	// Boilerplate substrings removed anywhere in the description.
	Boilerplate []string
	// MaxLen is the maximum key length in characters (runes).
	MaxLen int
}

// DefaultCompactorConfig strips Taiwanese city names and dash separators.
func DefaultCompactorConfig() CompactorConfig {
	return CompactorConfig{
		Boilerplate: []string{
			"台北市", "新北市", "桃園市", "台中市", "台南市", "高雄市",
			"臺北市", "臺中市", "臺南市",
			"台北", "新北", "桃園", "台中", "台南", "高雄", "新竹", "基隆",
			"臺北", "臺中", "臺南",
			"－", "—", "–", "-",
		},
		MaxLen: DefaultShopNameMaxLen,
	}
}

// branchSuffix matches a trailing branch designator such as "123號忠孝店".
// The run after the number may not contain spaces or digits, so a name that
// merely starts with a digit ("7-ELEVEN", "85度C") is not taken for a branch.
var branchSuffix = regexp.MustCompile(`\d+[^\s\d]*(?:分店|門市|分行|店)$`)

// Compactor derives short grouping keys from transaction descriptions.
// Two descriptions sharing a prefix can collapse onto one key; that is
// acceptable for aggregation.
type Compactor struct {
	replacer *strings.Replacer
	maxLen   int
}

// NewCompactor builds a compactor from cfg. A non-positive MaxLen falls back
// to DefaultShopNameMaxLen.
func NewCompactor(cfg CompactorConfig) *Compactor {
	pairs := make([]string, 0, len(cfg.Boilerplate)*2)
	for _, b := range cfg.Boilerplate {
		if b == "" {
			continue
		}
		pairs = append(pairs, b, "")
	}

	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = DefaultShopNameMaxLen
	}

	return &Compactor{
		replacer: strings.NewReplacer(pairs...),
		maxLen:   maxLen,
	}
}

// Compact strips boilerplate and branch suffixes, trims, and truncates.
func (c *Compactor) Compact(description string) string {
	name := strings.TrimSpace(c.replacer.Replace(description))
	if stripped := strings.TrimSpace(branchSuffix.ReplaceAllString(name, "")); stripped != "" {
		name = stripped
	}
	return truncateRunes(name, c.maxLen)
}

// MaxLen reports the configured key length.
func (c *Compactor) MaxLen() int {
	return c.maxLen
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
