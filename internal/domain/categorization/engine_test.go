package categorization

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorizer_Categorize(t *testing.T) {
	c := NewCategorizer(DefaultRuleSet())

	tests := []struct {
		name        string
		description string
		expected    string
	}{
		{"keyword anywhere", "星巴克 信用卡消費 市府店", "餐飲美食"},
		{"statement description", "星巴克 台北店", "餐飲美食"},
		{"second category", "台灣高鐵 台北-左營", "交通"},
		{"online shopping", "蝦皮購物", "網購"},
		{"subscription", "NETFLIX.COM", "娛樂訂閱"},
		{"no match", "某某企業社", DefaultCategory},
		{"empty description", "", DefaultCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.Categorize(tt.description))
		})
	}
}

func TestCategorizer_FirstRuleWins(t *testing.T) {
	rules := RuleSet{
		{Name: "餐飲", Keywords: []string{"UBER EATS"}},
		{Name: "交通", Keywords: []string{"UBER"}},
	}
	c := NewCategorizer(rules)

	// Both rules hit; the earlier one wins even though "UBER" ends first.
	assert.Equal(t, "餐飲", c.Categorize("UBER EATS 訂單"))
	assert.Equal(t, "交通", c.Categorize("UBER TRIP"))

	reversed := NewCategorizer(RuleSet{rules[1], rules[0]})
	assert.Equal(t, "交通", reversed.Categorize("UBER EATS 訂單"))
}

func TestCategorizer_CaseSensitive(t *testing.T) {
	c := NewCategorizer(RuleSet{{Name: "娛樂", Keywords: []string{"Netflix"}}})

	assert.Equal(t, "娛樂", c.Categorize("Netflix 月費"))
	assert.Equal(t, DefaultCategory, c.Categorize("NETFLIX 月費"))
	assert.Equal(t, DefaultCategory, c.Categorize("netflix 月費"))
}

func TestCategorizer_MatchesOrderedScan(t *testing.T) {
	rules := DefaultRuleSet()
	c := NewCategorizer(rules)

	linear := func(desc string) string {
		for _, r := range rules {
			for _, k := range r.Keywords {
				if strings.Contains(desc, k) {
					return r.Name
				}
			}
		}
		return DefaultCategory
	}

	descriptions := []string{
		"全聯福利中心 中和店",
		"UBER EATS 台北",
		"中華電信 電費代繳",
		"屈臣氏 藥局",
		"STARBUCKS 7-ELEVEN 聯名",
		"momo購物網 PChome",
		"加油站 停車場 星巴克",
		"隨便一家店",
	}
	for _, d := range descriptions {
		assert.Equal(t, linear(d), c.Categorize(d), d)
	}
}

func TestCategorizer_Match(t *testing.T) {
	c := NewCategorizer(DefaultRuleSet())

	rule, keyword, ok := c.Match("路易莎咖啡 民生店")
	require.True(t, ok)
	assert.Equal(t, "餐飲美食", rule.Name)
	assert.Contains(t, []string{"路易莎", "咖啡"}, keyword)

	_, _, ok = c.Match("不相關")
	assert.False(t, ok)
}

func TestCategorizer_EmptyRules(t *testing.T) {
	c := NewCategorizer(nil)
	assert.Equal(t, DefaultCategory, c.Categorize("星巴克"))
	assert.Equal(t, 0, c.PatternCount())

	custom := NewCategorizer(RuleSet{{Name: "A", Keywords: []string{""}}}, WithDefault("Other"))
	assert.Equal(t, "Other", custom.Categorize("anything"))
	assert.Equal(t, "Other", custom.Default())
}

func TestCategorizer_DuplicateKeyword(t *testing.T) {
	c := NewCategorizer(RuleSet{
		{Name: "A", Keywords: []string{"咖啡"}},
		{Name: "B", Keywords: []string{"咖啡", "茶"}},
	})
	assert.Equal(t, 2, c.PatternCount())
	assert.Equal(t, "A", c.Categorize("咖啡"))
	assert.Equal(t, "B", c.Categorize("紅茶"))
}

func TestCategorizer_Immutable(t *testing.T) {
	rules := RuleSet{{Name: "A", Keywords: []string{"x"}}}
	c := NewCategorizer(rules)

	rules[0].Name = "changed"
	rules[0].Keywords[0] = "y"

	assert.Equal(t, "A", c.Categorize("x"))
	assert.Equal(t, "A", c.Rules()[0].Name)
}

func TestCategorizer_CategorizeBatch(t *testing.T) {
	c := NewCategorizer(DefaultRuleSet())
	got := c.CategorizeBatch([]string{"星巴克", "蝦皮", "???"})
	assert.Equal(t, []string{"餐飲美食", "網購", DefaultCategory}, got)
}

func TestCategorizer_Concurrent(t *testing.T) {
	c := NewCategorizer(DefaultRuleSet())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				desc := fmt.Sprintf("星巴克 %d-%d", i, j)
				if got := c.Categorize(desc); got != "餐飲美食" {
					t.Errorf("got %q for %q", got, desc)
					return
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestCategorizer_Suggest(t *testing.T) {
	c := NewCategorizer(DefaultRuleSet())

	t.Run("case folded", func(t *testing.T) {
		s, ok := c.Suggest("starbucks reserve")
		require.True(t, ok)
		assert.Equal(t, "餐飲美食", s.Category)
		assert.Equal(t, "STARBUCKS", s.Keyword)
	})

	t.Run("split keyword", func(t *testing.T) {
		s, ok := c.Suggest("全 聯 福利中心")
		require.True(t, ok)
		assert.Equal(t, "超市便利", s.Category)
		assert.Equal(t, "全聯", s.Keyword)
	})

	t.Run("exact match needs no suggestion", func(t *testing.T) {
		_, ok := c.Suggest("星巴克")
		assert.False(t, ok)
	})

	t.Run("nothing close", func(t *testing.T) {
		_, ok := c.Suggest("xyz")
		assert.False(t, ok)
	})
}

func TestCategorizer_SuggestAll(t *testing.T) {
	c := NewCategorizer(RuleSet{
		{Name: "A", Keywords: []string{"ab"}},
		{Name: "B", Keywords: []string{"ab", "abc"}},
		{Name: "C", Keywords: []string{"xyz"}},
	})

	// "ab" is owned by A only; B keeps "abc", which skips fewer runes.
	got := c.SuggestAll("a-b-c", 0)
	require.Len(t, got, 2)
	assert.Equal(t, Suggestion{Category: "B", Keyword: "abc", Distance: 2}, got[0])
	assert.Equal(t, Suggestion{Category: "A", Keyword: "ab", Distance: 3}, got[1])

	assert.Len(t, c.SuggestAll("a-b-c", 1), 1)
}
