package categorization

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultCategory is assigned when no rule matches.
const DefaultCategory = "其他"

var (
	ErrEmptyCategoryName = errors.New("category name is empty")
	ErrDuplicateCategory = errors.New("duplicate category name")
	ErrEmptyKeyword      = errors.New("keyword is empty")
	ErrRuleSetNotFound   = errors.New("rule set not found")
)

// Rule maps one category to the keywords that select it.
type Rule struct {
	Name     string   `json:"name" yaml:"name"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// RuleSet is an ordered list of rules. The first rule with a matching keyword
// wins, so order is significant.
type RuleSet []Rule

// Validate checks names are present and unique and that no keyword is empty.
// An empty keyword would match every description.
func (rs RuleSet) Validate() error {
	seen := make(map[string]struct{}, len(rs))
	for i, r := range rs {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return fmt.Errorf("rule %d: %w", i, ErrEmptyCategoryName)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("rule %d (%s): %w", i, name, ErrDuplicateCategory)
		}
		seen[name] = struct{}{}

		for _, k := range r.Keywords {
			if k == "" {
				return fmt.Errorf("rule %d (%s): %w", i, name, ErrEmptyKeyword)
			}
		}
	}
	return nil
}

// Names returns the category names in rule order.
func (rs RuleSet) Names() []string {
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.Name
	}
	return names
}

// Clone returns a deep copy so callers can keep a rule set immutable.
func (rs RuleSet) Clone() RuleSet {
	out := make(RuleSet, len(rs))
	for i, r := range rs {
		out[i] = Rule{Name: r.Name, Keywords: append([]string(nil), r.Keywords...)}
	}
	return out
}

// DefaultRuleSet returns the built-in rules for Taiwanese credit-card statements.
// Keywords are case-sensitive, so common spellings are listed explicitly.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		{Name: "餐飲美食", Keywords: []string{
			"星巴克", "STARBUCKS", "麥當勞", "McDonald", "肯德基", "摩斯", "路易莎", "85度C",
			"餐廳", "咖啡", "美食", "UBER EATS", "Uber Eats", "foodpanda", "FOODPANDA",
		}},
		{Name: "交通", Keywords: []string{
			"台灣高鐵", "高鐵", "台鐵", "捷運", "悠遊卡", "一卡通", "UBER", "Uber",
			"中油", "台塑石化", "加油", "停車",
		}},
		{Name: "網購", Keywords: []string{
			"蝦皮", "SHOPEE", "momo", "MOMO", "PChome", "PCHOME", "博客來", "AMAZON", "Amazon", "淘寶",
		}},
		{Name: "超市便利", Keywords: []string{
			"全聯", "家樂福", "好市多", "COSTCO", "7-ELEVEN", "統一超商", "全家", "萊爾富", "OK超商",
		}},
		{Name: "娛樂訂閱", Keywords: []string{
			"NETFLIX", "Netflix", "SPOTIFY", "Spotify", "DISNEY", "Disney", "威秀", "國賓影城",
			"STEAM", "Steam", "APPLE.COM",
		}},
		{Name: "生活繳費", Keywords: []string{
			"中華電信", "台灣大哥大", "遠傳", "台電", "電費", "水費", "瓦斯", "保費", "保險",
		}},
		{Name: "醫療保健", Keywords: []string{
			"醫院", "診所", "藥局", "屈臣氏", "康是美",
		}},
	}
}

// ruleFile is the on-disk YAML shape. A list keeps category order, which a
// YAML mapping would not guarantee to every reader.
type ruleFile struct {
	Categories []Rule `yaml:"categories"`
}

// ParseRuleSetYAML reads a rule set from YAML:
//
//	categories:
//	  - name: 餐飲美食
//	    keywords: [星巴克, 麥當勞]
func ParseRuleSetYAML(r io.Reader) (RuleSet, error) {
	var f ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return RuleSet{}, nil
		}
		return nil, fmt.Errorf("decode rule file: %w", err)
	}

	rs := RuleSet(f.Categories)
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return rs, nil
}

// LoadRuleSetFile reads a YAML rule file from disk.
func LoadRuleSetFile(path string) (RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rule file: %w", err)
	}
	defer f.Close()

	return ParseRuleSetYAML(f)
}

// MarshalRuleSetYAML writes rs in the format ParseRuleSetYAML reads.
func MarshalRuleSetYAML(w io.Writer, rs RuleSet) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ruleFile{Categories: rs}); err != nil {
		return fmt.Errorf("encode rule file: %w", err)
	}
	return enc.Close()
}
