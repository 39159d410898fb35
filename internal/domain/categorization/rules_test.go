package categorization

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleSet_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rules   RuleSet
		wantErr error
	}{
		{"default rules", DefaultRuleSet(), nil},
		{"empty set", RuleSet{}, nil},
		{"empty name", RuleSet{{Name: " ", Keywords: []string{"a"}}}, ErrEmptyCategoryName},
		{"duplicate name", RuleSet{{Name: "A"}, {Name: "A"}}, ErrDuplicateCategory},
		{"empty keyword", RuleSet{{Name: "A", Keywords: []string{"x", ""}}}, ErrEmptyKeyword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rules.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestParseRuleSetYAML(t *testing.T) {
	doc := `
categories:
  - name: 交通
    keywords: [UBER, 捷運]
  - name: 餐飲美食
    keywords:
      - UBER EATS
      - 星巴克
`
	rs, err := ParseRuleSetYAML(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []string{"交通", "餐飲美食"}, rs.Names())
	assert.Equal(t, []string{"UBER EATS", "星巴克"}, rs[1].Keywords)

	// File order is the tie-break: 交通 is listed first.
	assert.Equal(t, "交通", NewCategorizer(rs).Categorize("UBER EATS"))
}

func TestParseRuleSetYAML_Errors(t *testing.T) {
	t.Run("unknown field", func(t *testing.T) {
		_, err := ParseRuleSetYAML(strings.NewReader("rules: []\n"))
		assert.Error(t, err)
	})

	t.Run("invalid rules", func(t *testing.T) {
		_, err := ParseRuleSetYAML(strings.NewReader("categories:\n  - name: ''\n"))
		assert.ErrorIs(t, err, ErrEmptyCategoryName)
	})

	t.Run("empty document", func(t *testing.T) {
		rs, err := ParseRuleSetYAML(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, rs)
	})
}

func TestMarshalRuleSetYAML_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, MarshalRuleSetYAML(&buf, DefaultRuleSet()))

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	rs, err := LoadRuleSetFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultRuleSet(), rs)
}

func TestLoadRuleSetFile_Missing(t *testing.T) {
	_, err := LoadRuleSetFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
