package sniffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/parser"
)

func TestSuggestHeader(t *testing.T) {
	tests := []struct {
		name     string
		headers  []string
		expected parser.ColumnRoles
		ok       bool
	}{
		{
			name:     "chinese statement",
			headers:  []string{"消費日", "入帳日", "消費明細", "新臺幣金額"},
			expected: parser.ColumnRoles{Date: 0, Description: 2, Amount: 3},
			ok:       true,
		},
		{
			name:     "english statement",
			headers:  []string{"Amount", "Date", "Description"},
			expected: parser.ColumnRoles{Date: 1, Description: 2, Amount: 0},
			ok:       true,
		},
		{
			name:     "amount header containing detail keyword",
			headers:  []string{"交易日期", "摘要", "消費金額"},
			expected: parser.ColumnRoles{Date: 0, Description: 1, Amount: 2},
			ok:       true,
		},
		{
			name:    "missing amount",
			headers: []string{"日期", "說明"},
			ok:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roles, ok := SuggestHeader(tt.headers)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, roles)
			}
		})
	}
}

func TestSuggestRoles_FromHeader(t *testing.T) {
	rows := []parser.RawRow{
		parser.NewRow("玉山銀行 信用卡帳單"),
		parser.NewRow("消費日", "消費明細", "金額"),
		parser.NewRow("114/11/10", "星巴克 台北店", "150"),
	}

	s, err := SuggestRoles(rows)
	require.NoError(t, err)
	assert.Equal(t, 1, s.HeaderRow)
	assert.Equal(t, parser.ColumnRoles{Date: 0, Description: 1, Amount: 2}, s.Roles)
	assert.Equal(t, 1.0, s.Confidence)
	assert.Len(t, s.Fingerprint, 64)
}

func TestSuggestRoles_FromData(t *testing.T) {
	rows := []parser.RawRow{
		parser.NewRow("1", "150", "星巴克 台北店", "114/11/10"),
		parser.NewRow("2", "NT$1,299", "蝦皮購物", "114/11/11"),
		parser.NewRow("3", "85", "全家便利商店", "114/11/12"),
	}

	s, err := SuggestRoles(rows)
	require.NoError(t, err)
	assert.Equal(t, -1, s.HeaderRow)
	assert.Equal(t, 3, s.Roles.Date)
	assert.Equal(t, 1, s.Roles.Amount)
	assert.Equal(t, 2, s.Roles.Description)
	assert.Greater(t, s.Confidence, 0.5)
}

func TestSuggestRoles_NoData(t *testing.T) {
	_, err := SuggestRoles(nil)
	assert.ErrorIs(t, err, ErrNoSuggestion)

	_, err = SuggestRoles([]parser.RawRow{parser.NewRow("only", "text", "here")})
	assert.ErrorIs(t, err, ErrNoSuggestion)
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint([]string{"消費日", "消費明細", "金額"})
	b := Fingerprint([]string{" 消費日 ", "消費明細:", "金額"})
	c := Fingerprint([]string{"Date", "Description", "Amount"})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
