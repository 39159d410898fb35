package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(date, desc, amount string) Record {
	return newRecord(date, desc, Text(amount), SourceColumns, 0)
}

func TestFilter(t *testing.T) {
	records := []Record{
		rec("日期", "消費明細", "金額"),
		rec("114/11/10", "星巴克 台北店", "150"),
		rec("", "", ""),
		rec("114/11/11", "折扣", "0"),
		rec("114/11/12", "備註", "N/A"),
		rec("  交易日期 ", "說明", "100"),
		rec("114/11/13", "蝦皮購物 退款", "-88"),
	}

	var reasons []DropReason
	got := Filter(records, FilterOptions{
		OnDrop: func(_ Record, reason DropReason) { reasons = append(reasons, reason) },
	})

	require.Len(t, got, 2)
	assert.Equal(t, "星巴克 台北店", got[0].Description)
	assert.Equal(t, "蝦皮購物 退款", got[1].Description)
	assert.Equal(t, []DropReason{DropHeader, DropBlank, DropZero, DropZero, DropHeader}, reasons)
}

func TestFilter_Idempotent(t *testing.T) {
	records := []Record{
		rec("Date", "Description", "Amount"),
		rec("114/11/10", "A", "1"),
		rec("114/11/10", "B", "$"),
		rec("114/11/10", "A", "1"),
	}

	once := Filter(records, FilterOptions{})
	twice := Filter(once, FilterOptions{})
	assert.Equal(t, once, twice)
	assert.Len(t, once, 2)
}

func TestFilter_Subsequence(t *testing.T) {
	records := []Record{
		rec("1", "a", "5"),
		rec("2", "b", "0"),
		rec("3", "c", "7"),
		rec("4", "d", "9"),
	}

	got := Filter(records, FilterOptions{})
	j := 0
	for _, r := range got {
		for j < len(records) && records[j] != r {
			j++
		}
		require.Less(t, j, len(records), "output is not a subsequence of input")
		j++
	}
	assert.Len(t, records, 4, "input must not be modified")
}

func TestFilter_HeaderLabels(t *testing.T) {
	records := []Record{rec("Date", "x", "10"), rec("日期", "y", "10")}

	t.Run("custom labels", func(t *testing.T) {
		got := Filter(records, FilterOptions{HeaderLabels: []string{"Date"}})
		require.Len(t, got, 1)
		assert.Equal(t, "日期", got[0].Date)
	})

	t.Run("empty labels disable the check", func(t *testing.T) {
		got := Filter(records, FilterOptions{HeaderLabels: []string{}})
		assert.Len(t, got, 2)
	})

	t.Run("label match is exact", func(t *testing.T) {
		got := Filter([]Record{rec("日期:114/11/10", "z", "10")}, FilterOptions{})
		assert.Len(t, got, 1)
	})
}

func TestExtract(t *testing.T) {
	rows := []RawRow{
		NewRow("日期", "消費明細", "金額"),
		NewRow(" 114/11/10 ", "星巴克", "NT$150"),
		{Text("114/11/11"), Null, Text("30")},
		NewRow("114/11/12"),
	}

	records, err := Extract(rows, ColumnRoles{Date: 0, Description: 1, Amount: 2})
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, "114/11/10", records[1].Date)
	assert.Equal(t, 150.0, records[1].AmountValue)
	assert.Equal(t, SourceColumns, records[1].Source)
	assert.Equal(t, 1, records[1].RowIndex)

	assert.Equal(t, "", records[2].Description)
	assert.Equal(t, 30.0, records[2].AmountValue)

	assert.True(t, records[3].Defaulted, "missing amount column defaults")

	kept := Filter(records, FilterOptions{})
	require.Len(t, kept, 2)
	assert.Equal(t, "星巴克", kept[0].Description)
}

func TestExtract_Reordered(t *testing.T) {
	rows := []RawRow{NewRow("1,299", "114/11/03", "蝦皮購物")}

	records, err := Extract(rows, ColumnRoles{Date: 1, Description: 2, Amount: 0})
	require.NoError(t, err)
	assert.Equal(t, "114/11/03", records[0].Date)
	assert.Equal(t, "蝦皮購物", records[0].Description)
	assert.Equal(t, 1299.0, records[0].AmountValue)
}

func TestExtract_InvalidRoles(t *testing.T) {
	_, err := Extract(nil, ColumnRoles{Date: -1})
	assert.ErrorIs(t, err, ErrInvalidRoles)
}

func TestDefaultRoles(t *testing.T) {
	assert.Equal(t, ColumnRoles{Date: 0, Description: 1, Amount: 2}, DefaultRoles(5))
	assert.Equal(t, ColumnRoles{Date: 0, Description: 1, Amount: 0}, DefaultRoles(2))
	assert.Equal(t, ColumnRoles{Date: 0, Description: 0, Amount: 0}, DefaultRoles(1))
	assert.Equal(t, 3, Width([]RawRow{NewRow("a"), NewRow("a", "b", "c"), nil}))
}

func TestComplete(t *testing.T) {
	roles := ColumnRoles{Date: 0, Description: 1, Amount: 2}
	assert.True(t, Complete(NewRow("a", "b", "c"), roles))
	assert.False(t, Complete(RawRow{Text("a"), Null, Text("c")}, roles))
	assert.False(t, Complete(NewRow("a", "b"), roles))
}
