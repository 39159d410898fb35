package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/statement-extractor/internal/domain/extraction/service"
)

const statementCSV = "114/11/10,114/11/12,星巴克 台北店,150,TW\n" +
	"114/11/11,114/11/12,台北捷運,35,TW\n" +
	"114/11/20,114/11/21,星巴克 信義店,120,TW\n"

func writeStatement(t *testing.T, name, content string) string {
	t.Helper()
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile(name, []byte(content), 0o644))
	return name
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Table(t *testing.T) {
	path := writeStatement(t, "nov.csv", statementCSV)

	code, out, errOut := runCLI(t, path)
	require.Equal(t, exitOK, code, errOut)

	assert.Contains(t, out, "星巴克 台北店")
	assert.Contains(t, out, "餐飲美食")
	assert.Contains(t, out, "本月合計 NT$305.00")
	assert.Contains(t, out, "分類")
}

func TestRun_JSON(t *testing.T) {
	path := writeStatement(t, "nov.csv", statementCSV)

	code, out, _ := runCLI(t, "-format", "json", path)
	require.Equal(t, exitOK, code)

	var res service.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.Records, 3)
	assert.InDelta(t, 305.0, res.Total, 1e-9)
}

func TestRun_CSVToFile(t *testing.T) {
	path := writeStatement(t, "nov.csv", statementCSV)
	outPath := filepath.Join(t.TempDir(), "out.csv")

	code, out, _ := runCLI(t, "-format", "csv", "-no-classify", "-o", outPath, path)
	require.Equal(t, exitOK, code)
	assert.Empty(t, out)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "日期,消費明細,金額\n")
	assert.NotContains(t, string(data), "分類")
}

func TestRun_Raw(t *testing.T) {
	path := writeStatement(t, "jan.csv", "日期,說明,金額\n2024/01/05,,120\n")

	code, out, _ := runCLI(t, "-raw", path)
	require.Equal(t, exitOK, code)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "#")
	assert.Contains(t, lines[2], "-")
}

func TestRun_ColumnsDefaultRoles(t *testing.T) {
	path := writeStatement(t, "jan.csv", "日期,說明,金額\n2024/01/05,麥當勞,120\n")

	code, out, errOut := runCLI(t, "-mode", "columns", "-format", "json", path)
	require.Equal(t, exitOK, code, errOut)

	var res service.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Records, 1)
	assert.Equal(t, "麥當勞", res.Records[0].Description)
}

func TestRun_NoData(t *testing.T) {
	path := writeStatement(t, "empty.csv", "")

	code, out, errOut := runCLI(t, path)
	assert.Equal(t, exitOK, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "no table data found")
}

func TestRun_Errors(t *testing.T) {
	path := writeStatement(t, "locked.xlsx", "not a workbook")

	code, _, errOut := runCLI(t, "-password", "x", path)
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "check the password")

	code, _, _ = runCLI(t)
	assert.Equal(t, exitUsage, code)

	code, _, _ = runCLI(t, "-format", "html", path)
	assert.Equal(t, exitUsage, code)

	code, _, _ = runCLI(t, "missing.csv")
	assert.Equal(t, exitError, code)
}
