package importer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/meilan-group/mallops-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func writeRoster(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("商户")
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, c := range r {
			row.AddCell().SetString(c)
		}
	}
	path := filepath.Join(t.TempDir(), "roster.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

var rosterHeader = []string{"商户ID", "商户名称", "业态", "楼层", "健康分", "风险等级", "收缴率", "月营收"}

func TestImportFile_ParsesRows(t *testing.T) {
	path := writeRoster(t, [][]string{
		rosterHeader,
		{"m-001", "海底捞火锅", "餐饮-火锅", "F3", "88", "low", "92", "1200000"},
		{"m-002", "喜茶", "餐饮-茶饮", "F1", "95", "none", "98", "600000"},
	})

	res, err := ImportFile(path)
	require.NoError(t, err)
	require.Len(t, res.Merchants, 2)
	assert.Empty(t, res.Rejected)

	m := res.Merchants[0]
	assert.Equal(t, "m-001", m.ID)
	assert.Equal(t, "海底捞火锅", m.Name)
	assert.Equal(t, "餐饮-火锅", m.Category)
	assert.Equal(t, 88.0, m.HealthScore)
	assert.Equal(t, model.RiskLow, m.RiskLevel)
	assert.Equal(t, 92.0, m.Metrics.Collection)
	assert.Equal(t, 1200000.0, m.MonthlyRevenue)
}

func TestImportFile_RejectsBadRowsWithRowNumbers(t *testing.T) {
	path := writeRoster(t, [][]string{
		rosterHeader,
		{"m-001", "海底捞火锅", "餐饮-火锅", "F3", "130", "low", "92", "0"}, // score out of range
		{"m-002", "喜茶", "餐饮-茶饮", "F1", "95", "中等", "98", "0"},      // unknown risk level
		{"", "无名氏", "", "", "50", "low", "", ""},                   // missing id
		{"m-004", "鱼语坊", "餐饮-江浙菜", "F4", "65", "medium", "68", "500000"},
	})

	res, err := ImportFile(path)
	require.NoError(t, err)
	require.Len(t, res.Merchants, 1)
	assert.Equal(t, "m-004", res.Merchants[0].ID)

	require.Len(t, res.Rejected, 3)
	assert.Equal(t, 2, res.Rejected[0].Row)
	assert.Contains(t, res.Rejected[0].Message, "[0,100]")
	assert.Equal(t, 3, res.Rejected[1].Row)
	assert.Contains(t, res.Rejected[1].Message, "risk level")
	assert.Equal(t, 4, res.Rejected[2].Row)
}

func TestImportFile_MissingMandatoryColumns(t *testing.T) {
	path := writeRoster(t, [][]string{
		{"业态", "楼层"},
		{"餐饮-火锅", "F3"},
	})

	_, err := ImportFile(path)
	assert.Error(t, err)
}

func TestImportFile_EmptyRiskLevelDefaultsToNone(t *testing.T) {
	path := writeRoster(t, [][]string{
		{"商户ID", "商户名称", "风险等级"},
		{"m-001", "喜茶", ""},
	})

	res, err := ImportFile(path)
	require.NoError(t, err)
	require.Len(t, res.Merchants, 1)
	assert.Equal(t, model.RiskNone, res.Merchants[0].RiskLevel)
}

func TestImportFile_SkipsBlankRows(t *testing.T) {
	path := writeRoster(t, [][]string{
		{"商户ID", "商户名称"},
		{"m-001", "喜茶"},
		{"", ""},
	})

	res, err := ImportFile(path)
	require.NoError(t, err)
	assert.Len(t, res.Merchants, 1)
	assert.Empty(t, res.Rejected)
}
