// Package importer loads the merchant roster from the mall's spreadsheet
// exports. Rows that fail validation are reported with their row numbers and
// skipped; one bad row never aborts the import.
package importer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/meilan-group/mallops-cli/internal/model"
)

// headerAliases maps spreadsheet column headers to canonical field keys. The
// operations team's exports use the Chinese headers; English ones are
// accepted for fixture files.
var headerAliases = map[string]string{
	"商户id": "id", "id": "id",
	"商户名称": "name", "名称": "name", "name": "name",
	"业态": "category", "category": "category",
	"楼层": "floor", "floor": "floor",
	"健康分": "health_score", "health_score": "health_score",
	"风险等级": "risk_level", "risk_level": "risk_level",
	"收缴率": "collection", "collection": "collection",
	"运营": "operational", "operational": "operational",
	"现场品质": "site_quality", "site_quality": "site_quality",
	"顾客评价": "customer_review", "customer_review": "customer_review",
	"抗风险": "risk_resistance", "risk_resistance": "risk_resistance",
	"月营收": "monthly_revenue", "monthly_revenue": "monthly_revenue",
	"月租金": "monthly_rent", "monthly_rent": "monthly_rent",
	"租售比": "rent_ratio", "rent_ratio": "rent_ratio",
}

// RowError is one rejected spreadsheet row.
type RowError struct {
	Row     int // 1-based, as shown in the spreadsheet
	Message string
}

func (e RowError) String() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// Result is the outcome of one import.
type Result struct {
	Merchants []model.Merchant
	Rejected  []RowError
}

// ImportFile reads an xlsx roster export. The first row must be a header
// recognizable via headerAliases; the id and name columns are mandatory.
func ImportFile(path string) (*Result, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "importer: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("importer: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.New("importer: sheet is empty")
	}

	cols, err := mapHeader(rowToStrings(sheet.Rows[0]))
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for i, row := range sheet.Rows[1:] {
		rowNum := i + 2
		cells := rowToStrings(row)
		if allEmpty(cells) {
			continue
		}
		m, err := parseRow(cells, cols)
		if err != nil {
			res.Rejected = append(res.Rejected, RowError{Row: rowNum, Message: err.Error()})
			continue
		}
		res.Merchants = append(res.Merchants, m)
	}

	zap.L().Info("importer: parsed roster",
		zap.String("path", path),
		zap.Int("imported", len(res.Merchants)),
		zap.Int("rejected", len(res.Rejected)),
	)
	return res, nil
}

// mapHeader resolves each header cell to a canonical field key.
func mapHeader(header []string) (map[string]int, error) {
	cols := map[string]int{}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if canon, ok := headerAliases[key]; ok {
			cols[canon] = i
		}
	}
	if _, ok := cols["id"]; !ok {
		return nil, eris.New("importer: header has no merchant id column")
	}
	if _, ok := cols["name"]; !ok {
		return nil, eris.New("importer: header has no merchant name column")
	}
	return cols, nil
}

func parseRow(cells []string, cols map[string]int) (model.Merchant, error) {
	get := func(key string) string {
		i, ok := cols[key]
		if !ok || i >= len(cells) {
			return ""
		}
		return strings.TrimSpace(cells[i])
	}

	m := model.Merchant{
		ID:       get("id"),
		Name:     get("name"),
		Category: get("category"),
		Floor:    get("floor"),
	}
	if m.ID == "" {
		return m, eris.New("missing merchant id")
	}
	if m.Name == "" {
		return m, eris.New("missing merchant name")
	}

	var err error
	if m.HealthScore, err = parseScore(get("health_score"), "health_score"); err != nil {
		return m, err
	}
	if m.Metrics.Collection, err = parseScore(get("collection"), "collection"); err != nil {
		return m, err
	}
	if m.Metrics.Operational, err = parseScore(get("operational"), "operational"); err != nil {
		return m, err
	}
	if m.Metrics.SiteQuality, err = parseScore(get("site_quality"), "site_quality"); err != nil {
		return m, err
	}
	if m.Metrics.CustomerReview, err = parseScore(get("customer_review"), "customer_review"); err != nil {
		return m, err
	}
	if m.Metrics.RiskResistance, err = parseScore(get("risk_resistance"), "risk_resistance"); err != nil {
		return m, err
	}
	if m.MonthlyRevenue, err = parseAmount(get("monthly_revenue"), "monthly_revenue"); err != nil {
		return m, err
	}
	if m.MonthlyRent, err = parseAmount(get("monthly_rent"), "monthly_rent"); err != nil {
		return m, err
	}
	if m.RentRatio, err = parseAmount(get("rent_ratio"), "rent_ratio"); err != nil {
		return m, err
	}

	if raw := get("risk_level"); raw != "" {
		level, ok := model.ParseRiskLevel(raw)
		if !ok {
			return m, eris.Errorf("unknown risk level %q", raw)
		}
		m.RiskLevel = level
	} else {
		m.RiskLevel = model.RiskNone
	}
	return m, nil
}

// parseScore parses a [0,100] score; empty cells mean zero.
func parseScore(raw, field string) (float64, error) {
	v, err := parseAmount(raw, field)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 100 {
		return 0, eris.Errorf("%s %g outside [0,100]", field, v)
	}
	return v, nil
}

func parseAmount(raw, field string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, eris.Errorf("%s is not numeric: %q", field, raw)
	}
	return v, nil
}

func rowToStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = c.String()
	}
	return out
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
