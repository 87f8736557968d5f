package query

import (
	"fmt"

	"github.com/meilan-group/mallops-cli/internal/model"
)

// Insight thresholds. A health-score move beyond notableDelta is called out
// as a notable change; beyond peerGap against an average, the merchant is
// flagged as clearly above/below its peers.
const (
	notableDelta   = 5.0
	peerGap        = 10.0
	revenuePctMove = 10.0
	maxInsights    = 4
)

func deltaOf(deltas []FieldDelta, field string) (FieldDelta, bool) {
	for _, d := range deltas {
		if d.Field == field {
			return d, true
		}
	}
	return FieldDelta{}, false
}

// timeInsights derives observations for a prior-period comparison.
func timeInsights(deltas []FieldDelta) []string {
	var out []string

	if hs, ok := deltaOf(deltas, "health_score"); ok {
		switch {
		case hs.Delta > notableDelta:
			out = append(out, fmt.Sprintf("健康分较上期明显提升（%+.1f）", hs.Delta))
		case hs.Delta < -notableDelta:
			out = append(out, fmt.Sprintf("健康分较上期明显下滑（%+.1f），建议关注", hs.Delta))
		default:
			out = append(out, "健康分与上期基本持平")
		}
	}

	if rev, ok := deltaOf(deltas, "monthly_revenue"); ok && rev.Baseline > 0 {
		pct := rev.Delta / rev.Baseline * 100
		if pct > revenuePctMove {
			out = append(out, fmt.Sprintf("月营收环比增长%.1f%%", pct))
		} else if pct < -revenuePctMove {
			out = append(out, fmt.Sprintf("月营收环比下降%.1f%%，建议排查原因", -pct))
		}
	}

	if worst, ok := worstSubmetric(deltas); ok && worst.Delta < -notableDelta {
		out = append(out, fmt.Sprintf("%s维度退步最大（%+.1f）", submetricLabel(worst.Field), worst.Delta))
	}

	return capInsights(out)
}

// peerInsights derives observations for category/floor peer comparisons.
func peerInsights(target ComparisonTarget, deltas []FieldDelta, peerCount int) []string {
	scope := "同业态"
	if target == TargetFloor {
		scope = "同楼层"
	}

	if peerCount == 0 {
		return []string{fmt.Sprintf("没有%s商户可比", scope)}
	}

	var out []string
	if hs, ok := deltaOf(deltas, "health_score"); ok {
		switch {
		case hs.Delta > peerGap:
			out = append(out, fmt.Sprintf("健康分高于%s均值%.1f分，表现领先", scope, hs.Delta))
		case hs.Delta < -peerGap:
			out = append(out, fmt.Sprintf("健康分低于%s均值%.1f分，表现落后", scope, -hs.Delta))
		case hs.Delta > notableDelta:
			out = append(out, fmt.Sprintf("健康分略高于%s均值（%+.1f）", scope, hs.Delta))
		case hs.Delta < -notableDelta:
			out = append(out, fmt.Sprintf("健康分略低于%s均值（%+.1f）", scope, hs.Delta))
		default:
			out = append(out, fmt.Sprintf("健康分与%s均值接近", scope))
		}
	}

	if rev, ok := deltaOf(deltas, "monthly_revenue"); ok && rev.Baseline > 0 {
		pct := rev.Delta / rev.Baseline * 100
		if pct > revenuePctMove {
			out = append(out, fmt.Sprintf("月营收超出%s均值%.1f%%", scope, pct))
		} else if pct < -revenuePctMove {
			out = append(out, fmt.Sprintf("月营收低于%s均值%.1f%%", scope, -pct))
		}
	}

	if worst, ok := worstSubmetric(deltas); ok && worst.Delta < -notableDelta {
		out = append(out, fmt.Sprintf("%s是相对%s最弱的维度", submetricLabel(worst.Field), scope))
	}

	return capInsights(out)
}

// merchantInsights derives observations for a head-to-head comparison.
func merchantInsights(deltas []FieldDelta, a, b model.Merchant) []string {
	var out []string

	if hs, ok := deltaOf(deltas, "health_score"); ok {
		switch {
		case hs.Delta > notableDelta:
			out = append(out, fmt.Sprintf("%s健康分领先%s %.1f分", a.Name, b.Name, hs.Delta))
		case hs.Delta < -notableDelta:
			out = append(out, fmt.Sprintf("%s健康分落后%s %.1f分", a.Name, b.Name, -hs.Delta))
		default:
			out = append(out, fmt.Sprintf("%s与%s健康分接近", a.Name, b.Name))
		}
	}

	if a.RiskLevel != b.RiskLevel {
		out = append(out, fmt.Sprintf("风险等级不同：%s为%s，%s为%s",
			a.Name, a.RiskLevel, b.Name, b.RiskLevel))
	}

	if worst, ok := worstSubmetric(deltas); ok && worst.Delta < -notableDelta {
		out = append(out, fmt.Sprintf("%s的%s维度差距最大（%+.1f）", a.Name, submetricLabel(worst.Field), worst.Delta))
	}

	return capInsights(out)
}

var submetricKeys = []string{"collection", "operational", "site_quality", "customer_review", "risk_resistance"}

// worstSubmetric returns the sub-metric with the most negative delta.
func worstSubmetric(deltas []FieldDelta) (FieldDelta, bool) {
	var worst FieldDelta
	found := false
	for _, key := range submetricKeys {
		d, ok := deltaOf(deltas, key)
		if !ok {
			continue
		}
		if !found || d.Delta < worst.Delta {
			worst, found = d, true
		}
	}
	return worst, found
}

func submetricLabel(key string) string {
	for _, f := range comparedFields {
		if f.key == key {
			return f.label
		}
	}
	return key
}

// capInsights keeps the observation list between 1 and maxInsights entries.
func capInsights(out []string) []string {
	if len(out) == 0 {
		return []string{"各项指标无显著差异"}
	}
	if len(out) > maxInsights {
		return out[:maxInsights]
	}
	return out
}
