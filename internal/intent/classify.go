// Package intent classifies a user utterance into the assistant's intent
// taxonomy and extracts the query parameters the planner and executors need.
// Deliberately a keyword-rule classifier: deterministic, threshold-driven and
// testable without a model call.
package intent

import (
	"regexp"
	"strings"

	"github.com/meilan-group/mallops-cli/internal/model"
	"github.com/meilan-group/mallops-cli/internal/query"
)

// Classification is the classifier's full output for one utterance. The
// request fields are partially filled; merchant ids are bound later, after
// disambiguation.
type Classification struct {
	Intent      model.Intent              `json:"intent"`
	Confidence  float64                   `json:"confidence"`
	Aggregation *query.AggregationRequest `json:"aggregation,omitempty"`
	Comparison  *query.ComparisonRequest  `json:"comparison,omitempty"`
}

var intentKeywords = []struct {
	intent   model.Intent
	keywords []string
}{
	{model.IntentCompare, []string{"对比", "比较", "比一下", "相比", "差距", "同业态", "同楼层", "同层"}},
	{model.IntentAggregate, []string{"多少", "几家", "平均", "总共", "合计", "分布", "统计", "排名", "最高", "最低"}},
	{model.IntentRecommend, []string{"建议", "怎么办", "改善", "整改", "提升方案", "怎么处理"}},
	{model.IntentFindRisks, []string{"风险", "预警", "异常", "要出问题"}},
	{model.IntentMerchantStatus, []string{"怎么样", "咋样", "情况", "状态", "经营", "最近", "如何"}},
}

const (
	baseConfidence = 0.5
	perHitBoost    = 0.15
	maxConfidence  = 0.95
	chatConfidence = 0.3
)

// Classify maps an utterance to an intent and extracts request parameters.
func Classify(text string) Classification {
	for _, entry := range intentKeywords {
		hits := 0
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		conf := baseConfidence + float64(hits)*perHitBoost
		if conf > maxConfidence {
			conf = maxConfidence
		}
		c := Classification{Intent: entry.intent, Confidence: conf}
		switch entry.intent {
		case model.IntentAggregate, model.IntentFindRisks:
			c.Aggregation = extractAggregation(text)
		case model.IntentCompare:
			c.Comparison = extractComparison(text)
		}
		return c
	}
	return Classification{Intent: model.IntentChat, Confidence: chatConfidence}
}

var floorPattern = regexp.MustCompile(`([1-9])\s*[楼层]|[Ff]([1-9])`)

// extractAggregation derives operation, field, group-by and filters from the
// utterance. Absent cues leave the zero value, meaning "no restriction".
func extractAggregation(text string) *query.AggregationRequest {
	req := &query.AggregationRequest{Operation: query.OpCount}

	switch {
	case strings.Contains(text, "平均"):
		req.Operation = query.OpAvg
	case strings.Contains(text, "总") || strings.Contains(text, "合计"):
		req.Operation = query.OpSum
	case strings.Contains(text, "最高") || strings.Contains(text, "最大"):
		req.Operation = query.OpMax
	case strings.Contains(text, "最低") || strings.Contains(text, "最小"):
		req.Operation = query.OpMin
	}

	if req.Operation != query.OpCount {
		req.Field = extractField(text)
		if req.Field == "" {
			req.Field = "health_score"
		}
	}

	switch {
	case strings.Contains(text, "各楼层") || strings.Contains(text, "按楼层") || strings.Contains(text, "每层"):
		req.GroupBy = query.GroupFloor
	case strings.Contains(text, "各业态") || strings.Contains(text, "按业态") || strings.Contains(text, "按品类"):
		req.GroupBy = query.GroupCategory
	case strings.Contains(text, "按风险") || strings.Contains(text, "各风险") || strings.Contains(text, "风险分布"):
		req.GroupBy = query.GroupRiskLevel
	}

	req.Filter = extractFilter(text)

	if strings.Contains(text, "环比") || strings.Contains(text, "上月") || strings.Contains(text, "上期") {
		req.CompareWith = &query.TimeRange{Label: "上月"}
	}
	return req
}

func extractField(text string) string {
	switch {
	case strings.Contains(text, "营收") || strings.Contains(text, "收入") || strings.Contains(text, "销售"):
		return "monthly_revenue"
	case strings.Contains(text, "租售比"):
		return "rent_ratio"
	case strings.Contains(text, "租金"):
		return "monthly_rent"
	case strings.Contains(text, "健康分") || strings.Contains(text, "评分") || strings.Contains(text, "分数"):
		return "health_score"
	}
	return ""
}

func extractFilter(text string) query.Filter {
	var f query.Filter

	// Grouping by risk level reads as "show me the distribution", not as a
	// membership restriction.
	if !strings.Contains(text, "风险分布") && !strings.Contains(text, "按风险") && !strings.Contains(text, "各风险") {
		switch {
		case strings.Contains(text, "高风险"):
			f.RiskLevels = []model.RiskLevel{model.RiskHigh, model.RiskCritical}
		case strings.Contains(text, "中风险"):
			f.RiskLevels = []model.RiskLevel{model.RiskMedium}
		case strings.Contains(text, "低风险"):
			f.RiskLevels = []model.RiskLevel{model.RiskLow}
		case strings.Contains(text, "风险商户") || strings.Contains(text, "有风险"):
			f.RiskLevels = []model.RiskLevel{model.RiskMedium, model.RiskHigh, model.RiskCritical}
		}
	}

	if m := floorPattern.FindStringSubmatch(text); m != nil {
		digit := m[1]
		if digit == "" {
			digit = m[2]
		}
		f.Floors = []string{"F" + digit}
	}

	for _, macro := range []string{"餐饮", "零售", "娱乐", "服务"} {
		if strings.Contains(text, macro) {
			f.Categories = append(f.Categories, macro)
		}
	}
	return f
}

// extractComparison picks the comparison shape from the utterance. Merchant
// ids are bound by the caller once entities are resolved; two resolved
// entities override the target to merchant-vs-merchant.
func extractComparison(text string) *query.ComparisonRequest {
	req := &query.ComparisonRequest{Target: query.TargetTime}
	switch {
	case strings.Contains(text, "同业态") || strings.Contains(text, "业态"):
		req.Target = query.TargetCategory
	case strings.Contains(text, "同楼层") || strings.Contains(text, "楼层") || strings.Contains(text, "同层"):
		req.Target = query.TargetFloor
	case strings.Contains(text, "环比") || strings.Contains(text, "上月") || strings.Contains(text, "上期") || strings.Contains(text, "同比"):
		req.Target = query.TargetTime
	}
	if strings.Contains(text, "环比") || strings.Contains(text, "上月") {
		req.TimeRange = &query.TimeRange{Label: "上月"}
	}
	return req
}
