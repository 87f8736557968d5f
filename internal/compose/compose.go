// Package compose turns structured query results into the Chinese prose the
// dashboard shows. Generation is grounded: the prompt carries the literal
// record list the executors computed over, and a deterministic rendering is
// always available as the fallback answer.
package compose

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meilan-group/mallops-cli/internal/model"
	"github.com/meilan-group/mallops-cli/internal/query"
	"github.com/meilan-group/mallops-cli/pkg/anthropic"
)

const systemPrompt = `你是商场运营数字助手。根据提供的结构化查询结果回答运营人员的问题。
规则：
- 只使用提供的数据，不得编造任何商户、数字或结论。
- 引用商户时使用数据中的真实名称。
- 用简体中文回答，简洁、直接、面向一线运营人员。`

// Input is everything one turn produced for the prose layer. Exactly one of
// the result fields is set, matching the classified intent.
type Input struct {
	Question    string
	Intent      model.Intent
	Merchant    *model.Merchant
	Aggregation *query.AggregationResult
	Comparison  *query.ComparisonResult
	Risks       []model.Merchant
	Advice      *Advice
}

// Advice is the structured output of a recommendation turn.
type Advice struct {
	Merchant     model.MerchantRef   `json:"merchant"`
	WeakestField string              `json:"weakest_field"`
	WeakestScore float64             `json:"weakest_score"`
	Actions      []string            `json:"actions"`
	SimilarCases []model.MerchantRef `json:"similar_cases"`
}

// Composer renders answers, optionally refining the deterministic text
// through the message API.
type Composer struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// New builds a Composer. A nil client keeps the layer fully deterministic.
func New(client anthropic.Client, modelID string, maxTokens int64) *Composer {
	return &Composer{client: client, model: modelID, maxTokens: maxTokens}
}

// Compose produces the answer text for one turn. Generation failures degrade
// to the deterministic rendering rather than failing the turn.
func (c *Composer) Compose(ctx context.Context, in Input) (string, error) {
	fallback := Render(in)
	if c.client == nil {
		return fallback, nil
	}

	payload, err := json.Marshal(structuredPayload(in))
	if err != nil {
		return "", eris.Wrap(err, "compose: marshal result payload")
	}

	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.SystemBlock{
			{Text: systemPrompt, CacheControl: &anthropic.CacheControl{TTL: "5m"}},
		},
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf("问题：%s\n\n查询结果（JSON）：\n%s", in.Question, payload)},
		},
	})
	if err != nil {
		zap.L().Warn("compose: generation failed, falling back to deterministic text",
			zap.Error(err))
		return fallback, nil
	}

	resp.Usage.LogUsage(c.model, "compose")

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return fallback, nil
	}
	return text, nil
}

func structuredPayload(in Input) map[string]any {
	out := map[string]any{"intent": string(in.Intent)}
	switch {
	case in.Merchant != nil:
		out["merchant"] = in.Merchant
	case in.Aggregation != nil:
		out["aggregation"] = in.Aggregation
	case in.Comparison != nil:
		out["comparison"] = in.Comparison
	case in.Risks != nil:
		out["risk_merchants"] = in.Risks
	case in.Advice != nil:
		out["advice"] = in.Advice
	}
	return out
}

var riskLabels = map[model.RiskLevel]string{
	model.RiskNone:     "无风险",
	model.RiskLow:      "低风险",
	model.RiskMedium:   "中风险",
	model.RiskHigh:     "高风险",
	model.RiskCritical: "重大风险",
}

var opLabels = map[query.Operation]string{
	query.OpCount: "数量",
	query.OpSum:   "合计",
	query.OpAvg:   "平均",
	query.OpMax:   "最高",
	query.OpMin:   "最低",
}

var fieldLabels = map[string]string{
	"health_score":    "健康分",
	"collection":      "收缴率",
	"operational":     "运营",
	"site_quality":    "现场品质",
	"customer_review": "顾客评价",
	"risk_resistance": "抗风险",
	"monthly_revenue": "月营收",
	"monthly_rent":    "月租金",
	"rent_ratio":      "租售比",
}

func fieldLabel(name string) string {
	if l, ok := fieldLabels[name]; ok {
		return l
	}
	return name
}

// Render produces the deterministic Chinese answer for one turn.
func Render(in Input) string {
	switch {
	case in.Merchant != nil:
		return renderStatus(in.Merchant)
	case in.Aggregation != nil:
		return renderAggregation(in.Aggregation)
	case in.Comparison != nil:
		return renderComparison(in.Comparison)
	case in.Risks != nil:
		return renderRisks(in.Risks)
	case in.Advice != nil:
		return renderAdvice(in.Advice)
	default:
		return "您好，我是商场运营助手，可以查询商户经营状况、风险分布和业态对比。请问有什么可以帮您？"
	}
}

func renderStatus(m *model.Merchant) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s（%s，%s）当前健康分 %.1f，%s。",
		m.Name, m.Floor, m.Category, m.HealthScore, riskLabels[m.RiskLevel])
	fmt.Fprintf(&b, "\n各维度：收缴率 %.1f、运营 %.1f、现场品质 %.1f、顾客评价 %.1f、抗风险 %.1f。",
		m.Metrics.Collection, m.Metrics.Operational, m.Metrics.SiteQuality,
		m.Metrics.CustomerReview, m.Metrics.RiskResistance)
	if m.MonthlyRevenue > 0 {
		fmt.Fprintf(&b, "\n月营收 %.1f 万元，租售比 %.1f%%。", m.MonthlyRevenue/10000, m.RentRatio*100)
	}
	return b.String()
}

func renderAggregation(r *query.AggregationResult) string {
	var b strings.Builder
	switch r.Operation {
	case query.OpCount:
		fmt.Fprintf(&b, "符合条件的商户共 %.0f 家。", r.Total)
	default:
		fmt.Fprintf(&b, "%s%s为 %.2f。", fieldLabel(r.Field), opLabels[r.Operation], r.Total)
	}

	if len(r.Breakdown) > 0 {
		keys := make([]string, 0, len(r.Breakdown))
		for k := range r.Breakdown {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\n分组明细：")
		for _, k := range keys {
			label := k
			if rl, ok := model.ParseRiskLevel(k); ok {
				label = riskLabels[rl]
			}
			fmt.Fprintf(&b, "\n- %s：%.2f", label, r.Breakdown[k])
		}
	}

	if r.Baseline != nil {
		fmt.Fprintf(&b, "\n较上期变化 %+.2f（%s）。", r.Baseline.Delta, r.Baseline.Percent)
	}
	return b.String()
}

func renderComparison(r *query.ComparisonResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s 对比 %s：", r.Merchant.Name, r.BaselineLabel)
	for _, f := range r.Fields {
		fmt.Fprintf(&b, "\n- %s：当前 %.1f，基准 %.1f，差值 %s", fieldLabel(f.Field), f.Current, f.Baseline, f.Display)
	}
	if len(r.Insights) > 0 {
		b.WriteString("\n" + strings.Join(r.Insights, "；"))
	}
	return b.String()
}

func renderAdvice(a *Advice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s 当前最薄弱的维度是%s（%.1f 分）。建议：",
		a.Merchant.Name, fieldLabel(a.WeakestField), a.WeakestScore)
	for i, action := range a.Actions {
		fmt.Fprintf(&b, "\n%d. %s", i+1, action)
	}
	if len(a.SimilarCases) > 0 {
		names := make([]string, 0, len(a.SimilarCases))
		for _, c := range a.SimilarCases {
			names = append(names, c.Name)
		}
		fmt.Fprintf(&b, "\n可参考同业态表现较好的商户：%s。", strings.Join(names, "、"))
	}
	return b.String()
}

func renderRisks(risks []model.Merchant) string {
	if len(risks) == 0 {
		return "目前没有需要关注的风险商户。"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "当前共 %d 家商户需要关注：", len(risks))
	for _, m := range risks {
		fmt.Fprintf(&b, "\n- %s（%s，%s）：健康分 %.1f，%s",
			m.Name, m.Floor, m.Category, m.HealthScore, riskLabels[m.RiskLevel])
	}
	return b.String()
}
