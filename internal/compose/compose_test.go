package compose

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meilan-group/mallops-cli/internal/model"
	"github.com/meilan-group/mallops-cli/internal/query"
	"github.com/meilan-group/mallops-cli/pkg/anthropic"
)

type mockClient struct {
	lastReq anthropic.MessageRequest
	resp    *anthropic.MessageResponse
	err     error
}

func (m *mockClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.lastReq = req
	return m.resp, m.err
}

func sampleMerchant() *model.Merchant {
	return &model.Merchant{
		ID:          "m-001",
		Name:        "海底捞火锅",
		Category:    "餐饮-火锅",
		Floor:       "F3",
		HealthScore: 88,
		RiskLevel:   model.RiskLow,
		Metrics: model.SubMetrics{
			Collection:     92,
			Operational:    85,
			SiteQuality:    90,
			CustomerReview: 88,
			RiskResistance: 82,
		},
		MonthlyRevenue: 1200000,
		MonthlyRent:    180000,
		RentRatio:      0.15,
	}
}

func TestRenderStatus(t *testing.T) {
	text := Render(Input{Intent: model.IntentMerchantStatus, Merchant: sampleMerchant()})

	assert.Contains(t, text, "海底捞火锅")
	assert.Contains(t, text, "88.0")
	assert.Contains(t, text, "低风险")
	assert.Contains(t, text, "收缴率 92.0")
	assert.Contains(t, text, "120.0 万元")
}

func TestRenderAggregationCount(t *testing.T) {
	text := Render(Input{
		Intent: model.IntentAggregate,
		Aggregation: &query.AggregationResult{
			Operation: query.OpCount,
			Total:     12,
		},
	})

	assert.Contains(t, text, "共 12 家")
}

func TestRenderAggregationBreakdownAndBaseline(t *testing.T) {
	text := Render(Input{
		Intent: model.IntentAggregate,
		Aggregation: &query.AggregationResult{
			Operation: query.OpAvg,
			Field:     "health_score",
			Total:     68.5,
			Breakdown: map[string]float64{"low": 88, "medium": 68.5},
			Baseline:  &query.BaselineDelta{Baseline: 65.2, Delta: 3.3, Percent: "+5.1%"},
		},
	})

	assert.Contains(t, text, "健康分平均为 68.50")
	assert.Contains(t, text, "低风险：88.00")
	assert.Contains(t, text, "中风险：68.50")
	assert.Contains(t, text, "+3.30（+5.1%）")
}

func TestRenderComparison(t *testing.T) {
	text := Render(Input{
		Intent: model.IntentCompare,
		Comparison: &query.ComparisonResult{
			Merchant:      model.MerchantRef{ID: "m-001", Name: "海底捞火锅"},
			BaselineLabel: "餐饮业态均值",
			Fields: []query.FieldDelta{
				{Field: "health_score", Current: 88, Baseline: 77.33, Delta: 10.67, Percent: "+13.8%", Display: "+10.67 (+13.8%)"},
			},
			Insights: []string{"健康分领先同业态均值 10.7 分"},
		},
	})

	assert.Contains(t, text, "海底捞火锅 对比 餐饮业态均值")
	assert.Contains(t, text, "健康分：当前 88.0，基准 77.3，差值 +10.67 (+13.8%)")
	assert.Contains(t, text, "领先同业态均值")
}

func TestRenderRisksEmpty(t *testing.T) {
	text := Render(Input{Intent: model.IntentFindRisks, Risks: []model.Merchant{}})
	assert.Equal(t, "目前没有需要关注的风险商户。", text)
}

func TestRenderAdvice(t *testing.T) {
	text := Render(Input{
		Intent: model.IntentRecommend,
		Advice: &Advice{
			Merchant:     model.MerchantRef{ID: "m-004", Name: "优衣库"},
			WeakestField: "customer_review",
			WeakestScore: 40,
			Actions:      []string{"拉取近30天差评归因，定位主要投诉点", "安排店长复盘服务流程"},
			SimilarCases: []model.MerchantRef{{ID: "m-007", Name: "ZARA"}},
		},
	})
	assert.Contains(t, text, "优衣库 当前最薄弱的维度是顾客评价（40.0 分）。建议：")
	assert.Contains(t, text, "1. 拉取近30天差评归因，定位主要投诉点")
	assert.Contains(t, text, "2. 安排店长复盘服务流程")
	assert.Contains(t, text, "可参考同业态表现较好的商户：ZARA。")
}

func TestComposeNilClientDeterministic(t *testing.T) {
	c := New(nil, "claude-haiku-4-5-20251001", 1024)

	text, err := c.Compose(context.Background(), Input{
		Intent:   model.IntentMerchantStatus,
		Merchant: sampleMerchant(),
	})
	require.NoError(t, err)
	assert.Contains(t, text, "海底捞火锅")
}

func TestComposeSendsLiteralRecords(t *testing.T) {
	mc := &mockClient{resp: &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "海底捞火锅经营稳健。"}},
	}}
	c := New(mc, "claude-haiku-4-5-20251001", 1024)

	text, err := c.Compose(context.Background(), Input{
		Question: "海底捞最近怎么样",
		Intent:   model.IntentMerchantStatus,
		Merchant: sampleMerchant(),
	})
	require.NoError(t, err)
	assert.Equal(t, "海底捞火锅经营稳健。", text)

	require.Len(t, mc.lastReq.Messages, 1)
	assert.Contains(t, mc.lastReq.Messages[0].Content, "海底捞最近怎么样")
	assert.Contains(t, mc.lastReq.Messages[0].Content, `"海底捞火锅"`)
	require.NotEmpty(t, mc.lastReq.System)
	assert.Contains(t, mc.lastReq.System[0].Text, "不得编造")
}

func TestComposeFallsBackOnError(t *testing.T) {
	mc := &mockClient{err: eris.New("upstream unavailable")}
	c := New(mc, "claude-haiku-4-5-20251001", 1024)

	text, err := c.Compose(context.Background(), Input{
		Intent: model.IntentAggregate,
		Aggregation: &query.AggregationResult{
			Operation: query.OpCount,
			Total:     3,
		},
	})
	require.NoError(t, err)
	assert.Contains(t, text, "共 3 家")
}

func TestComposeFallsBackOnEmptyResponse(t *testing.T) {
	mc := &mockClient{resp: &anthropic.MessageResponse{}}
	c := New(mc, "claude-haiku-4-5-20251001", 1024)

	text, err := c.Compose(context.Background(), Input{
		Intent: model.IntentFindRisks,
		Risks:  []model.Merchant{},
	})
	require.NoError(t, err)
	assert.Equal(t, "目前没有需要关注的风险商户。", text)
}
