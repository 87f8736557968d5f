package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskLevelOrdering(t *testing.T) {
	ordered := []RiskLevel{RiskNone, RiskLow, RiskMedium, RiskHigh, RiskCritical}
	for i := 1; i < len(ordered); i++ {
		assert.Greater(t, ordered[i].Severity(), ordered[i-1].Severity(),
			"%s must outrank %s", ordered[i], ordered[i-1])
	}

	assert.Equal(t, -1, RiskLevel("extreme").Severity())
	assert.False(t, RiskLevel("extreme").Valid())
}

func TestParseRiskLevel(t *testing.T) {
	r, ok := ParseRiskLevel("  High ")
	require.True(t, ok)
	assert.Equal(t, RiskHigh, r)

	_, ok = ParseRiskLevel("severe")
	assert.False(t, ok)
}

func TestMacroCategory(t *testing.T) {
	assert.Equal(t, "餐饮", Merchant{Category: "餐饮-火锅"}.MacroCategory())
	assert.Equal(t, "零售", Merchant{Category: "零售"}.MacroCategory())
	assert.Equal(t, "", Merchant{}.MacroCategory())
}

func TestNumericField(t *testing.T) {
	m := Merchant{
		HealthScore:    88,
		Metrics:        SubMetrics{Collection: 92, Operational: 85, SiteQuality: 90, CustomerReview: 87, RiskResistance: 82},
		MonthlyRevenue: 1200000,
		MonthlyRent:    180000,
		RentRatio:      0.15,
	}

	cases := map[string]float64{
		"health_score":    88,
		"total_score":     88,
		"collection":      92,
		"operational":     85,
		"site_quality":    90,
		"customer_review": 87,
		"risk_resistance": 82,
		"monthly_revenue": 1200000,
		"revenue":         1200000,
		"monthly_rent":    180000,
		"rent":            180000,
		"rent_ratio":      0.15,
	}
	for name, want := range cases {
		got, ok := m.NumericField(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	_, ok := m.NumericField("footfall")
	assert.False(t, ok)
}

func TestRef(t *testing.T) {
	m := Merchant{ID: "m-001", Name: "海底捞火锅", Category: "餐饮-火锅", HealthScore: 88, RiskLevel: RiskLow}

	ref := m.Ref()
	assert.Equal(t, "m-001", ref.ID)
	assert.Equal(t, "海底捞火锅", ref.Name)
	assert.Equal(t, RiskLow, ref.RiskLevel)
	assert.Equal(t, 88.0, ref.HealthScore)
	assert.Equal(t, "餐饮-火锅", ref.Category)
}

func TestHasPriorMerchant(t *testing.T) {
	var nilCtx *ConversationContext
	assert.False(t, nilCtx.HasPriorMerchant())
	assert.False(t, (&ConversationContext{PriorMerchantID: "m-001"}).HasPriorMerchant())
	assert.True(t, (&ConversationContext{PriorMerchantID: "m-001", PriorMerchantName: "海底捞火锅"}).HasPriorMerchant())
}
