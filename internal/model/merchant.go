package model

import "strings"

// RiskLevel is one of five ordered buckets derived from a merchant's
// health score. Ordering: none < low < medium < high < critical.
type RiskLevel string

const (
	RiskNone     RiskLevel = "none"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// riskOrder maps each level to its position in the severity ordering.
var riskOrder = map[RiskLevel]int{
	RiskNone:     0,
	RiskLow:      1,
	RiskMedium:   2,
	RiskHigh:     3,
	RiskCritical: 4,
}

// Valid reports whether the level is one of the five known buckets.
func (r RiskLevel) Valid() bool {
	_, ok := riskOrder[r]
	return ok
}

// Severity returns the level's position in the ordering (none=0 .. critical=4),
// or -1 for an unknown level.
func (r RiskLevel) Severity() int {
	s, ok := riskOrder[r]
	if !ok {
		return -1
	}
	return s
}

// ParseRiskLevel normalizes a raw string into a RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	r := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	return r, r.Valid()
}

// SubMetrics holds the five per-dimension scores, each in [0,100].
type SubMetrics struct {
	Collection     float64 `json:"collection" yaml:"collection"`
	Operational    float64 `json:"operational" yaml:"operational"`
	SiteQuality    float64 `json:"site_quality" yaml:"site_quality"`
	CustomerReview float64 `json:"customer_review" yaml:"customer_review"`
	RiskResistance float64 `json:"risk_resistance" yaml:"risk_resistance"`
}

// Merchant is one tenant record as maintained by the dashboard's store.
// Read-only to the query core; the core receives a snapshot per turn.
type Merchant struct {
	ID             string     `json:"id" yaml:"id"`
	Name           string     `json:"name" yaml:"name"`
	Category       string     `json:"category" yaml:"category"` // "<macro>-<micro>", e.g. "餐饮-火锅"
	Floor          string     `json:"floor" yaml:"floor"`
	HealthScore    float64    `json:"health_score" yaml:"health_score"` // 0-100
	RiskLevel      RiskLevel  `json:"risk_level" yaml:"risk_level"`
	Metrics        SubMetrics `json:"metrics" yaml:"metrics"`
	MonthlyRevenue float64    `json:"monthly_revenue" yaml:"monthly_revenue"`
	MonthlyRent    float64    `json:"monthly_rent" yaml:"monthly_rent"`
	RentRatio      float64    `json:"rent_ratio" yaml:"rent_ratio"` // rent / sales
}

// MacroCategory returns the part of Category before the first "-",
// or the whole string when no separator is present.
func (m Merchant) MacroCategory() string {
	if i := strings.Index(m.Category, "-"); i >= 0 {
		return m.Category[:i]
	}
	return m.Category
}

// NumericField selects a named numeric field from the record. The field names
// match what the intent classifier and planner emit in task parameters.
func (m Merchant) NumericField(name string) (float64, bool) {
	switch name {
	case "health_score", "total_score":
		return m.HealthScore, true
	case "collection":
		return m.Metrics.Collection, true
	case "operational":
		return m.Metrics.Operational, true
	case "site_quality":
		return m.Metrics.SiteQuality, true
	case "customer_review":
		return m.Metrics.CustomerReview, true
	case "risk_resistance":
		return m.Metrics.RiskResistance, true
	case "monthly_revenue", "revenue":
		return m.MonthlyRevenue, true
	case "monthly_rent", "rent":
		return m.MonthlyRent, true
	case "rent_ratio":
		return m.RentRatio, true
	default:
		return 0, false
	}
}

// MerchantRef is the compact citation form carried on every executor result so
// the prose layer can cite real records instead of inventing them.
type MerchantRef struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	RiskLevel   RiskLevel `json:"risk_level"`
	HealthScore float64   `json:"health_score"`
	Category    string    `json:"category"`
}

// Ref returns the citation form of the record.
func (m Merchant) Ref() MerchantRef {
	return MerchantRef{
		ID:          m.ID,
		Name:        m.Name,
		RiskLevel:   m.RiskLevel,
		HealthScore: m.HealthScore,
		Category:    m.Category,
	}
}
