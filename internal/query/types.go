// Package query holds the aggregation and comparison executors: pure
// functions of (request, dataset snapshot) with no shared mutable state, so
// repeated calls with the same inputs are idempotent.
package query

import (
	"time"

	"github.com/meilan-group/mallops-cli/internal/model"
)

// Operation is the reduction applied to a filtered merchant set.
type Operation string

const (
	OpCount Operation = "count"
	OpSum   Operation = "sum"
	OpAvg   Operation = "avg"
	OpMax   Operation = "max"
	OpMin   Operation = "min"
)

// GroupBy selects the partition key for a breakdown.
type GroupBy string

const (
	GroupNone      GroupBy = ""
	GroupRiskLevel GroupBy = "risk_level"
	GroupCategory  GroupBy = "category"
	GroupFloor     GroupBy = "floor"
)

// Filter narrows the dataset before reduction. A zero-value field means
// "no restriction", never "exclude all".
type Filter struct {
	RiskLevels     []model.RiskLevel `json:"risk_levels,omitempty"`
	Categories     []string          `json:"categories,omitempty"` // matches full category or macro part
	Floors         []string          `json:"floors,omitempty"`
	MinHealthScore *float64          `json:"min_health_score,omitempty"`
	MaxHealthScore *float64          `json:"max_health_score,omitempty"`
}

// Matches applies the filter to one record.
func (f Filter) Matches(m model.Merchant) bool {
	if len(f.RiskLevels) > 0 && !containsRisk(f.RiskLevels, m.RiskLevel) {
		return false
	}
	if len(f.Categories) > 0 && !matchesCategory(f.Categories, m) {
		return false
	}
	if len(f.Floors) > 0 && !containsString(f.Floors, m.Floor) {
		return false
	}
	if f.MinHealthScore != nil && m.HealthScore < *f.MinHealthScore {
		return false
	}
	if f.MaxHealthScore != nil && m.HealthScore > *f.MaxHealthScore {
		return false
	}
	return true
}

// TimeRange is a half-open window [Start, End) with a display label.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label,omitempty"`
}

// AggregationRequest describes one set-valued analytical query.
type AggregationRequest struct {
	Operation   Operation  `json:"operation"`
	Field       string     `json:"field,omitempty"` // required for sum/avg/max/min
	GroupBy     GroupBy    `json:"group_by,omitempty"`
	Filter      Filter     `json:"filter"`
	TimeRange   *TimeRange `json:"time_range,omitempty"`
	CompareWith *TimeRange `json:"compare_with,omitempty"` // baseline window
}

// BaselineDelta is the comparison triple against a baseline value. Percent
// is "N/A" when the baseline is exactly zero.
type BaselineDelta struct {
	Baseline float64 `json:"baseline"`
	Delta    float64 `json:"delta"`
	Percent  string  `json:"percent"`
}

// AggregationResult is the structured outcome of one aggregation. Merchants
// always carries the literal filtered record list so the prose layer cites
// real records.
type AggregationResult struct {
	Operation        Operation           `json:"operation"`
	Field            string              `json:"field,omitempty"`
	Total            float64             `json:"total"`
	Breakdown        map[string]float64  `json:"breakdown,omitempty"`
	Baseline         *BaselineDelta      `json:"baseline,omitempty"`
	Filter           Filter              `json:"filter"`
	TimeRange        *TimeRange          `json:"time_range,omitempty"`
	TimeRangeApplied bool                `json:"time_range_applied"`
	Merchants        []model.MerchantRef `json:"merchants"`
}

// ComparisonTarget selects the comparison shape.
type ComparisonTarget string

const (
	TargetTime     ComparisonTarget = "time"
	TargetCategory ComparisonTarget = "category"
	TargetFloor    ComparisonTarget = "floor"
	TargetMerchant ComparisonTarget = "merchant"
)

// ComparisonRequest describes one comparison query.
type ComparisonRequest struct {
	Target          ComparisonTarget `json:"target"`
	MerchantID      string           `json:"merchant_id"`
	OtherMerchantID string           `json:"other_merchant_id,omitempty"` // merchant-vs-merchant only
	TimeRange       *TimeRange       `json:"time_range,omitempty"`
}

// FieldDelta is one compared numeric field. Display renders as
// "<absolute> (<signed percentage>)", percentage "N/A" on a zero baseline.
type FieldDelta struct {
	Field    string  `json:"field"`
	Current  float64 `json:"current"`
	Baseline float64 `json:"baseline"`
	Delta    float64 `json:"delta"`
	Percent  string  `json:"percent"`
	Display  string  `json:"display"`
}

// ComparisonResult is the structured outcome of one comparison.
type ComparisonResult struct {
	Target        ComparisonTarget    `json:"target"`
	Merchant      model.MerchantRef   `json:"merchant"`
	BaselineLabel string              `json:"baseline_label"`
	PeerCount     int                 `json:"peer_count,omitempty"`
	Fields        []FieldDelta        `json:"fields"`
	Insights      []string            `json:"insights"`
	Merchants     []model.MerchantRef `json:"merchants"` // every record the result was computed over
}

func containsRisk(xs []model.RiskLevel, r model.RiskLevel) bool {
	for _, x := range xs {
		if x == r {
			return true
		}
	}
	return false
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func matchesCategory(categories []string, m model.Merchant) bool {
	for _, c := range categories {
		if c == m.Category || c == m.MacroCategory() {
			return true
		}
	}
	return false
}
