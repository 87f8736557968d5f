package query

import (
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meilan-group/mallops-cli/internal/model"
)

// AggregationExecutor runs filter → group → reduce → baseline pipelines over
// a dataset snapshot.
type AggregationExecutor struct {
	history HistoryProvider
	cache   *Cache
}

// NewAggregationExecutor creates the executor. history supplies baseline
// values for compare-with requests; cache is optional memoization for
// repeated identical queries.
func NewAggregationExecutor(history HistoryProvider, cache *Cache) *AggregationExecutor {
	return &AggregationExecutor{history: history, cache: cache}
}

// Execute runs one aggregation. Requesting sum/avg/max/min without a field
// selector is a usage error; so is an unknown field or operation. The
// time-range filter is a pass-through until historical data exists, and the
// result says so via TimeRangeApplied.
func (e *AggregationExecutor) Execute(req AggregationRequest, snapshot []model.Merchant) (*AggregationResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	if e.cache != nil {
		if cached, ok := e.cache.Get(req); ok {
			return cached, nil
		}
	}

	filtered := make([]model.Merchant, 0, len(snapshot))
	for _, m := range snapshot {
		if req.Filter.Matches(m) {
			filtered = append(filtered, m)
		}
	}

	result := &AggregationResult{
		Operation:        req.Operation,
		Field:            req.Field,
		Filter:           req.Filter,
		TimeRange:        req.TimeRange,
		TimeRangeApplied: false,
		Merchants:        refs(filtered),
	}

	if req.GroupBy != GroupNone {
		result.Breakdown = map[string]float64{}
		for key, group := range partition(filtered, req.GroupBy) {
			v, err := reduce(req.Operation, req.Field, group)
			if err != nil {
				return nil, err
			}
			result.Breakdown[key] = v
		}
		result.Total = breakdownTotal(req.Operation, result.Breakdown, filtered)
	} else {
		v, err := reduce(req.Operation, req.Field, filtered)
		if err != nil {
			return nil, err
		}
		result.Total = v
	}

	if req.CompareWith != nil {
		baseline := round2(e.history.BaselineValue(result.Total, req.CompareWith))
		delta := round2(result.Total - baseline)
		result.Baseline = &BaselineDelta{
			Baseline: baseline,
			Delta:    delta,
			Percent:  percentOf(delta, baseline),
		}
	}

	if e.cache != nil {
		e.cache.Put(req, result)
	}

	zap.L().Debug("aggregate: executed",
		zap.String("operation", string(req.Operation)),
		zap.Int("matched", len(filtered)),
		zap.Int("groups", len(result.Breakdown)),
	)
	return result, nil
}

func validateRequest(req AggregationRequest) error {
	switch req.Operation {
	case OpCount:
	case OpSum, OpAvg, OpMax, OpMin:
		if req.Field == "" {
			return eris.Errorf("query: operation %s requires a field selector", req.Operation)
		}
		if _, ok := (model.Merchant{}).NumericField(req.Field); !ok {
			return eris.Errorf("query: unknown numeric field %q", req.Field)
		}
	default:
		return eris.Errorf("query: unknown operation %q", req.Operation)
	}
	switch req.GroupBy {
	case GroupNone, GroupRiskLevel, GroupCategory, GroupFloor:
	default:
		return eris.Errorf("query: unknown group-by field %q", req.GroupBy)
	}
	return nil
}

// partition splits records by the group-by key. Only keys present in the
// filtered set appear.
func partition(merchants []model.Merchant, by GroupBy) map[string][]model.Merchant {
	groups := map[string][]model.Merchant{}
	for _, m := range merchants {
		var key string
		switch by {
		case GroupRiskLevel:
			key = string(m.RiskLevel)
		case GroupCategory:
			key = m.MacroCategory()
		case GroupFloor:
			key = m.Floor
		}
		groups[key] = append(groups[key], m)
	}
	return groups
}

// reduce applies the operation over the set. Empty sets reduce to zero
// rather than NaN so downstream formatting stays total.
func reduce(op Operation, field string, merchants []model.Merchant) (float64, error) {
	if op == OpCount {
		return float64(len(merchants)), nil
	}
	if len(merchants) == 0 {
		return 0, nil
	}

	values := make([]float64, len(merchants))
	for i, m := range merchants {
		v, ok := m.NumericField(field)
		if !ok {
			return 0, eris.Errorf("query: unknown numeric field %q", field)
		}
		values[i] = v
	}

	switch op {
	case OpSum:
		return round2(sum(values)), nil
	case OpAvg:
		return round2(sum(values) / float64(len(values))), nil
	case OpMax:
		best := values[0]
		for _, v := range values[1:] {
			best = math.Max(best, v)
		}
		return round2(best), nil
	case OpMin:
		best := values[0]
		for _, v := range values[1:] {
			best = math.Min(best, v)
		}
		return round2(best), nil
	}
	return 0, eris.Errorf("query: unknown operation %q", op)
}

// breakdownTotal computes the overall total for a grouped result: the
// filtered cardinality for count, else the sum of per-group values.
func breakdownTotal(op Operation, breakdown map[string]float64, filtered []model.Merchant) float64 {
	if op == OpCount {
		return float64(len(filtered))
	}
	t := 0.0
	for _, v := range breakdown {
		t += v
	}
	return round2(t)
}

func refs(merchants []model.Merchant) []model.MerchantRef {
	out := make([]model.MerchantRef, len(merchants))
	for i, m := range merchants {
		out[i] = m.Ref()
	}
	return out
}

func sum(values []float64) float64 {
	t := 0.0
	for _, v := range values {
		t += v
	}
	return t
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// percentOf renders delta/baseline as a signed percentage, or "N/A" when the
// baseline is exactly zero.
func percentOf(delta, baseline float64) string {
	if baseline == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%+.1f%%", delta/baseline*100)
}
