package query

import (
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meilan-group/mallops-cli/internal/model"
)

// comparedFields lists the numeric fields every comparison reports, with the
// display names the insight generators use.
var comparedFields = []struct {
	key   string
	label string
}{
	{"health_score", "健康分"},
	{"collection", "收缴率"},
	{"operational", "运营"},
	{"site_quality", "现场品质"},
	{"customer_review", "顾客评价"},
	{"risk_resistance", "抗风险"},
	{"monthly_revenue", "月营收"},
}

// ComparisonExecutor compares one merchant against a baseline: its own prior
// period, peer averages, or another named merchant.
type ComparisonExecutor struct {
	history HistoryProvider
}

// NewComparisonExecutor creates the executor.
func NewComparisonExecutor(history HistoryProvider) *ComparisonExecutor {
	return &ComparisonExecutor{history: history}
}

// Execute dispatches on the comparison target. An unrecognized or missing
// target degrades to the time comparison rather than failing, so the
// assistant stays responsive on sloppy upstream classification.
func (e *ComparisonExecutor) Execute(req ComparisonRequest, snapshot []model.Merchant) (*ComparisonResult, error) {
	merchant, ok := findMerchant(snapshot, req.MerchantID)
	if !ok {
		return nil, eris.Errorf("query: merchant %q not found", req.MerchantID)
	}

	switch req.Target {
	case TargetCategory, TargetFloor:
		return e.comparePeers(req.Target, merchant, snapshot), nil
	case TargetMerchant:
		return e.compareMerchants(merchant, req.OtherMerchantID, snapshot)
	case TargetTime:
		return e.compareTime(merchant, req.TimeRange), nil
	default:
		zap.L().Debug("compare: unknown target, falling back to time comparison",
			zap.String("target", string(req.Target)),
		)
		return e.compareTime(merchant, req.TimeRange), nil
	}
}

// compareTime compares the record against a derived prior-period snapshot of
// itself. The baseline is synthesized by the history provider until real
// time-series data exists.
func (e *ComparisonExecutor) compareTime(m model.Merchant, window *TimeRange) *ComparisonResult {
	prior := e.history.PriorSnapshot(m, window)

	label := "上一周期"
	if window != nil && window.Label != "" {
		label = window.Label
	}

	deltas := fieldDeltas(m, prior)
	return &ComparisonResult{
		Target:        TargetTime,
		Merchant:      m.Ref(),
		BaselineLabel: label,
		Fields:        deltas,
		Insights:      timeInsights(deltas),
		Merchants:     []model.MerchantRef{m.Ref()},
	}
}

// comparePeers compares the record against the arithmetic mean of its
// same-category or same-floor peers, excluding itself.
func (e *ComparisonExecutor) comparePeers(target ComparisonTarget, m model.Merchant, snapshot []model.Merchant) *ComparisonResult {
	var peers []model.Merchant
	var label string
	for _, p := range snapshot {
		if p.ID == m.ID {
			continue
		}
		if target == TargetCategory && p.MacroCategory() == m.MacroCategory() {
			peers = append(peers, p)
		}
		if target == TargetFloor && p.Floor == m.Floor {
			peers = append(peers, p)
		}
	}
	if target == TargetCategory {
		label = fmt.Sprintf("%s业态均值", m.MacroCategory())
	} else {
		label = fmt.Sprintf("%s楼层均值", m.Floor)
	}

	baseline := peerMean(peers)
	deltas := fieldDeltasAgainst(m, baseline)

	records := append([]model.Merchant{m}, peers...)
	return &ComparisonResult{
		Target:        target,
		Merchant:      m.Ref(),
		BaselineLabel: label,
		PeerCount:     len(peers),
		Fields:        deltas,
		Insights:      peerInsights(target, deltas, len(peers)),
		Merchants:     refs(records),
	}
}

// compareMerchants compares two explicitly named records.
func (e *ComparisonExecutor) compareMerchants(m model.Merchant, otherID string, snapshot []model.Merchant) (*ComparisonResult, error) {
	other, ok := findMerchant(snapshot, otherID)
	if !ok {
		return nil, eris.Errorf("query: merchant %q not found", otherID)
	}

	deltas := fieldDeltas(m, other)
	return &ComparisonResult{
		Target:        TargetMerchant,
		Merchant:      m.Ref(),
		BaselineLabel: other.Name,
		Fields:        deltas,
		Insights:      merchantInsights(deltas, m, other),
		Merchants:     []model.MerchantRef{m.Ref(), other.Ref()},
	}, nil
}

func findMerchant(snapshot []model.Merchant, id string) (model.Merchant, bool) {
	for _, m := range snapshot {
		if m.ID == id {
			return m, true
		}
	}
	return model.Merchant{}, false
}

// fieldDeltas builds the per-field comparison of current against baseline.
func fieldDeltas(current, baseline model.Merchant) []FieldDelta {
	values := map[string]float64{}
	for _, f := range comparedFields {
		v, _ := baseline.NumericField(f.key)
		values[f.key] = v
	}
	return fieldDeltasAgainst(current, values)
}

func fieldDeltasAgainst(current model.Merchant, baseline map[string]float64) []FieldDelta {
	out := make([]FieldDelta, 0, len(comparedFields))
	for _, f := range comparedFields {
		cur, _ := current.NumericField(f.key)
		base := round2(baseline[f.key])
		delta := round2(cur - base)
		pct := percentOf(delta, base)
		out = append(out, FieldDelta{
			Field:    f.key,
			Current:  round2(cur),
			Baseline: base,
			Delta:    delta,
			Percent:  pct,
			Display:  fmt.Sprintf("%+.2f (%s)", delta, pct),
		})
	}
	return out
}

// peerMean averages each compared field over the peer set. An empty peer set
// yields zero baselines; the insight generator calls that out.
func peerMean(peers []model.Merchant) map[string]float64 {
	mean := map[string]float64{}
	if len(peers) == 0 {
		return mean
	}
	for _, f := range comparedFields {
		t := 0.0
		for _, p := range peers {
			v, _ := p.NumericField(f.key)
			t += v
		}
		mean[f.key] = t / float64(len(peers))
	}
	return mean
}
