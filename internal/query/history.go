package query

import (
	"math/rand"

	"github.com/meilan-group/mallops-cli/internal/model"
)

// HistoryProvider supplies prior-period data. No historical time-series
// exists yet, so the default implementation synthesizes plausible baselines;
// swapping in a real provider replaces the synthesis without touching any
// decision logic.
type HistoryProvider interface {
	// PriorSnapshot returns the merchant's state in the given prior window.
	PriorSnapshot(m model.Merchant, window *TimeRange) model.Merchant
	// BaselineValue returns the prior-window value of an aggregate whose
	// current value is given.
	BaselineValue(current float64, window *TimeRange) float64
}

// SimulatedHistory derives prior periods by applying a bounded random
// fluctuation to current values. Explicitly a stub: results vary run to run
// unless the caller fixes the seed.
type SimulatedHistory struct {
	rng *rand.Rand
}

// NewSimulatedHistory creates the stub provider with the given seed.
func NewSimulatedHistory(seed int64) *SimulatedHistory {
	return &SimulatedHistory{rng: rand.New(rand.NewSource(seed))}
}

// fluctuate scales v by a factor in [0.85, 1.15).
func (h *SimulatedHistory) fluctuate(v float64) float64 {
	return v * (0.85 + h.rng.Float64()*0.3)
}

func (h *SimulatedHistory) PriorSnapshot(m model.Merchant, _ *TimeRange) model.Merchant {
	prior := m
	prior.HealthScore = clampScore(h.fluctuate(m.HealthScore))
	prior.Metrics.Collection = clampScore(h.fluctuate(m.Metrics.Collection))
	prior.Metrics.Operational = clampScore(h.fluctuate(m.Metrics.Operational))
	prior.Metrics.SiteQuality = clampScore(h.fluctuate(m.Metrics.SiteQuality))
	prior.Metrics.CustomerReview = clampScore(h.fluctuate(m.Metrics.CustomerReview))
	prior.Metrics.RiskResistance = clampScore(h.fluctuate(m.Metrics.RiskResistance))
	prior.MonthlyRevenue = h.fluctuate(m.MonthlyRevenue)
	return prior
}

func (h *SimulatedHistory) BaselineValue(current float64, _ *TimeRange) float64 {
	return h.fluctuate(current)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
