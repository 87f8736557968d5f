package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meilan-group/mallops-cli/internal/model"
)

func newCmpExecutor() *ComparisonExecutor {
	return NewComparisonExecutor(NewSimulatedHistory(42))
}

func TestCompare_UnknownMerchant(t *testing.T) {
	_, err := newCmpExecutor().Execute(ComparisonRequest{
		Target:     TargetTime,
		MerchantID: "m-404",
	}, testSnapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "m-404")
}

func TestCompare_TimeShape(t *testing.T) {
	res, err := newCmpExecutor().Execute(ComparisonRequest{
		Target:     TargetTime,
		MerchantID: "m-001",
		TimeRange:  &TimeRange{Label: "上月"},
	}, testSnapshot())
	require.NoError(t, err)

	assert.Equal(t, TargetTime, res.Target)
	assert.Equal(t, "上月", res.BaselineLabel)
	assert.Len(t, res.Merchants, 1)
	require.NotEmpty(t, res.Fields)
	for _, f := range res.Fields {
		assert.InDelta(t, f.Current-f.Baseline, f.Delta, 0.01, "field %s", f.Field)
	}
	assert.NotEmpty(t, res.Insights)
	assert.LessOrEqual(t, len(res.Insights), 4)
}

func TestCompare_UnknownTargetDegradesToTime(t *testing.T) {
	res, err := newCmpExecutor().Execute(ComparisonRequest{
		Target:     "quarter",
		MerchantID: "m-001",
	}, testSnapshot())
	require.NoError(t, err)
	assert.Equal(t, TargetTime, res.Target)
	assert.Equal(t, "上一周期", res.BaselineLabel)
}

func TestCompare_CategoryPeers(t *testing.T) {
	res, err := newCmpExecutor().Execute(ComparisonRequest{
		Target:     TargetCategory,
		MerchantID: "m-001",
	}, testSnapshot())
	require.NoError(t, err)

	// Same macro category 餐饮: m-002, m-003, m-006; the record itself is excluded.
	assert.Equal(t, 3, res.PeerCount)
	assert.Len(t, res.Merchants, 4)

	hs, ok := deltaOf(res.Fields, "health_score")
	require.True(t, ok)
	assert.InDelta(t, 77.33, hs.Baseline, 0.01) // (72+95+65)/3
	assert.InDelta(t, 10.67, hs.Delta, 0.01)
	assert.Contains(t, res.Insights[0], "领先")
}

func TestCompare_FloorPeers(t *testing.T) {
	res, err := newCmpExecutor().Execute(ComparisonRequest{
		Target:     TargetFloor,
		MerchantID: "m-001",
	}, testSnapshot())
	require.NoError(t, err)

	// F3 holds only m-001 and m-002.
	assert.Equal(t, 1, res.PeerCount)
	hs, ok := deltaOf(res.Fields, "health_score")
	require.True(t, ok)
	assert.Equal(t, 72.0, hs.Baseline)
	assert.Equal(t, 16.0, hs.Delta)
}

func TestCompare_NoPeersOnUniqueFloor(t *testing.T) {
	res, err := newCmpExecutor().Execute(ComparisonRequest{
		Target:     TargetFloor,
		MerchantID: "m-003",
	}, testSnapshot())
	require.NoError(t, err)

	assert.Zero(t, res.PeerCount)
	require.Len(t, res.Insights, 1)
	assert.Contains(t, res.Insights[0], "没有同楼层商户可比")
}

func TestCompare_MerchantVsMerchant(t *testing.T) {
	res, err := newCmpExecutor().Execute(ComparisonRequest{
		Target:          TargetMerchant,
		MerchantID:      "m-001",
		OtherMerchantID: "m-002",
	}, testSnapshot())
	require.NoError(t, err)

	assert.Equal(t, "小龙坎火锅", res.BaselineLabel)
	assert.Len(t, res.Merchants, 2)

	hs, ok := deltaOf(res.Fields, "health_score")
	require.True(t, ok)
	assert.Equal(t, 16.0, hs.Delta)
	assert.Equal(t, "+16.00 (+22.2%)", hs.Display)
}

func TestCompare_MerchantVsMerchant_OtherMissing(t *testing.T) {
	_, err := newCmpExecutor().Execute(ComparisonRequest{
		Target:          TargetMerchant,
		MerchantID:      "m-001",
		OtherMerchantID: "m-404",
	}, testSnapshot())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "m-404")
}

func TestCompare_PeerPathsAreIdempotent(t *testing.T) {
	snapshot := testSnapshot()
	exec := newCmpExecutor()

	for _, req := range []ComparisonRequest{
		{Target: TargetCategory, MerchantID: "m-001"},
		{Target: TargetFloor, MerchantID: "m-001"},
		{Target: TargetMerchant, MerchantID: "m-001", OtherMerchantID: "m-002"},
	} {
		first, err := exec.Execute(req, snapshot)
		require.NoError(t, err)
		second, err := exec.Execute(req, snapshot)
		require.NoError(t, err)
		assert.Equal(t, first, second, "target %s", req.Target)
	}
}

func TestCompare_ZeroBaselineFieldIsNA(t *testing.T) {
	snapshot := []model.Merchant{
		{ID: "a", Name: "甲", Floor: "F1", HealthScore: 50},
		{ID: "b", Name: "乙", Floor: "F1", HealthScore: 0},
	}
	res, err := newCmpExecutor().Execute(ComparisonRequest{
		Target:          TargetMerchant,
		MerchantID:      "a",
		OtherMerchantID: "b",
	}, snapshot)
	require.NoError(t, err)

	hs, ok := deltaOf(res.Fields, "health_score")
	require.True(t, ok)
	assert.Equal(t, "N/A", hs.Percent)
	assert.Equal(t, "+50.00 (N/A)", hs.Display)
}
