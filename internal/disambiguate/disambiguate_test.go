package disambiguate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meilan-group/mallops-cli/internal/recognize"
)

func cand(id, name string, conf float64, src recognize.Source) recognize.Candidate {
	return recognize.Candidate{MerchantID: id, Name: name, Confidence: conf, Source: src}
}

func TestDisambiguate_NoCandidates(t *testing.T) {
	res := Disambiguate(nil, "随便聊聊", nil)
	assert.Equal(t, OutcomeNoMatch, res.Outcome)
	require.NoError(t, res.Validate())
}

func TestDisambiguate_SingleCandidate(t *testing.T) {
	res := Disambiguate([]recognize.Candidate{
		cand("m-001", "海底捞火锅", 0.7, recognize.SourcePartial),
	}, "海底", nil)

	assert.Equal(t, OutcomeResolved, res.Outcome)
	assert.Equal(t, "m-001", res.MerchantID)
	assert.False(t, res.LowCertainty)
	require.NoError(t, res.Validate())
}

func TestDisambiguate_DecisiveGap(t *testing.T) {
	res := Disambiguate([]recognize.Candidate{
		cand("m-001", "海底捞火锅", 0.85, recognize.SourceFuzzy),
		cand("m-002", "小龙坎火锅", 0.5, recognize.SourcePartial),
	}, "", nil)

	assert.Equal(t, OutcomeResolved, res.Outcome)
	assert.Equal(t, "m-001", res.MerchantID)
}

func TestDisambiguate_ExactBeatsGapRule(t *testing.T) {
	// Both the exact-match rule and the gap rule apply; the resolution must
	// record the exact match as the deciding rule.
	res := Disambiguate([]recognize.Candidate{
		cand("m-001", "海底捞火锅", 1.0, recognize.SourceExact),
		cand("m-002", "小龙坎火锅", 0.4, recognize.SourcePartial),
	}, "", nil)

	assert.Equal(t, OutcomeResolved, res.Outcome)
	assert.Equal(t, "m-001", res.MerchantID)
	assert.Equal(t, "exact match", res.Reason)
}

func TestDisambiguate_CurrentTurnOutranksContext(t *testing.T) {
	res := Disambiguate([]recognize.Candidate{
		cand("m-003", "喜茶", 0.6, recognize.SourceContext),
		cand("m-002", "小龙坎火锅", 0.58, recognize.SourcePartial),
	}, "", nil)

	assert.Equal(t, OutcomeResolved, res.Outcome)
	assert.Equal(t, "m-002", res.MerchantID)
}

func TestDisambiguate_CloseCallAsksForClarification(t *testing.T) {
	res := Disambiguate([]recognize.Candidate{
		cand("m-001", "海底捞火锅", 0.82, recognize.SourcePartial),
		cand("m-002", "小龙坎火锅", 0.80, recognize.SourcePartial),
	}, "火锅那家", nil)

	assert.Equal(t, OutcomeClarification, res.Outcome)
	require.Len(t, res.Shortlist, 2)
	assert.Contains(t, res.Prompt, "1. 海底捞火锅")
	assert.Contains(t, res.Prompt, "2. 小龙坎火锅")
	require.NoError(t, res.Validate())
}

func TestDisambiguate_ShortlistCappedAtThree(t *testing.T) {
	res := Disambiguate([]recognize.Candidate{
		cand("m-001", "一品轩", 0.8, recognize.SourcePartial),
		cand("m-002", "二品轩", 0.79, recognize.SourcePartial),
		cand("m-003", "三品轩", 0.78, recognize.SourcePartial),
		cand("m-004", "四品轩", 0.77, recognize.SourcePartial),
	}, "", nil)

	assert.Equal(t, OutcomeClarification, res.Outcome)
	assert.Len(t, res.Shortlist, 3)
}

func TestDisambiguate_LowCertaintyAcceptance(t *testing.T) {
	// Above the clarification floor but short of every decisive rule.
	res := Disambiguate([]recognize.Candidate{
		cand("m-001", "海底捞火锅", 0.86, recognize.SourceFuzzy),
		cand("m-002", "小龙坎火锅", 0.85, recognize.SourceFuzzy),
	}, "", nil)

	assert.Equal(t, OutcomeResolved, res.Outcome)
	assert.Equal(t, "m-001", res.MerchantID)
	assert.True(t, res.LowCertainty)
}

func TestDisambiguate_ExactlyOneShapePopulated(t *testing.T) {
	lists := [][]recognize.Candidate{
		nil,
		{cand("m-001", "喜茶", 0.95, recognize.SourceExact)},
		{cand("m-001", "喜茶", 0.82, recognize.SourcePartial), cand("m-002", "喜茶の屋", 0.8, recognize.SourcePartial)},
		{cand("m-001", "喜茶", 0.6, recognize.SourceContext), cand("m-002", "喜茶の屋", 0.58, recognize.SourcePartial)},
	}
	for _, cs := range lists {
		res := Disambiguate(cs, "", nil)
		require.NoError(t, res.Validate(), "candidates: %v", cs)
	}
}

func TestValidate_RejectsMalformedShapes(t *testing.T) {
	assert.Error(t, Resolution{Outcome: OutcomeClarification}.Validate())
	assert.Error(t, Resolution{Outcome: OutcomeResolved}.Validate())
	assert.Error(t, Resolution{Outcome: OutcomeNoMatch, MerchantID: "m-001"}.Validate())
	assert.Error(t, Resolution{Outcome: "weird"}.Validate())
}

func TestResolveReply_Ordinal(t *testing.T) {
	shortlist := []recognize.Candidate{
		cand("m-001", "海底捞火锅", 0.82, recognize.SourcePartial),
		cand("m-002", "小龙坎火锅", 0.80, recognize.SourcePartial),
	}

	got := ResolveReply("2", shortlist)
	require.NotNil(t, got)
	assert.Equal(t, "m-002", got.MerchantID)

	got = ResolveReply("第1个", shortlist)
	require.NotNil(t, got)
	assert.Equal(t, "m-001", got.MerchantID)

	assert.Nil(t, ResolveReply("9", shortlist))
}

func TestResolveReply_NameSubstring(t *testing.T) {
	shortlist := []recognize.Candidate{
		cand("m-001", "海底捞火锅", 0.82, recognize.SourcePartial),
		cand("m-002", "小龙坎火锅", 0.80, recognize.SourcePartial),
	}

	got := ResolveReply("小龙坎那家", shortlist)
	require.NotNil(t, got)
	assert.Equal(t, "m-002", got.MerchantID)

	assert.Nil(t, ResolveReply("都不是", shortlist))
	assert.Nil(t, ResolveReply("", shortlist))
}
