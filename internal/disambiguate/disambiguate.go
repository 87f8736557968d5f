// Package disambiguate turns a ranked candidate list into a single confirmed
// merchant reference, a no-match, or a clarification request. The policy is a
// deterministic decision tree over explicit thresholds so it stays unit
// testable without any model dependency.
package disambiguate

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/meilan-group/mallops-cli/internal/model"
	"github.com/meilan-group/mallops-cli/internal/recognize"
)

// Outcome is the shape of a resolution. Exactly one shape holds at a time.
type Outcome string

const (
	OutcomeResolved      Outcome = "resolved"
	OutcomeNoMatch       Outcome = "no_match"
	OutcomeClarification Outcome = "needs_clarification"
)

// Decision thresholds of the acceptance policy.
const (
	// A lead this large over the runner-up is decisive on its own.
	decisiveGap = 0.3
	// An exact match at or above this confidence is accepted outright.
	exactAcceptConfidence = 0.9
	// Below this the top candidate is too uncertain to accept silently.
	clarifyBelow = 0.85
	// At most this many candidates go into a clarification short-list.
	shortlistMax = 3
)

// Resolution is the result of disambiguation. Which fields are populated
// depends on Outcome; Validate enforces the shape invariant.
type Resolution struct {
	Outcome      Outcome               `json:"outcome"`
	MerchantID   string                `json:"merchant_id,omitempty"`
	MerchantName string                `json:"merchant_name,omitempty"`
	Confidence   float64               `json:"confidence,omitempty"`
	LowCertainty bool                  `json:"low_certainty,omitempty"`
	Reason       string                `json:"reason"`
	Shortlist    []recognize.Candidate `json:"shortlist,omitempty"`
	Prompt       string                `json:"prompt,omitempty"`
}

// Disambiguate applies the acceptance policy to a ranked candidate list.
// The list must already be sorted by descending confidence (as produced by
// recognize.Recognizer).
func Disambiguate(candidates []recognize.Candidate, text string, convo *model.ConversationContext) Resolution {
	switch len(candidates) {
	case 0:
		return Resolution{Outcome: OutcomeNoMatch, Reason: "no merchant reference found"}
	case 1:
		return accept(candidates[0], "single candidate", false)
	}

	first, second := candidates[0], candidates[1]

	// Exact-match acceptance is checked ahead of the confidence gap so that,
	// should the two rules ever disagree, the exact match wins.
	if first.Source == recognize.SourceExact && first.Confidence >= exactAcceptConfidence {
		return accept(first, "exact match", false)
	}

	if first.Confidence-second.Confidence > decisiveGap {
		return accept(first, "decisive confidence gap", false)
	}

	// A merchant named in the current turn outranks one carried over from
	// conversation context.
	if first.Source == recognize.SourceContext && second.Source != recognize.SourceContext {
		return accept(second, "current-turn mention outranks carried context", false)
	}

	if first.Confidence < clarifyBelow {
		shortlist := candidates
		if len(shortlist) > shortlistMax {
			shortlist = shortlist[:shortlistMax]
		}
		res := Resolution{
			Outcome:   OutcomeClarification,
			Reason:    "top candidates too close to call",
			Shortlist: shortlist,
			Prompt:    clarificationPrompt(shortlist),
		}
		zap.L().Debug("disambiguate: asking for clarification",
			zap.String("input", text),
			zap.Int("shortlist", len(shortlist)),
		)
		return res
	}

	return accept(first, "best available candidate", true)
}

func accept(c recognize.Candidate, reason string, lowCertainty bool) Resolution {
	return Resolution{
		Outcome:      OutcomeResolved,
		MerchantID:   c.MerchantID,
		MerchantName: c.Name,
		Confidence:   c.Confidence,
		LowCertainty: lowCertainty,
		Reason:       reason,
	}
}

// clarificationPrompt renders the numbered choice prompt shown to the user.
func clarificationPrompt(shortlist []recognize.Candidate) string {
	var b strings.Builder
	b.WriteString("请问您指的是哪一家商户？")
	for i, c := range shortlist {
		fmt.Fprintf(&b, " %d. %s", i+1, c.Name)
	}
	b.WriteString("（回复序号即可）")
	return b.String()
}
