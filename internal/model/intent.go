package model

// Intent is the classified purpose of one user utterance.
type Intent string

const (
	// IntentMerchantStatus asks about one merchant's current state.
	IntentMerchantStatus Intent = "query_merchant_status"
	// IntentAggregate asks a set-valued question (counts, sums, group-bys).
	IntentAggregate Intent = "aggregate_query"
	// IntentCompare asks for a comparison against a baseline or peer.
	IntentCompare Intent = "compare_merchants"
	// IntentFindRisks asks which merchants are at risk.
	IntentFindRisks Intent = "find_risks"
	// IntentRecommend asks for remediation advice for a merchant.
	IntentRecommend Intent = "recommend_action"
	// IntentChat is small talk or anything the classifier cannot place.
	IntentChat Intent = "chat"
)

// Analytical reports whether the intent requires running queries over the
// merchant dataset (as opposed to conversational handling).
func (i Intent) Analytical() bool {
	switch i {
	case IntentAggregate, IntentCompare, IntentFindRisks:
		return true
	}
	return false
}
