package recognize

// Source tags where a candidate came from. Precedence and confidence are
// fixed per source: exact 1.0, fuzzy 0.85, partial computed, context 0.6.
type Source string

const (
	SourceExact   Source = "exact"
	SourceFuzzy   Source = "fuzzy"
	SourcePartial Source = "partial"
	SourceContext Source = "context"
)

// Candidate is a provisional merchant reference produced during recognition.
// Candidates are created fresh per call and never persisted.
type Candidate struct {
	MerchantID  string  `json:"merchant_id"`
	Name        string  `json:"name"`
	Confidence  float64 `json:"confidence"` // in [0,1]
	Source      Source  `json:"source"`
	MatchedText string  `json:"matched_text,omitempty"`
}
