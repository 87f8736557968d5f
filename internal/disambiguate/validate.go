package disambiguate

import "github.com/rotisserie/eris"

// Validate enforces the resolution shape invariant: exactly one of the three
// outcome shapes is populated. A violation is a system error in this package,
// not a user-facing condition.
func (r Resolution) Validate() error {
	switch r.Outcome {
	case OutcomeResolved:
		if r.MerchantID == "" {
			return eris.New("disambiguate: resolved outcome without merchant id")
		}
		if len(r.Shortlist) > 0 || r.Prompt != "" {
			return eris.New("disambiguate: resolved outcome carries clarification fields")
		}
	case OutcomeNoMatch:
		if r.MerchantID != "" || len(r.Shortlist) > 0 || r.Prompt != "" {
			return eris.New("disambiguate: no-match outcome carries result fields")
		}
	case OutcomeClarification:
		if len(r.Shortlist) == 0 {
			return eris.New("disambiguate: clarification outcome without shortlist")
		}
		if r.Prompt == "" {
			return eris.New("disambiguate: clarification outcome without prompt")
		}
		if r.MerchantID != "" {
			return eris.New("disambiguate: clarification outcome carries merchant id")
		}
	default:
		return eris.Errorf("disambiguate: unknown outcome %q", r.Outcome)
	}
	return nil
}
