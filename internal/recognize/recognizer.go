package recognize

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/meilan-group/mallops-cli/internal/model"
)

// Confidence assigned per strategy. Partial matches carry their computed
// similarity instead.
const (
	exactConfidence   = 1.0
	fuzzyConfidence   = 0.85
	contextConfidence = 0.6

	// Context lookup only runs when nothing stronger than this was found.
	contextGate = 0.8
)

// Pronouns and patterns suggesting the user omitted the subject and is
// leaning on the previous turn ("how is it doing", "what about recently").
var subjectPronouns = []string{"它", "他们", "她们", "这家", "那家", "这个", "那个", "这间", "那间"}

var omittedSubjectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`怎么样|怎样|咋样|如何`),
	regexp.MustCompile(`^(最近|现在|这个月|上个月)`),
	regexp.MustCompile(`(呢|吗)[?？。！!]*$`),
}

// Recognizer finds merchant references in free text against one immutable
// dataset snapshot. It holds no mutable state; Recognize may be called
// repeatedly and concurrently.
type Recognizer struct {
	merchants []model.Merchant
}

// New creates a recognizer over the given snapshot.
func New(merchants []model.Merchant) *Recognizer {
	return &Recognizer{merchants: merchants}
}

// Recognize produces a ranked candidate list for the utterance. An empty list
// is a valid outcome, not an error. Strategies run in fixed precedence
// (exact, fuzzy, partial, context); when several match the same merchant only
// the highest-confidence candidate survives.
func (r *Recognizer) Recognize(text string, convo *model.ConversationContext) []Candidate {
	input := Normalize(text)
	if input == "" {
		return nil
	}

	var candidates []Candidate
	for _, m := range r.merchants {
		if c, ok := r.matchMerchant(input, m); ok {
			candidates = append(candidates, c)
		}
	}

	if best(candidates) <= contextGate && convo.HasPriorMerchant() && omitsSubject(text) {
		candidates = append(candidates, Candidate{
			MerchantID: convo.PriorMerchantID,
			Name:       convo.PriorMerchantName,
			Confidence: contextConfidence,
			Source:     SourceContext,
		})
	}

	candidates = dedupe(candidates)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})

	zap.L().Debug("recognize: done",
		zap.String("input", text),
		zap.Int("candidates", len(candidates)),
	)
	return candidates
}

// matchMerchant applies the exact, fuzzy and partial strategies to one
// record, returning the strongest one that fires.
func (r *Recognizer) matchMerchant(input string, m model.Merchant) (Candidate, bool) {
	name := Normalize(m.Name)
	if name == "" {
		return Candidate{}, false
	}

	if strings.Contains(input, name) {
		return Candidate{
			MerchantID:  m.ID,
			Name:        m.Name,
			Confidence:  exactConfidence,
			Source:      SourceExact,
			MatchedText: name,
		}, true
	}

	// A distinctive trade name with only its category suffix missing
	// ("海底捞" for "海底捞火锅") identifies the merchant as surely as the
	// full name; two-rune cores are too short for that and stay fuzzy.
	if core := StripNameSuffix(name); core != name && strings.Contains(input, core) {
		conf, src := fuzzyConfidence, SourceFuzzy
		if len([]rune(core)) >= 3 {
			conf, src = exactConfidence, SourceExact
		}
		return Candidate{
			MerchantID:  m.ID,
			Name:        m.Name,
			Confidence:  conf,
			Source:      src,
			MatchedText: core,
		}, true
	}

	score := similarity(input, name)
	if score >= partialThreshold(len([]rune(input))) {
		return Candidate{
			MerchantID: m.ID,
			Name:       m.Name,
			Confidence: score,
			Source:     SourcePartial,
		}, true
	}

	return Candidate{}, false
}

// omitsSubject reports whether the raw utterance looks like it refers back to
// an earlier subject instead of naming one.
func omitsSubject(text string) bool {
	for _, p := range subjectPronouns {
		if strings.Contains(text, p) {
			return true
		}
	}
	for _, re := range omittedSubjectPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func best(candidates []Candidate) float64 {
	b := 0.0
	for _, c := range candidates {
		if c.Confidence > b {
			b = c.Confidence
		}
	}
	return b
}

// dedupe keeps the highest-confidence candidate per merchant, preserving the
// relative order of the survivors.
func dedupe(candidates []Candidate) []Candidate {
	bestByID := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		if c.Confidence > bestByID[c.MerchantID] {
			bestByID[c.MerchantID] = c.Confidence
		}
	}
	out := candidates[:0]
	seen := make(map[string]bool, len(bestByID))
	for _, c := range candidates {
		if seen[c.MerchantID] || c.Confidence < bestByID[c.MerchantID] {
			continue
		}
		seen[c.MerchantID] = true
		out = append(out, c)
	}
	return out
}
