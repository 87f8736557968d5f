// Package assistant runs one conversational turn end to end: classify the
// utterance, bind it to merchant records, plan the task DAG, execute it over
// a single dataset snapshot, and compose the answer. The assistant is the
// external executor the planner's logical schedule is written for.
package assistant

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/meilan-group/mallops-cli/internal/compose"
	"github.com/meilan-group/mallops-cli/internal/disambiguate"
	"github.com/meilan-group/mallops-cli/internal/intent"
	"github.com/meilan-group/mallops-cli/internal/model"
	"github.com/meilan-group/mallops-cli/internal/planner"
	"github.com/meilan-group/mallops-cli/internal/query"
	"github.com/meilan-group/mallops-cli/internal/recognize"
	"github.com/meilan-group/mallops-cli/internal/store"
)

// recentMessageCap bounds the per-session history the planner sees.
const recentMessageCap = 10

// Request is one user turn.
type Request struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// Response is the assistant's answer for one turn.
type Response struct {
	RunID              string              `json:"run_id"`
	Text               string              `json:"text"`
	Intent             model.Intent        `json:"intent"`
	NeedsClarification bool                `json:"needs_clarification,omitempty"`
	Merchants          []model.MerchantRef `json:"merchants,omitempty"`
	Plan               *planner.Plan       `json:"plan,omitempty"`
}

// Options tunes the assistant's executors.
type Options struct {
	HistorySeed int64
	CacheTTL    time.Duration
}

// Assistant orchestrates turns. Safe for concurrent use; sessions are
// isolated, and every turn runs against its own immutable snapshot.
type Assistant struct {
	store    store.Store
	planner  *planner.Planner
	composer *compose.Composer
	agg      *query.AggregationExecutor
	cmp      *query.ComparisonExecutor

	mu       sync.Mutex
	sessions map[string]*session
}

// session is one conversation's mutable state.
type session struct {
	convo   model.ConversationContext
	pending *pendingClarification
}

// pendingClarification parks a turn that stopped at a disambiguation
// question, so the user's next reply can resume it.
type pendingClarification struct {
	question  string
	shortlist []recognize.Candidate
	cls       intent.Classification
	prompt    string
}

// New builds an Assistant over the given dataset provider. The store's
// change hook invalidates nothing here: executors read fresh snapshots, and
// the aggregation cache carries its own TTL.
func New(st store.Store, composer *compose.Composer, opts Options) (*Assistant, error) {
	p, err := planner.New()
	if err != nil {
		return nil, eris.Wrap(err, "assistant: load planner templates")
	}

	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	history := query.NewSimulatedHistory(opts.HistorySeed)

	return &Assistant{
		store:    st,
		planner:  p,
		composer: composer,
		agg:      query.NewAggregationExecutor(history, query.NewCache(opts.CacheTTL)),
		cmp:      query.NewComparisonExecutor(history),
		sessions: map[string]*session{},
	}, nil
}

// Handle runs one turn and returns the answer.
func (a *Assistant) Handle(ctx context.Context, req Request) (*Response, error) {
	runID := uuid.NewString()
	log := zap.L().With(zap.String("run_id", runID), zap.String("session_id", req.SessionID))

	snapshot, err := a.store.GetAllMerchants(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "assistant: load snapshot")
	}

	sess := a.session(req.SessionID)

	// A parked clarification consumes this message as the reply.
	if sess.pending != nil {
		return a.resumeClarification(ctx, runID, log, sess, req.Message, snapshot)
	}

	cls := intent.Classify(req.Message)
	log.Info("turn classified",
		zap.String("intent", string(cls.Intent)),
		zap.Float64("confidence", cls.Confidence),
	)

	candidates := recognize.New(snapshot).Recognize(req.Message, &sess.convo)
	entities, resolution := a.bindEntities(cls, candidates, req.Message, &sess.convo)

	if resolution != nil && resolution.Outcome == disambiguate.OutcomeClarification {
		sess.pending = &pendingClarification{
			question:  req.Message,
			shortlist: resolution.Shortlist,
			cls:       cls,
			prompt:    resolution.Prompt,
		}
		return &Response{
			RunID:              runID,
			Text:               resolution.Prompt,
			Intent:             cls.Intent,
			NeedsClarification: true,
		}, nil
	}

	if needsEntity(cls.Intent) && len(entities) == 0 {
		a.remember(sess, req.Message, cls.Intent, nil)
		return &Response{
			RunID:  runID,
			Text:   "没有识别到您提到的商户，请告知商户名称，例如“海底捞火锅最近怎么样”。",
			Intent: cls.Intent,
		}, nil
	}

	return a.runTurn(ctx, runID, log, sess, req.Message, cls, entities, snapshot)
}

// resumeClarification matches the reply against the parked short-list and
// either resumes the original question or re-prompts.
func (a *Assistant) resumeClarification(ctx context.Context, runID string, log *zap.Logger, sess *session, reply string, snapshot []model.Merchant) (*Response, error) {
	pending := sess.pending

	chosen := disambiguate.ResolveReply(reply, pending.shortlist)
	if chosen == nil {
		log.Debug("clarification reply unmatched", zap.String("reply", reply))
		return &Response{
			RunID:              runID,
			Text:               pending.prompt,
			Intent:             pending.cls.Intent,
			NeedsClarification: true,
		}, nil
	}

	sess.pending = nil
	entities := []model.MerchantRef{refFor(snapshot, chosen.MerchantID)}
	return a.runTurn(ctx, runID, log, sess, pending.question, pending.cls, entities, snapshot)
}

// bindEntities resolves recognition candidates into the entity list a plan
// is built over. For comparisons, two confident exact matches are the two
// sides of the comparison, not an ambiguity.
func (a *Assistant) bindEntities(cls intent.Classification, candidates []recognize.Candidate, text string, convo *model.ConversationContext) ([]model.MerchantRef, *disambiguate.Resolution) {
	if cls.Intent == model.IntentCompare {
		if exacts := exactPair(candidates); len(exacts) == 2 {
			return []model.MerchantRef{
				{ID: exacts[0].MerchantID, Name: exacts[0].Name},
				{ID: exacts[1].MerchantID, Name: exacts[1].Name},
			}, nil
		}
	}

	res := disambiguate.Disambiguate(candidates, text, convo)
	switch res.Outcome {
	case disambiguate.OutcomeResolved:
		return []model.MerchantRef{{ID: res.MerchantID, Name: res.MerchantName}}, &res
	case disambiguate.OutcomeClarification:
		return nil, &res
	default:
		return nil, &res
	}
}

// exactPair returns the first two distinct exact-source candidates at or
// above the exact acceptance bar, if there are exactly two of them.
func exactPair(candidates []recognize.Candidate) []recognize.Candidate {
	var exacts []recognize.Candidate
	for _, c := range candidates {
		if c.Source == recognize.SourceExact && c.Confidence >= 0.9 {
			exacts = append(exacts, c)
		}
	}
	if len(exacts) == 2 {
		return exacts
	}
	return nil
}

// needsEntity reports whether the intent cannot run without a bound merchant.
func needsEntity(it model.Intent) bool {
	switch it {
	case model.IntentMerchantStatus, model.IntentCompare, model.IntentRecommend:
		return true
	default:
		return false
	}
}

func (a *Assistant) session(id string) *session {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[id]
	if !ok {
		s = &session{}
		a.sessions[id] = s
	}
	return s
}

// remember folds the finished turn into the session context.
func (a *Assistant) remember(sess *session, message string, it model.Intent, merchant *model.MerchantRef) {
	sess.convo.LastIntent = it
	if merchant != nil {
		sess.convo.PriorMerchantID = merchant.ID
		sess.convo.PriorMerchantName = merchant.Name
	}
	sess.convo.RecentMessages = append(sess.convo.RecentMessages, model.TurnMessage{
		Role:    "user",
		Content: message,
	})
	if len(sess.convo.RecentMessages) > recentMessageCap {
		sess.convo.RecentMessages = sess.convo.RecentMessages[len(sess.convo.RecentMessages)-recentMessageCap:]
	}
}

func refFor(snapshot []model.Merchant, id string) model.MerchantRef {
	for _, m := range snapshot {
		if m.ID == id {
			return m.Ref()
		}
	}
	return model.MerchantRef{ID: id}
}
