package assistant

import (
	"context"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/meilan-group/mallops-cli/internal/compose"
	"github.com/meilan-group/mallops-cli/internal/intent"
	"github.com/meilan-group/mallops-cli/internal/model"
	"github.com/meilan-group/mallops-cli/internal/planner"
	"github.com/meilan-group/mallops-cli/internal/query"
)

// turnState accumulates task outputs for one run. Tasks within a batch run
// concurrently, so all writes go through the mutex.
type turnState struct {
	cls      intent.Classification
	snapshot []model.Merchant

	mu        sync.Mutex
	merchant  *model.Merchant
	agg       *query.AggregationResult
	cmp       *query.ComparisonResult
	risks     []model.Merchant
	similar   []model.Merchant
	weakest   string
	weakScore float64
}

// runTurn plans, executes, and composes one turn that survived entity binding.
func (a *Assistant) runTurn(ctx context.Context, runID string, log *zap.Logger, sess *session, question string, cls intent.Classification, entities []model.MerchantRef, snapshot []model.Merchant) (*Response, error) {
	plan := a.planner.Plan(cls.Intent, entities, &sess.convo)

	if vr := a.planner.Validate(plan); !vr.Valid {
		return nil, eris.New("assistant: planner produced an invalid plan: " + vr.Errors[0].Message)
	}

	batches, err := planner.Batches(plan)
	if err != nil {
		return nil, eris.Wrap(err, "assistant: schedule plan")
	}

	log.Info("plan built",
		zap.String("strategy", string(plan.Strategy)),
		zap.Int("tasks", len(plan.Tasks)),
		zap.Int("batches", len(batches)),
		zap.Float64("plan_confidence", plan.Confidence),
		zap.String("speculative", plan.Speculative),
	)

	st := &turnState{cls: cls, snapshot: snapshot}
	for _, batch := range batches {
		g, gctx := errgroup.WithContext(ctx)
		for _, task := range batch {
			task := task
			g.Go(func() error {
				return a.runTask(gctx, task, st)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	input := st.composeInput(question, cls.Intent)
	text, err := a.composer.Compose(ctx, input)
	if err != nil {
		return nil, eris.Wrap(err, "assistant: compose answer")
	}

	var primary *model.MerchantRef
	if len(entities) > 0 {
		primary = &entities[0]
	}
	a.remember(sess, question, cls.Intent, primary)

	return &Response{
		RunID:     runID,
		Text:      text,
		Intent:    cls.Intent,
		Merchants: st.citations(),
		Plan:      &plan,
	}, nil
}

func (a *Assistant) runTask(_ context.Context, task planner.Task, st *turnState) error {
	switch task.Action {
	case "fetch-profile":
		return st.fetchProfile(task.MerchantID())
	case "summarize-metrics":
		return st.requireProfile(task.Action)
	case "aggregate":
		return st.aggregate(a.agg)
	case "compare":
		return st.compare(a.cmp, task)
	case "detect-risks":
		st.detectRisks()
		return nil
	case "rank-risks":
		st.rankRisks()
		return nil
	case "diagnose":
		return st.diagnose(task.MerchantID())
	case "match-similar-cases":
		st.matchSimilarCases()
		return nil
	case "generate-recommendation":
		return st.requireProfile(task.Action)
	default:
		// Unknown actions degrade to a no-op rather than failing the turn.
		zap.L().Debug("unknown task action skipped", zap.String("action", task.Action))
		return nil
	}
}

func (st *turnState) fetchProfile(id string) error {
	for _, m := range st.snapshot {
		if m.ID == id {
			m := m
			st.mu.Lock()
			st.merchant = &m
			st.mu.Unlock()
			return nil
		}
	}
	return eris.New("assistant: merchant not in snapshot: " + id)
}

func (st *turnState) requireProfile(action string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.merchant == nil {
		return eris.New("assistant: " + action + " ran without a fetched profile")
	}
	return nil
}

func (st *turnState) aggregate(exec *query.AggregationExecutor) error {
	req := query.AggregationRequest{Operation: query.OpCount}
	if st.cls.Aggregation != nil {
		req = *st.cls.Aggregation
	}

	res, err := exec.Execute(req, st.snapshot)
	if err != nil {
		return err
	}

	st.mu.Lock()
	st.agg = res
	st.mu.Unlock()
	return nil
}

func (st *turnState) compare(exec *query.ComparisonExecutor, task planner.Task) error {
	req := query.ComparisonRequest{Target: query.TargetTime}
	if st.cls.Comparison != nil {
		req = *st.cls.Comparison
	}
	req.MerchantID = task.MerchantID()
	if other := task.Params["other_merchant_id"]; other != "" {
		req.Target = query.TargetMerchant
		req.OtherMerchantID = other
	}

	res, err := exec.Execute(req, st.snapshot)
	if err != nil {
		return err
	}

	st.mu.Lock()
	st.cmp = res
	st.mu.Unlock()
	return nil
}

// detectRisks collects every merchant at medium risk or worse.
func (st *turnState) detectRisks() {
	risks := make([]model.Merchant, 0)
	for _, m := range st.snapshot {
		if m.RiskLevel.Severity() >= model.RiskMedium.Severity() {
			risks = append(risks, m)
		}
	}

	st.mu.Lock()
	st.risks = risks
	st.mu.Unlock()
	st.rankRisks()
}

// rankRisks orders the risk list worst first: severity descending, then
// health score ascending.
func (st *turnState) rankRisks() {
	st.mu.Lock()
	defer st.mu.Unlock()
	sort.SliceStable(st.risks, func(i, j int) bool {
		si, sj := st.risks[i].RiskLevel.Severity(), st.risks[j].RiskLevel.Severity()
		if si != sj {
			return si > sj
		}
		return st.risks[i].HealthScore < st.risks[j].HealthScore
	})
}

// submetricNames are the diagnosable dimensions, in report order.
var submetricNames = []string{"collection", "operational", "site_quality", "customer_review", "risk_resistance"}

// diagnose binds the target profile and finds its weakest dimension.
func (st *turnState) diagnose(id string) error {
	st.mu.Lock()
	bound := st.merchant != nil
	st.mu.Unlock()
	if !bound {
		if err := st.fetchProfile(id); err != nil {
			return err
		}
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	st.weakest = submetricNames[0]
	st.weakScore, _ = st.merchant.NumericField(submetricNames[0])
	for _, name := range submetricNames[1:] {
		v, _ := st.merchant.NumericField(name)
		if v < st.weakScore {
			st.weakest, st.weakScore = name, v
		}
	}
	return nil
}

// matchSimilarCases finds up to two same-macro-category merchants that score
// better than the target, best first.
func (st *turnState) matchSimilarCases() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.merchant == nil {
		return
	}

	var peers []model.Merchant
	for _, m := range st.snapshot {
		if m.ID != st.merchant.ID && m.MacroCategory() == st.merchant.MacroCategory() && m.HealthScore > st.merchant.HealthScore {
			peers = append(peers, m)
		}
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i].HealthScore > peers[j].HealthScore })
	if len(peers) > 2 {
		peers = peers[:2]
	}
	st.similar = peers
}

// remediation actions per weakest dimension.
var adviceActions = map[string][]string{
	"collection": {
		"核对近两期租金与收缴记录，安排专人催缴面谈",
		"评估是否需要调整账期或给出分期方案",
	},
	"operational": {
		"检查营业时间执行与人员排班情况",
		"安排运营督导驻场一周，跟进整改",
	},
	"site_quality": {
		"开展现场品质专项检查并限期整改",
		"对标同业态优秀门店的陈列与动线",
	},
	"customer_review": {
		"拉取近30天差评归因，督促商户逐条回复与整改",
		"协调开展会员回馈活动，修复口碑",
	},
	"risk_resistance": {
		"评估商户现金流与库存周转，建议储备应急方案",
		"关注同商圈竞品动向，提前调整经营策略",
	},
}

func (st *turnState) composeInput(question string, it model.Intent) compose.Input {
	st.mu.Lock()
	defer st.mu.Unlock()

	in := compose.Input{Question: question, Intent: it}
	switch it {
	case model.IntentMerchantStatus:
		in.Merchant = st.merchant
	case model.IntentAggregate:
		in.Aggregation = st.agg
	case model.IntentCompare:
		in.Comparison = st.cmp
	case model.IntentFindRisks:
		if st.risks == nil {
			st.risks = []model.Merchant{}
		}
		in.Risks = st.risks
	case model.IntentRecommend:
		if st.merchant != nil {
			in.Advice = &compose.Advice{
				Merchant:     st.merchant.Ref(),
				WeakestField: st.weakest,
				WeakestScore: st.weakScore,
				Actions:      adviceActions[st.weakest],
				SimilarCases: merchantRefs(st.similar),
			}
		}
	}
	return in
}

// citations lists every record the answer was computed over.
func (st *turnState) citations() []model.MerchantRef {
	st.mu.Lock()
	defer st.mu.Unlock()

	switch {
	case st.agg != nil:
		return st.agg.Merchants
	case st.cmp != nil:
		return st.cmp.Merchants
	case st.merchant != nil:
		out := []model.MerchantRef{st.merchant.Ref()}
		out = append(out, merchantRefs(st.similar)...)
		return out
	case st.risks != nil:
		return merchantRefs(st.risks)
	}
	return nil
}

func merchantRefs(merchants []model.Merchant) []model.MerchantRef {
	out := make([]model.MerchantRef, 0, len(merchants))
	for _, m := range merchants {
		out = append(out, m.Ref())
	}
	return out
}
