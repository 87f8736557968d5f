// Package planner turns a classified intent plus resolved entities into a
// validated, dependency-ordered set of atomic analytical tasks. The planner
// only computes which tasks are independent; it never spawns work itself.
package planner

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meilan-group/mallops-cli/internal/model"
)

// Plan-confidence tuning. Larger and denser plans are penalized; a plan that
// continues the previous turn's line of questioning gets a boost.
const (
	freeTaskCount     = 3
	taskPenalty       = 0.1
	freeEdgeCount     = 3
	edgePenalty       = 0.05
	continuationBoost = 0.1
	confidenceFloor   = 0.3
	confidenceCeil    = 1.0
)

// Keywords in recent turns that make a trouble-related follow-up likely
// enough to plan for speculatively.
var problemKeywords = []string{"下滑", "下降", "风险", "投诉", "差评", "预警", "亏损", "异常"}

// Planner builds execution plans from the embedded intent templates.
type Planner struct {
	templates *templateSet
}

// New creates a planner, parsing the embedded template set.
func New() (*Planner, error) {
	ts, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	return &Planner{templates: ts}, nil
}

// Plan builds the task DAG for one turn. The first entity (when present)
// becomes the merchant parameter on every entity-bound task. The returned
// plan must pass Validate before any executor consumes it.
func (p *Planner) Plan(intent model.Intent, entities []model.MerchantRef, convo *model.ConversationContext) Plan {
	tmpl := p.templates.Templates[intent]

	merchantID := ""
	if len(entities) > 0 {
		merchantID = entities[0].ID
	}

	idByAction := make(map[string]string, len(tmpl)+1)
	tasks := make([]Task, 0, len(tmpl)+1)
	for _, t := range tmpl {
		task := p.buildTask(t, merchantID, entities)
		idByAction[t.Action] = task.ID
		tasks = append(tasks, task)
	}
	// Rewrite action-level dependencies to task ids.
	for i, t := range tmpl {
		deps := make([]string, 0, len(t.DependsOn))
		for _, dep := range t.DependsOn {
			deps = append(deps, idByAction[dep])
		}
		tasks[i].DependsOn = deps
	}

	speculative := ""
	if action := p.speculativeAction(intent, convo); action != "" {
		// Never speculate a task the plan could not validate.
		if merchantID == "" && !p.templates.entityIndependent(action) {
			action = ""
		}
		if _, planned := idByAction[action]; action != "" && !planned {
			extra := p.buildTask(taskTemplate{Action: action, Priority: 1}, merchantID, entities)
			tasks = append(tasks, extra)
			speculative = action
		}
	}

	plan := Plan{
		Intent:         intent,
		Tasks:          tasks,
		Strategy:       strategyFor(intent, tasks),
		Parallelizable: parallelizable(tasks),
		Speculative:    speculative,
	}
	plan.Confidence = p.confidence(plan, convo)

	zap.L().Debug("planner: built plan",
		zap.String("intent", string(intent)),
		zap.Int("tasks", len(tasks)),
		zap.String("strategy", string(plan.Strategy)),
		zap.Float64("confidence", plan.Confidence),
	)
	return plan
}

func (p *Planner) buildTask(t taskTemplate, merchantID string, entities []model.MerchantRef) Task {
	params := map[string]string{}
	if merchantID != "" && !p.templates.entityIndependent(t.Action) {
		params["merchant_id"] = merchantID
	}
	// Merchant-vs-merchant comparisons carry the second entity too.
	if t.Action == "compare" && len(entities) > 1 {
		params["other_merchant_id"] = entities[1].ID
	}
	return Task{
		ID:       uuid.NewString(),
		Action:   t.Action,
		Params:   params,
		Priority: t.Priority,
	}
}

// speculativeAction returns the follow-up action worth planning ahead for, or
// "" when the recent conversation gives no such hint.
func (p *Planner) speculativeAction(intent model.Intent, convo *model.ConversationContext) string {
	action, ok := p.templates.Speculative[intent]
	if !ok || convo == nil {
		return ""
	}
	for _, msg := range convo.RecentMessages {
		for _, kw := range problemKeywords {
			if strings.Contains(msg.Content, kw) {
				return action
			}
		}
	}
	return ""
}

func strategyFor(intent model.Intent, tasks []Task) Strategy {
	if len(tasks) == 0 || intent == model.IntentChat {
		return StrategyGenerative
	}
	if intent.Analytical() {
		return StrategyHybrid
	}
	return StrategyRuleEngine
}

// parallelizable is true when at least two tasks are immediately runnable,
// or when no task depends on another at all.
func parallelizable(tasks []Task) bool {
	if len(tasks) == 0 {
		return false
	}
	free := 0
	for _, t := range tasks {
		if len(t.DependsOn) == 0 {
			free++
		}
	}
	return free >= 2 || free == len(tasks)
}

// confidence derives the plan score from task count, dependency density and
// continuity with the previous turn, clamped to [0.3, 1.0].
func (p *Planner) confidence(plan Plan, convo *model.ConversationContext) float64 {
	score := 1.0

	if n := len(plan.Tasks); n > freeTaskCount {
		score -= float64(n-freeTaskCount) * taskPenalty
	}
	edges := 0
	for _, t := range plan.Tasks {
		edges += len(t.DependsOn)
	}
	if edges > freeEdgeCount {
		score -= float64(edges-freeEdgeCount) * edgePenalty
	}

	if convo != nil && convo.LastIntent != "" {
		expected := p.templates.Continuations[convo.LastIntent]
		for _, t := range plan.Tasks {
			if containsString(expected, t.Action) {
				score += continuationBoost
				break
			}
		}
	}

	if score < confidenceFloor {
		return confidenceFloor
	}
	if score > confidenceCeil {
		return confidenceCeil
	}
	return score
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
