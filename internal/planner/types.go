package planner

import "github.com/meilan-group/mallops-cli/internal/model"

// Strategy says how the orchestrator should execute a plan.
type Strategy string

const (
	// StrategyRuleEngine runs the planned tasks through the rule engine.
	StrategyRuleEngine Strategy = "rule-engine"
	// StrategyGenerative hands the turn to the text-generation layer.
	StrategyGenerative Strategy = "generative-fallback"
	// StrategyHybrid runs analytical tasks, then composes prose over them.
	StrategyHybrid Strategy = "hybrid"
)

// Task is one atomic analytical action in a plan.
type Task struct {
	ID        string            `json:"id"`
	Action    string            `json:"action"`
	Params    map[string]string `json:"params,omitempty"`
	DependsOn []string          `json:"depends_on,omitempty"`
	Priority  int               `json:"priority"`
}

// MerchantID returns the merchant the task operates on, if any.
func (t Task) MerchantID() string {
	return t.Params["merchant_id"]
}

// Plan is the dependency-ordered task set for one user turn. Plans are built
// fresh per turn and never persisted.
type Plan struct {
	Intent         model.Intent `json:"intent"`
	Tasks          []Task       `json:"tasks"`
	Strategy       Strategy     `json:"strategy"`
	Parallelizable bool         `json:"parallelizable"`
	Confidence     float64      `json:"confidence"`
	Speculative    string       `json:"speculative,omitempty"` // action appended on a hunch, if any
}

// ValidationErrorKind distinguishes the structural problems a plan can have.
type ValidationErrorKind string

const (
	ErrKindCycle           ValidationErrorKind = "cycle"
	ErrKindDanglingDep     ValidationErrorKind = "dangling_dependency"
	ErrKindMissingMerchant ValidationErrorKind = "missing_merchant"
)

// ValidationError is one structural problem found in a plan.
type ValidationError struct {
	Kind    ValidationErrorKind `json:"kind"`
	TaskID  string              `json:"task_id,omitempty"`
	Message string              `json:"message"`
}

// ValidationResult reports plan validity. Structural problems are values, not
// errors, so the caller can discard the plan and fall back to the generative
// strategy instead of failing the turn.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}
