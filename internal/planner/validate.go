package planner

import "fmt"

// Validate checks a plan for structural problems: dependency cycles, edges
// pointing at tasks not in the plan, and entity-bound tasks missing their
// merchant id. All three are reported as distinct error kinds in one pass so
// the caller sees everything wrong with the plan at once.
func (p *Planner) Validate(plan Plan) ValidationResult {
	var errs []ValidationError

	byID := make(map[string]Task, len(plan.Tasks))
	for _, t := range plan.Tasks {
		byID[t.ID] = t
	}

	for _, t := range plan.Tasks {
		for _, dep := range t.DependsOn {
			if _, ok := byID[dep]; !ok {
				errs = append(errs, ValidationError{
					Kind:    ErrKindDanglingDep,
					TaskID:  t.ID,
					Message: fmt.Sprintf("task %s (%s) depends on unknown task %s", t.ID, t.Action, dep),
				})
			}
		}
		if t.MerchantID() == "" && !p.templates.entityIndependent(t.Action) {
			errs = append(errs, ValidationError{
				Kind:    ErrKindMissingMerchant,
				TaskID:  t.ID,
				Message: fmt.Sprintf("task %s (%s) requires a merchant id", t.ID, t.Action),
			})
		}
	}

	if cycleTask, found := findCycle(plan.Tasks, byID); found {
		errs = append(errs, ValidationError{
			Kind:    ErrKindCycle,
			TaskID:  cycleTask,
			Message: fmt.Sprintf("dependency cycle through task %s", cycleTask),
		})
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// findCycle runs a DFS with recursion-stack tracking over the dependency
// edges. Edges to unknown tasks are skipped here; the dangling check reports
// those separately.
func findCycle(tasks []Task, byID map[string]Task) (string, bool) {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(tasks))

	var visit func(id string) (string, bool)
	visit = func(id string) (string, bool) {
		state[id] = inStack
		for _, dep := range byID[id].DependsOn {
			if _, ok := byID[dep]; !ok {
				continue
			}
			switch state[dep] {
			case inStack:
				return dep, true
			case unvisited:
				if c, found := visit(dep); found {
					return c, true
				}
			}
		}
		state[id] = done
		return "", false
	}

	for _, t := range tasks {
		if state[t.ID] == unvisited {
			if c, found := visit(t.ID); found {
				return c, true
			}
		}
	}
	return "", false
}
