package planner

import (
	"sort"

	"github.com/rotisserie/eris"
)

// Batches computes the parallel execution schedule: each batch is the set of
// tasks whose dependencies are all satisfied by earlier batches. Batch k may
// assume every task in batches <k has completed; tasks within one batch are
// independent by construction. Within a batch, higher priority sorts first.
//
// A non-empty remainder with no runnable task means a cycle survived
// validation; that is a defect in the caller, reported as an error rather
// than an endless loop.
func Batches(plan Plan) ([][]Task, error) {
	indegree := make(map[string]int, len(plan.Tasks))
	dependents := make(map[string][]string, len(plan.Tasks))
	byID := make(map[string]Task, len(plan.Tasks))

	for _, t := range plan.Tasks {
		byID[t.ID] = t
		indegree[t.ID] = len(t.DependsOn)
	}
	for _, t := range plan.Tasks {
		for _, dep := range t.DependsOn {
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	var batches [][]Task
	remaining := len(plan.Tasks)
	for remaining > 0 {
		var ready []Task
		for id, deg := range indegree {
			if deg == 0 {
				ready = append(ready, byID[id])
			}
		}
		if len(ready) == 0 {
			return nil, eris.New("planner: no runnable task remains, plan has an undetected cycle")
		}
		sort.Slice(ready, func(i, j int) bool {
			if ready[i].Priority != ready[j].Priority {
				return ready[i].Priority > ready[j].Priority
			}
			return ready[i].ID < ready[j].ID
		})

		for _, t := range ready {
			delete(indegree, t.ID)
			for _, dep := range dependents[t.ID] {
				if _, ok := indegree[dep]; ok {
					indegree[dep]--
				}
			}
		}
		batches = append(batches, ready)
		remaining -= len(ready)
	}
	return batches, nil
}
