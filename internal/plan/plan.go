// Package plan defines the task and plan model for pilot sessions.
package plan

import (
	"fmt"
	"time"

	"github.com/randalmurphal/pilot/internal/errors"
)

// Status represents a task's execution status.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Complexity is the planner's estimate of the overall request.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Task is the unit of work within a plan.
type Task struct {
	ID                string     `json:"id" yaml:"id"`
	Title             string     `json:"title" yaml:"title"`
	Description       string     `json:"description" yaml:"description"`
	Status            Status     `json:"status" yaml:"status"`
	Dependencies      []string   `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	RequiresDocSearch bool       `json:"requires_doc_search,omitempty" yaml:"requires_doc_search,omitempty"`
	Result            string     `json:"result,omitempty" yaml:"result,omitempty"`
	Error             string     `json:"error,omitempty" yaml:"error,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	FinishedAt        *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// Plan is an ordered task list, fixed once accepted by the state manager.
type Plan struct {
	Tasks      []Task     `json:"tasks" yaml:"tasks"`
	Complexity Complexity `json:"complexity" yaml:"complexity"`
	// Reordered records that the original task order was not topologically
	// consistent and Normalize sorted it.
	Reordered bool `json:"reordered,omitempty" yaml:"reordered,omitempty"`
}

// Clone returns a deep copy of the plan. Task dependency slices are copied so
// the clone shares no mutable state with the original.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	out := &Plan{
		Tasks:      make([]Task, len(p.Tasks)),
		Complexity: p.Complexity,
		Reordered:  p.Reordered,
	}
	for i, t := range p.Tasks {
		out.Tasks[i] = cloneTask(t)
	}
	return out
}

func cloneTask(t Task) Task {
	if len(t.Dependencies) > 0 {
		deps := make([]string, len(t.Dependencies))
		copy(deps, t.Dependencies)
		t.Dependencies = deps
	}
	if t.StartedAt != nil {
		started := *t.StartedAt
		t.StartedAt = &started
	}
	if t.FinishedAt != nil {
		finished := *t.FinishedAt
		t.FinishedAt = &finished
	}
	return t
}

// Validate checks structural rules: non-empty task list, unique identifiers,
// dependencies referencing known tasks, and an acyclic dependency graph.
func (p *Plan) Validate() error {
	if len(p.Tasks) == 0 {
		return errors.ErrPlanInvalid("plan contains no tasks")
	}

	ids := make(map[string]bool, len(p.Tasks))
	for _, t := range p.Tasks {
		if t.ID == "" {
			return errors.ErrPlanInvalid("task with empty identifier")
		}
		if ids[t.ID] {
			return errors.ErrPlanInvalid(fmt.Sprintf("duplicate task identifier %q", t.ID))
		}
		ids[t.ID] = true
	}

	for _, t := range p.Tasks {
		for _, dep := range t.Dependencies {
			if !ids[dep] {
				return errors.ErrPlanInvalid(fmt.Sprintf("task %q depends on unknown task %q", t.ID, dep))
			}
			if dep == t.ID {
				return errors.ErrPlanInvalid(fmt.Sprintf("task %q depends on itself", t.ID))
			}
		}
	}

	if err := detectCycles(p.Tasks); err != nil {
		return err
	}

	return nil
}

// detectCycles runs DFS over the dependency graph with visited/in-progress
// sets and reports the cycle path when one exists.
func detectCycles(tasks []Task) error {
	deps := make(map[string][]string, len(tasks))
	for _, t := range tasks {
		deps[t.ID] = t.Dependencies
	}

	visited := make(map[string]bool)
	inProgress := make(map[string]bool)

	var dfs func(id string, path []string) error
	dfs = func(id string, path []string) error {
		if inProgress[id] {
			cycleStart := 0
			for i, p := range path {
				if p == id {
					cycleStart = i
					break
				}
			}
			cycle := append(path[cycleStart:], id)
			return errors.ErrPlanInvalid(fmt.Sprintf("circular dependency: %v", cycle))
		}
		if visited[id] {
			return nil
		}

		inProgress[id] = true
		path = append(path, id)

		for _, dep := range deps[id] {
			if err := dfs(dep, path); err != nil {
				return err
			}
		}

		inProgress[id] = false
		visited[id] = true
		return nil
	}

	for _, t := range tasks {
		if !visited[t.ID] {
			if err := dfs(t.ID, nil); err != nil {
				return err
			}
		}
	}

	return nil
}

// Normalize validates the plan and enforces topological consistency: if any
// task appears before one of its dependencies, the list is sorted into a
// deterministic topological order and Reordered is set. Among tasks whose
// dependencies are all satisfied, original list order breaks ties, so an
// already-consistent plan comes back unchanged.
func (p *Plan) Normalize() error {
	if err := p.Validate(); err != nil {
		return err
	}

	if p.isTopologicallyOrdered() {
		return nil
	}

	p.Tasks = topoSort(p.Tasks)
	p.Reordered = true
	return nil
}

func (p *Plan) isTopologicallyOrdered() bool {
	position := make(map[string]int, len(p.Tasks))
	for i, t := range p.Tasks {
		position[t.ID] = i
	}
	for i, t := range p.Tasks {
		for _, dep := range t.Dependencies {
			if position[dep] >= i {
				return false
			}
		}
	}
	return true
}

// topoSort is Kahn's algorithm with list order as the deterministic
// tie-break. Assumes the graph is already known to be acyclic.
func topoSort(tasks []Task) []Task {
	index := make(map[string]int, len(tasks))
	indegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]string, len(tasks))

	for i, t := range tasks {
		index[t.ID] = i
		indegree[t.ID] = len(t.Dependencies)
		for _, dep := range t.Dependencies {
			dependents[dep] = append(dependents[dep], t.ID)
		}
	}

	sorted := make([]Task, 0, len(tasks))
	for len(sorted) < len(tasks) {
		// Pick the earliest-listed task with no unsatisfied dependencies.
		next := -1
		for i, t := range tasks {
			if indegree[t.ID] == 0 && (next == -1 || i < next) {
				next = i
				break
			}
		}
		picked := tasks[next]
		indegree[picked.ID] = -1 // consumed
		sorted = append(sorted, picked)
		for _, dep := range dependents[picked.ID] {
			indegree[dep]--
		}
	}

	return sorted
}

// TaskByID returns a pointer to the task with the given identifier, or nil.
func (p *Plan) TaskByID(id string) *Task {
	for i := range p.Tasks {
		if p.Tasks[i].ID == id {
			return &p.Tasks[i]
		}
	}
	return nil
}

// Degenerate builds the single-task fallback plan used when planner output is
// unusable: the raw user request becomes the task description, flagged for
// documentation search so execution still has a fighting chance.
func Degenerate(userRequest string) *Plan {
	return &Plan{
		Tasks: []Task{{
			ID:                "task-1",
			Title:             "Fulfill the user request",
			Description:       userRequest,
			Status:            StatusPending,
			RequiresDocSearch: true,
		}},
		Complexity: ComplexityModerate,
	}
}
