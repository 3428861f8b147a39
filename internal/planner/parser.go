// Package planner turns a natural-language user request into an ordered task
// list with one oracle call. Malformed planner output degrades to a
// single-task plan rather than failing the session.
package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/randalmurphal/pilot/internal/codec"
	"github.com/randalmurphal/pilot/internal/plan"
)

// proposedTodo is the planner wire shape for one task.
type proposedTodo struct {
	ID                string   `json:"id"`
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	Dependencies      []string `json:"dependencies"`
	RequiresDocSearch bool     `json:"requires-doc-search"`
}

// todoList is the planner wire shape: a different schema from the verdict,
// parsed with the same liberal discipline.
type todoList struct {
	Todos      []proposedTodo `json:"todos"`
	Complexity string         `json:"complexity"`
}

// ParsePlan extracts and normalizes a plan from raw planner output. The
// returned plan is validated and topologically ordered; parse or validation
// failures return an error for the caller's fallback policy.
func ParsePlan(text string) (*plan.Plan, error) {
	raw := codec.ExtractJSON(codec.StripFences(text))
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in planner output")
	}

	var list todoList
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decode planner output: %w", err)
	}
	if len(list.Todos) == 0 {
		return nil, fmt.Errorf("planner output contains no tasks")
	}

	p := &plan.Plan{
		Tasks:      make([]plan.Task, len(list.Todos)),
		Complexity: normalizeComplexity(list.Complexity),
	}
	for i, todo := range list.Todos {
		id := strings.TrimSpace(todo.ID)
		if id == "" {
			id = fmt.Sprintf("task-%d", i+1)
		}
		p.Tasks[i] = plan.Task{
			ID:                id,
			Title:             strings.TrimSpace(todo.Title),
			Description:       strings.TrimSpace(todo.Description),
			Status:            plan.StatusPending,
			Dependencies:      todo.Dependencies,
			RequiresDocSearch: todo.RequiresDocSearch,
		}
	}

	if err := p.Normalize(); err != nil {
		return nil, err
	}
	return p, nil
}

// EncodePlan serializes a plan back to the planner wire form.
// ParsePlan(EncodePlan(p)) == p for plans with JSON-safe identifiers.
func EncodePlan(p *plan.Plan) (string, error) {
	list := todoList{
		Todos:      make([]proposedTodo, len(p.Tasks)),
		Complexity: string(p.Complexity),
	}
	for i, t := range p.Tasks {
		list.Todos[i] = proposedTodo{
			ID:                t.ID,
			Title:             t.Title,
			Description:       t.Description,
			Dependencies:      t.Dependencies,
			RequiresDocSearch: t.RequiresDocSearch,
		}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("encode plan: %w", err)
	}
	return string(data), nil
}

func normalizeComplexity(s string) plan.Complexity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simple":
		return plan.ComplexitySimple
	case "complex":
		return plan.ComplexityComplex
	default:
		// Unknown or absent complexity lands in the middle
		return plan.ComplexityModerate
	}
}
