package internal

import (
	"fmt"
	"strings"

	"github.com/lychee-technology/foundry"
)

// DependencyResolver validates the dependency graph of a batch and
// produces a topological execution order. Construction fails on
// duplicate IDs, unknown dependencies and cycles.
type DependencyResolver struct {
	ids        []string
	dependsOn  map[string][]string
	dependents map[string][]string
	order      []string
}

func NewDependencyResolver(ops []foundry.BatchOperation) (*DependencyResolver, error) {
	r := &DependencyResolver{
		dependsOn:  make(map[string][]string, len(ops)),
		dependents: make(map[string][]string, len(ops)),
	}
	for _, op := range ops {
		if _, ok := r.dependsOn[op.ID]; ok {
			return nil, foundry.NewDependencyError(fmt.Sprintf("Duplicate operation ID '%s'", op.ID))
		}
		r.ids = append(r.ids, op.ID)
		r.dependsOn[op.ID] = op.DependsOn
	}
	for _, id := range r.ids {
		for _, dep := range r.dependsOn[id] {
			if _, ok := r.dependsOn[dep]; !ok {
				return nil, foundry.NewDependencyError(
					fmt.Sprintf("Operation '%s' depends on unknown operation '%s'", id, dep))
			}
			r.dependents[dep] = append(r.dependents[dep], id)
		}
	}
	if err := r.sort(); err != nil {
		return nil, err
	}
	return r, nil
}

// sort runs Kahn's algorithm, preferring declaration order so the
// execution order is deterministic.
func (r *DependencyResolver) sort() error {
	indegree := make(map[string]int, len(r.ids))
	for _, id := range r.ids {
		indegree[id] = len(r.dependsOn[id])
	}
	placed := make(map[string]bool, len(r.ids))
	for len(r.order) < len(r.ids) {
		progressed := false
		for _, id := range r.ids {
			if placed[id] || indegree[id] != 0 {
				continue
			}
			placed[id] = true
			r.order = append(r.order, id)
			for _, dep := range r.dependents[id] {
				indegree[dep]--
			}
			progressed = true
		}
		if !progressed {
			var cycle []string
			for _, id := range r.ids {
				if !placed[id] {
					cycle = append(cycle, id)
				}
			}
			return foundry.NewCircularDependencyError(
				"Circular dependency detected: " + strings.Join(cycle, ", "))
		}
	}
	return nil
}

// ExecutionOrder returns every operation ID in dependency order
func (r *DependencyResolver) ExecutionOrder() []string {
	return r.order
}

// IndependentOperations returns the IDs with no dependencies, in
// declaration order
func (r *DependencyResolver) IndependentOperations() []string {
	var out []string
	for _, id := range r.ids {
		if len(r.dependsOn[id]) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// Dependents returns the operations that directly depend on the given
// one, in declaration order.
func (r *DependencyResolver) Dependents(id string) ([]string, error) {
	if _, ok := r.dependsOn[id]; !ok {
		return nil, foundry.NewDependencyError(fmt.Sprintf("Unknown operation '%s'", id))
	}
	return r.dependents[id], nil
}
