// Package graph compiles workflow task descriptors into a validated,
// immutable dependency graph with computed topological layers. Building a
// graph has no side effects; the result is safe for concurrent reads.
package graph

import (
	"fmt"
	"sort"
)

// Node describes a single task and the ids of the tasks it depends on.
type Node struct {
	ID        string
	DependsOn []string
}

// Graph is a validated directed acyclic graph of task ids.
type Graph struct {
	nodes      map[string]Node
	order      []string
	dependents map[string][]string
	indegree   map[string]int
	layers     [][]string
}

// Build validates the given nodes and constructs a Graph.
// It fails with ErrDuplicateTask, ErrMissingDependency, or ErrCyclic.
func Build(nodes []Node) (*Graph, error) {
	if len(nodes) == 0 {
		return nil, ErrEmpty
	}

	byID := make(map[string]Node, len(nodes))
	order := make([]string, 0, len(nodes))

	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("%w: task id is required", ErrDuplicateTask)
		}
		if _, exists := byID[n.ID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTask, n.ID)
		}
		byID[n.ID] = n
		order = append(order, n.ID)
	}

	dependents := make(map[string][]string, len(nodes))
	indegree := make(map[string]int, len(nodes))

	for _, id := range order {
		indegree[id] = 0
	}

	for _, n := range nodes {
		seen := make(map[string]struct{}, len(n.DependsOn))
		for _, dep := range n.DependsOn {
			if _, ok := byID[dep]; !ok {
				return nil, fmt.Errorf("%w: task %q depends on unknown task %q", ErrMissingDependency, n.ID, dep)
			}
			if dep == n.ID {
				return nil, fmt.Errorf("%w: task %q depends on itself", ErrCyclic, n.ID)
			}
			if _, dup := seen[dep]; dup {
				continue
			}
			seen[dep] = struct{}{}
			dependents[dep] = append(dependents[dep], n.ID)
			indegree[n.ID]++
		}
	}

	for id := range dependents {
		sort.Strings(dependents[id])
	}

	g := &Graph{
		nodes:      byID,
		order:      order,
		dependents: dependents,
		indegree:   indegree,
	}

	layers, err := g.computeLayers()
	if err != nil {
		return nil, err
	}
	g.layers = layers

	return g, nil
}

// computeLayers runs Kahn's algorithm, grouping tasks by readiness wave.
// Any remainder after the queue drains indicates a cycle.
func (g *Graph) computeLayers() ([][]string, error) {
	remaining := make(map[string]int, len(g.indegree))
	for id, deg := range g.indegree {
		remaining[id] = deg
	}

	var layers [][]string
	frontier := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if remaining[id] == 0 {
			frontier = append(frontier, id)
		}
	}

	visited := 0
	for len(frontier) > 0 {
		sort.Strings(frontier)
		layers = append(layers, frontier)
		visited += len(frontier)

		var next []string
		for _, id := range frontier {
			for _, dep := range g.dependents[id] {
				remaining[dep]--
				if remaining[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		frontier = next
	}

	if visited != len(g.order) {
		var stuck []string
		for id, deg := range remaining {
			if deg > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, fmt.Errorf("%w: unresolvable tasks %v", ErrCyclic, stuck)
	}

	return layers, nil
}

// Len returns the number of tasks in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Has reports whether the graph contains the given task id.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// IDs returns all task ids in declaration order.
func (g *Graph) IDs() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Dependencies returns the declared dependency ids for a task.
func (g *Graph) Dependencies(id string) []string {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	out := make([]string, len(n.DependsOn))
	copy(out, n.DependsOn)
	return out
}

// Dependents returns the ids of tasks that depend on the given task.
func (g *Graph) Dependents(id string) []string {
	deps := g.dependents[id]
	out := make([]string, len(deps))
	copy(out, deps)
	return out
}

// Indegree returns the number of distinct dependencies for a task.
func (g *Graph) Indegree(id string) int {
	return g.indegree[id]
}

// Roots returns the tasks with no dependencies, the first execution wave.
func (g *Graph) Roots() []string {
	if len(g.layers) == 0 {
		return nil
	}
	out := make([]string, len(g.layers[0]))
	copy(out, g.layers[0])
	return out
}

// Layers returns the topological layers: every task's dependencies appear
// in a strictly earlier layer.
func (g *Graph) Layers() [][]string {
	out := make([][]string, len(g.layers))
	for i, layer := range g.layers {
		out[i] = make([]string, len(layer))
		copy(out[i], layer)
	}
	return out
}

// TopologicalOrder returns a valid execution order, flattened from the layers.
func (g *Graph) TopologicalOrder() []string {
	out := make([]string, 0, len(g.order))
	for _, layer := range g.layers {
		out = append(out, layer...)
	}
	return out
}
