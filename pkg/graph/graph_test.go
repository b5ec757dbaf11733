package graph_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/tessera-ai/tessera/pkg/graph"
)

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		nodes []graph.Node
		want  error
	}{
		{
			"no tasks",
			nil,
			graph.ErrEmpty,
		},
		{
			"duplicate id",
			[]graph.Node{{ID: "parse"}, {ID: "parse"}},
			graph.ErrDuplicateTask,
		},
		{
			"missing dependency",
			[]graph.Node{{ID: "extract", DependsOn: []string{"parse"}}},
			graph.ErrMissingDependency,
		},
		{
			"self loop",
			[]graph.Node{{ID: "parse", DependsOn: []string{"parse"}}},
			graph.ErrCyclic,
		},
		{
			"transitive cycle",
			[]graph.Node{
				{ID: "a", DependsOn: []string{"c"}},
				{ID: "b", DependsOn: []string{"a"}},
				{ID: "c", DependsOn: []string{"b"}},
			},
			graph.ErrCyclic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := graph.Build(tt.nodes)
			if !errors.Is(err, tt.want) {
				t.Errorf("Build() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestBuildLayers(t *testing.T) {
	g, err := graph.Build([]graph.Node{
		{ID: "parse"},
		{ID: "understand", DependsOn: []string{"parse"}},
		{ID: "fields", DependsOn: []string{"understand"}},
		{ID: "tables", DependsOn: []string{"understand"}},
		{ID: "validate", DependsOn: []string{"fields", "tables"}},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	want := [][]string{
		{"parse"},
		{"understand"},
		{"fields", "tables"},
		{"validate"},
	}

	got := g.Layers()
	if len(got) != len(want) {
		t.Fatalf("Layers() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !slices.Equal(got[i], want[i]) {
			t.Errorf("Layers()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTopologicalOrderRespectsDependencies(t *testing.T) {
	nodes := []graph.Node{
		{ID: "parse"},
		{ID: "understand", DependsOn: []string{"parse"}},
		{ID: "fields", DependsOn: []string{"understand", "parse"}},
		{ID: "tables", DependsOn: []string{"understand"}},
		{ID: "validate", DependsOn: []string{"fields", "tables"}},
	}

	g, err := graph.Build(nodes)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	order := g.TopologicalOrder()
	if len(order) != len(nodes) {
		t.Fatalf("TopologicalOrder() length = %d, want %d", len(order), len(nodes))
	}

	position := make(map[string]int, len(order))
	for i, id := range order {
		position[id] = i
	}

	for _, n := range nodes {
		for _, dep := range n.DependsOn {
			if position[dep] >= position[n.ID] {
				t.Errorf("dependency %q appears at %d, after dependent %q at %d",
					dep, position[dep], n.ID, position[n.ID])
			}
		}
	}
}

func TestGraphAccessors(t *testing.T) {
	g, err := graph.Build([]graph.Node{
		{ID: "parse"},
		{ID: "fields", DependsOn: []string{"parse"}},
		{ID: "tables", DependsOn: []string{"parse"}},
	})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if g.Len() != 3 {
		t.Errorf("Len() = %d, want 3", g.Len())
	}
	if !g.Has("parse") || g.Has("missing") {
		t.Error("Has() membership mismatch")
	}
	if got := g.Roots(); !slices.Equal(got, []string{"parse"}) {
		t.Errorf("Roots() = %v, want [parse]", got)
	}
	if got := g.Dependents("parse"); !slices.Equal(got, []string{"fields", "tables"}) {
		t.Errorf("Dependents(parse) = %v", got)
	}
	if got := g.Dependencies("fields"); !slices.Equal(got, []string{"parse"}) {
		t.Errorf("Dependencies(fields) = %v", got)
	}
	if g.Indegree("fields") != 1 || g.Indegree("parse") != 0 {
		t.Error("Indegree() mismatch")
	}
}
