// Package workflow executes dependency-ordered extraction task graphs:
// scheduling, retries, failure propagation, checkpointing, and assembly of
// the final result bundle.
package workflow

import (
	"fmt"
	"time"

	"github.com/tessera-ai/tessera/pkg/graph"
)

// TaskType selects the handler that executes a task.
type TaskType string

// Task types.
const (
	TaskParse         TaskType = "parse"
	TaskUnderstand    TaskType = "document_understanding"
	TaskExtractFields TaskType = "field_extraction"
	TaskExtractTables TaskType = "table_extraction"
	TaskValidate      TaskType = "validation"
)

// State is a task's position in its lifecycle. Transitions:
// pending → ready → running → {completed, failed, retrying}; retrying loops
// back to running; skipped marks tasks abandoned because an upstream task
// failed.
type State string

// Task states.
const (
	StatePending   State = "pending"
	StateReady     State = "ready"
	StateRunning   State = "running"
	StateRetrying  State = "retrying"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateSkipped   State = "skipped"
)

// Terminal reports whether a task in this state will never run again.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateSkipped:
		return true
	default:
		return false
	}
}

// FailureMode controls how a terminal task failure propagates.
type FailureMode string

const (
	// FailFast aborts all non-started tasks on the first terminal failure.
	FailFast FailureMode = "failfast"
	// Isolate skips only the failed task's dependent subtree and keeps
	// independent branches running, yielding a partial bundle.
	Isolate FailureMode = "isolate"
)

// Policy is the per-workflow error-handling and concurrency configuration.
type Policy struct {
	// MaxAttempts bounds executions per task, including the first.
	MaxAttempts int `json:"max_attempts" toml:"max_attempts"`
	// RetryBackoff is the delay before the first retry; subsequent retries
	// back off exponentially.
	RetryBackoff time.Duration `json:"retry_backoff" toml:"retry_backoff"`
	// FailureMode defaults to Isolate: downstream consumers value partial
	// extraction over total failure.
	FailureMode FailureMode `json:"failure_mode" toml:"failure_mode"`
	// Workers bounds concurrently running tasks.
	Workers int `json:"workers" toml:"workers"`
	// TaskTimeout bounds a single task execution attempt. Zero disables.
	TaskTimeout time.Duration `json:"task_timeout" toml:"task_timeout"`
	// WorkflowTimeout bounds the whole run. Zero disables.
	WorkflowTimeout time.Duration `json:"workflow_timeout" toml:"workflow_timeout"`
}

// DefaultPolicy returns the baseline execution policy.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		RetryBackoff: 2 * time.Second,
		FailureMode:  Isolate,
		Workers:      4,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Workers < 1 {
		p.Workers = 1
	}
	if p.FailureMode == "" {
		p.FailureMode = Isolate
	}
	return p
}

// TaskSpec declares one task in a workflow specification.
type TaskSpec struct {
	ID        string   `json:"id" toml:"id"`
	Type      TaskType `json:"type" toml:"type"`
	DependsOn []string `json:"depends_on" toml:"depends_on"`
	// ModelID names the reasoning model for stages that call a backend.
	ModelID string `json:"model_id,omitempty" toml:"model_id"`
}

// Spec is a named, versioned workflow definition: the task list plus policy.
type Spec struct {
	Name    string     `json:"name" toml:"name"`
	Version string     `json:"version" toml:"version"`
	Tasks   []TaskSpec `json:"tasks" toml:"tasks"`
	Policy  Policy     `json:"policy" toml:"policy"`
}

// Compile validates the spec's dependency structure into an executable graph.
// Cycles, duplicate ids, and unknown dependencies fail here, before any task
// runs.
func (s Spec) Compile() (*graph.Graph, error) {
	nodes := make([]graph.Node, len(s.Tasks))
	for i, t := range s.Tasks {
		nodes[i] = graph.Node{ID: t.ID, DependsOn: t.DependsOn}
	}

	g, err := graph.Build(nodes)
	if err != nil {
		return nil, fmt.Errorf("compile workflow %q: %w", s.Name, err)
	}
	return g, nil
}

func (s Spec) task(id string) (TaskSpec, bool) {
	for _, t := range s.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return TaskSpec{}, false
}

// DefaultSpec returns the standard extraction workflow:
// parse → understand → {fields, tables} → validate.
func DefaultSpec(modelID string) Spec {
	return Spec{
		Name:    "document-extraction",
		Version: "1",
		Tasks: []TaskSpec{
			{ID: "parse", Type: TaskParse},
			{ID: "understand", Type: TaskUnderstand, DependsOn: []string{"parse"}, ModelID: modelID},
			{ID: "extract_fields", Type: TaskExtractFields, DependsOn: []string{"understand"}, ModelID: modelID},
			{ID: "extract_tables", Type: TaskExtractTables, DependsOn: []string{"understand"}, ModelID: modelID},
			{ID: "validate", Type: TaskValidate, DependsOn: []string{"extract_fields", "extract_tables"}},
		},
		Policy: DefaultPolicy(),
	}
}
