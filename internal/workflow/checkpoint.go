package workflow

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TaskRecord is the persisted view of one task's progress. Records are
// written on every state transition so a restarted run can resume from the
// last completed state instead of re-running finished work.
type TaskRecord struct {
	WorkflowID   uuid.UUID       `json:"workflow_id"`
	TaskID       string          `json:"task_id"`
	State        State           `json:"state"`
	AttemptCount int             `json:"attempt_count"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Error        string          `json:"error,omitempty"`
	Outputs      json.RawMessage `json:"outputs,omitempty"`
}

// Store persists task records keyed by (workflow id, task id).
// Implementations must be safe for concurrent use.
type Store interface {
	// Save upserts the record for the task.
	Save(ctx context.Context, rec TaskRecord) error
	// Load returns all records for a workflow. An unknown workflow returns
	// an empty slice, not an error.
	Load(ctx context.Context, workflowID uuid.UUID) ([]TaskRecord, error)
}

// MemoryStore is the in-process Store used when no database is configured
// and by tests. Resume only survives the process in this mode.
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]map[string]TaskRecord
}

// NewMemoryStore creates an empty in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[uuid.UUID]map[string]TaskRecord)}
}

func (s *MemoryStore) Save(_ context.Context, rec TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks, ok := s.runs[rec.WorkflowID]
	if !ok {
		tasks = make(map[string]TaskRecord)
		s.runs[rec.WorkflowID] = tasks
	}
	tasks[rec.TaskID] = rec
	return nil
}

func (s *MemoryStore) Load(_ context.Context, workflowID uuid.UUID) ([]TaskRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := s.runs[workflowID]
	out := make([]TaskRecord, 0, len(tasks))
	for _, rec := range tasks {
		out = append(out, rec)
	}
	return out, nil
}
