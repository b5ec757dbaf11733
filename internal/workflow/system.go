package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/tessera-ai/tessera/internal/extraction"
	"github.com/tessera-ai/tessera/internal/registry"
	"github.com/tessera-ai/tessera/pkg/storage"
)

// Status is a point-in-time view of a run: the overall state plus every
// task's current state. Consumers poll; there is no push channel.
type Status struct {
	WorkflowID uuid.UUID        `json:"workflow_id"`
	Overall    State            `json:"overall"`
	Tasks      map[string]State `json:"tasks"`
}

type tracked struct {
	done   chan struct{}
	bundle *ResultBundle
	err    error
}

// System is the external surface of the orchestration core: start a workflow
// asynchronously, poll its status, and collect the result bundle once the
// run reaches a terminal state. Finished bundles are archived to blob
// storage when an archive is configured.
type System struct {
	executor *Executor
	store    Store
	archive  storage.System
	logger   *slog.Logger

	mu   sync.RWMutex
	runs map[uuid.UUID]*tracked
}

// NewSystem creates the workflow system. archive may be nil.
func NewSystem(executor *Executor, store Store, archive storage.System, logger *slog.Logger) *System {
	return &System{
		executor: executor,
		store:    store,
		archive:  archive,
		logger:   logger.With("system", "workflow"),
		runs:     make(map[uuid.UUID]*tracked),
	}
}

// StartWorkflow validates the spec's graph and launches the run in the
// background. Graph errors surface here, before any task executes; every
// later outcome is reported through the result bundle.
func (s *System) StartWorkflow(ctx context.Context, spec Spec, doc extraction.Document, tier registry.Tier) (uuid.UUID, error) {
	if _, err := spec.Compile(); err != nil {
		return uuid.Nil, err
	}
	if !tier.Valid() {
		return uuid.Nil, fmt.Errorf("%w: %q", registry.ErrInvalidTier, tier)
	}

	id := uuid.New()
	tr := &tracked{done: make(chan struct{})}

	s.mu.Lock()
	s.runs[id] = tr
	s.mu.Unlock()

	// The run outlives the start request.
	runCtx := context.WithoutCancel(ctx)

	go func() {
		bundle, err := s.executor.Run(runCtx, id, spec, doc, tier)
		tr.bundle = bundle
		tr.err = err
		close(tr.done)

		if bundle != nil {
			s.archiveBundle(runCtx, bundle)
		}
	}()

	s.logger.Info("workflow accepted", "workflow", id, "name", spec.Name, "tier", tier)
	return id, nil
}

// GetStatus reports the run's overall state and per-task states from the
// checkpoint store.
func (s *System) GetStatus(ctx context.Context, id uuid.UUID) (*Status, error) {
	tr, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	records, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load status for %s: %w", id, err)
	}

	status := &Status{
		WorkflowID: id,
		Overall:    StateRunning,
		Tasks:      make(map[string]State, len(records)),
	}
	for _, rec := range records {
		status.Tasks[rec.TaskID] = rec.State
	}

	select {
	case <-tr.done:
		if tr.err != nil {
			status.Overall = StateFailed
		} else {
			status.Overall = StateCompleted
		}
	default:
	}

	return status, nil
}

// GetResult returns the run's bundle once it is terminal. A partial bundle
// is a valid result in isolate mode; the paired error is non-nil only when
// the run itself was aborted, timed out, or cancelled.
func (s *System) GetResult(id uuid.UUID) (*ResultBundle, error) {
	tr, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	select {
	case <-tr.done:
		if tr.bundle == nil {
			return nil, tr.err
		}
		return tr.bundle, tr.err
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotFinished, id)
	}
}

// Wait blocks until the run finishes or ctx is cancelled.
func (s *System) Wait(ctx context.Context, id uuid.UUID) (*ResultBundle, error) {
	tr, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	select {
	case <-tr.done:
		if tr.bundle == nil {
			return nil, tr.err
		}
		return tr.bundle, tr.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *System) lookup(id uuid.UUID) (*tracked, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tr, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkflow, id)
	}
	return tr, nil
}

func (s *System) archiveBundle(ctx context.Context, bundle *ResultBundle) {
	if s.archive == nil {
		return
	}

	data, err := json.Marshal(bundle)
	if err != nil {
		s.logger.Error("bundle serialization failed", "workflow", bundle.WorkflowID, "error", err)
		return
	}

	key := storage.BundleKey(bundle.WorkflowID.String())
	if err := s.archive.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		s.logger.Error("bundle archival failed", "workflow", bundle.WorkflowID, "key", key, "error", err)
		return
	}

	s.logger.Info("bundle archived", "workflow", bundle.WorkflowID, "key", key)
}
