package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tessera-ai/tessera/internal/extraction"
	"github.com/tessera-ai/tessera/internal/reasoning"
	"github.com/tessera-ai/tessera/internal/registry"
	"github.com/tessera-ai/tessera/pkg/graph"
)

// Executor runs a compiled task graph to completion or terminal failure:
// ready-queue scheduling under a worker limit, per-task retries with
// exponential backoff, configurable failure propagation, and a checkpoint
// write on every state transition.
type Executor struct {
	store  Store
	rt     *Runtime
	logger *slog.Logger
}

// NewExecutor creates a workflow executor over the given checkpoint store.
func NewExecutor(store Store, rt *Runtime, logger *slog.Logger) *Executor {
	return &Executor{
		store:  store,
		rt:     rt,
		logger: logger.With("system", "executor"),
	}
}

// run is the mutable state of one workflow execution. All fields behind mu;
// the ready channel is the only cross-goroutine handoff.
type run struct {
	id     uuid.UUID
	spec   Spec
	policy Policy
	graph  *graph.Graph
	tier   registry.Tier

	mu           sync.Mutex
	doc          extraction.Document
	records      map[string]*TaskRecord
	outputs      map[string]Outputs
	waiting      map[string]int
	remaining    int
	firstFailure error

	ready     chan string
	closeOnce sync.Once
	cancel    context.CancelFunc
}

func (r *run) closeReady() {
	r.closeOnce.Do(func() { close(r.ready) })
}

// Run executes a workflow from scratch. Graph validation failures abort
// before any task runs; every other outcome yields a result bundle, paired
// with an error only when the run was aborted, timed out, or cancelled.
func (e *Executor) Run(ctx context.Context, workflowID uuid.UUID, spec Spec, doc extraction.Document, tier registry.Tier) (*ResultBundle, error) {
	g, err := spec.Compile()
	if err != nil {
		return nil, err
	}

	r := e.newRun(workflowID, spec, g, doc, tier)

	for _, id := range g.IDs() {
		r.records[id] = &TaskRecord{WorkflowID: workflowID, TaskID: id, State: StatePending}
		r.waiting[id] = g.Indegree(id)
		r.remaining++
	}

	r.mu.Lock()
	for _, id := range g.Roots() {
		e.enqueueLocked(context.WithoutCancel(ctx), r, id)
	}
	r.mu.Unlock()

	return e.execute(ctx, r)
}

// Resume reloads a workflow's checkpoint records and re-schedules every task
// not already in a terminal state, reusing the persisted outputs of
// completed tasks.
func (e *Executor) Resume(ctx context.Context, workflowID uuid.UUID, spec Spec, doc extraction.Document, tier registry.Tier) (*ResultBundle, error) {
	g, err := spec.Compile()
	if err != nil {
		return nil, err
	}

	saved, err := e.store.Load(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoints for %s: %w", workflowID, err)
	}

	byID := make(map[string]TaskRecord, len(saved))
	for _, rec := range saved {
		byID[rec.TaskID] = rec
	}

	r := e.newRun(workflowID, spec, g, doc, tier)

	for _, id := range g.IDs() {
		rec, ok := byID[id]
		if !ok {
			rec = TaskRecord{WorkflowID: workflowID, TaskID: id, State: StatePending}
		}

		if rec.State.Terminal() {
			if rec.State == StateCompleted && len(rec.Outputs) > 0 {
				var out Outputs
				if err := json.Unmarshal(rec.Outputs, &out); err != nil {
					return nil, fmt.Errorf("decode outputs for task %q: %w", id, err)
				}
				r.outputs[id] = out
				if out.Document != nil {
					r.doc = *out.Document
				}
			}
		} else {
			// Interrupted mid-flight: schedule again, keeping the attempt
			// history.
			rec.State = StatePending
			rec.Error = ""
			r.remaining++
		}

		rec.WorkflowID = workflowID
		recCopy := rec
		r.records[id] = &recCopy
	}

	r.mu.Lock()
	for _, id := range g.IDs() {
		pending := 0
		for _, dep := range g.Dependencies(id) {
			if r.records[dep].State != StateCompleted {
				pending++
			}
		}
		r.waiting[id] = pending
	}
	for _, id := range g.IDs() {
		if !r.records[id].State.Terminal() && r.waiting[id] == 0 {
			e.enqueueLocked(context.WithoutCancel(ctx), r, id)
		}
	}
	// A task that failed terminally before the interruption strands its
	// dependents; skip them the same way a live failure would have.
	for _, id := range g.IDs() {
		if r.records[id].State == StateFailed {
			e.skipDependentsLocked(context.WithoutCancel(ctx), r, id,
				fmt.Sprintf("dependency %q failed", id))
		}
	}
	r.mu.Unlock()

	return e.execute(ctx, r)
}

func (e *Executor) newRun(workflowID uuid.UUID, spec Spec, g *graph.Graph, doc extraction.Document, tier registry.Tier) *run {
	return &run{
		id:      workflowID,
		spec:    spec,
		policy:  spec.Policy.normalized(),
		graph:   g,
		tier:    tier,
		doc:     doc,
		records: make(map[string]*TaskRecord, g.Len()),
		outputs: make(map[string]Outputs, g.Len()),
		waiting: make(map[string]int, g.Len()),
		ready:   make(chan string, g.Len()),
	}
}

func (e *Executor) execute(ctx context.Context, r *run) (*ResultBundle, error) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if r.policy.WorkflowTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.policy.WorkflowTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	r.cancel = cancel

	e.logger.Info(
		"workflow started",
		"workflow", r.id,
		"name", r.spec.Name,
		"tasks", r.graph.Len(),
		"mode", r.policy.FailureMode,
	)

	r.mu.Lock()
	if r.remaining == 0 {
		r.closeReady()
	}
	r.mu.Unlock()

	// When the run context dies, abandon everything that never started;
	// in-flight tasks observe cancellation themselves.
	watchDone := make(chan struct{})
	go func() {
		select {
		case <-runCtx.Done():
			r.mu.Lock()
			e.abortLocked(context.WithoutCancel(ctx), r, "run cancelled")
			r.mu.Unlock()
		case <-watchDone:
		}
	}()

	var g errgroup.Group
	g.SetLimit(r.policy.Workers)

	for id := range r.ready {
		g.Go(func() error {
			e.runTask(runCtx, r, id)
			return nil
		})
	}
	g.Wait()
	close(watchDone)

	r.mu.Lock()
	bundle := Assemble(r.id, r.spec, r.graph, r.records, r.outputs)
	firstFailure := r.firstFailure
	r.mu.Unlock()

	e.logger.Info(
		"workflow finished",
		"workflow", r.id,
		"confidence", bundle.Confidence,
		"failures", len(bundle.Failures),
	)

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return bundle, fmt.Errorf("%w: workflow %s exceeded %s", ErrTimeout, r.id, r.policy.WorkflowTimeout)
	case ctx.Err() != nil:
		return bundle, fmt.Errorf("%w: workflow %s", ErrCancelled, r.id)
	case firstFailure != nil && r.policy.FailureMode == FailFast:
		return bundle, firstFailure
	default:
		return bundle, nil
	}
}

// runTask owns the full attempt loop for one task id; a task never has more
// than one in-flight execution.
func (e *Executor) runTask(runCtx context.Context, r *run, id string) {
	spec, ok := r.spec.task(id)
	if !ok {
		e.finish(runCtx, r, id, StateFailed, fmt.Errorf("%w: task %q not in spec", ErrTaskFailed, id), Outputs{})
		return
	}

	// Correction context from failed attempts: a malformed backend response
	// is described to the next attempt instead of blindly repeating the same
	// prompt.
	var correction []string

	for {
		r.mu.Lock()
		rec := r.records[id]
		if rec.State.Terminal() {
			// Skipped while queued.
			r.mu.Unlock()
			return
		}
		if runCtx.Err() != nil {
			r.mu.Unlock()
			e.finish(runCtx, r, id, StateFailed, fmt.Errorf("%w: task %q never ran", ErrCancelled, id), Outputs{})
			return
		}

		rec.State = StateRunning
		rec.AttemptCount++
		attempt := rec.AttemptCount
		if rec.StartedAt == nil {
			now := time.Now().UTC()
			rec.StartedAt = &now
		}
		in := taskInput{doc: r.doc, tier: r.tier, deps: e.depOutputsLocked(r, id), correction: correction}
		e.checkpointLocked(runCtx, r, id)
		r.mu.Unlock()

		out, err := func() (Outputs, error) {
			taskCtx := runCtx
			if r.policy.TaskTimeout > 0 {
				var cancel context.CancelFunc
				taskCtx, cancel = context.WithTimeout(runCtx, r.policy.TaskTimeout)
				defer cancel()
			}
			return e.rt.executeTask(taskCtx, spec, in)
		}()
		if err == nil {
			e.finish(runCtx, r, id, StateCompleted, nil, out)
			return
		}

		if runCtx.Err() != nil {
			e.finish(runCtx, r, id, StateFailed, fmt.Errorf("%w: task %q: %w", ErrCancelled, id, err), Outputs{})
			return
		}

		if permanent(err) {
			e.finish(runCtx, r, id, StateFailed, fmt.Errorf("%w: task %q: %w", ErrTaskFailed, id, err), Outputs{})
			return
		}

		if attempt >= r.policy.MaxAttempts {
			e.finish(runCtx, r, id, StateFailed,
				fmt.Errorf("%w: task %q after %d attempts: %w", ErrTaskFailed, id, attempt, err), Outputs{})
			return
		}

		if errors.Is(err, reasoning.ErrParsing) {
			correction = []string{err.Error()}
		}

		backoff := r.policy.RetryBackoff << (attempt - 1)
		e.logger.Warn(
			"task attempt failed",
			"workflow", r.id,
			"task", id,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		r.mu.Lock()
		rec.State = StateRetrying
		rec.Error = err.Error()
		e.checkpointLocked(runCtx, r, id)
		r.mu.Unlock()

		select {
		case <-time.After(backoff):
		case <-runCtx.Done():
			e.finish(runCtx, r, id, StateFailed, fmt.Errorf("%w: task %q during backoff", ErrCancelled, id), Outputs{})
			return
		}
	}
}

// permanent reports errors no retry can fix: entitlement failures and
// structural defects in the request or its input.
func permanent(err error) bool {
	return errors.Is(err, registry.ErrAccessDenied) ||
		errors.Is(err, registry.ErrInvalidTier) ||
		errors.Is(err, registry.ErrUnknownModel) ||
		errors.Is(err, reasoning.ErrTemplate) ||
		errors.Is(err, ErrUnknownTaskType) ||
		errors.Is(err, ErrEmptyDocument)
}

// finish records a task's terminal state and propagates its consequences:
// completed tasks release dependents, failed tasks trigger the configured
// failure mode, and the last terminal task closes the ready queue.
func (e *Executor) finish(ctx context.Context, r *run, id string, state State, taskErr error, out Outputs) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.records[id]
	if rec.State.Terminal() {
		return
	}

	now := time.Now().UTC()
	rec.State = state
	rec.CompletedAt = &now
	if taskErr != nil {
		rec.Error = taskErr.Error()
	}

	ctx = context.WithoutCancel(ctx)

	switch state {
	case StateCompleted:
		r.outputs[id] = out
		if out.Document != nil {
			r.doc = *out.Document
		}
		if data, err := json.Marshal(out); err == nil {
			rec.Outputs = data
		}
		for _, dep := range r.graph.Dependents(id) {
			r.waiting[dep]--
			if r.waiting[dep] == 0 && !r.records[dep].State.Terminal() {
				e.enqueueLocked(ctx, r, dep)
			}
		}

	case StateFailed:
		if r.firstFailure == nil {
			r.firstFailure = taskErr
		}
		if r.policy.FailureMode == FailFast {
			e.abortLocked(ctx, r, fmt.Sprintf("aborted after task %q failed", id))
			r.cancel()
		} else {
			e.skipDependentsLocked(ctx, r, id, fmt.Sprintf("dependency %q failed", id))
		}
	}

	e.checkpointLocked(ctx, r, id)

	r.remaining--
	if r.remaining == 0 {
		r.closeReady()
	}
}

func (e *Executor) enqueueLocked(ctx context.Context, r *run, id string) {
	rec := r.records[id]
	rec.State = StateReady
	e.checkpointLocked(ctx, r, id)
	r.ready <- id
}

// skipDependentsLocked marks the failed task's entire dependent subtree
// skipped, leaving independent branches untouched.
func (e *Executor) skipDependentsLocked(ctx context.Context, r *run, failedID, cause string) {
	stack := r.graph.Dependents(failedID)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		rec := r.records[id]
		if rec.State.Terminal() || rec.State == StateRunning || rec.State == StateRetrying {
			continue
		}

		rec.State = StateSkipped
		rec.Error = cause
		e.checkpointLocked(ctx, r, id)
		r.remaining--

		stack = append(stack, r.graph.Dependents(id)...)
	}

	if r.remaining == 0 {
		r.closeReady()
	}
}

// abortLocked abandons every task that has not started running.
func (e *Executor) abortLocked(ctx context.Context, r *run, cause string) {
	for _, id := range r.graph.IDs() {
		rec := r.records[id]
		if rec.State.Terminal() || rec.State == StateRunning || rec.State == StateRetrying {
			continue
		}

		rec.State = StateSkipped
		rec.Error = cause
		e.checkpointLocked(ctx, r, id)
		r.remaining--
	}

	if r.remaining == 0 {
		r.closeReady()
	}
}

func (e *Executor) depOutputsLocked(r *run, id string) map[string]Outputs {
	deps := r.graph.Dependencies(id)
	out := make(map[string]Outputs, len(deps))
	for _, dep := range deps {
		if o, ok := r.outputs[dep]; ok {
			out[dep] = o
		}
	}
	return out
}

// checkpointLocked persists the task's current record. Checkpoint failures
// are logged, not fatal: losing resumability must not kill a healthy run.
func (e *Executor) checkpointLocked(ctx context.Context, r *run, id string) {
	rec := *r.records[id]
	if err := e.store.Save(ctx, rec); err != nil {
		e.logger.Error(
			"checkpoint write failed",
			"workflow", r.id,
			"task", id,
			"state", rec.State,
			"error", err,
		)
	}
}
