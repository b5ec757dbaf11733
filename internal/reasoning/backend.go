package reasoning

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/tessera-ai/tessera/internal/registry"
)

// Backend is a single reasoning model endpoint. Implementations must be safe
// for concurrent use; the pool bounds concurrency, backends do not.
type Backend interface {
	// ModelID returns the registry id this backend serves.
	ModelID() string
	// Complete sends a prompt and returns the raw model output.
	Complete(ctx context.Context, prompt string) (string, error)
}

// Factory instantiates a backend for a model descriptor. Called at most once
// per model, on first authorized use.
type Factory func(desc registry.ModelDescriptor) (Backend, error)

type poolEntry struct {
	backend Backend
	sem     *semaphore.Weighted
}

// Pool lazily instantiates one backend per model and bounds in-flight calls
// per model with a weighted semaphore sized by the descriptor's
// MaxConcurrency. Backends are never created for calls that fail
// authorization, since the coordinator only reaches the pool with a resolved
// descriptor.
type Pool struct {
	factory Factory

	mu      sync.Mutex
	entries map[string]*poolEntry
}

// NewPool creates a backend pool over the given factory.
func NewPool(factory Factory) *Pool {
	return &Pool{
		factory: factory,
		entries: make(map[string]*poolEntry),
	}
}

func (p *Pool) entry(desc *registry.ModelDescriptor) (*poolEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if e, ok := p.entries[desc.ID]; ok {
		return e, nil
	}

	b, err := p.factory(*desc)
	if err != nil {
		return nil, fmt.Errorf("create backend for %q: %w", desc.ID, err)
	}

	limit := desc.MaxConcurrency
	if limit <= 0 {
		limit = 1
	}

	e := &poolEntry{
		backend: b,
		sem:     semaphore.NewWeighted(int64(limit)),
	}
	p.entries[desc.ID] = e
	return e, nil
}

// Complete runs one call against the model's backend, waiting for a
// concurrency slot first. Slot waiting respects ctx cancellation.
func (p *Pool) Complete(ctx context.Context, desc *registry.ModelDescriptor, prompt string) (string, error) {
	e, err := p.entry(desc)
	if err != nil {
		return "", err
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire slot for %q: %w", desc.ID, err)
	}
	defer e.sem.Release(1)

	return e.backend.Complete(ctx, prompt)
}
