package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the model catalog consumed by the entitlement gate.
// Implementations must be safe for concurrent use.
type Registry interface {
	// Lookup returns the descriptor for a model id.
	// Returns ErrUnknownModel if the model is not registered.
	Lookup(modelID string) (*ModelDescriptor, error)
	// IsReady reports whether the model's backend can serve calls right now.
	IsReady(modelID string) bool
	// ListForTier returns the descriptors callable at the given tier,
	// sorted by id.
	ListForTier(tier Tier) []ModelDescriptor
}

// Model is one registry catalog entry: an immutable descriptor plus its
// mutable readiness flag.
type Model struct {
	Descriptor ModelDescriptor
	Ready      bool
}

type static struct {
	mu     sync.RWMutex
	models map[string]*Model
}

// NewStatic builds a registry from a fixed catalog. Duplicate ids, invalid
// tiers, and unknown backend kinds are rejected.
func NewStatic(models []Model) (Registry, error) {
	byID := make(map[string]*Model, len(models))

	for _, m := range models {
		d := m.Descriptor
		if d.ID == "" {
			return nil, fmt.Errorf("%w: model id is required", ErrUnknownModel)
		}
		if _, exists := byID[d.ID]; exists {
			return nil, fmt.Errorf("duplicate model id %q", d.ID)
		}
		if !d.TierRequired.Valid() {
			return nil, fmt.Errorf("model %q: %w: %q", d.ID, ErrInvalidTier, d.TierRequired)
		}
		switch d.Backend {
		case BackendLocal, BackendCloud, BackendMock:
		default:
			return nil, fmt.Errorf("model %q: unknown backend kind %q", d.ID, d.Backend)
		}
		if d.MaxConcurrency <= 0 {
			d.MaxConcurrency = 1
		}

		entry := m
		entry.Descriptor = d
		byID[d.ID] = &entry
	}

	return &static{models: byID}, nil
}

func (r *static) Lookup(modelID string) (*ModelDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[modelID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, modelID)
	}

	d := m.Descriptor
	return &d, nil
}

func (r *static) IsReady(modelID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[modelID]
	return ok && m.Ready
}

func (r *static) ListForTier(tier Tier) []ModelDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []ModelDescriptor
	for _, m := range r.models {
		if tier.Covers(m.Descriptor.TierRequired) {
			out = append(out, m.Descriptor)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetReady updates a model's readiness flag, e.g. after a download completes.
// Unknown ids are ignored.
func SetReady(r Registry, modelID string, ready bool) {
	s, ok := r.(*static)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m, exists := s.models[modelID]; exists {
		m.Ready = ready
	}
}
