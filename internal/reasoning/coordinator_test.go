package reasoning_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tessera-ai/tessera/internal/extraction"
	"github.com/tessera-ai/tessera/internal/reasoning"
	"github.com/tessera-ai/tessera/internal/registry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCatalog(t *testing.T) registry.Registry {
	t.Helper()

	r, err := registry.NewStatic([]registry.Model{
		{
			Descriptor: registry.ModelDescriptor{
				ID:           "phi-4-multimodal",
				TierRequired: registry.TierStandard,
				Backend:      registry.BackendMock,
			},
			Ready: true,
		},
		{
			Descriptor: registry.ModelDescriptor{
				ID:             "llama-3-8b",
				TierRequired:   registry.TierProfessional,
				Backend:        registry.BackendMock,
				MaxConcurrency: 1,
			},
			Ready: true,
		},
	})
	if err != nil {
		t.Fatalf("NewStatic() error = %v", err)
	}
	return r
}

// countingFactory wraps a factory and records how many backends it created.
type countingFactory struct {
	inner   reasoning.Factory
	created atomic.Int64
}

func (f *countingFactory) factory(desc registry.ModelDescriptor) (reasoning.Backend, error) {
	f.created.Add(1)
	return f.inner(desc)
}

func newTestCoordinator(t *testing.T, factory reasoning.Factory, timeout time.Duration) *reasoning.Coordinator {
	t.Helper()
	gate := registry.NewGate(testCatalog(t))
	return reasoning.NewCoordinator(gate, reasoning.NewPool(factory), timeout, discardLogger())
}

func TestUnderstandParsesMockFixture(t *testing.T) {
	c := newTestCoordinator(t, reasoning.NewBackendFactory(nil, nil), 0)

	u, err := c.Understand(context.Background(), reasoning.Request{
		ModelID:    "phi-4-multimodal",
		CallerTier: registry.TierStandard,
		Vars:       reasoning.Vars{DocumentText: "INVOICE INV-2025-0042"},
	})
	if err != nil {
		t.Fatalf("Understand() error = %v", err)
	}

	if u.DocumentType != "invoice" {
		t.Errorf("DocumentType = %q, want %q", u.DocumentType, "invoice")
	}
	if len(u.Tables) == 0 || u.Tables[0].Name != "line_items" {
		t.Errorf("Tables = %+v, want line_items hint", u.Tables)
	}
}

func TestExtractFieldsAppliesSchemaTypes(t *testing.T) {
	c := newTestCoordinator(t, reasoning.NewBackendFactory(nil, nil), 0)
	schema := extraction.SchemaFor("invoice")

	fields, err := c.ExtractFields(context.Background(), reasoning.Request{
		ModelID:    "phi-4-multimodal",
		CallerTier: registry.TierStandard,
		Vars:       reasoning.Vars{DocumentText: "INVOICE INV-2025-0042"},
	}, schema)
	if err != nil {
		t.Fatalf("ExtractFields() error = %v", err)
	}

	total, ok := fields["total_amount"]
	if !ok {
		t.Fatal("total_amount missing from extraction")
	}
	if total.Type != extraction.TypeCurrency {
		t.Errorf("total_amount type = %q, want %q", total.Type, extraction.TypeCurrency)
	}
	if total.Confidence < 0 || total.Confidence > 1 {
		t.Errorf("confidence %v outside [0, 1]", total.Confidence)
	}
}

func TestAccessDeniedSkipsBackend(t *testing.T) {
	f := &countingFactory{inner: reasoning.NewBackendFactory(nil, nil)}
	c := newTestCoordinator(t, f.factory, 0)

	_, err := c.Understand(context.Background(), reasoning.Request{
		ModelID:    "llama-3-8b",
		CallerTier: registry.TierStandard,
		Vars:       reasoning.Vars{DocumentText: "text"},
	})
	if !errors.Is(err, registry.ErrAccessDenied) {
		t.Fatalf("Understand() error = %v, want ErrAccessDenied", err)
	}
	if f.created.Load() != 0 {
		t.Errorf("backend instantiated %d times for a denied call, want 0", f.created.Load())
	}
}

func TestMalformedResponseIsParsingError(t *testing.T) {
	mock := reasoning.NewMock("phi-4-multimodal").Script("the model rambled with no structure")
	c := newTestCoordinator(t, func(registry.ModelDescriptor) (reasoning.Backend, error) {
		return mock, nil
	}, 0)

	_, err := c.Understand(context.Background(), reasoning.Request{
		ModelID:    "phi-4-multimodal",
		CallerTier: registry.TierStandard,
		Vars:       reasoning.Vars{DocumentText: "text"},
	})
	if !errors.Is(err, reasoning.ErrParsing) {
		t.Errorf("Understand() error = %v, want ErrParsing", err)
	}
}

// blockingBackend parks until its context is done.
type blockingBackend struct{ id string }

func (b *blockingBackend) ModelID() string { return b.id }

func (b *blockingBackend) Complete(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestCallTimeout(t *testing.T) {
	c := newTestCoordinator(t, func(desc registry.ModelDescriptor) (reasoning.Backend, error) {
		return &blockingBackend{id: desc.ID}, nil
	}, 20*time.Millisecond)

	_, err := c.Understand(context.Background(), reasoning.Request{
		ModelID:    "phi-4-multimodal",
		CallerTier: registry.TierStandard,
		Vars:       reasoning.Vars{DocumentText: "text"},
	})
	if !errors.Is(err, reasoning.ErrBackendTimeout) {
		t.Errorf("Understand() error = %v, want ErrBackendTimeout", err)
	}
}

func TestCancellationIsNotTimeout(t *testing.T) {
	c := newTestCoordinator(t, func(desc registry.ModelDescriptor) (reasoning.Backend, error) {
		return &blockingBackend{id: desc.ID}, nil
	}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := c.Understand(ctx, reasoning.Request{
		ModelID:    "phi-4-multimodal",
		CallerTier: registry.TierStandard,
		Vars:       reasoning.Vars{DocumentText: "text"},
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Understand() error = %v, want context.Canceled", err)
	}
}

// gaugeBackend tracks in-flight calls so tests can observe the pool's
// concurrency bound.
type gaugeBackend struct {
	id       string
	inflight atomic.Int64
	max      atomic.Int64
}

func (b *gaugeBackend) ModelID() string { return b.id }

func (b *gaugeBackend) Complete(ctx context.Context, _ string) (string, error) {
	n := b.inflight.Add(1)
	for {
		prev := b.max.Load()
		if n <= prev || b.max.CompareAndSwap(prev, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	b.inflight.Add(-1)
	return "{}", nil
}

func TestPoolBoundsPerModelConcurrency(t *testing.T) {
	backend := &gaugeBackend{id: "llama-3-8b"}
	pool := reasoning.NewPool(func(registry.ModelDescriptor) (reasoning.Backend, error) {
		return backend, nil
	})

	desc := &registry.ModelDescriptor{ID: "llama-3-8b", MaxConcurrency: 1}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := pool.Complete(context.Background(), desc, "prompt"); err != nil {
				t.Errorf("Complete() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := backend.max.Load(); got > 1 {
		t.Errorf("max in-flight calls = %d, want at most 1", got)
	}
}

func TestPoolReusesBackendInstance(t *testing.T) {
	f := &countingFactory{inner: func(desc registry.ModelDescriptor) (reasoning.Backend, error) {
		return reasoning.NewMock(desc.ID), nil
	}}
	pool := reasoning.NewPool(f.factory)

	desc := &registry.ModelDescriptor{ID: "phi-4-multimodal", MaxConcurrency: 2}
	for range 3 {
		if _, err := pool.Complete(context.Background(), desc, "prompt"); err != nil {
			t.Fatalf("Complete() error = %v", err)
		}
	}

	if f.created.Load() != 1 {
		t.Errorf("factory invoked %d times, want 1", f.created.Load())
	}
}

func TestReviewParsesMockFixture(t *testing.T) {
	c := newTestCoordinator(t, reasoning.NewBackendFactory(nil, nil), 0)

	a, err := c.Review(context.Background(), reasoning.Request{
		ModelID:    "phi-4-multimodal",
		CallerTier: registry.TierStandard,
		Vars: reasoning.Vars{
			DocumentText:    "INVOICE INV-2025-0042",
			ExtractedFields: map[string]string{"invoice_number": "INV-2025-0042"},
		},
	})
	if err != nil {
		t.Fatalf("Review() error = %v", err)
	}

	if !a.Valid {
		t.Error("Valid = false, want true")
	}
	if len(a.Issues) != 0 {
		t.Errorf("Issues = %v, want none", a.Issues)
	}
}

func TestReviewRequiresExtractedFields(t *testing.T) {
	c := newTestCoordinator(t, reasoning.NewBackendFactory(nil, nil), 0)

	_, err := c.Review(context.Background(), reasoning.Request{
		ModelID:    "phi-4-multimodal",
		CallerTier: registry.TierStandard,
		Vars:       reasoning.Vars{DocumentText: "INVOICE INV-2025-0042"},
	})
	if !errors.Is(err, reasoning.ErrTemplate) {
		t.Fatalf("Review() error = %v, want ErrTemplate", err)
	}
}
