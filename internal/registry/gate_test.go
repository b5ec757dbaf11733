package registry_test

import (
	"errors"
	"testing"

	"github.com/tessera-ai/tessera/internal/registry"
)

func testRegistry(t *testing.T) registry.Registry {
	t.Helper()

	r, err := registry.NewStatic([]registry.Model{
		{
			Descriptor: registry.ModelDescriptor{
				ID:           "phi-4-multimodal",
				TierRequired: registry.TierStandard,
				Version:      "Q4_K_M",
				Backend:      registry.BackendLocal,
			},
			Ready: true,
		},
		{
			Descriptor: registry.ModelDescriptor{
				ID:           "llama-3-8b",
				TierRequired: registry.TierProfessional,
				Version:      "Q4_K_M",
				Backend:      registry.BackendLocal,
			},
			Ready: true,
		},
		{
			Descriptor: registry.ModelDescriptor{
				ID:           "mistral-7b",
				TierRequired: registry.TierProfessional,
				Version:      "v0.1",
				Backend:      registry.BackendLocal,
			},
			Ready: false,
		},
	})
	if err != nil {
		t.Fatalf("NewStatic() error = %v", err)
	}
	return r
}

func TestAuthorizeTierMonotonicity(t *testing.T) {
	gate := registry.NewGate(testRegistry(t))

	tests := []struct {
		name    string
		caller  registry.Tier
		modelID string
		want    error
	}{
		{"lite denied standard model", registry.TierLite, "phi-4-multimodal", registry.ErrAccessDenied},
		{"lite denied professional model", registry.TierLite, "llama-3-8b", registry.ErrAccessDenied},
		{"standard allowed standard model", registry.TierStandard, "phi-4-multimodal", nil},
		{"standard denied professional model", registry.TierStandard, "llama-3-8b", registry.ErrAccessDenied},
		{"professional allowed standard model", registry.TierProfessional, "phi-4-multimodal", nil},
		{"professional allowed professional model", registry.TierProfessional, "llama-3-8b", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc, err := gate.Authorize(tt.caller, tt.modelID)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Authorize() error = %v, want nil", err)
				}
				if desc.ID != tt.modelID {
					t.Errorf("Authorize() descriptor id = %q, want %q", desc.ID, tt.modelID)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("Authorize() error = %v, want %v", err, tt.want)
			}
			if desc != nil {
				t.Error("Authorize() returned a descriptor alongside an error")
			}
		})
	}
}

func TestAuthorizeUnknownModel(t *testing.T) {
	gate := registry.NewGate(testRegistry(t))

	if _, err := gate.Authorize(registry.TierProfessional, "gpt-x"); !errors.Is(err, registry.ErrUnknownModel) {
		t.Errorf("Authorize() error = %v, want ErrUnknownModel", err)
	}
}

func TestAuthorizeUnavailableModel(t *testing.T) {
	gate := registry.NewGate(testRegistry(t))

	_, err := gate.Authorize(registry.TierProfessional, "mistral-7b")
	if !errors.Is(err, registry.ErrModelUnavailable) {
		t.Fatalf("Authorize() error = %v, want ErrModelUnavailable", err)
	}
	if errors.Is(err, registry.ErrAccessDenied) {
		t.Error("unavailability must be distinct from denial")
	}
}

func TestAuthorizeDenialPrecedesReadiness(t *testing.T) {
	// An unentitled caller must see AccessDenied even when the model is
	// also not ready.
	gate := registry.NewGate(testRegistry(t))

	_, err := gate.Authorize(registry.TierStandard, "mistral-7b")
	if !errors.Is(err, registry.ErrAccessDenied) {
		t.Errorf("Authorize() error = %v, want ErrAccessDenied", err)
	}
}

func TestAuthorizeInvalidTier(t *testing.T) {
	gate := registry.NewGate(testRegistry(t))

	if _, err := gate.Authorize(registry.Tier("platinum"), "phi-4-multimodal"); !errors.Is(err, registry.ErrInvalidTier) {
		t.Errorf("Authorize() error = %v, want ErrInvalidTier", err)
	}
}

func TestListForTier(t *testing.T) {
	r := testRegistry(t)

	tests := []struct {
		tier registry.Tier
		want []string
	}{
		{registry.TierLite, nil},
		{registry.TierStandard, []string{"phi-4-multimodal"}},
		{registry.TierProfessional, []string{"llama-3-8b", "mistral-7b", "phi-4-multimodal"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.tier), func(t *testing.T) {
			got := r.ListForTier(tt.tier)
			if len(got) != len(tt.want) {
				t.Fatalf("ListForTier(%s) returned %d models, want %d", tt.tier, len(got), len(tt.want))
			}
			for i, d := range got {
				if d.ID != tt.want[i] {
					t.Errorf("ListForTier(%s)[%d] = %q, want %q", tt.tier, i, d.ID, tt.want[i])
				}
			}
		})
	}
}

func TestSetReady(t *testing.T) {
	r := testRegistry(t)

	if r.IsReady("mistral-7b") {
		t.Fatal("mistral-7b should start unready")
	}

	registry.SetReady(r, "mistral-7b", true)
	if !r.IsReady("mistral-7b") {
		t.Error("SetReady did not mark the model ready")
	}
}

func TestTierCovers(t *testing.T) {
	tests := []struct {
		caller   registry.Tier
		required registry.Tier
		want     bool
	}{
		{registry.TierLite, registry.TierLite, true},
		{registry.TierLite, registry.TierStandard, false},
		{registry.TierStandard, registry.TierLite, true},
		{registry.TierStandard, registry.TierProfessional, false},
		{registry.TierProfessional, registry.TierLite, true},
		{registry.TierProfessional, registry.TierProfessional, true},
		{registry.Tier("bogus"), registry.TierLite, false},
	}

	for _, tt := range tests {
		if got := tt.caller.Covers(tt.required); got != tt.want {
			t.Errorf("%s.Covers(%s) = %v, want %v", tt.caller, tt.required, got, tt.want)
		}
	}
}
