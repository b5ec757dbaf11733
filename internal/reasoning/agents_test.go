package reasoning

import (
	"testing"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/tessera-ai/tessera/internal/registry"
)

func localProvider() *gaconfig.ProviderConfig {
	return &gaconfig.ProviderConfig{
		Name:    "ollama",
		BaseURL: "http://localhost:11434",
		Options: map[string]any{},
	}
}

func TestNewAgentBackendBindsModelToProviderCopy(t *testing.T) {
	provider := localProvider()

	b := newAgentBackend(registry.ModelDescriptor{
		ID:      "phi-4-multimodal",
		Backend: registry.BackendLocal,
	}, provider)

	if b.config.Transport == nil || b.config.Transport.Provider == nil {
		t.Fatal("agent config missing transport provider")
	}

	bound := b.config.Transport.Provider
	if bound.Model == nil || bound.Model.Name != "phi-4-multimodal" {
		t.Errorf("transport provider model = %+v, want phi-4-multimodal", bound.Model)
	}
	if bound.Name != "ollama" || bound.BaseURL != "http://localhost:11434" {
		t.Errorf("transport provider lost endpoint settings: %+v", bound)
	}

	// The shared provider config must stay model-free.
	if provider.Model != nil {
		t.Errorf("shared provider config mutated: model = %+v", provider.Model)
	}
}

func TestNewAgentBackendIsolatesModelsPerBackend(t *testing.T) {
	provider := localProvider()

	a := newAgentBackend(registry.ModelDescriptor{ID: "llama-3-8b"}, provider)
	b := newAgentBackend(registry.ModelDescriptor{ID: "mistral-7b"}, provider)

	if got := a.config.Transport.Provider.Model.Name; got != "llama-3-8b" {
		t.Errorf("first backend model = %q, want llama-3-8b", got)
	}
	if got := b.config.Transport.Provider.Model.Name; got != "mistral-7b" {
		t.Errorf("second backend model = %q, want mistral-7b", got)
	}
}

func TestNewBackendFactoryRouting(t *testing.T) {
	factory := NewBackendFactory(localProvider(), nil)

	tests := []struct {
		name    string
		desc    registry.ModelDescriptor
		wantErr bool
	}{
		{"local", registry.ModelDescriptor{ID: "phi-4-multimodal", Backend: registry.BackendLocal}, false},
		{"mock", registry.ModelDescriptor{ID: "test-model", Backend: registry.BackendMock}, false},
		{"cloud unconfigured", registry.ModelDescriptor{ID: "gpt-4o", Backend: registry.BackendCloud}, true},
		{"unknown kind", registry.ModelDescriptor{ID: "x", Backend: registry.BackendKind("quantum")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := factory(tt.desc)
			if tt.wantErr {
				if err == nil {
					t.Fatal("factory succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("factory error = %v", err)
			}
			if b.ModelID() != tt.desc.ID {
				t.Errorf("ModelID() = %q, want %q", b.ModelID(), tt.desc.ID)
			}
		})
	}
}
