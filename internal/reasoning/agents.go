package reasoning

import (
	"context"
	"fmt"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/tessera-ai/tessera/internal/registry"
)

// agentBackend serves one model through a go-agents provider. Agents are
// created per call; providers hold no connection state worth pooling and a
// fresh agent avoids shared-history bleed between tasks.
type agentBackend struct {
	modelID string
	config  gaconfig.AgentConfig
}

func newAgentBackend(desc registry.ModelDescriptor, provider *gaconfig.ProviderConfig) *agentBackend {
	// The provider config is shared across models; copy it before binding
	// this backend's model to it.
	p := *provider
	p.Model = &gaconfig.ModelConfig{Name: desc.ID}

	return &agentBackend{
		modelID: desc.ID,
		config: gaconfig.AgentConfig{
			Name: desc.ID,
			Transport: &gaconfig.TransportConfig{
				Provider: &p,
			},
		},
	}
}

func (b *agentBackend) ModelID() string { return b.modelID }

func (b *agentBackend) Complete(ctx context.Context, prompt string) (string, error) {
	a, err := agent.New(&b.config)
	if err != nil {
		return "", fmt.Errorf("%w: create agent for %q: %w", ErrBackendFailed, b.modelID, err)
	}

	resp, err := a.Chat(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %q: %w", ErrBackendFailed, b.modelID, err)
	}

	return resp.Content(), nil
}

// NewBackendFactory routes model descriptors to provider configurations by
// backend kind: local models talk to the local runtime provider, cloud
// models to the remote provider, and mock models serve canned fixtures.
func NewBackendFactory(local, cloud *gaconfig.ProviderConfig) Factory {
	return func(desc registry.ModelDescriptor) (Backend, error) {
		switch desc.Backend {
		case registry.BackendLocal:
			if local == nil {
				return nil, fmt.Errorf("model %q requires a local provider, none configured", desc.ID)
			}
			return newAgentBackend(desc, local), nil
		case registry.BackendCloud:
			if cloud == nil {
				return nil, fmt.Errorf("model %q requires a cloud provider, none configured", desc.ID)
			}
			return newAgentBackend(desc, cloud), nil
		case registry.BackendMock:
			return NewMock(desc.ID), nil
		default:
			return nil, fmt.Errorf("model %q: unknown backend kind %q", desc.ID, desc.Backend)
		}
	}
}
