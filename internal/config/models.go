package config

import (
	"fmt"

	"github.com/tessera-ai/tessera/internal/registry"
)

// ModelEntry declares one model in the catalog.
type ModelEntry struct {
	ID             string   `toml:"id"`
	Tier           string   `toml:"tier"`
	Version        string   `toml:"version"`
	CapabilityTags []string `toml:"capability_tags"`
	Backend        string   `toml:"backend"`
	MaxConcurrency int      `toml:"max_concurrency"`
	Ready          bool     `toml:"ready"`
}

// defaultModels is the baseline catalog: one multimodal model at the
// standard tier and two heavier text models gated behind professional.
func defaultModels() []ModelEntry {
	return []ModelEntry{
		{
			ID:             "phi-4-multimodal",
			Tier:           string(registry.TierStandard),
			Version:        "Q4_K_M",
			CapabilityTags: []string{"text", "vision"},
			Backend:        string(registry.BackendLocal),
			MaxConcurrency: 1,
			Ready:          true,
		},
		{
			ID:             "llama-3-8b",
			Tier:           string(registry.TierProfessional),
			Version:        "Q4_K_M",
			CapabilityTags: []string{"text"},
			Backend:        string(registry.BackendLocal),
			MaxConcurrency: 1,
			Ready:          true,
		},
		{
			ID:             "mistral-7b",
			Tier:           string(registry.TierProfessional),
			Version:        "v0.1",
			CapabilityTags: []string{"text"},
			Backend:        string(registry.BackendLocal),
			MaxConcurrency: 1,
			Ready:          true,
		},
	}
}

func (c *Config) finalizeModels() error {
	if len(c.Models) == 0 {
		c.Models = defaultModels()
	}
	for i, m := range c.Models {
		if m.ID == "" {
			return fmt.Errorf("model %d: id is required", i)
		}
		if !registry.Tier(m.Tier).Valid() {
			return fmt.Errorf("model %q: invalid tier %q", m.ID, m.Tier)
		}
	}
	return nil
}

// Registry converts the catalog into registry entries.
func (c *Config) Registry() []registry.Model {
	models := make([]registry.Model, len(c.Models))
	for i, m := range c.Models {
		models[i] = registry.Model{
			Descriptor: registry.ModelDescriptor{
				ID:             m.ID,
				TierRequired:   registry.Tier(m.Tier),
				Version:        m.Version,
				CapabilityTags: m.CapabilityTags,
				Backend:        registry.BackendKind(m.Backend),
				MaxConcurrency: m.MaxConcurrency,
			},
			Ready: m.Ready,
		}
	}
	return models
}
