package registry

// BackendKind selects which reasoning backend variant serves a model.
type BackendKind string

// Backend variants.
const (
	BackendLocal BackendKind = "local"
	BackendCloud BackendKind = "cloud"
	BackendMock  BackendKind = "mock"
)

// ModelDescriptor describes a registered reasoning model. Descriptors are
// immutable once registered; readiness is tracked by the registry, not here.
type ModelDescriptor struct {
	ID             string      `json:"id"`
	TierRequired   Tier        `json:"tier_required"`
	Version        string      `json:"version"`
	CapabilityTags []string    `json:"capability_tags"`
	Backend        BackendKind `json:"backend"`

	// MaxConcurrency bounds simultaneous calls to this model's backend
	// instance. Memory-bound local models typically run at 1.
	MaxConcurrency int `json:"max_concurrency"`
}
