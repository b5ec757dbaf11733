package registry

import "fmt"

// Gate authorizes (caller tier, model) pairs against the registry's tier
// hierarchy. Authorization is a pure, synchronous decision with no retry
// logic; unavailability is reported upward for the executor's retry policy.
type Gate struct {
	registry Registry
}

// NewGate creates an entitlement gate over the given registry.
func NewGate(r Registry) *Gate {
	return &Gate{registry: r}
}

// Authorize resolves the descriptor for modelID if the caller's tier covers
// the model's required tier.
//
// A caller at tier T may use any model whose tier_required <= T under
// lite < standard < professional. Denial is reported before readiness is
// consulted, so an unentitled caller learns nothing about download state.
func (g *Gate) Authorize(callerTier Tier, modelID string) (*ModelDescriptor, error) {
	if !callerTier.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTier, callerTier)
	}

	desc, err := g.registry.Lookup(modelID)
	if err != nil {
		return nil, err
	}

	if !callerTier.Covers(desc.TierRequired) {
		return nil, fmt.Errorf(
			"%w: model %q requires tier %s, caller is %s",
			ErrAccessDenied, modelID, desc.TierRequired, callerTier,
		)
	}

	if !g.registry.IsReady(modelID) {
		return nil, fmt.Errorf("%w: %q is not ready", ErrModelUnavailable, modelID)
	}

	return desc, nil
}
