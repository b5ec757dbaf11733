// Package registry implements the model registry and the tier-based
// entitlement gate that decides which reasoning backends a caller may invoke.
package registry

import (
	"encoding/json"
	"slices"
)

// Tier is a caller entitlement level bounding which models may be invoked.
type Tier string

// Entitlement tiers, ordered lite < standard < professional.
const (
	TierLite         Tier = "lite"
	TierStandard     Tier = "standard"
	TierProfessional Tier = "professional"
)

var tiers = []Tier{
	TierLite,
	TierStandard,
	TierProfessional,
}

// Tiers returns the valid tiers in ascending order.
func Tiers() []Tier {
	return slices.Clone(tiers)
}

// rank returns the tier's position in the total order; -1 for unknown tiers.
func (t Tier) rank() int {
	return slices.Index(tiers, t)
}

// Valid reports whether the tier is a known entitlement level.
func (t Tier) Valid() bool {
	return t.rank() >= 0
}

// Covers reports whether a caller at tier t may use a model requiring the
// given tier. Unknown tiers never cover anything.
func (t Tier) Covers(required Tier) bool {
	tr, rr := t.rank(), required.rank()
	return tr >= 0 && rr >= 0 && rr <= tr
}

// ParseTier validates a string as a known tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(s)
	if !t.Valid() {
		return "", ErrInvalidTier
	}
	return t, nil
}

// UnmarshalJSON validates that the decoded string is a known tier.
func (t *Tier) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v := Tier(raw)
	if !v.Valid() {
		return ErrInvalidTier
	}
	*t = v
	return nil
}
