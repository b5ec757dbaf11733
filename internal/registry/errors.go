package registry

import "errors"

// Sentinel errors for registry and entitlement operations.
var (
	// ErrInvalidTier indicates an unrecognized entitlement tier value.
	ErrInvalidTier = errors.New("invalid tier")
	// ErrUnknownModel indicates the requested model is not registered.
	ErrUnknownModel = errors.New("unknown model")
	// ErrAccessDenied indicates the caller's tier does not cover the model.
	// Permanent for the duration of a run; never retried.
	ErrAccessDenied = errors.New("access denied")
	// ErrModelUnavailable indicates the model exists and is entitled but is
	// not ready to serve (e.g. still downloading). Eligible for delayed retry.
	ErrModelUnavailable = errors.New("model unavailable")
)
