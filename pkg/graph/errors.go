package graph

import "errors"

// Sentinel errors for graph construction. All are fatal before execution.
var (
	ErrEmpty             = errors.New("workflow has no tasks")
	ErrDuplicateTask     = errors.New("duplicate task id")
	ErrMissingDependency = errors.New("missing dependency")
	ErrCyclic            = errors.New("dependency cycle detected")
)
