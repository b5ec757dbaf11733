package reasoning

import "errors"

// Sentinel errors for reasoning operations. Template, timeout, and parsing
// failures are distinct so the executor's retry policy can treat them
// differently from entitlement errors.
var (
	// ErrTemplate indicates prompt composition failed, e.g. a required
	// variable was missing. Not a backend error.
	ErrTemplate = errors.New("prompt template error")
	// ErrBackendTimeout indicates the per-call backend timeout elapsed.
	// Retried by the workflow executor, never internally.
	ErrBackendTimeout = errors.New("reasoning backend timeout")
	// ErrParsing indicates the backend produced output that does not conform
	// to the expected schema. Eligible for retry with the parse failure fed
	// back as correction context.
	ErrParsing = errors.New("malformed backend response")
	// ErrBackendFailed wraps transport or model failures from a backend call.
	ErrBackendFailed = errors.New("reasoning backend call failed")
)
