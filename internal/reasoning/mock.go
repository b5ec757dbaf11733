package reasoning

import (
	"context"
	"strings"
	"sync"
)

// Mock is a deterministic in-process backend. With no script it infers the
// stage from the prompt's instruction block and returns a fixed, well-formed
// fixture for it; a script overrides responses in order. Every prompt is
// recorded, so tests can assert on what reached the backend.
type Mock struct {
	id string

	mu        sync.Mutex
	script    []string
	scriptErr error
	calls     []string
}

// NewMock creates a mock backend serving canned fixtures for the model id.
func NewMock(id string) *Mock {
	return &Mock{id: id}
}

// Script queues responses returned in order before falling back to fixtures.
func (m *Mock) Script(responses ...string) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, responses...)
	return m
}

// Fail makes every subsequent call return err.
func (m *Mock) Fail(err error) *Mock {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scriptErr = err
	return m
}

// Calls returns the prompts received so far.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *Mock) ModelID() string { return m.id }

func (m *Mock) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, prompt)

	if m.scriptErr != nil {
		return "", m.scriptErr
	}
	if len(m.script) > 0 {
		resp := m.script[0]
		m.script = m.script[1:]
		return resp, nil
	}

	return fixtureFor(prompt), nil
}

func fixtureFor(prompt string) string {
	switch {
	case strings.Contains(prompt, "understand its structure"):
		return mockUnderstanding
	case strings.Contains(prompt, "extracts tables"):
		return mockTables
	case strings.Contains(prompt, "extracts information"):
		return mockFields
	case strings.Contains(prompt, "validates extracted"):
		return mockAssessment
	default:
		return "{}"
	}
}

const mockUnderstanding = `{
  "document_type": "invoice",
  "document_purpose": "Request for payment for goods or services",
  "key_entities": {"vendor": "Acme Corporation", "customer": "Widget Industries"},
  "key_sections": ["header", "line items", "totals"],
  "important_fields": ["invoice_number", "date", "total_amount", "vendor_name", "customer_name"],
  "tables": [{"name": "line_items", "columns": ["description", "quantity", "unit_price", "total"]}]
}`

const mockFields = `{
  "invoice_number": {"value": "INV-2025-0042", "confidence": 0.95, "location": "page 1, header"},
  "date": {"value": "2025-11-03", "confidence": 0.92, "location": "page 1, header"},
  "total_amount": {"value": "$1,250.00", "confidence": 0.9, "location": "page 1, totals"},
  "vendor_name": {"value": "Acme Corporation", "confidence": 0.97, "location": "page 1, header"},
  "customer_name": {"value": "Widget Industries", "confidence": 0.94, "location": "page 1, header"}
}`

const mockTables = `{
  "line_items": {
    "headers": ["description", "quantity", "unit_price", "total"],
    "rows": [
      ["Widget A", "10", "$50.00", "$500.00"],
      ["Widget B", "15", "$50.00", "$750.00"]
    ],
    "confidence": 0.88
  }
}`

const mockAssessment = `{
  "valid": true,
  "issues": [],
  "corrections": {}
}`
