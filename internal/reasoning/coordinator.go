// Package reasoning coordinates calls to language model backends: prompt
// composition, entitlement checks, per-model concurrency bounds, and parsing
// of structured responses.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/tessera-ai/tessera/internal/extraction"
	"github.com/tessera-ai/tessera/internal/registry"
	"github.com/tessera-ai/tessera/pkg/formatting"
)

// Understanding is the structured result of the document understanding stage.
type Understanding struct {
	DocumentType    string            `json:"document_type"`
	DocumentPurpose string            `json:"document_purpose"`
	KeyEntities     map[string]string `json:"key_entities"`
	KeySections     []string          `json:"key_sections"`
	ImportantFields []string          `json:"important_fields"`
	Tables          []TableHint       `json:"tables"`
}

// TableHint is a table the understanding stage noticed in the document.
type TableHint struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
}

// Assessment is the model's review of an extraction during validation.
type Assessment struct {
	Valid       bool              `json:"valid"`
	Issues      []string          `json:"issues"`
	Corrections map[string]string `json:"corrections"`
}

// Request describes one reasoning call. Vars carry the document context;
// CallerTier is checked against the model's required tier before any backend
// work happens.
type Request struct {
	Stage      Stage
	ModelID    string
	CallerTier registry.Tier
	Vars       Vars
}

// Coordinator runs reasoning calls end to end: authorize against the
// entitlement gate, compose the stage prompt, wait for a per-model
// concurrency slot, invoke the backend under the call timeout, and parse the
// structured response.
type Coordinator struct {
	gate        *registry.Gate
	pool        *Pool
	callTimeout time.Duration
	logger      *slog.Logger
}

// NewCoordinator creates a reasoning coordinator. callTimeout bounds each
// individual backend call; zero means no per-call bound.
func NewCoordinator(gate *registry.Gate, pool *Pool, callTimeout time.Duration, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		gate:        gate,
		pool:        pool,
		callTimeout: callTimeout,
		logger:      logger.With("system", "reasoning"),
	}
}

// invoke performs the shared call pipeline and returns raw model output.
// Authorization failures surface before a backend is ever touched.
func (c *Coordinator) invoke(ctx context.Context, req Request) (string, error) {
	desc, err := c.gate.Authorize(req.CallerTier, req.ModelID)
	if err != nil {
		return "", err
	}

	prompt, err := ComposePrompt(req.Stage, req.Vars)
	if err != nil {
		return "", err
	}

	callCtx := ctx
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := c.pool.Complete(callCtx, desc, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: model %q after %s", ErrBackendTimeout, req.ModelID, c.callTimeout)
		}
		return "", err
	}

	c.logger.InfoContext(
		ctx, "backend call complete",
		"stage", req.Stage,
		"model", req.ModelID,
		"duration", time.Since(start),
	)
	return raw, nil
}

// Understand runs the document understanding stage.
func (c *Coordinator) Understand(ctx context.Context, req Request) (*Understanding, error) {
	req.Stage = StageUnderstand

	raw, err := c.invoke(ctx, req)
	if err != nil {
		return nil, err
	}

	u, err := formatting.Parse[Understanding](raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParsing, req.Stage, err)
	}
	return &u, nil
}

type fieldResponse struct {
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
	Location   string  `json:"location"`
}

// ExtractFields runs the field extraction stage against a schema. Field types
// come from the schema, not the model; confidences are clamped to [0, 1].
func (c *Coordinator) ExtractFields(ctx context.Context, req Request, schema extraction.Schema) (map[string]extraction.Field, error) {
	req.Stage = StageExtractFields
	req.Vars.FieldsToExtract = schema.Fields

	raw, err := c.invoke(ctx, req)
	if err != nil {
		return nil, err
	}

	parsed, err := formatting.Parse[map[string]fieldResponse](raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParsing, req.Stage, err)
	}

	fields := make(map[string]extraction.Field, len(parsed))
	for name, fr := range parsed {
		fieldType := extraction.TypeString
		if spec, ok := schema.Field(name); ok {
			fieldType = spec.Type
		}
		fields[name] = extraction.Field{
			Name:       name,
			Type:       fieldType,
			Value:      stringify(fr.Value),
			Confidence: clamp(fr.Confidence),
			SourceSpan: fr.Location,
		}
	}
	return fields, nil
}

type tableResponse struct {
	Headers    []string `json:"headers"`
	Rows       [][]any  `json:"rows"`
	Confidence float64  `json:"confidence"`
}

// ExtractTables runs the table extraction stage against a schema.
func (c *Coordinator) ExtractTables(ctx context.Context, req Request, schema extraction.Schema) (map[string]extraction.Table, error) {
	req.Stage = StageExtractTables
	req.Vars.TablesToExtract = schema.Tables

	raw, err := c.invoke(ctx, req)
	if err != nil {
		return nil, err
	}

	parsed, err := formatting.Parse[map[string]tableResponse](raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParsing, req.Stage, err)
	}

	tables := make(map[string]extraction.Table, len(parsed))
	for name, tr := range parsed {
		columns := make([]extraction.Column, len(tr.Headers))
		for i, h := range tr.Headers {
			columns[i] = extraction.Column{Name: h, Type: extraction.TypeString}
		}
		if spec, ok := tableSpec(schema, name); ok {
			for i := range columns {
				for _, sc := range spec.Columns {
					if sc.Name == columns[i].Name {
						columns[i].Type = sc.Type
					}
				}
			}
		}

		rows := make([][]string, len(tr.Rows))
		for i, row := range tr.Rows {
			cells := make([]string, len(row))
			for j, cell := range row {
				cells[j] = stringify(cell)
			}
			rows[i] = cells
		}

		tables[name] = extraction.Table{
			Name:       name,
			Columns:    columns,
			Rows:       rows,
			Confidence: clamp(tr.Confidence),
		}
	}
	return tables, nil
}

// Review runs the validation stage, asking the model to cross-check an
// extraction against the source document.
func (c *Coordinator) Review(ctx context.Context, req Request) (*Assessment, error) {
	req.Stage = StageValidate

	raw, err := c.invoke(ctx, req)
	if err != nil {
		return nil, err
	}

	a, err := formatting.Parse[Assessment](raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParsing, req.Stage, err)
	}
	return &a, nil
}

func tableSpec(schema extraction.Schema, name string) (extraction.TableSpec, bool) {
	for _, t := range schema.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return extraction.TableSpec{}, false
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
