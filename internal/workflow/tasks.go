package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tessera-ai/tessera/internal/extraction"
	"github.com/tessera-ai/tessera/internal/reasoning"
	"github.com/tessera-ai/tessera/internal/registry"
	"github.com/tessera-ai/tessera/internal/validation"
)

// Outputs is the typed result of one task, visible to dependents only after
// the task completes. The same shape is serialized into checkpoint records.
type Outputs struct {
	Document      *extraction.Document        `json:"document,omitempty"`
	DocumentType  string                      `json:"document_type,omitempty"`
	Understanding *reasoning.Understanding    `json:"understanding,omitempty"`
	Fields        map[string]extraction.Field `json:"fields,omitempty"`
	Tables        map[string]extraction.Table `json:"tables,omitempty"`
	Report        *validation.Report          `json:"report,omitempty"`
}

// Runtime bundles the collaborators task handlers call into.
type Runtime struct {
	Coordinator *reasoning.Coordinator
	Validator   *validation.Validator
	Logger      *slog.Logger
}

// NewRuntime creates a task runtime.
func NewRuntime(coordinator *reasoning.Coordinator, validator *validation.Validator, logger *slog.Logger) *Runtime {
	return &Runtime{
		Coordinator: coordinator,
		Validator:   validator,
		Logger:      logger.With("system", "workflow"),
	}
}

// taskInput is what the executor hands a task handler: the run document,
// the caller's tier, the outputs of the task's direct dependencies, and any
// correction context carried over from a failed prior attempt.
type taskInput struct {
	doc        extraction.Document
	tier       registry.Tier
	deps       map[string]Outputs
	correction []string
}

// documentType resolves the best-known document type: dependency outputs
// first, then the document's own hint, then generic.
func (in taskInput) documentType() string {
	for _, out := range in.deps {
		if out.DocumentType != "" {
			return out.DocumentType
		}
	}
	if in.doc.TypeHint != "" {
		return in.doc.TypeHint
	}
	return "generic"
}

func (in taskInput) understanding() *reasoning.Understanding {
	for _, out := range in.deps {
		if out.Understanding != nil {
			return out.Understanding
		}
	}
	return nil
}

// executeTask dispatches one task to its handler.
func (rt *Runtime) executeTask(ctx context.Context, spec TaskSpec, in taskInput) (Outputs, error) {
	switch spec.Type {
	case TaskParse:
		return rt.parse(in)
	case TaskUnderstand:
		return rt.understand(ctx, spec, in)
	case TaskExtractFields:
		return rt.extractFields(ctx, spec, in)
	case TaskExtractTables:
		return rt.extractTables(ctx, spec, in)
	case TaskValidate:
		return rt.validate(ctx, spec, in)
	default:
		return Outputs{}, fmt.Errorf("%w: %q", ErrUnknownTaskType, spec.Type)
	}
}

// parse normalizes the external document input: trims the raw text and,
// when only layout regions were provided, reconstructs text from them.
func (rt *Runtime) parse(in taskInput) (Outputs, error) {
	doc := in.doc
	doc.RawText = strings.TrimSpace(doc.RawText)

	if doc.RawText == "" && len(doc.Layout) > 0 {
		parts := make([]string, 0, len(doc.Layout))
		for _, region := range doc.Layout {
			if text := strings.TrimSpace(region.Text); text != "" {
				parts = append(parts, text)
			}
		}
		doc.RawText = strings.Join(parts, "\n")
	}

	if doc.RawText == "" {
		return Outputs{}, fmt.Errorf("%w: no text and no layout regions", ErrEmptyDocument)
	}

	return Outputs{Document: &doc, DocumentType: doc.TypeHint}, nil
}

func (rt *Runtime) understand(ctx context.Context, spec TaskSpec, in taskInput) (Outputs, error) {
	vars := reasoning.Vars{
		DocumentText: in.doc.RawText,
		DocumentType: in.doc.TypeHint,
		Correction:   in.correction,
	}
	if len(in.doc.Layout) > 0 {
		vars.DocumentLayout = in.doc.Layout
	}

	u, err := rt.Coordinator.Understand(ctx, reasoning.Request{
		ModelID:    spec.ModelID,
		CallerTier: in.tier,
		Vars:       vars,
	})
	if err != nil {
		return Outputs{}, err
	}

	docType := u.DocumentType
	if docType == "" {
		docType = in.documentType()
	}

	return Outputs{Understanding: u, DocumentType: docType}, nil
}

func (rt *Runtime) extractFields(ctx context.Context, spec TaskSpec, in taskInput) (Outputs, error) {
	docType := in.documentType()
	schema := extraction.SchemaFor(docType)
	schema.Tables = nil

	extract := func(ctx context.Context, correction []string) (validation.Result, error) {
		if correction == nil {
			correction = in.correction
		}
		fields, err := rt.Coordinator.ExtractFields(ctx, reasoning.Request{
			ModelID:    spec.ModelID,
			CallerTier: in.tier,
			Vars: reasoning.Vars{
				DocumentText:  in.doc.RawText,
				DocumentType:  docType,
				Understanding: in.understanding(),
				Correction:    correction,
			},
		}, schema)
		if err != nil {
			return validation.Result{}, err
		}
		return validation.Result{Fields: fields}, nil
	}

	report, res, err := rt.Validator.Run(ctx, spec.ID, schema, extract)
	if err != nil {
		return Outputs{}, err
	}

	return Outputs{Fields: res.Fields, Report: report, DocumentType: docType}, nil
}

func (rt *Runtime) extractTables(ctx context.Context, spec TaskSpec, in taskInput) (Outputs, error) {
	docType := in.documentType()
	schema := extraction.SchemaFor(docType)
	schema.Fields = nil

	// Document types with no declared tables fall back to whatever the
	// understanding stage noticed.
	if len(schema.Tables) == 0 {
		if u := in.understanding(); u != nil {
			for _, hint := range u.Tables {
				columns := make([]extraction.Column, len(hint.Columns))
				for i, name := range hint.Columns {
					columns[i] = extraction.Column{Name: name, Type: extraction.TypeString}
				}
				schema.Tables = append(schema.Tables, extraction.TableSpec{
					Name:    hint.Name,
					Columns: columns,
				})
			}
		}
	}

	if len(schema.Tables) == 0 {
		return Outputs{Tables: map[string]extraction.Table{}, DocumentType: docType}, nil
	}

	extract := func(ctx context.Context, correction []string) (validation.Result, error) {
		if correction == nil {
			correction = in.correction
		}
		tables, err := rt.Coordinator.ExtractTables(ctx, reasoning.Request{
			ModelID:    spec.ModelID,
			CallerTier: in.tier,
			Vars: reasoning.Vars{
				DocumentText:  in.doc.RawText,
				DocumentType:  docType,
				Understanding: in.understanding(),
				Correction:    correction,
			},
		}, schema)
		if err != nil {
			return validation.Result{}, err
		}
		return validation.Result{Tables: tables}, nil
	}

	report, res, err := rt.Validator.Run(ctx, spec.ID, schema, extract)
	if err != nil {
		return Outputs{}, err
	}

	return Outputs{Tables: res.Tables, Report: report, DocumentType: docType}, nil
}

// validate cross-checks upstream extraction outputs against the document
// type's schema. Rule-based by default; when the task names a model, the
// model also reviews the extraction and its findings land in the report as
// advisory issues. Schema sections no upstream task attempted are not held
// against the result.
func (rt *Runtime) validate(ctx context.Context, spec TaskSpec, in taskInput) (Outputs, error) {
	docType := in.documentType()
	res := validation.Result{
		Fields: make(map[string]extraction.Field),
		Tables: make(map[string]extraction.Table),
	}

	var sawFields, sawTables bool
	for _, out := range in.deps {
		if out.Fields != nil {
			sawFields = true
		}
		if out.Tables != nil {
			sawTables = true
		}
		for name, f := range out.Fields {
			res.Fields[name] = f
		}
		for name, t := range out.Tables {
			res.Tables[name] = t
		}
	}

	schema := extraction.SchemaFor(docType)
	if !sawFields {
		schema.Fields = nil
	}
	if !sawTables {
		schema.Tables = nil
	}

	report := rt.Validator.Evaluate(spec.ID, schema, res)

	if spec.ModelID != "" {
		assessment, err := rt.Coordinator.Review(ctx, reasoning.Request{
			ModelID:    spec.ModelID,
			CallerTier: in.tier,
			Vars: reasoning.Vars{
				DocumentText:    in.doc.RawText,
				DocumentType:    docType,
				ExtractedFields: res.Fields,
				ExtractedTables: res.Tables,
				Correction:      in.correction,
			},
		})
		if err != nil {
			return Outputs{}, err
		}
		// The rule-based verdict stands; model findings are advisory.
		for _, msg := range assessment.Issues {
			report.Issues = append(report.Issues, validation.Issue{Item: spec.ID, Message: msg})
		}
	}

	return Outputs{Report: report, DocumentType: docType}, nil
}
