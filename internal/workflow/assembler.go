package workflow

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tessera-ai/tessera/internal/extraction"
	"github.com/tessera-ai/tessera/internal/validation"
	"github.com/tessera-ai/tessera/pkg/graph"
)

// TaskFailure annotates one task that did not complete, so isolate-mode
// consumers know which parts of a partial bundle are missing and why.
type TaskFailure struct {
	TaskID string `json:"task_id"`
	State  State  `json:"state"`
	Error  string `json:"error,omitempty"`
}

// ResultBundle is the final, immutable output of a workflow run: every
// extracted field and table, per-task validation reports, and failure
// annotations for anything that fell short.
type ResultBundle struct {
	WorkflowID   uuid.UUID                   `json:"workflow_id"`
	Name         string                      `json:"name"`
	Version      string                      `json:"version"`
	DocumentType string                      `json:"document_type"`
	Fields       map[string]extraction.Field `json:"fields"`
	Tables       map[string]extraction.Table `json:"tables"`
	Reports      []validation.Report         `json:"reports"`
	Failures     []TaskFailure               `json:"failures,omitempty"`
	Confidence   float64                     `json:"confidence"`
	AssembledAt  time.Time                   `json:"assembled_at"`
}

// Passed reports whether every validation report passed and no task failed.
func (b *ResultBundle) Passed() bool {
	if len(b.Failures) > 0 {
		return false
	}
	for _, r := range b.Reports {
		if !r.Passed {
			return false
		}
	}
	return true
}

// Assemble merges completed task outputs into a result bundle. Tasks are
// visited in topological order so later stages overwrite earlier values
// deterministically. Overall confidence is the average across all extracted
// fields and tables.
func Assemble(workflowID uuid.UUID, spec Spec, g *graph.Graph, records map[string]*TaskRecord, outputs map[string]Outputs) *ResultBundle {
	bundle := &ResultBundle{
		WorkflowID:  workflowID,
		Name:        spec.Name,
		Version:     spec.Version,
		Fields:      make(map[string]extraction.Field),
		Tables:      make(map[string]extraction.Table),
		AssembledAt: time.Now().UTC(),
	}

	for _, id := range g.TopologicalOrder() {
		out, ok := outputs[id]
		if !ok {
			continue
		}

		if out.DocumentType != "" {
			bundle.DocumentType = out.DocumentType
		}
		for name, f := range out.Fields {
			bundle.Fields[name] = f
		}
		for name, t := range out.Tables {
			bundle.Tables[name] = t
		}
		if out.Report != nil {
			bundle.Reports = append(bundle.Reports, *out.Report)
		}
	}

	for _, id := range g.IDs() {
		rec, ok := records[id]
		if !ok || rec.State == StateCompleted {
			continue
		}
		bundle.Failures = append(bundle.Failures, TaskFailure{
			TaskID: id,
			State:  rec.State,
			Error:  rec.Error,
		})
	}
	sort.Slice(bundle.Failures, func(i, j int) bool {
		return bundle.Failures[i].TaskID < bundle.Failures[j].TaskID
	})

	bundle.Confidence = overallConfidence(bundle.Fields, bundle.Tables)
	return bundle
}

func overallConfidence(fields map[string]extraction.Field, tables map[string]extraction.Table) float64 {
	var sum float64
	var count int

	for _, f := range fields {
		sum += f.Confidence
		count++
	}
	for _, t := range tables {
		sum += t.Confidence
		count++
	}

	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
