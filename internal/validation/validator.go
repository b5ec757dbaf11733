// Package validation scores extraction results against their schema and
// drives the bounded self-correction loop: rule checks, a confidence floor,
// and re-extraction with prior issues fed back as correction context.
package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/tessera-ai/tessera/internal/extraction"
	"github.com/tessera-ai/tessera/internal/reasoning"
)

// Issue is one problem found in an extraction. Blocking issues fail the
// report; non-blocking issues are advisory and survive into the final bundle.
type Issue struct {
	Item     string `json:"item"`
	Message  string `json:"message"`
	Blocking bool   `json:"blocking"`
}

// Report is the outcome of validating one task's extraction. A failed report
// is a first-class result, not an error: the caller still receives the
// best-effort extraction alongside it.
type Report struct {
	TaskID       string  `json:"task_id"`
	Passed       bool    `json:"passed"`
	Confidence   float64 `json:"confidence"`
	Issues       []Issue `json:"issues"`
	AttemptsUsed int     `json:"attempts_used"`
}

// Result is the extraction output under validation.
type Result struct {
	Fields map[string]extraction.Field
	Tables map[string]extraction.Table
}

// ExtractFunc re-runs an extraction. correction carries the issues from the
// previous attempt; it is nil on the first call.
type ExtractFunc func(ctx context.Context, correction []string) (Result, error)

// Validator applies rule checks and the correction loop. Threshold and
// attempt cap come from configuration; there are no baked-in defaults.
type Validator struct {
	threshold   float64
	maxAttempts int
	logger      *slog.Logger
}

// New creates a validator with the given confidence threshold and correction
// attempt cap.
func New(threshold float64, maxAttempts int, logger *slog.Logger) *Validator {
	return &Validator{
		threshold:   threshold,
		maxAttempts: maxAttempts,
		logger:      logger.With("system", "validation"),
	}
}

var (
	dateRe = regexp.MustCompile(
		`^(?:\d{4}-\d{2}-\d{2}|\d{2}/\d{2}/\d{4}|\d{2}-\d{2}-\d{4}|\d{2}\.\d{2}\.\d{4})$`,
	)
	// Amounts may group thousands with commas or run the digits together.
	currencyRe = regexp.MustCompile(
		`^(?:[$€£](?:\d{1,3}(?:,\d{3})*|\d+)(?:\.\d{2})?|(?:\d{1,3}(?:,\d{3})*|\d+)(?:\.\d{2})?(?:\s*(?:USD|EUR|GBP))?)$`,
	)
)

func validNumber(value string) bool {
	_, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	return err == nil
}

func typeConforms(fieldType, value string) bool {
	switch fieldType {
	case extraction.TypeDate:
		return dateRe.MatchString(value)
	case extraction.TypeCurrency:
		return currencyRe.MatchString(value)
	case extraction.TypeNumber:
		return validNumber(value)
	default:
		return true
	}
}

// Check scores a result against its schema without running corrections.
//
// Blocking issues: a required field missing or empty, a required field whose
// value does not conform to its declared type, and a required table missing
// or without rows. Optional-field problems, including low confidence, are
// recorded but never block.
//
// Confidence is the minimum over required-field confidences. With no
// required fields in the schema it falls back to the minimum over everything
// extracted, and to 1 when nothing was extracted at all.
func (v *Validator) Check(schema extraction.Schema, res Result) (float64, []Issue) {
	var issues []Issue

	for _, spec := range schema.Fields {
		f, ok := res.Fields[spec.Name]
		present := ok && f.Value != ""

		if !present {
			if spec.Required {
				issues = append(issues, Issue{
					Item:     spec.Name,
					Message:  fmt.Sprintf("required field %q is missing or empty", spec.Name),
					Blocking: true,
				})
			}
			continue
		}

		if !typeConforms(spec.Type, f.Value) {
			issues = append(issues, Issue{
				Item:     spec.Name,
				Message:  fmt.Sprintf("field %q has invalid %s format: %s", spec.Name, spec.Type, f.Value),
				Blocking: spec.Required,
			})
		}

		if !spec.Required && clamp(f.Confidence) < v.threshold {
			issues = append(issues, Issue{
				Item:    spec.Name,
				Message: fmt.Sprintf("field %q confidence %.2f below threshold %.2f", spec.Name, clamp(f.Confidence), v.threshold),
			})
		}
	}

	for _, spec := range schema.Tables {
		if !spec.Required {
			continue
		}
		t, ok := res.Tables[spec.Name]
		if !ok || len(t.Rows) == 0 {
			issues = append(issues, Issue{
				Item:     spec.Name,
				Message:  fmt.Sprintf("required table %q is missing or empty", spec.Name),
				Blocking: true,
			})
		}
	}

	return v.confidence(schema, res), issues
}

func (v *Validator) confidence(schema extraction.Schema, res Result) float64 {
	min := 1.0
	found := false

	for _, spec := range schema.RequiredFields() {
		f, ok := res.Fields[spec.Name]
		if !ok || f.Value == "" {
			return 0
		}
		found = true
		if c := clamp(f.Confidence); c < min {
			min = c
		}
	}
	if found {
		return min
	}

	// No required fields: fall back to everything extracted.
	for _, f := range res.Fields {
		found = true
		if c := clamp(f.Confidence); c < min {
			min = c
		}
	}
	for _, t := range res.Tables {
		found = true
		if c := clamp(t.Confidence); c < min {
			min = c
		}
	}
	if !found {
		return 1
	}
	return min
}

// Evaluate scores an already-extracted result without running corrections,
// for cross-check tasks that validate upstream outputs rather than produce
// their own.
func (v *Validator) Evaluate(taskID string, schema extraction.Schema, res Result) *Report {
	confidence, issues := v.Check(schema, res)
	return &Report{
		TaskID:     taskID,
		Passed:     confidence >= v.threshold && !hasBlocking(issues),
		Confidence: confidence,
		Issues:     issues,
	}
}

// Run drives the correction loop: extract, check, and while the result has
// blocking issues or sits below the confidence threshold, re-extract with
// the issues as correction context, up to the attempt cap. A malformed
// backend response is folded into the correction context the same way rather
// than retried blindly. Exhaustion yields a failed report, not an error.
func (v *Validator) Run(ctx context.Context, taskID string, schema extraction.Schema, extract ExtractFunc) (*Report, Result, error) {
	limit := v.maxAttempts
	if limit < 1 {
		limit = 1
	}

	var correction []string
	attempts := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, Result{}, err
		}

		res, err := extract(ctx, correction)
		attempts++
		if err != nil {
			if errors.Is(err, reasoning.ErrParsing) && attempts < limit {
				correction = []string{err.Error()}
				continue
			}
			return nil, Result{}, fmt.Errorf("extraction attempt %d: %w", attempts, err)
		}

		confidence, issues := v.Check(schema, res)
		passed := confidence >= v.threshold && !hasBlocking(issues)

		if passed || attempts >= limit {
			report := &Report{
				TaskID:       taskID,
				Passed:       passed,
				Confidence:   confidence,
				Issues:       issues,
				AttemptsUsed: attempts,
			}
			v.logger.InfoContext(
				ctx, "validation complete",
				"task", taskID,
				"passed", passed,
				"confidence", confidence,
				"attempts", attempts,
				"issues", len(issues),
			)
			return report, res, nil
		}

		correction = messages(issues)
	}
}

func hasBlocking(issues []Issue) bool {
	for _, i := range issues {
		if i.Blocking {
			return true
		}
	}
	return false
}

func messages(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.Message
	}
	return out
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
