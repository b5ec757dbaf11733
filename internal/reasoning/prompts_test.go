package reasoning_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/tessera-ai/tessera/internal/extraction"
	"github.com/tessera-ai/tessera/internal/reasoning"
)

func TestComposePromptMissingVariable(t *testing.T) {
	tests := []struct {
		name  string
		stage reasoning.Stage
		vars  reasoning.Vars
	}{
		{"understand without text", reasoning.StageUnderstand, reasoning.Vars{}},
		{"fields without targets", reasoning.StageExtractFields, reasoning.Vars{DocumentText: "hello"}},
		{"tables without targets", reasoning.StageExtractTables, reasoning.Vars{DocumentText: "hello"}},
		{"validate without extraction", reasoning.StageValidate, reasoning.Vars{DocumentText: "hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := reasoning.ComposePrompt(tt.stage, tt.vars); !errors.Is(err, reasoning.ErrTemplate) {
				t.Errorf("ComposePrompt() error = %v, want ErrTemplate", err)
			}
		})
	}
}

func TestComposePromptUnknownStage(t *testing.T) {
	if _, err := reasoning.ComposePrompt(reasoning.Stage("bogus"), reasoning.Vars{}); !errors.Is(err, reasoning.ErrTemplate) {
		t.Errorf("ComposePrompt() error = %v, want ErrTemplate", err)
	}
}

func TestComposePromptSections(t *testing.T) {
	schema := extraction.SchemaFor("invoice")

	prompt, err := reasoning.ComposePrompt(reasoning.StageExtractFields, reasoning.Vars{
		DocumentText:    "INVOICE INV-2025-0042",
		DocumentType:    "invoice",
		FieldsToExtract: schema.Fields,
	})
	if err != nil {
		t.Fatalf("ComposePrompt() error = %v", err)
	}

	for _, want := range []string{
		"Document Text:",
		"INVOICE INV-2025-0042",
		"Fields to Extract:",
		"invoice_number",
		"JSON Response:",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestComposePromptCorrectionContext(t *testing.T) {
	prompt, err := reasoning.ComposePrompt(reasoning.StageExtractFields, reasoning.Vars{
		DocumentText:    "some text",
		FieldsToExtract: []string{"date"},
		Correction:      []string{"field date is missing", "total_amount is not a currency value"},
	})
	if err != nil {
		t.Fatalf("ComposePrompt() error = %v", err)
	}

	if !strings.Contains(prompt, "previous attempt had the following problems") {
		t.Error("prompt missing correction preamble")
	}
	if !strings.Contains(prompt, "- field date is missing") {
		t.Error("prompt missing first correction issue")
	}
	if !strings.Contains(prompt, "- total_amount is not a currency value") {
		t.Error("prompt missing second correction issue")
	}
}

func TestComposePromptOmitsCorrectionWhenEmpty(t *testing.T) {
	prompt, err := reasoning.ComposePrompt(reasoning.StageUnderstand, reasoning.Vars{
		DocumentText: "some text",
	})
	if err != nil {
		t.Fatalf("ComposePrompt() error = %v", err)
	}

	if strings.Contains(prompt, "previous attempt") {
		t.Error("correction preamble present without correction context")
	}
}
