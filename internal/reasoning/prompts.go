package reasoning

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Stage identifies which reasoning prompt a call renders.
type Stage string

// Reasoning stages.
const (
	StageUnderstand    Stage = "document_understanding"
	StageExtractFields Stage = "field_extraction"
	StageExtractTables Stage = "table_extraction"
	StageValidate      Stage = "validation"
)

var stages = []Stage{
	StageUnderstand,
	StageExtractFields,
	StageExtractTables,
	StageValidate,
}

// Stages returns the list of valid reasoning stages.
func Stages() []Stage {
	return slices.Clone(stages)
}

const understandInstructions = `You are an AI assistant that understands documents. You will be given the text and layout information of a document, and your task is to understand its structure, purpose, and key components.

Analyze the document and report:
1. Document Type: what type of document is this? (e.g., invoice, receipt, contract, letter)
2. Document Purpose: what is the main purpose of this document?
3. Key Entities: who are the main entities mentioned? (e.g., sender, recipient, company names)
4. Key Sections: what are the main sections or components?
5. Important Fields: what are the important fields or data points?
6. Tables: are there any tables? If so, what information do they contain?

Respond in structured JSON with the keys: document_type, document_purpose, key_entities, key_sections, important_fields, tables.`

const extractFieldsInstructions = `You are an AI assistant that extracts information from documents. You will be given the text and layout information of a document, along with a list of fields to extract.

For each requested field, provide:
1. The extracted value
2. A confidence score (0.0 to 1.0)
3. The location in the document where the field was found (if available)

Respond in structured JSON with field names as keys and objects of the form {"value": ..., "confidence": ..., "location": ...} as values. Include every requested field.`

const extractTablesInstructions = `You are an AI assistant that extracts tables from documents. You will be given the text and layout information of a document, along with a list of tables to extract.

For each requested table, provide:
1. The column headers
2. The rows of data
3. A confidence score (0.0 to 1.0)

Respond in structured JSON with table names as keys and objects of the form {"headers": [...], "rows": [[...]], "confidence": ...} as values.`

const validateInstructions = `You are an AI assistant that validates extracted information from documents. You will be given the extracted fields and tables, along with the original document text.

Identify any issues or inconsistencies between the document and the extraction. For each issue, name the field or table, describe the problem, and suggest a correction when possible.

Respond in structured JSON with the keys: valid (boolean), issues (list of strings), corrections (object mapping field names to corrected values).`

var instructions = map[Stage]string{
	StageUnderstand:    understandInstructions,
	StageExtractFields: extractFieldsInstructions,
	StageExtractTables: extractTablesInstructions,
	StageValidate:      validateInstructions,
}

// required variable sections per stage; composition fails with ErrTemplate
// when one is absent.
var requiredVars = map[Stage][]string{
	StageUnderstand:    {"document_text"},
	StageExtractFields: {"document_text", "fields_to_extract"},
	StageExtractTables: {"document_text", "tables_to_extract"},
	StageValidate:      {"document_text", "extracted_fields"},
}

// Vars carries the structured variables a prompt is composed from.
// Zero-valued sections are omitted unless the stage requires them.
type Vars struct {
	DocumentText    string
	DocumentLayout  any
	DocumentType    string
	Understanding   any
	FieldsToExtract any
	TablesToExtract any
	ExtractedFields any
	ExtractedTables any

	// Correction holds issues from a prior attempt, fed back so the next
	// attempt can self-correct instead of blindly repeating.
	Correction []string
}

func (v *Vars) section(name string) (any, bool) {
	switch name {
	case "document_text":
		if v.DocumentText == "" {
			return nil, false
		}
		return v.DocumentText, true
	case "document_layout":
		return v.DocumentLayout, v.DocumentLayout != nil
	case "document_understanding":
		return v.Understanding, v.Understanding != nil
	case "fields_to_extract":
		return v.FieldsToExtract, v.FieldsToExtract != nil
	case "tables_to_extract":
		return v.TablesToExtract, v.TablesToExtract != nil
	case "extracted_fields":
		return v.ExtractedFields, v.ExtractedFields != nil
	case "extracted_tables":
		return v.ExtractedTables, v.ExtractedTables != nil
	default:
		return nil, false
	}
}

var sectionOrder = []struct {
	name  string
	title string
}{
	{"document_text", "Document Text"},
	{"document_layout", "Document Layout Information"},
	{"document_understanding", "Document Understanding"},
	{"fields_to_extract", "Fields to Extract"},
	{"tables_to_extract", "Tables to Extract"},
	{"extracted_fields", "Extracted Fields"},
	{"extracted_tables", "Extracted Tables"},
}

// ComposePrompt builds the full prompt for a stage: instructions, the
// structured variable sections in stable order, and any correction context
// from prior attempts. Missing required variables fail with ErrTemplate.
func ComposePrompt(stage Stage, vars Vars) (string, error) {
	text, ok := instructions[stage]
	if !ok {
		return "", fmt.Errorf("%w: unknown stage %q", ErrTemplate, stage)
	}

	for _, name := range requiredVars[stage] {
		if _, present := vars.section(name); !present {
			return "", fmt.Errorf("%w: stage %s missing variable %s", ErrTemplate, stage, name)
		}
	}

	var sb strings.Builder
	sb.WriteString(text)

	if vars.DocumentType != "" {
		sb.WriteString("\n\nDocument Type (if known): ")
		sb.WriteString(vars.DocumentType)
	}

	for _, s := range sectionOrder {
		val, present := vars.section(s.name)
		if !present {
			continue
		}

		rendered, err := renderSection(val)
		if err != nil {
			return "", fmt.Errorf("%w: serialize %s: %w", ErrTemplate, s.name, err)
		}

		sb.WriteString("\n\n")
		sb.WriteString(s.title)
		sb.WriteString(":\n")
		sb.WriteString(rendered)
	}

	if len(vars.Correction) > 0 {
		sb.WriteString("\n\nA previous attempt had the following problems. Correct them in this response:\n")
		for _, issue := range vars.Correction {
			sb.WriteString("- ")
			sb.WriteString(issue)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nJSON Response:")
	return sb.String(), nil
}

func renderSection(val any) (string, error) {
	if s, ok := val.(string); ok {
		return s, nil
	}
	data, err := json.MarshalIndent(val, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
