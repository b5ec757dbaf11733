// Package extraction defines the data model for document extraction:
// the external document input, extracted fields and tables, and the
// target schemas that drive extraction tasks.
package extraction

// Value types for extracted fields and table columns.
const (
	TypeString   = "string"
	TypeDate     = "date"
	TypeCurrency = "currency"
	TypeNumber   = "number"
)

// Region is one layout region produced by the external intake pipeline.
type Region struct {
	Page  int    `json:"page"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

// Document is the external-owned, immutable input to a workflow run:
// raw text, per-page layout regions, and an optional type hint.
type Document struct {
	RawText  string   `json:"raw_text"`
	Layout   []Region `json:"layout_regions"`
	TypeHint string   `json:"document_type_hint,omitempty"`
}

// Field is a single extracted value with its confidence and provenance.
// A correction pass may overwrite Value and re-score Confidence.
type Field struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	SourceSpan string  `json:"source_span,omitempty"`
}

// Column describes one table column.
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Table is an extracted table with a single confidence score.
type Table struct {
	Name       string     `json:"name"`
	Columns    []Column   `json:"columns"`
	Rows       [][]string `json:"rows"`
	Confidence float64    `json:"confidence"`
}
