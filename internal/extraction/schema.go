package extraction

// FieldSpec declares one field an extraction task must attempt.
type FieldSpec struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// TableSpec declares one table an extraction task must attempt.
type TableSpec struct {
	Name     string   `json:"name"`
	Required bool     `json:"required"`
	Columns  []Column `json:"columns"`
}

// Schema is the extraction target for a document type: the fields and
// tables the pipeline should produce.
type Schema struct {
	DocumentType string      `json:"document_type"`
	Fields       []FieldSpec `json:"fields"`
	Tables       []TableSpec `json:"tables"`
}

// Field returns the spec for a field name, if declared.
func (s Schema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// RequiredFields returns the specs marked required.
func (s Schema) RequiredFields() []FieldSpec {
	var out []FieldSpec
	for _, f := range s.Fields {
		if f.Required {
			out = append(out, f)
		}
	}
	return out
}

// SchemaFor returns the default extraction schema for a document type.
// Unrecognized types fall back to a generic document schema.
func SchemaFor(documentType string) Schema {
	switch documentType {
	case "invoice":
		return Schema{
			DocumentType: "invoice",
			Fields: []FieldSpec{
				{Name: "invoice_number", Type: TypeString, Required: true},
				{Name: "date", Type: TypeDate, Required: true},
				{Name: "due_date", Type: TypeDate},
				{Name: "total_amount", Type: TypeCurrency, Required: true},
				{Name: "tax_amount", Type: TypeCurrency},
				{Name: "vendor_name", Type: TypeString, Required: true},
				{Name: "vendor_address", Type: TypeString},
				{Name: "customer_name", Type: TypeString, Required: true},
				{Name: "customer_address", Type: TypeString},
			},
			Tables: []TableSpec{
				{
					Name:     "line_items",
					Required: true,
					Columns: []Column{
						{Name: "description", Type: TypeString},
						{Name: "quantity", Type: TypeNumber},
						{Name: "unit_price", Type: TypeCurrency},
						{Name: "total", Type: TypeCurrency},
					},
				},
			},
		}
	case "receipt":
		return Schema{
			DocumentType: "receipt",
			Fields: []FieldSpec{
				{Name: "receipt_number", Type: TypeString},
				{Name: "date", Type: TypeDate, Required: true},
				{Name: "total_amount", Type: TypeCurrency, Required: true},
				{Name: "tax_amount", Type: TypeCurrency},
				{Name: "merchant_name", Type: TypeString, Required: true},
				{Name: "merchant_address", Type: TypeString},
				{Name: "payment_method", Type: TypeString},
			},
			Tables: []TableSpec{
				{
					Name:     "items",
					Required: true,
					Columns: []Column{
						{Name: "description", Type: TypeString},
						{Name: "quantity", Type: TypeNumber},
						{Name: "price", Type: TypeCurrency},
					},
				},
			},
		}
	case "contract":
		return Schema{
			DocumentType: "contract",
			Fields: []FieldSpec{
				{Name: "contract_number", Type: TypeString},
				{Name: "date", Type: TypeDate, Required: true},
				{Name: "effective_date", Type: TypeDate},
				{Name: "expiration_date", Type: TypeDate},
				{Name: "party_1", Type: TypeString, Required: true},
				{Name: "party_2", Type: TypeString, Required: true},
				{Name: "contract_type", Type: TypeString},
				{Name: "contract_value", Type: TypeCurrency},
			},
		}
	default:
		return Schema{
			DocumentType: "generic",
			Fields: []FieldSpec{
				{Name: "title", Type: TypeString},
				{Name: "date", Type: TypeDate},
				{Name: "author", Type: TypeString},
			},
		}
	}
}
