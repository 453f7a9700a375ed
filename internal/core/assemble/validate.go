package assemble

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

//go:embed schema/policy_record.schema.json
var policyRecordSchema []byte

// SchemaValidator checks assembled records against the PolicyRecord JSON
// schema. The schema is compiled once; Validate is safe for concurrent use.
type SchemaValidator struct {
	schema *jsonschema.Schema
}

func NewSchemaValidator() (*SchemaValidator, error) {
	return compileSchema(policyRecordSchema)
}

func compileSchema(raw []byte) (*SchemaValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("policy_record.schema.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("policy_record.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &SchemaValidator{schema: schema}, nil
}

// Validate round-trips rec through JSON so the check sees the wire shape.
func (v *SchemaValidator) Validate(rec entity.PolicyRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	return v.ValidateJSON(b)
}

// ValidateJSON validates an already-encoded record, e.g. one read back from
// storage.
func (v *SchemaValidator) ValidateJSON(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("record does not match schema: %w", err)
	}
	return nil
}
