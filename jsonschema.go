package foundry

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// apiTypeJSONTypes maps a property api_type to the JSON types accepted
// for it in store parameters. String forms are always accepted because
// query-string transports deliver everything as text.
func apiTypeJSONTypes(apiType string) []string {
	switch apiType {
	case "integer":
		return []string{"integer", "string"}
	case "number", "float", "double", "decimal", "real", "numeric":
		return []string{"number", "integer", "string"}
	case "boolean":
		return []string{"boolean", "integer", "string"}
	default:
		return []string{"string"}
	}
}

// buildStoreSchema compiles the JSON Schema used to shape-check store
// parameters for a schema object. Presence and permission rules are
// enforced by the handlers; this covers types and length limits.
func buildStoreSchema(so *SchemaObject) (*jsonschema.Resolved, error) {
	properties := make(map[string]any, len(so.Properties))
	for name, prop := range so.Properties {
		ps := map[string]any{
			"type": apiTypeJSONTypes(prop.APIType),
		}
		if prop.MaxLength > 0 && prop.APIType == "string" {
			ps["maxLength"] = prop.MaxLength
		}
		properties[name] = ps
	}
	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, NewSchemaInvalidError(so.Name, "failed to marshal store schema").WithCause(err)
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, NewSchemaInvalidError(so.Name, "failed to build store schema").WithCause(err)
	}
	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return nil, NewSchemaInvalidError(so.Name, "failed to resolve store schema").WithCause(err)
	}
	return resolved, nil
}

// ValidateStoreParams shape-checks store parameters against the schema
// object's compiled JSON Schema.
func (s *SchemaObject) ValidateStoreParams(params map[string]any) error {
	if s.storeSchema == nil || len(params) == 0 {
		return nil
	}
	data := make(map[string]any, len(params))
	for k, v := range params {
		data[k] = v
	}
	if err := s.storeSchema.Validate(data); err != nil {
		return NewValidationError(
			fmt.Sprintf("Store parameters failed validation. schema object: %s: %v", s.Name, err)).
			WithEntity(s.Name).WithCause(err)
	}
	return nil
}
