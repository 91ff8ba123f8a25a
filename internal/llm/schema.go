package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildCategoryJSONSchema returns the schema every provider response must
// match: exactly two keys, a non-empty account code and a label.
func BuildCategoryJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"skr03_account": map[string]any{"type": "string", "minLength": 1, "pattern": `^\d{4}$`},
			"category":      map[string]any{"type": "string", "minLength": 1},
		},
		"required": []string{"skr03_account", "category"},
	}
}

// ValidateJSONAgainstSchema validates data against schemaMap. Any mismatch is
// treated by callers as a provider failure.
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// parseCategory validates and decodes a provider's raw content into a Category.
func parseCategory(content []byte) (Category, error) {
	if err := ValidateJSONAgainstSchema(BuildCategoryJSONSchema(), content); err != nil {
		return Category{}, fmt.Errorf("schema validation failed: %w", err)
	}
	var out Category
	if err := json.Unmarshal(content, &out); err != nil {
		return Category{}, fmt.Errorf("unmarshal category: %w", err)
	}
	return out, nil
}
