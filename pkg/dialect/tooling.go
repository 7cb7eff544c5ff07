package dialect

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// CanonicalToolDef is the dialect-neutral carrier for a tool definition.
type CanonicalToolDef struct {
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	ParametersSchema json.RawMessage `json:"parameters_schema"`
}

// CompileSchema validates that the parameter schema is usable JSON Schema.
// Backends reject tools whose schemas do not compile.
func (d CanonicalToolDef) CompileSchema() error {
	if len(d.ParametersSchema) == 0 {
		return fmt.Errorf("tool %q: empty parameters schema", d.Name)
	}
	compiler := jsonschema.NewCompiler()
	url := "inmemory://tool/" + d.Name + ".json"
	if err := compiler.AddResource(url, bytes.NewReader(d.ParametersSchema)); err != nil {
		return fmt.Errorf("tool %q: schema resource: %w", d.Name, err)
	}
	if _, err := compiler.Compile(url); err != nil {
		return fmt.Errorf("tool %q: schema compile: %w", d.Name, err)
	}
	return nil
}

// ValidateInput checks a tool input document against the compiled schema.
func (d CanonicalToolDef) ValidateInput(input json.RawMessage) error {
	compiler := jsonschema.NewCompiler()
	url := "inmemory://tool/" + d.Name + ".json"
	if err := compiler.AddResource(url, bytes.NewReader(d.ParametersSchema)); err != nil {
		return fmt.Errorf("tool %q: schema resource: %w", d.Name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("tool %q: schema compile: %w", d.Name, err)
	}
	var doc any
	if err := json.Unmarshal(input, &doc); err != nil {
		return fmt.Errorf("tool %q: input decode: %w", d.Name, err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("tool %q: input invalid: %w", d.Name, err)
	}
	return nil
}

// ToolDefToDialect lowers a canonical tool definition into the target
// dialect's shape.
func ToolDefToDialect(target Dialect, def CanonicalToolDef) map[string]any {
	var schema any
	if err := json.Unmarshal(def.ParametersSchema, &schema); err != nil {
		schema = map[string]any{}
	}
	switch {
	case target == Claude:
		return map[string]any{
			"name":         def.Name,
			"description":  def.Description,
			"input_schema": schema,
		}
	case target == Gemini:
		return map[string]any{
			"name":        def.Name,
			"description": def.Description,
			"parameters":  schema,
		}
	default: // OpenAI family
		return map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        def.Name,
				"description": def.Description,
				"parameters":  schema,
			},
		}
	}
}

// ToolDefFromDialect lifts a dialect-shaped tool definition back to the
// canonical carrier.
func ToolDefFromDialect(source Dialect, def map[string]any) (CanonicalToolDef, error) {
	obj := def
	schemaKey := "parameters"
	switch {
	case source == Claude:
		schemaKey = "input_schema"
	case source == Gemini:
	default:
		fn, ok := def["function"].(map[string]any)
		if !ok {
			return CanonicalToolDef{}, fmt.Errorf("tool definition missing function payload")
		}
		obj = fn
	}
	name, _ := obj["name"].(string)
	if name == "" {
		return CanonicalToolDef{}, fmt.Errorf("tool definition missing name")
	}
	description, _ := obj["description"].(string)
	schema, err := json.Marshal(obj[schemaKey])
	if err != nil {
		return CanonicalToolDef{}, fmt.Errorf("tool %q: schema encode: %w", name, err)
	}
	return CanonicalToolDef{
		Name:             name,
		Description:      description,
		ParametersSchema: schema,
	}, nil
}
