package dialect

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleToolDef() CanonicalToolDef {
	return CanonicalToolDef{
		Name:        "read_file",
		Description: "Read a file from the workspace",
		ParametersSchema: json.RawMessage(`{
			"type": "object",
			"properties": {"path": {"type": "string"}},
			"required": ["path"]
		}`),
	}
}

func TestCompileSchema(t *testing.T) {
	assert.NoError(t, sampleToolDef().CompileSchema())

	bad := sampleToolDef()
	bad.ParametersSchema = json.RawMessage(`{"type": 42}`)
	assert.Error(t, bad.CompileSchema())

	empty := sampleToolDef()
	empty.ParametersSchema = nil
	assert.Error(t, empty.CompileSchema())
}

func TestValidateInput(t *testing.T) {
	def := sampleToolDef()
	assert.NoError(t, def.ValidateInput(json.RawMessage(`{"path":"main.go"}`)))
	assert.Error(t, def.ValidateInput(json.RawMessage(`{"path":7}`)))
	assert.Error(t, def.ValidateInput(json.RawMessage(`{}`)))
}

func TestToolDefToOpenAIShape(t *testing.T) {
	out := ToolDefToDialect(OpenAI, sampleToolDef())
	assert.Equal(t, "function", out["type"])
	fn := out["function"].(map[string]any)
	assert.Equal(t, "read_file", fn["name"])
	assert.NotNil(t, fn["parameters"])
}

func TestToolDefToClaudeShape(t *testing.T) {
	out := ToolDefToDialect(Claude, sampleToolDef())
	assert.Equal(t, "read_file", out["name"])
	assert.NotNil(t, out["input_schema"])
}

func TestToolDefToGeminiShape(t *testing.T) {
	out := ToolDefToDialect(Gemini, sampleToolDef())
	assert.Equal(t, "read_file", out["name"])
	assert.NotNil(t, out["parameters"])
}

func TestToolDefRoundTrip(t *testing.T) {
	def := sampleToolDef()
	for _, target := range []Dialect{OpenAI, Claude, Gemini, Codex} {
		lowered := ToolDefToDialect(target, def)
		back, err := ToolDefFromDialect(target, lowered)
		require.NoError(t, err, target)
		assert.Equal(t, def.Name, back.Name)
		assert.Equal(t, def.Description, back.Description)
		assert.JSONEq(t, string(def.ParametersSchema), string(back.ParametersSchema))
	}
}

func TestToolDefFromDialectErrors(t *testing.T) {
	_, err := ToolDefFromDialect(OpenAI, map[string]any{"type": "function"})
	assert.Error(t, err)

	_, err = ToolDefFromDialect(Claude, map[string]any{"description": "no name"})
	assert.Error(t, err)
}
