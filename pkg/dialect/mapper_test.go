package dialect

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMap(t *testing.T, source, target Dialect, raw string) ([]map[string]any, Report) {
	t.Helper()
	var messages []map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &messages))
	out, report, err := MapViaIR(source, target, messages)
	require.NoError(t, err)
	return out, report
}

func claudeBlocks(t *testing.T, msg map[string]any) []map[string]any {
	t.Helper()
	content, ok := msg["content"].(string)
	require.True(t, ok, "claude block content is a JSON-encoded string")
	var blocks []map[string]any
	require.NoError(t, json.Unmarshal([]byte(content), &blocks))
	return blocks
}

func TestOpenAIToClaudeText(t *testing.T) {
	out, report := mustMap(t, OpenAI, Claude, `[{"role":"user","content":"Hello"}]`)
	require.Len(t, out, 1)
	assert.Equal(t, "user", out[0]["role"])
	assert.Equal(t, "Hello", out[0]["content"])
	assert.Equal(t, 1, report.MessagesMapped)
	assert.Equal(t, OpenAI, report.SourceDialect)
	assert.Equal(t, Claude, report.TargetDialect)
}

func TestOpenAIToClaudeSystemExcluded(t *testing.T) {
	out, report := mustMap(t, OpenAI, Claude,
		`[{"role":"system","content":"Be helpful"},{"role":"user","content":"Hi"}]`)
	require.Len(t, out, 1)
	assert.Equal(t, "user", out[0]["role"])
	assert.NotEmpty(t, report.Losses)
	assert.Equal(t, Degraded, report.Fidelity)
}

func TestOpenAIToClaudeToolCall(t *testing.T) {
	out, report := mustMap(t, OpenAI, Claude, `[{
		"role": "assistant",
		"content": null,
		"tool_calls": [{
			"id": "call_1",
			"type": "function",
			"function": {"name": "read_file", "arguments": "{\"path\":\"main.rs\"}"}
		}]
	}]`)
	require.Len(t, out, 1)
	assert.Equal(t, "assistant", out[0]["role"])
	blocks := claudeBlocks(t, out[0])
	assert.Equal(t, "tool_use", blocks[0]["type"])
	assert.Equal(t, "call_1", blocks[0]["id"])
	assert.Equal(t, "read_file", blocks[0]["name"])
	assert.Equal(t, 1, report.MessagesMapped)
}

func TestOpenAIToClaudeToolResult(t *testing.T) {
	out, _ := mustMap(t, OpenAI, Claude,
		`[{"role":"tool","content":"file contents","tool_call_id":"call_1"}]`)
	require.Len(t, out, 1)
	assert.Equal(t, "user", out[0]["role"])
	blocks := claudeBlocks(t, out[0])
	assert.Equal(t, "tool_result", blocks[0]["type"])
	assert.Equal(t, "call_1", blocks[0]["tool_use_id"])
	assert.Equal(t, "file contents", blocks[0]["content"])
}

func TestOpenAIToGeminiText(t *testing.T) {
	out, report := mustMap(t, OpenAI, Gemini,
		`[{"role":"user","content":"Hello"},{"role":"assistant","content":"Hi there!"}]`)
	require.Len(t, out, 2)
	assert.Equal(t, "user", out[0]["role"])
	assert.Equal(t, "Hello", out[0]["parts"].([]any)[0].(map[string]any)["text"])
	assert.Equal(t, "model", out[1]["role"])
	assert.Equal(t, 2, report.MessagesMapped)
}

func TestOpenAIToGeminiToolCall(t *testing.T) {
	out, _ := mustMap(t, OpenAI, Gemini, `[{
		"role": "assistant",
		"content": null,
		"tool_calls": [{
			"id": "call_1",
			"type": "function",
			"function": {"name": "search", "arguments": "{\"q\":\"golang\"}"}
		}]
	}]`)
	require.Len(t, out, 1)
	assert.Equal(t, "model", out[0]["role"])
	part := out[0]["parts"].([]any)[0].(map[string]any)
	fc := part["functionCall"].(map[string]any)
	assert.Equal(t, "search", fc["name"])
	assert.Equal(t, "golang", fc["args"].(map[string]any)["q"])
}

func TestClaudeToOpenAIText(t *testing.T) {
	out, report := mustMap(t, Claude, OpenAI,
		`[{"role":"user","content":"Hello"},{"role":"assistant","content":"Sure!"}]`)
	require.Len(t, out, 2)
	assert.Equal(t, "Hello", out[0]["content"])
	assert.Equal(t, "assistant", out[1]["role"])
	assert.Equal(t, LossySupported, report.Fidelity)
	assert.Empty(t, report.Losses)
}

func TestClaudeToOpenAIToolUse(t *testing.T) {
	blocks := `[{"type":"tool_use","id":"tu_1","name":"read","input":{"path":"a.rs"}}]`
	encoded, err := json.Marshal(blocks)
	require.NoError(t, err)
	out, _ := mustMap(t, Claude, OpenAI,
		`[{"role":"assistant","content":`+string(encoded)+`}]`)
	require.Len(t, out, 1)
	calls := out[0]["tool_calls"].([]any)
	call := calls[0].(map[string]any)
	assert.Equal(t, "tu_1", call["id"])
	assert.Equal(t, "read", call["function"].(map[string]any)["name"])
}

func TestGeminiToOpenAIText(t *testing.T) {
	out, report := mustMap(t, Gemini, OpenAI,
		`[{"role":"user","parts":[{"text":"Hello"}]},{"role":"model","parts":[{"text":"Hi!"}]}]`)
	require.Len(t, out, 2)
	assert.Equal(t, "Hello", out[0]["content"])
	assert.Equal(t, "assistant", out[1]["role"])
	assert.Equal(t, "Hi!", out[1]["content"])
	assert.Equal(t, LossySupported, report.Fidelity)
}

func TestGeminiUppercaseTextKey(t *testing.T) {
	out, _ := mustMap(t, Gemini, OpenAI,
		`[{"role":"user","parts":[{"Text":"Hello"}]}]`)
	require.Len(t, out, 1)
	assert.Equal(t, "Hello", out[0]["content"])
}

func TestGeminiToOpenAIFunctionCall(t *testing.T) {
	out, _ := mustMap(t, Gemini, OpenAI,
		`[{"role":"model","parts":[{"functionCall":{"name":"search","args":{"q":"go"}}}]}]`)
	require.Len(t, out, 1)
	assert.Equal(t, "assistant", out[0]["role"])
	call := out[0]["tool_calls"].([]any)[0].(map[string]any)
	assert.Equal(t, "search", call["function"].(map[string]any)["name"])
}

func TestIdentityTranslationIsLossless(t *testing.T) {
	raw := `[{"role":"user","content":"Hello"},{"role":"assistant","content":"Hi!"}]`
	out, report := mustMap(t, OpenAI, OpenAI, raw)
	var original []map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &original))
	assert.Equal(t, original, out)
	assert.Equal(t, Lossless, report.Fidelity)
	assert.Empty(t, report.Losses)
}

func TestFidelityDegradedWithSystemLossToGemini(t *testing.T) {
	_, report := mustMap(t, OpenAI, Gemini,
		`[{"role":"system","content":"Be helpful"},{"role":"user","content":"Hi"}]`)
	assert.Equal(t, Degraded, report.Fidelity)
	found := false
	for _, l := range report.Losses {
		if strings.Contains(l, "system") {
			found = true
		}
	}
	assert.True(t, found, "losses mention the system fold: %v", report.Losses)
}

func TestCodexAndKimiAreOpenAIShaped(t *testing.T) {
	out, report := mustMap(t, Codex, Claude, `[{"role":"user","content":"Hello from Codex"}]`)
	assert.Equal(t, "Hello from Codex", out[0]["content"])
	assert.Equal(t, Codex, report.SourceDialect)

	out, report = mustMap(t, Kimi, Gemini, `[{"role":"user","content":"Hello from Kimi"}]`)
	part := out[0]["parts"].([]any)[0].(map[string]any)
	assert.Equal(t, "Hello from Kimi", part["text"])
	assert.Equal(t, Kimi, report.SourceDialect)
}

func TestCopilotReferencesRoundTrip(t *testing.T) {
	out, _ := mustMap(t, Copilot, OpenAI,
		`[{"role":"user","content":"Hi","copilot_references":[{"type":"file","id":"a.go"}]}]`)
	require.Len(t, out, 1)
	assert.Equal(t, "Hi", out[0]["content"])

	back, _ := mustMap(t, OpenAI, Copilot, `[{"role":"user","content":"Hi"}]`)
	require.Len(t, back, 1)
	assert.Equal(t, "user", back[0]["role"])
}

func TestMapRawRejectsNonArray(t *testing.T) {
	_, _, err := MapRaw(OpenAI, Claude, json.RawMessage(`{"role":"user","content":"Hello"}`))
	assert.Error(t, err)
}

func TestMapViaIREmptyArray(t *testing.T) {
	out, report, err := MapViaIR(OpenAI, Claude, []map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 0, report.MessagesMapped)
}

func TestMultiTurnOpenAIToClaude(t *testing.T) {
	out, report := mustMap(t, OpenAI, Claude, `[
		{"role":"system","content":"You are terse"},
		{"role":"user","content":"Write main"},
		{"role":"assistant","content":null,"tool_calls":[{"id":"c1","type":"function","function":{"name":"write","arguments":"{}"}}]},
		{"role":"tool","content":"fn main() {}","tool_call_id":"c1"},
		{"role":"assistant","content":"Done."}
	]`)
	assert.Len(t, out, 4, "system turn is dropped")
	assert.Equal(t, Degraded, report.Fidelity)
	found := false
	for _, l := range report.Losses {
		if strings.Contains(l, "system") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestDetectDialect(t *testing.T) {
	var msgs []map[string]any
	require.NoError(t, json.Unmarshal(
		[]byte(`[{"role":"system","content":"x"}]`), &msgs))
	d, ok := DetectDialect(msgs)
	assert.True(t, ok)
	assert.Equal(t, OpenAI, d)

	msgs = nil
	require.NoError(t, json.Unmarshal(
		[]byte(`[{"role":"assistant","tool_calls":[]}]`), &msgs))
	d, _ = DetectDialect(msgs)
	assert.Equal(t, OpenAI, d)

	msgs = nil
	require.NoError(t, json.Unmarshal(
		[]byte(`[{"role":"user","parts":[{"text":"x"}]}]`), &msgs))
	d, _ = DetectDialect(msgs)
	assert.Equal(t, Gemini, d)

	msgs = nil
	require.NoError(t, json.Unmarshal(
		[]byte(`[{"role":"user","content":"x"}]`), &msgs))
	d, _ = DetectDialect(msgs)
	assert.Equal(t, Claude, d)

	_, ok = DetectDialect(nil)
	assert.False(t, ok)

	_, ok = DetectDialectRaw(json.RawMessage(`"not an array"`))
	assert.False(t, ok)
}
