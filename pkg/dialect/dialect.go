// Package dialect translates conversations, tool definitions, and model
// names between vendor wire shapes via the neutral IR.
//
// Translation is measured, not perfect: the mappers record a loss entry when
// they drop or fold a system turn, drop thinking content, drop user images
// for an OpenAI-family target, or drop a message with an unknown OpenAI role.
// Other content the target shape cannot carry (copilot_references on a
// non-Copilot target, images on assistant or tool turns for an OpenAI-family
// target, unrecognized part or block types) is dropped without a loss entry.
package dialect

import (
	"encoding/json"
	"fmt"
)

// Dialect identifies a vendor wire shape.
type Dialect string

// Dialects. Abp and Mock are internal shapes that pass model names through
// untranslated.
const (
	Claude  Dialect = "claude"
	OpenAI  Dialect = "openai"
	Gemini  Dialect = "gemini"
	Copilot Dialect = "copilot"
	Codex   Dialect = "codex"
	Kimi    Dialect = "kimi"
	Abp     Dialect = "abp"
	Mock    Dialect = "mock"
)

// ParseDialect resolves a dialect name, tolerating the open_ai spelling.
func ParseDialect(s string) (Dialect, error) {
	switch s {
	case "claude":
		return Claude, nil
	case "openai", "open_ai":
		return OpenAI, nil
	case "gemini":
		return Gemini, nil
	case "copilot":
		return Copilot, nil
	case "codex":
		return Codex, nil
	case "kimi":
		return Kimi, nil
	case "abp":
		return Abp, nil
	case "mock":
		return Mock, nil
	default:
		return "", fmt.Errorf("unknown dialect %q", s)
	}
}

// openAIShaped reports whether the dialect uses the OpenAI chat message
// shape. Codex and Kimi are OpenAI-compatible; Copilot is a thin wrapper.
func openAIShaped(d Dialect) bool {
	switch d {
	case OpenAI, Codex, Kimi, Copilot:
		return true
	default:
		return false
	}
}

// DetectDialect guesses the dialect of a raw message array. Returns false
// only when the slice is empty; a non-empty slice with no distinguishing
// marks detects as Claude.
func DetectDialect(messages []map[string]any) (Dialect, bool) {
	if len(messages) == 0 {
		return "", false
	}
	for _, m := range messages {
		if _, ok := m["copilot_references"]; ok {
			return Copilot, true
		}
	}
	for _, m := range messages {
		if _, ok := m["parts"]; ok {
			return Gemini, true
		}
	}
	for _, m := range messages {
		if _, ok := m["tool_calls"]; ok {
			return OpenAI, true
		}
		if role, _ := m["role"].(string); role == "system" {
			return OpenAI, true
		}
	}
	return Claude, true
}

// DetectDialectRaw decodes raw JSON and detects its dialect. Non-array input
// detects nothing.
func DetectDialectRaw(raw json.RawMessage) (Dialect, bool) {
	var messages []map[string]any
	if err := json.Unmarshal(raw, &messages); err != nil {
		return "", false
	}
	return DetectDialect(messages)
}
