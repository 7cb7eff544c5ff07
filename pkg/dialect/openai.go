package dialect

import (
	"encoding/json"
	"fmt"

	"github.com/Mindburn-Labs/backplane/pkg/ir"
)

// openaiToIR lifts OpenAI-family chat messages onto the IR. Codex and Kimi
// share this shape.
func openaiToIR(messages []map[string]any) (ir.Conversation, []string) {
	var losses []string
	conv := ir.NewConversation()

	for i, m := range messages {
		role, _ := m["role"].(string)
		content, _ := m["content"].(string)

		switch role {
		case "system":
			conv.Messages = append(conv.Messages, ir.TextMessage(ir.RoleSystem, content))
		case "user":
			conv.Messages = append(conv.Messages, ir.TextMessage(ir.RoleUser, content))
		case "assistant":
			var blocks []ir.ContentBlock
			if content != "" {
				blocks = append(blocks, ir.Text(content))
			}
			blocks = append(blocks, openaiToolCallBlocks(m)...)
			conv.Messages = append(conv.Messages, ir.NewMessage(ir.RoleAssistant, blocks...))
		case "tool":
			id, _ := m["tool_call_id"].(string)
			blocks := []ir.ContentBlock{ir.Text(content)}
			conv.Messages = append(conv.Messages,
				ir.NewMessage(ir.RoleTool, ir.ToolResult(id, blocks, false)))
		default:
			losses = append(losses,
				fmt.Sprintf("message %d: unknown role %q dropped", i, role))
		}
	}
	return conv, losses
}

func openaiToolCallBlocks(m map[string]any) []ir.ContentBlock {
	rawCalls, _ := m["tool_calls"].([]any)
	var blocks []ir.ContentBlock
	for _, rc := range rawCalls {
		call, ok := rc.(map[string]any)
		if !ok {
			continue
		}
		id, _ := call["id"].(string)
		fn, _ := call["function"].(map[string]any)
		name, _ := fn["name"].(string)
		args, _ := fn["arguments"].(string)

		// arguments is a JSON-encoded string; fall back to quoting when the
		// payload does not parse.
		input := json.RawMessage(args)
		if !json.Valid(input) {
			quoted, _ := json.Marshal(args)
			input = quoted
		}
		blocks = append(blocks, ir.ToolUse(id, name, input))
	}
	return blocks
}

// openaiFromIR lowers the IR into OpenAI-family chat messages.
func openaiFromIR(conv ir.Conversation) ([]map[string]any, []string) {
	var losses []string
	out := []map[string]any{}

	for _, m := range conv.Messages {
		switch m.Role {
		case ir.RoleSystem:
			out = append(out, map[string]any{
				"role":    "system",
				"content": m.TextContent(),
			})
		case ir.RoleUser:
			for _, b := range m.Content {
				if b.Type == ir.BlockImage {
					losses = append(losses,
						"image content dropped: target carries text-only user messages")
				}
			}
			out = append(out, map[string]any{
				"role":    "user",
				"content": m.TextContent(),
			})
		case ir.RoleAssistant:
			msg := map[string]any{"role": "assistant"}
			var toolCalls []any
			for _, b := range m.Content {
				switch b.Type {
				case ir.BlockToolUse:
					toolCalls = append(toolCalls, map[string]any{
						"id":   b.ID,
						"type": "function",
						"function": map[string]any{
							"name":      b.Name,
							"arguments": string(b.Input),
						},
					})
				case ir.BlockThinking:
					losses = append(losses,
						"thinking content dropped: target has no thinking blocks")
				}
			}
			if text := m.TextContent(); text != "" {
				msg["content"] = text
			} else {
				msg["content"] = nil
			}
			if len(toolCalls) > 0 {
				msg["tool_calls"] = toolCalls
			}
			out = append(out, msg)
		case ir.RoleTool:
			for _, b := range m.Content {
				if b.Type != ir.BlockToolResult {
					continue
				}
				out = append(out, map[string]any{
					"role":         "tool",
					"content":      blockText(b.Content),
					"tool_call_id": b.ToolUseID,
				})
			}
		}
	}
	return out, losses
}

// blockText concatenates the text blocks of a nested block list.
func blockText(blocks []ir.ContentBlock) string {
	text := ""
	for _, b := range blocks {
		if b.Type == ir.BlockText {
			text += b.Text
		}
	}
	return text
}
