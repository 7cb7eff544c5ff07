package dialect

import (
	"encoding/json"

	"github.com/Mindburn-Labs/backplane/pkg/ir"
)

// claudeToIR lifts Claude messages onto the IR. Assistant content may be a
// plain string or a JSON-encoded string of content blocks.
func claudeToIR(messages []map[string]any) (ir.Conversation, []string) {
	var losses []string
	conv := ir.NewConversation()

	for _, m := range messages {
		role, _ := m["role"].(string)
		irRole := ir.RoleUser
		switch role {
		case "assistant":
			irRole = ir.RoleAssistant
		case "system":
			irRole = ir.RoleSystem
		case "tool":
			irRole = ir.RoleTool
		}

		switch content := m["content"].(type) {
		case string:
			if blocks, ok := decodeClaudeBlockString(content); ok {
				conv.Messages = append(conv.Messages, ir.NewMessage(irRole, blocks...))
			} else {
				conv.Messages = append(conv.Messages, ir.TextMessage(irRole, content))
			}
		case []any:
			blocks := claudeBlocksToIR(content)
			conv.Messages = append(conv.Messages, ir.NewMessage(irRole, blocks...))
		default:
			conv.Messages = append(conv.Messages, ir.TextMessage(irRole, ""))
		}
	}
	return conv, losses
}

// decodeClaudeBlockString tries to read a content string as an encoded block
// array; plain prose fails the probe and stays a text block.
func decodeClaudeBlockString(content string) ([]ir.ContentBlock, bool) {
	if len(content) == 0 || content[0] != '[' {
		return nil, false
	}
	var rawBlocks []map[string]any
	if err := json.Unmarshal([]byte(content), &rawBlocks); err != nil {
		return nil, false
	}
	for _, rb := range rawBlocks {
		if _, ok := rb["type"].(string); !ok {
			return nil, false
		}
	}
	return claudeRawBlocksToIR(rawBlocks), true
}

func claudeBlocksToIR(raw []any) []ir.ContentBlock {
	var objs []map[string]any
	for _, r := range raw {
		if obj, ok := r.(map[string]any); ok {
			objs = append(objs, obj)
		}
	}
	return claudeRawBlocksToIR(objs)
}

func claudeRawBlocksToIR(rawBlocks []map[string]any) []ir.ContentBlock {
	var blocks []ir.ContentBlock
	for _, rb := range rawBlocks {
		switch rb["type"] {
		case "text":
			text, _ := rb["text"].(string)
			blocks = append(blocks, ir.Text(text))
		case "tool_use":
			id, _ := rb["id"].(string)
			name, _ := rb["name"].(string)
			input, _ := json.Marshal(rb["input"])
			blocks = append(blocks, ir.ToolUse(id, name, input))
		case "tool_result":
			id, _ := rb["tool_use_id"].(string)
			isErr, _ := rb["is_error"].(bool)
			var inner []ir.ContentBlock
			if text, ok := rb["content"].(string); ok {
				inner = []ir.ContentBlock{ir.Text(text)}
			}
			blocks = append(blocks, ir.ToolResult(id, inner, isErr))
		case "thinking":
			text, _ := rb["thinking"].(string)
			blocks = append(blocks, ir.Thinking(text))
		case "image":
			source, _ := rb["source"].(map[string]any)
			mediaType, _ := source["media_type"].(string)
			data, _ := source["data"].(string)
			blocks = append(blocks, ir.Image(mediaType, data))
		}
	}
	return blocks
}

// claudeFromIR lowers the IR into Claude messages. System messages are
// dropped with a loss entry: the Claude shape carries system content
// top-level, outside the message list. Tool results are re-homed onto user
// turns the way the Messages API expects.
func claudeFromIR(conv ir.Conversation) ([]map[string]any, []string) {
	var losses []string
	out := []map[string]any{}

	for _, m := range conv.Messages {
		switch m.Role {
		case ir.RoleSystem:
			losses = append(losses, "system role dropped: target has no system message")
		case ir.RoleUser:
			out = append(out, claudeMessage("user", m))
		case ir.RoleAssistant:
			out = append(out, claudeMessage("assistant", m))
		case ir.RoleTool:
			out = append(out, claudeMessage("user", m))
		}
	}
	return out, losses
}

func claudeMessage(role string, m ir.Message) map[string]any {
	if m.IsTextOnly() {
		return map[string]any{"role": role, "content": m.TextContent()}
	}
	encoded, _ := json.Marshal(irBlocksToClaude(m.Content))
	return map[string]any{"role": role, "content": string(encoded)}
}

func irBlocksToClaude(blocks []ir.ContentBlock) []map[string]any {
	out := []map[string]any{}
	for _, b := range blocks {
		switch b.Type {
		case ir.BlockText:
			out = append(out, map[string]any{"type": "text", "text": b.Text})
		case ir.BlockToolUse:
			var input any
			if err := json.Unmarshal(b.Input, &input); err != nil {
				input = string(b.Input)
			}
			out = append(out, map[string]any{
				"type": "tool_use", "id": b.ID, "name": b.Name, "input": input,
			})
		case ir.BlockToolResult:
			block := map[string]any{
				"type":        "tool_result",
				"tool_use_id": b.ToolUseID,
				"content":     blockText(b.Content),
			}
			if b.IsError {
				block["is_error"] = true
			}
			out = append(out, block)
		case ir.BlockThinking:
			out = append(out, map[string]any{"type": "thinking", "thinking": b.Text})
		case ir.BlockImage:
			out = append(out, map[string]any{
				"type": "image",
				"source": map[string]any{
					"type": "base64", "media_type": b.MediaType, "data": b.Data,
				},
			})
		}
	}
	return out
}
