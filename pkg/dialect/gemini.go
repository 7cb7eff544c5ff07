package dialect

import (
	"encoding/json"
	"fmt"

	"github.com/Mindburn-Labs/backplane/pkg/ir"
)

// geminiToIR lifts Gemini contents onto the IR. Roles are user/model; parts
// carry text, functionCall, or functionResponse payloads. The uppercase Text
// key emitted by some Gemini SDK versions is accepted.
func geminiToIR(messages []map[string]any) (ir.Conversation, []string) {
	var losses []string
	conv := ir.NewConversation()
	callSeq := 0

	for _, m := range messages {
		role, _ := m["role"].(string)
		irRole := ir.RoleUser
		if role == "model" {
			irRole = ir.RoleAssistant
		}

		parts, _ := m["parts"].([]any)
		var blocks []ir.ContentBlock
		for _, rp := range parts {
			part, ok := rp.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := part["text"].(string); ok {
				blocks = append(blocks, ir.Text(text))
				continue
			}
			if text, ok := part["Text"].(string); ok {
				blocks = append(blocks, ir.Text(text))
				continue
			}
			if fc, ok := part["functionCall"].(map[string]any); ok {
				name, _ := fc["name"].(string)
				args, _ := json.Marshal(fc["args"])
				callSeq++
				blocks = append(blocks, ir.ToolUse(fmt.Sprintf("call_%d", callSeq), name, args))
				continue
			}
			if fr, ok := part["functionResponse"].(map[string]any); ok {
				name, _ := fr["name"].(string)
				response, _ := json.Marshal(fr["response"])
				blocks = append(blocks,
					ir.ToolResult(name, []ir.ContentBlock{ir.Text(string(response))}, false))
				continue
			}
		}
		conv.Messages = append(conv.Messages, ir.NewMessage(irRole, blocks...))
	}
	return conv, losses
}

// geminiFromIR lowers the IR into Gemini contents. Gemini has no system
// role: system content is folded into a prepended user turn and the fold is
// recorded as a loss.
func geminiFromIR(conv ir.Conversation) ([]map[string]any, []string) {
	var losses []string
	out := []map[string]any{}

	for _, m := range conv.Messages {
		role := "user"
		switch m.Role {
		case ir.RoleSystem:
			losses = append(losses,
				"system role folded into prepended user turn: target has no system message")
		case ir.RoleAssistant:
			role = "model"
		}

		parts := []any{}
		for _, b := range m.Content {
			switch b.Type {
			case ir.BlockText:
				parts = append(parts, map[string]any{"text": b.Text})
			case ir.BlockToolUse:
				var args any
				if err := json.Unmarshal(b.Input, &args); err != nil {
					args = string(b.Input)
				}
				parts = append(parts, map[string]any{
					"functionCall": map[string]any{"name": b.Name, "args": args},
				})
			case ir.BlockToolResult:
				parts = append(parts, map[string]any{
					"functionResponse": map[string]any{
						"name":     b.ToolUseID,
						"response": map[string]any{"content": blockText(b.Content)},
					},
				})
			case ir.BlockThinking:
				losses = append(losses,
					"thinking content dropped: target has no thinking blocks")
			case ir.BlockImage:
				parts = append(parts, map[string]any{
					"inlineData": map[string]any{
						"mimeType": b.MediaType, "data": b.Data,
					},
				})
			}
		}
		out = append(out, map[string]any{"role": role, "parts": parts})
	}
	return out, losses
}
