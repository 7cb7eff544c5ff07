package dialect

import (
	"github.com/Mindburn-Labs/backplane/pkg/ir"
)

// copilotToIR lifts Copilot messages onto the IR: the OpenAI lifting plus
// copilot_references preserved as message metadata.
func copilotToIR(messages []map[string]any) (ir.Conversation, []string) {
	conv, losses := openaiToIR(messages)
	irIdx := 0
	for _, m := range messages {
		refs, ok := m["copilot_references"]
		if !ok {
			continue
		}
		role, _ := m["role"].(string)
		for ; irIdx < len(conv.Messages); irIdx++ {
			if string(conv.Messages[irIdx].Role) == role {
				if conv.Messages[irIdx].Metadata == nil {
					conv.Messages[irIdx].Metadata = map[string]any{}
				}
				conv.Messages[irIdx].Metadata["copilot_references"] = refs
				irIdx++
				break
			}
		}
	}
	return conv, losses
}

// copilotFromIR lowers the IR into the Copilot shape: OpenAI chat messages
// with a copilot_references list attached from message metadata.
func copilotFromIR(conv ir.Conversation) ([]map[string]any, []string) {
	out, losses := openaiFromIR(conv)

	// Reattach references preserved in metadata by copilotToIR. Indexes line
	// up only for messages the OpenAI lowering kept one-to-one, so the match
	// is by position among same-role messages.
	refIdx := 0
	for _, m := range conv.Messages {
		refs, ok := m.Metadata["copilot_references"]
		if !ok {
			continue
		}
		for ; refIdx < len(out); refIdx++ {
			if out[refIdx]["role"] == string(m.Role) {
				out[refIdx]["copilot_references"] = refs
				refIdx++
				break
			}
		}
	}
	return out, losses
}
