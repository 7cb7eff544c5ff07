// Package ir defines the neutral conversation intermediate representation.
// The IR is lossless for the union of vendor features; each dialect projects
// onto it best-effort and reports what was lost.
package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role identifies the author of a message.
type Role string

// Roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// UnmarshalJSON rejects unknown roles.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch Role(s) {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		*r = Role(s)
		return nil
	default:
		return fmt.Errorf("unknown IR role %q", s)
	}
}

// BlockType discriminates ContentBlock variants.
type BlockType string

// Block types.
const (
	BlockText       BlockType = "text"
	BlockImage      BlockType = "image"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
	BlockThinking   BlockType = "thinking"
)

// ContentBlock is one tagged unit of message content.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// text, thinking
	Text string `json:"text,omitempty"`
	// image
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
	// tool_result
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   []ContentBlock `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

// Text builds a text block.
func Text(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// Image builds an image block carrying base64 data.
func Image(mediaType, data string) ContentBlock {
	return ContentBlock{Type: BlockImage, MediaType: mediaType, Data: data}
}

// ToolUse builds a tool invocation block.
func ToolUse(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

// ToolResult builds a tool result block.
func ToolResult(toolUseID string, content []ContentBlock, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// Thinking builds an extended-thinking block.
func Thinking(text string) ContentBlock {
	return ContentBlock{Type: BlockThinking, Text: text}
}

// Message is one turn of an IR conversation.
type Message struct {
	Role     Role           `json:"role"`
	Content  []ContentBlock `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewMessage builds a message from blocks.
func NewMessage(role Role, blocks ...ContentBlock) Message {
	if blocks == nil {
		blocks = []ContentBlock{}
	}
	return Message{Role: role, Content: blocks}
}

// TextMessage builds a single-text-block message.
func TextMessage(role Role, text string) Message {
	return NewMessage(role, Text(text))
}

// IsTextOnly reports whether every block is a text block.
func (m Message) IsTextOnly() bool {
	for _, b := range m.Content {
		if b.Type != BlockText {
			return false
		}
	}
	return true
}

// TextContent concatenates the message's text blocks.
func (m Message) TextContent() string {
	var sb strings.Builder
	for _, b := range m.Content {
		if b.Type == BlockText {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// ToolUses returns the message's tool_use blocks.
func (m Message) ToolUses() []ContentBlock {
	var out []ContentBlock
	for _, b := range m.Content {
		if b.Type == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// Conversation is an ordered sequence of IR messages.
type Conversation struct {
	Messages []Message `json:"messages"`
}

// NewConversation builds a conversation from messages.
func NewConversation(messages ...Message) Conversation {
	if messages == nil {
		messages = []Message{}
	}
	return Conversation{Messages: messages}
}

// Len returns the number of messages.
func (c Conversation) Len() int { return len(c.Messages) }

// IsEmpty reports whether the conversation has no messages.
func (c Conversation) IsEmpty() bool { return len(c.Messages) == 0 }

// SystemMessage returns the first system message, if any.
func (c Conversation) SystemMessage() (Message, bool) {
	for _, m := range c.Messages {
		if m.Role == RoleSystem {
			return m, true
		}
	}
	return Message{}, false
}

// LastAssistant returns the last assistant message, if any.
func (c Conversation) LastAssistant() (Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleAssistant {
			return c.Messages[i], true
		}
	}
	return Message{}, false
}

// LastMessage returns the final message, if any.
func (c Conversation) LastMessage() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// MessagesByRole returns the messages with the given role, in order.
func (c Conversation) MessagesByRole(role Role) []Message {
	var out []Message
	for _, m := range c.Messages {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

// ToolCalls returns every tool_use block across the conversation, in order.
func (c Conversation) ToolCalls() []ContentBlock {
	var out []ContentBlock
	for _, m := range c.Messages {
		out = append(out, m.ToolUses()...)
	}
	return out
}

// PrependSystem prepends text to the conversation's system message, creating
// one when absent. Used by system-prompt-injection emulation.
func (c *Conversation) PrependSystem(text string) {
	for i, m := range c.Messages {
		if m.Role == RoleSystem {
			blocks := append([]ContentBlock{Text(text)}, m.Content...)
			c.Messages[i].Content = blocks
			return
		}
	}
	c.Messages = append([]Message{TextMessage(RoleSystem, text)}, c.Messages...)
}

// AppendSystem appends text to the conversation's system message, creating
// one when absent.
func (c *Conversation) AppendSystem(text string) {
	for i, m := range c.Messages {
		if m.Role == RoleSystem {
			c.Messages[i].Content = append(c.Messages[i].Content, Text(text))
			return
		}
	}
	c.Messages = append([]Message{TextMessage(RoleSystem, text)}, c.Messages...)
}
