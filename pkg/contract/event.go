package contract

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType discriminates AgentEvent variants on the wire field "type".
// Envelope tags use "t"; the two discriminators are deliberately distinct so
// an envelope can carry an event without key collision.
type EventType string

// Event types.
const (
	EventRunStarted       EventType = "run_started"
	EventRunCompleted     EventType = "run_completed"
	EventAssistantDelta   EventType = "assistant_delta"
	EventAssistantMessage EventType = "assistant_message"
	EventToolCall         EventType = "tool_call"
	EventToolResult       EventType = "tool_result"
	EventFileChanged      EventType = "file_changed"
	EventCommandExecuted  EventType = "command_executed"
	EventWarning          EventType = "warning"
	EventError            EventType = "error"
)

var knownEventTypes = map[EventType]struct{}{
	EventRunStarted: {}, EventRunCompleted: {}, EventAssistantDelta: {},
	EventAssistantMessage: {}, EventToolCall: {}, EventToolResult: {},
	EventFileChanged: {}, EventCommandExecuted: {}, EventWarning: {},
	EventError: {},
}

// AgentEvent is one observation in a run's trace. It is a tagged union on
// Type; only the fields belonging to the tagged variant are populated.
type AgentEvent struct {
	Type EventType      `json:"type"`
	TS   time.Time      `json:"ts"`
	Ext  map[string]any `json:"ext,omitempty"`

	// run_started, run_completed, warning, error
	Message string `json:"message,omitempty"`
	// assistant_delta, assistant_message
	Text string `json:"text,omitempty"`
	// tool_call, tool_result
	ToolName        string          `json:"tool_name,omitempty"`
	ToolUseID       string          `json:"tool_use_id,omitempty"`
	ParentToolUseID string          `json:"parent_tool_use_id,omitempty"`
	Input           json.RawMessage `json:"input,omitempty"`
	Output          json.RawMessage `json:"output,omitempty"`
	IsError         bool            `json:"is_error,omitempty"`
	// file_changed
	Path    string `json:"path,omitempty"`
	Summary string `json:"summary,omitempty"`
	// command_executed
	Command       string `json:"command,omitempty"`
	ExitCode      int    `json:"exit_code,omitempty"`
	OutputPreview string `json:"output_preview,omitempty"`
}

// UnmarshalJSON rejects unknown event types.
func (e *AgentEvent) UnmarshalJSON(data []byte) error {
	type alias AgentEvent
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if _, ok := knownEventTypes[a.Type]; !ok {
		return fmt.Errorf("unknown agent event type %q", a.Type)
	}
	*e = AgentEvent(a)
	return nil
}

// NewRunStarted builds a run_started event stamped now.
func NewRunStarted(message string) AgentEvent {
	return AgentEvent{Type: EventRunStarted, TS: time.Now().UTC(), Message: message}
}

// NewRunCompleted builds a run_completed event stamped now.
func NewRunCompleted(message string) AgentEvent {
	return AgentEvent{Type: EventRunCompleted, TS: time.Now().UTC(), Message: message}
}

// NewAssistantDelta builds an assistant_delta event stamped now.
func NewAssistantDelta(text string) AgentEvent {
	return AgentEvent{Type: EventAssistantDelta, TS: time.Now().UTC(), Text: text}
}

// NewAssistantMessage builds an assistant_message event stamped now.
func NewAssistantMessage(text string) AgentEvent {
	return AgentEvent{Type: EventAssistantMessage, TS: time.Now().UTC(), Text: text}
}

// NewToolCall builds a tool_call event stamped now.
func NewToolCall(toolName, toolUseID string, input json.RawMessage) AgentEvent {
	return AgentEvent{
		Type:      EventToolCall,
		TS:        time.Now().UTC(),
		ToolName:  toolName,
		ToolUseID: toolUseID,
		Input:     input,
	}
}

// NewToolResult builds a tool_result event stamped now.
func NewToolResult(toolName, toolUseID string, output json.RawMessage, isErr bool) AgentEvent {
	return AgentEvent{
		Type:      EventToolResult,
		TS:        time.Now().UTC(),
		ToolName:  toolName,
		ToolUseID: toolUseID,
		Output:    output,
		IsError:   isErr,
	}
}

// NewFileChanged builds a file_changed event stamped now.
func NewFileChanged(path, summary string) AgentEvent {
	return AgentEvent{Type: EventFileChanged, TS: time.Now().UTC(), Path: path, Summary: summary}
}

// NewCommandExecuted builds a command_executed event stamped now.
func NewCommandExecuted(command string, exitCode int, preview string) AgentEvent {
	return AgentEvent{
		Type:          EventCommandExecuted,
		TS:            time.Now().UTC(),
		Command:       command,
		ExitCode:      exitCode,
		OutputPreview: preview,
	}
}

// NewWarning builds a warning event stamped now.
func NewWarning(message string) AgentEvent {
	return AgentEvent{Type: EventWarning, TS: time.Now().UTC(), Message: message}
}

// NewError builds an error event stamped now.
func NewError(message string) AgentEvent {
	return AgentEvent{Type: EventError, TS: time.Now().UTC(), Message: message}
}
