// Package types defines shared data structures for the quill agent.
package types

import "time"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message represents a message in the conversation history.
// Messages are immutable once appended; slice order is conversation order.
type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolName  string         `json:"tool_name,omitempty"`
	ToolArgs  map[string]any `json:"tool_args,omitempty"`
	Timestamp time.Time      `json:"timestamp,omitempty"`
}

// ToolInvocation is a tool request parsed from model output text.
// It is transient and never persisted.
type ToolInvocation struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
	Raw  string         `json:"-"`
}

// ToolResult holds the outcome of a single tool execution.
type ToolResult struct {
	ToolName string        `json:"tool_name"`
	Success  bool          `json:"success"`
	Output   string        `json:"output"`
	Duration time.Duration `json:"duration,omitempty"`
}

// AgentState represents the current state of agent processing.
type AgentState int

const (
	StateIdle AgentState = iota
	StateThinking
	StateToolCall
	StateToolExecuting
	StateReflecting
	StateResponding
	StateError
)

// String returns a human-readable state name.
func (s AgentState) String() string {
	names := [...]string{
		"Idle",
		"Thinking",
		"Planning tool call",
		"Executing tool",
		"Reflecting",
		"Responding",
		"Error",
	}
	if int(s) >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "Unknown"
}

// AgentEvent is sent during agent processing to update the UI.
type AgentEvent struct {
	State       AgentState
	Message     string
	ToolCall    *ToolInvocation
	ToolResult  *ToolResult
	FinalAnswer string
	Error       error
}
