package ui

import (
	"errors"
	"strings"
	"testing"

	"github.com/quillsh/quill/internal/types"
)

func TestBanner(t *testing.T) {
	banner := Banner()
	if len(banner) == 0 {
		t.Fatal("Banner returned empty string")
	}
	if !strings.Contains(banner, "AI coding agent") {
		t.Error("Banner should contain the tagline")
	}
}

func TestFormatArgs(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"nil args", nil, ""},
		{"single", map[string]any{"path": "main.go"}, "{path=main.go}"},
		{"sorted keys", map[string]any{"b": "2", "a": "1"}, "{a=1, b=2}"},
		{"newlines escaped", map[string]any{"content": "a\nb"}, `{content=a\nb}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatArgs(tt.args); got != tt.want {
				t.Errorf("formatArgs = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatArgs_TruncatesLongValues(t *testing.T) {
	got := formatArgs(map[string]any{"content": strings.Repeat("x", 100)})
	if !strings.Contains(got, "...") {
		t.Errorf("long value not shortened: %q", got)
	}
	if len(got) > 60 {
		t.Errorf("rendered args too long: %d chars", len(got))
	}
}

func TestHandleAgentEvent_FinalAnswer(t *testing.T) {
	m := NewModel(Callbacks{})

	m.handleAgentEvent(types.AgentEvent{
		State:       types.StateResponding,
		FinalAnswer: "all done",
	})

	if m.state != types.StateIdle {
		t.Errorf("state = %v, want idle", m.state)
	}
	if len(m.messages) != 1 || m.messages[0].role != "assistant" {
		t.Fatalf("messages = %+v", m.messages)
	}
	if m.messages[0].content != "all done" {
		t.Errorf("content = %q", m.messages[0].content)
	}
}

func TestHandleAgentEvent_ToolFlow(t *testing.T) {
	m := NewModel(Callbacks{})

	m.handleAgentEvent(types.AgentEvent{
		State:    types.StateToolCall,
		ToolCall: &types.ToolInvocation{Name: "read", Args: map[string]any{"path": "x"}},
	})
	if m.currentTool == nil || m.currentTool.name != "read" {
		t.Fatalf("currentTool = %+v", m.currentTool)
	}

	m.handleAgentEvent(types.AgentEvent{
		State:      types.StateThinking,
		ToolResult: &types.ToolResult{ToolName: "read", Success: true, Output: "contents"},
	})
	if m.currentTool != nil {
		t.Error("currentTool should be cleared after the result")
	}
	if len(m.messages) != 1 || m.messages[0].role != "tool" {
		t.Fatalf("messages = %+v", m.messages)
	}
	if !m.messages[0].tool.done || !m.messages[0].tool.success {
		t.Errorf("tool entry = %+v", m.messages[0].tool)
	}
}

func TestHandleAgentEvent_Error(t *testing.T) {
	m := NewModel(Callbacks{})

	m.handleAgentEvent(types.AgentEvent{
		State: types.StateError,
		Error: errors.New("model unreachable"),
	})

	if m.state != types.StateIdle {
		t.Errorf("state = %v, want idle", m.state)
	}
	if len(m.messages) != 1 || !strings.Contains(m.messages[0].content, "model unreachable") {
		t.Fatalf("messages = %+v", m.messages)
	}
}

func TestHandleCommand(t *testing.T) {
	cleared := false
	m := NewModel(Callbacks{
		ToolManifest: func() string { return "- read: Read a file\n" },
		ClearHistory: func() { cleared = true },
	})
	m.messages = append(m.messages, chatMessage{role: "user", content: "hi"})

	if handled, _ := m.handleCommand("not a command"); handled {
		t.Error("plain query treated as command")
	}

	if handled, _ := m.handleCommand("tools"); !handled {
		t.Fatal("tools not handled")
	}
	last := m.messages[len(m.messages)-1]
	if !strings.Contains(last.content, "- read:") {
		t.Errorf("tools output = %q", last.content)
	}

	if handled, _ := m.handleCommand("/clear"); !handled {
		t.Fatal("slash-prefixed clear not handled")
	}
	if !cleared {
		t.Error("ClearHistory callback not invoked")
	}
	if len(m.messages) != 0 {
		t.Errorf("transcript not cleared: %d messages", len(m.messages))
	}
}
