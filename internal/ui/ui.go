// Package ui provides the interactive REPL built on Bubble Tea.
package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/quillsh/quill/internal/types"
	"github.com/quillsh/quill/internal/validator"
)

// displayCap bounds how much of a final answer is rendered. The full
// text still lives in history.
const displayCap = 2000

// Callbacks connects the REPL to the agent without depending on it.
type Callbacks struct {
	// ProcessQuery returns the command that runs one turn. Progress
	// arrives as types.AgentEvent messages sent to the program.
	ProcessQuery func(query string) tea.Cmd
	// ToolManifest renders the registered tools for the tools command.
	ToolManifest func() string
	// ClearHistory resets the conversation for the clear command.
	ClearHistory func()
	// ModelInfo is shown under the banner, e.g. "gpt-4o @ https://...".
	ModelInfo string
}

// Model is the Bubble Tea model for the quill REPL.
type Model struct {
	textInput textinput.Model
	spinner   spinner.Model
	viewport  viewport.Model
	styles    Styles

	state       types.AgentState
	messages    []chatMessage
	currentTool *toolExecution
	width       int
	height      int
	ready       bool
	quitting    bool

	callbacks Callbacks
}

// chatMessage is one rendered entry in the transcript.
type chatMessage struct {
	role    string // "user", "assistant", "system", "tool"
	content string
	tool    *toolExecution
}

// toolExecution tracks one tool call and its result.
type toolExecution struct {
	name     string
	args     map[string]any
	output   string
	success  bool
	duration string
	done     bool
}

// NewModel creates the REPL model.
func NewModel(cb Callbacks) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask anything... (e.g., 'create hello.py that prints hi and run it')"
	ti.Focus()
	ti.CharLimit = 4000
	ti.Width = 80

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = DefaultStyles().Spinner

	return Model{
		textInput: ti,
		spinner:   s,
		viewport:  viewport.New(0, 0),
		styles:    DefaultStyles(),
		state:     types.StateIdle,
		messages:  make([]chatMessage, 0),
		callbacks: cb,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
	)
}

// headerHeight returns the terminal lines occupied by the banner block.
func (m Model) headerHeight() int {
	header := m.styles.BannerTitle.Render(Banner())
	return lipgloss.Height(header) + 3 // banner + model line + blank line
}

// footerHeight returns the terminal lines occupied by the input + help bar.
func (m Model) footerHeight() int {
	return 4
}

// updateViewport rebuilds the transcript and scrolls to the bottom.
func (m *Model) updateViewport() {
	var b strings.Builder

	for _, msg := range m.messages {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}

	if m.currentTool != nil && !m.currentTool.done {
		b.WriteString(m.renderToolInProgress())
		b.WriteString("\n")
	}

	if m.state != types.StateIdle {
		b.WriteString(fmt.Sprintf("%s %s\n",
			m.spinner.View(),
			m.styles.StateLabel.Render(m.state.String()+"...")))
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.quitting = true
			return m, tea.Quit

		case tea.KeyEnter:
			if m.state != types.StateIdle {
				return m, nil
			}

			query := strings.TrimSpace(m.textInput.Value())
			if query == "" {
				return m, nil
			}

			if handled, cmd := m.handleCommand(query); handled {
				m.textInput.SetValue("")
				m.updateViewport()
				return m, cmd
			}

			m.messages = append(m.messages, chatMessage{role: "user", content: query})
			m.textInput.SetValue("")
			m.state = types.StateThinking
			m.updateViewport()

			if m.callbacks.ProcessQuery != nil {
				cmds = append(cmds, m.callbacks.ProcessQuery(query))
			}
			return m, tea.Batch(cmds...)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textInput.Width = msg.Width - 10

		vpHeight := msg.Height - m.headerHeight() - m.footerHeight()
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.ready = true
		m.updateViewport()

	case types.AgentEvent:
		m.handleAgentEvent(msg)
		m.updateViewport()
		return m, m.spinner.Tick

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		if m.state != types.StateIdle {
			m.updateViewport()
		}
	}

	if m.state == types.StateIdle {
		var tiCmd tea.Cmd
		m.textInput, tiCmd = m.textInput.Update(msg)
		cmds = append(cmds, tiCmd)
	}

	var vpCmd tea.Cmd
	m.viewport, vpCmd = m.viewport.Update(msg)
	cmds = append(cmds, vpCmd)

	return m, tea.Batch(cmds...)
}

// handleCommand intercepts REPL commands. Returns false when the input
// is a regular query.
func (m *Model) handleCommand(input string) (bool, tea.Cmd) {
	switch strings.ToLower(strings.TrimPrefix(input, "/")) {
	case "exit", "quit", "q":
		m.quitting = true
		return true, tea.Quit

	case "clear":
		m.messages = make([]chatMessage, 0)
		if m.callbacks.ClearHistory != nil {
			m.callbacks.ClearHistory()
		}
		return true, nil

	case "help", "?":
		m.messages = append(m.messages, chatMessage{
			role: "system",
			content: `Commands:
  help, ?     Show this help
  tools       List available tools
  clear       Reset the conversation
  exit, quit  Leave quill

Anything else is sent to the model.`,
		})
		return true, nil

	case "tools":
		manifest := "no tools registered"
		if m.callbacks.ToolManifest != nil {
			if mf := m.callbacks.ToolManifest(); mf != "" {
				manifest = mf
			}
		}
		m.messages = append(m.messages, chatMessage{
			role:    "system",
			content: "Available tools:\n" + manifest,
		})
		return true, nil
	}

	return false, nil
}

// handleAgentEvent folds one agent progress event into the transcript.
func (m *Model) handleAgentEvent(event types.AgentEvent) {
	m.state = event.State

	// A result closes out the in-flight tool line whatever state
	// accompanies it.
	if event.ToolResult != nil {
		tool := m.currentTool
		if tool == nil {
			tool = &toolExecution{name: event.ToolResult.ToolName}
		}
		tool.success = event.ToolResult.Success
		tool.output = event.ToolResult.Output
		tool.duration = event.ToolResult.Duration.String()
		tool.done = true
		m.messages = append(m.messages, chatMessage{role: "tool", tool: tool})
		m.currentTool = nil
	}

	switch event.State {
	case types.StateToolCall, types.StateToolExecuting:
		if event.ToolCall != nil {
			m.currentTool = &toolExecution{
				name: event.ToolCall.Name,
				args: event.ToolCall.Args,
			}
		}

	case types.StateResponding:
		if event.FinalAnswer != "" {
			m.messages = append(m.messages, chatMessage{
				role:    "assistant",
				content: validator.Elide(event.FinalAnswer, displayCap),
			})
		}
		m.state = types.StateIdle
		m.currentTool = nil

	case types.StateError:
		text := "an error occurred"
		if event.Error != nil {
			text = event.Error.Error()
		}
		m.messages = append(m.messages, chatMessage{role: "system", content: "Error: " + text})
		m.state = types.StateIdle
		m.currentTool = nil
	}
}

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return m.styles.SystemMessage.Render("Goodbye!\n")
	}
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder

	b.WriteString(m.styles.BannerTitle.Render(Banner()))
	b.WriteString("\n")
	b.WriteString(m.styles.StatusText.Render(m.callbacks.ModelInfo))
	b.WriteString("\n\n")

	b.WriteString(m.viewport.View())
	b.WriteString("\n")

	b.WriteString(m.styles.Prompt.Render("> "))
	if m.state == types.StateIdle {
		b.WriteString(m.textInput.View())
	} else {
		b.WriteString(m.styles.StatusText.Render("(working...)"))
	}
	b.WriteString("\n")
	b.WriteString(m.renderHelpBar())

	return m.styles.App.Render(b.String())
}

// renderMessage renders one transcript entry.
func (m Model) renderMessage(msg chatMessage) string {
	switch msg.role {
	case "user":
		return m.styles.UserMessage.Render("You: " + msg.content)
	case "assistant":
		return m.styles.AssistantMessage.Render(msg.content)
	case "system":
		return m.styles.SystemMessage.Render(msg.content)
	case "tool":
		if msg.tool != nil {
			return m.renderToolResult(msg.tool)
		}
	}
	return ""
}

// renderToolResult renders a completed tool call as the ● / → pair.
func (m Model) renderToolResult(t *toolExecution) string {
	var b strings.Builder

	b.WriteString(m.styles.ToolName.Render("● " + t.name))
	if argText := formatArgs(t.args); argText != "" {
		b.WriteString(" ")
		b.WriteString(m.styles.ToolParams.Render(argText))
	}
	b.WriteString("\n")

	arrow := m.styles.ToolSuccess
	if !t.success {
		arrow = m.styles.ToolError
	}
	output := validator.Elide(t.output, 300)
	for i, line := range strings.Split(output, "\n") {
		if line == "" {
			continue
		}
		if i == 0 {
			b.WriteString(arrow.Render("  → " + line))
		} else {
			b.WriteString(m.styles.ToolOutput.Render("    " + line))
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// renderToolInProgress renders the tool currently executing.
func (m Model) renderToolInProgress() string {
	var b strings.Builder
	b.WriteString(m.styles.ToolName.Render("● " + m.currentTool.name))
	if argText := formatArgs(m.currentTool.args); argText != "" {
		b.WriteString(" ")
		b.WriteString(m.styles.ToolParams.Render(argText))
	}
	b.WriteString("\n  ")
	b.WriteString(m.spinner.View())
	b.WriteString(m.styles.StatusText.Render(" running..."))
	return b.String()
}

// renderHelpBar renders the bottom help bar.
func (m Model) renderHelpBar() string {
	help := []string{
		m.styles.HelpKey.Render("enter") + m.styles.HelpValue.Render(" send"),
		m.styles.HelpKey.Render("ctrl+c") + m.styles.HelpValue.Render(" quit"),
		m.styles.HelpKey.Render("help") + m.styles.HelpValue.Render(" commands"),
		m.styles.HelpKey.Render("tools") + m.styles.HelpValue.Render(" list tools"),
	}
	return m.styles.HelpBar.Render(strings.Join(help, "  |  "))
}

// formatArgs renders tool arguments as {k=v, ...} with sorted keys, long
// values shortened.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := fmt.Sprintf("%v", args[k])
		if len(v) > 40 {
			v = v[:40] + "..."
		}
		v = strings.ReplaceAll(v, "\n", "\\n")
		parts = append(parts, fmt.Sprintf("%s=%s", k, v))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
