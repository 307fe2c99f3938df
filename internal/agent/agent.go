// Package agent implements the core loop: send history to the model,
// parse the reply for a tool invocation, dispatch it, feed the result
// back, and repeat until the model answers in plain text.
package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/quillsh/quill/internal/config"
	"github.com/quillsh/quill/internal/llm"
	"github.com/quillsh/quill/internal/memory"
	"github.com/quillsh/quill/internal/reflector"
	"github.com/quillsh/quill/internal/tools"
	"github.com/quillsh/quill/internal/types"
	"github.com/quillsh/quill/internal/validator"
)

// maxIterationsMessage is the forced final answer when a turn burns
// through its tool-call budget.
const maxIterationsMessage = "Reached maximum iterations without completing the task."

// Agent orchestrates one conversation: memory, model calls, tool
// dispatch, and the reflection pass.
type Agent struct {
	cfg        *config.Config
	client     llm.Completer
	registry   *tools.Registry
	executor   *tools.Executor
	memory     *memory.Store
	reflector  *reflector.Reflector
	input      *validator.InputValidator
	output     *validator.ReplyValidator
	logger     *zap.Logger
	onEvent    func(types.AgentEvent)
	memoryPath string
}

// Config holds agent construction options. Client is required; the rest
// default sensibly.
type Config struct {
	AppConfig  *config.Config
	Client     llm.Completer
	Registry   *tools.Registry
	Memory     *memory.Store
	Reflector  *reflector.Reflector
	Logger     *zap.Logger
	OnEvent    func(types.AgentEvent)
	MemoryPath string
}

// New creates an agent from the given components.
func New(cfg Config) (*Agent, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("agent requires an llm client")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.AppConfig == nil {
		defaults := config.DefaultConfig()
		cfg.AppConfig = &defaults
	}
	if cfg.Registry == nil {
		cfg.Registry = tools.NewRegistry()
	}
	if cfg.Memory == nil {
		cfg.Memory = memory.NewStore(cfg.AppConfig.HistoryLimit)
	}
	if cfg.Reflector == nil {
		cfg.Reflector = reflector.New(nil, false, cfg.Logger)
	}

	return &Agent{
		cfg:        cfg.AppConfig,
		client:     cfg.Client,
		registry:   cfg.Registry,
		executor:   tools.NewExecutor(cfg.Registry),
		memory:     cfg.Memory,
		reflector:  cfg.Reflector,
		input:      validator.NewInputValidator(),
		output:     validator.NewReplyValidator(),
		logger:     cfg.Logger,
		onEvent:    cfg.OnEvent,
		memoryPath: cfg.MemoryPath,
	}, nil
}

// SetOnEvent installs the event callback the UI listens on.
func (a *Agent) SetOnEvent(fn func(types.AgentEvent)) {
	a.onEvent = fn
}

// ProcessQueryCmd returns a Bubble Tea command that runs one turn. The
// outcome reaches the UI through the event callback, so the command
// itself produces no message.
func (a *Agent) ProcessQueryCmd(query string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		a.ProcessQuery(ctx, query)
		return nil
	}
}

// ProcessQuery runs one full turn: append the user message, loop model
// call / tool dispatch until the model produces a plain-text answer or
// the iteration budget runs out, then reflect and commit.
//
// Tool failures of every kind stay inside the loop as error messages the
// model can react to. Only input validation and persistent model-call
// failures surface to the caller; a failed turn is rolled back so no
// half-turn lingers in history.
func (a *Agent) ProcessQuery(ctx context.Context, query string) (string, error) {
	if err := a.input.Validate(query); err != nil {
		err = fmt.Errorf("invalid input: %w", err)
		a.emit(types.AgentEvent{State: types.StateError, Error: err})
		return "", err
	}
	query = a.input.Sanitize(query)

	a.refreshSystemPrompt()

	turn := a.memory.Begin()
	a.memory.Append(types.Message{
		Role:      types.RoleUser,
		Content:   query,
		Timestamp: time.Now(),
	})

	var lastReply string
	var finalAnswer string
	answered := false

	for round := 0; round < a.cfg.MaxIterations; round++ {
		a.emit(types.AgentEvent{State: types.StateThinking})

		reply, err := a.client.Complete(ctx, a.memory.Snapshot())
		if err != nil {
			turn.Rollback()
			a.emit(types.AgentEvent{State: types.StateError, Error: err})
			return "", fmt.Errorf("model call failed: %w", err)
		}
		lastReply = reply

		if verr := a.output.Validate(reply); verr != nil {
			a.logger.Warn("rejected model reply", zap.Error(verr))
			result := types.ToolResult{Success: false, Output: "reply rejected: " + verr.Error()}
			a.appendToolFeedback(reply, result, nil)
			continue
		}

		inv, perr := ParseReply(reply)
		if perr != nil {
			a.logger.Warn("malformed tool invocation",
				zap.String("tool", perr.Tool),
				zap.String("reason", perr.Reason),
			)
			result := types.ToolResult{ToolName: perr.Tool, Success: false, Output: perr.Error()}
			a.appendToolFeedback(reply, result, nil)
			a.emit(types.AgentEvent{State: types.StateThinking, ToolResult: &result})
			continue
		}

		if inv == nil {
			finalAnswer = reply
			answered = true
			break
		}

		a.logger.Info("dispatching tool",
			zap.String("tool", inv.Name),
			zap.Int("round", round+1),
		)
		a.emit(types.AgentEvent{State: types.StateToolCall, ToolCall: inv})
		a.emit(types.AgentEvent{State: types.StateToolExecuting, ToolCall: inv})

		result := a.executor.Execute(ctx, inv.Name, inv.Args)
		a.appendToolFeedback(reply, result, inv.Args)
		a.emit(types.AgentEvent{State: types.StateThinking, ToolResult: &result})
	}

	if !answered {
		a.logger.Warn("iteration budget exhausted", zap.Int("max_iterations", a.cfg.MaxIterations))
		finalAnswer = maxIterationsAnswer(lastReply)
	} else if a.reflector.Enabled() {
		a.emit(types.AgentEvent{State: types.StateReflecting})
		finalAnswer = a.reflector.Critique(ctx, query, a.memory.Snapshot(), finalAnswer)
	}

	a.memory.Append(types.Message{
		Role:      types.RoleAssistant,
		Content:   finalAnswer,
		Timestamp: time.Now(),
	})
	turn.Commit()
	a.persistMemory()

	a.emit(types.AgentEvent{State: types.StateResponding, FinalAnswer: finalAnswer})
	return finalAnswer, nil
}

// appendToolFeedback records one tool round: the raw assistant reply
// followed by the tool-role result message.
func (a *Agent) appendToolFeedback(reply string, result types.ToolResult, args map[string]any) {
	a.memory.Append(types.Message{
		Role:      types.RoleAssistant,
		Content:   reply,
		Timestamp: time.Now(),
	})
	a.memory.Append(types.Message{
		Role:      types.RoleTool,
		ToolName:  result.ToolName,
		ToolArgs:  args,
		Content:   result.Output,
		Timestamp: time.Now(),
	})
}

// refreshSystemPrompt rebuilds the system message so the tool manifest
// and remembered context stay current.
func (a *Agent) refreshSystemPrompt() {
	a.memory.SetSystem(llm.BuildSystemPrompt(a.registry.Manifest(), a.memory.Context()))
}

func (a *Agent) persistMemory() {
	if a.memoryPath == "" {
		return
	}
	if err := a.memory.Save(a.memoryPath); err != nil {
		a.logger.Warn("failed to persist memory", zap.Error(err))
	}
}

func (a *Agent) emit(event types.AgentEvent) {
	if a.onEvent != nil {
		a.onEvent(event)
	}
}

// maxIterationsAnswer builds the forced final answer, carrying the last
// partial reply when there was one.
func maxIterationsAnswer(lastReply string) string {
	if strings.TrimSpace(lastReply) == "" {
		return maxIterationsMessage
	}
	return maxIterationsMessage + "\n\nLast partial response:\n" + lastReply
}

// Ping checks that the model endpoint is reachable.
func (a *Agent) Ping(ctx context.Context) error {
	_, err := a.client.Complete(ctx, []types.Message{
		{Role: types.RoleUser, Content: "Respond with OK"},
	})
	if err != nil {
		return fmt.Errorf("LLM not reachable: %w", err)
	}
	return nil
}

// ListTools returns the registered tools in registration order.
func (a *Agent) ListTools() []*tools.Tool {
	return a.registry.All()
}

// ToolManifest returns the registry manifest shown to the model.
func (a *Agent) ToolManifest() string {
	return a.registry.Manifest()
}

// History returns a copy of the conversation so far.
func (a *Agent) History() []types.Message {
	return a.memory.Snapshot()
}

// ClearHistory drops the conversation but keeps the system prompt and
// remembered profile.
func (a *Agent) ClearHistory() {
	a.memory.Clear()
}

// MemoryContext renders what the agent remembers, for display.
func (a *Agent) MemoryContext() string {
	return a.memory.Context()
}

// LLMInfo describes the configured model endpoint.
func (a *Agent) LLMInfo() string {
	return fmt.Sprintf("%s @ %s", a.cfg.Model, a.cfg.BaseURL)
}
