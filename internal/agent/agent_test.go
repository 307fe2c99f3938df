package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/quillsh/quill/internal/config"
	"github.com/quillsh/quill/internal/memory"
	"github.com/quillsh/quill/internal/reflector"
	"github.com/quillsh/quill/internal/tools"
	"github.com/quillsh/quill/internal/types"
)

// scriptedClient replays canned replies and records every snapshot it
// was sent. When the script runs out, the last reply repeats.
type scriptedClient struct {
	replies []string
	err     error
	calls   int
	seen    [][]types.Message
}

func (c *scriptedClient) Complete(ctx context.Context, messages []types.Message) (string, error) {
	c.seen = append(c.seen, messages)
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	if len(c.replies) == 0 {
		return "", errors.New("script has no replies")
	}
	i := c.calls - 1
	if i >= len(c.replies) {
		i = len(c.replies) - 1
	}
	return c.replies[i], nil
}

// recordingTool captures every call made to it.
type recordingTool struct {
	calls  []map[string]any
	output string
	err    error
}

func (r *recordingTool) spec(name string, params ...tools.Parameter) *tools.Tool {
	return &tools.Tool{
		Name:        name,
		Description: "test tool " + name,
		Params:      params,
		Func: func(ctx context.Context, args map[string]any) (string, error) {
			r.calls = append(r.calls, args)
			return r.output, r.err
		},
	}
}

func newTestAgent(t *testing.T, client *scriptedClient, toolSpecs ...*tools.Tool) (*Agent, *memory.Store) {
	t.Helper()

	registry := tools.NewRegistry()
	for _, spec := range toolSpecs {
		registry.MustRegister(spec)
	}

	cfg := config.DefaultConfig()
	cfg.MaxIterations = 5

	store := memory.NewStore(0)
	a, err := New(Config{
		AppConfig: &cfg,
		Client:    client,
		Registry:  registry,
		Memory:    store,
		Logger:    zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, store
}

func roles(messages []types.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.Role
	}
	return out
}

func TestProcessQuery_PlainTurnsGrowHistoryByTwo(t *testing.T) {
	client := &scriptedClient{replies: []string{"just an answer"}}
	a, store := newTestAgent(t, client)

	const turns = 3
	for i := 0; i < turns; i++ {
		answer, err := a.ProcessQuery(context.Background(), fmt.Sprintf("question %d", i))
		if err != nil {
			t.Fatalf("turn %d: %v", i, err)
		}
		if answer != "just an answer" {
			t.Fatalf("turn %d answer = %q", i, answer)
		}
	}

	history := store.Snapshot()
	if len(history) != 1+2*turns {
		t.Fatalf("history length = %d, want %d: %v", len(history), 1+2*turns, roles(history))
	}
	if history[0].Role != types.RoleSystem {
		t.Errorf("first message role = %s, want system", history[0].Role)
	}
	for i := 1; i < len(history); i += 2 {
		if history[i].Role != types.RoleUser || history[i+1].Role != types.RoleAssistant {
			t.Errorf("messages %d,%d roles = %s,%s", i, i+1, history[i].Role, history[i+1].Role)
		}
	}
}

func TestProcessQuery_DispatchesParsedInvocation(t *testing.T) {
	rec := &recordingTool{output: "Echoed: hi"}
	client := &scriptedClient{replies: []string{
		"TOOL: echo\nARGS: {\"message\": \"hi\", \"count\": 3}",
		"final answer",
	}}
	a, store := newTestAgent(t, client, rec.spec("echo",
		tools.Parameter{Name: "message", Type: "string", Required: true},
		tools.Parameter{Name: "count", Type: "integer"},
	))

	answer, err := a.ProcessQuery(context.Background(), "say hi")
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if answer != "final answer" {
		t.Errorf("answer = %q", answer)
	}

	if len(rec.calls) != 1 {
		t.Fatalf("tool called %d times, want 1", len(rec.calls))
	}
	if rec.calls[0]["message"] != "hi" || rec.calls[0]["count"] != float64(3) {
		t.Errorf("tool args = %v", rec.calls[0])
	}

	// system, user, assistant(raw), tool, assistant(final)
	got := roles(store.Snapshot())
	want := []string{"system", "user", "assistant", "tool", "assistant"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("history roles = %v, want %v", got, want)
	}

	// The tool result must have been visible to the second model call.
	second := client.seen[1]
	last := second[len(second)-1]
	if last.Role != types.RoleTool || last.Content != "Echoed: hi" {
		t.Errorf("second call ended with %s %q", last.Role, last.Content)
	}
}

func TestProcessQuery_UnknownToolFeedsErrorBack(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"TOOL: nonexistent\nARGS: {}",
		"recovered",
	}}
	a, store := newTestAgent(t, client)

	answer, err := a.ProcessQuery(context.Background(), "do something")
	if err != nil {
		t.Fatalf("ProcessQuery returned error: %v", err)
	}
	if answer != "recovered" {
		t.Errorf("answer = %q", answer)
	}

	var toolMsg *types.Message
	snapshot := store.Snapshot()
	for i := range snapshot {
		if snapshot[i].Role == types.RoleTool {
			toolMsg = &snapshot[i]
		}
	}
	if toolMsg == nil {
		t.Fatal("no tool-role message recorded")
	}
	if !strings.Contains(toolMsg.Content, "unknown tool") {
		t.Errorf("tool message = %q", toolMsg.Content)
	}
}

func TestProcessQuery_MalformedArgsFeedErrorBack(t *testing.T) {
	rec := &recordingTool{output: "ok"}
	client := &scriptedClient{replies: []string{
		"TOOL: echo\nARGS: this is not json",
		"fine",
	}}
	a, store := newTestAgent(t, client, rec.spec("echo"))

	answer, err := a.ProcessQuery(context.Background(), "go")
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if answer != "fine" {
		t.Errorf("answer = %q", answer)
	}
	if len(rec.calls) != 0 {
		t.Errorf("tool executed %d times despite malformed args", len(rec.calls))
	}

	found := false
	for _, msg := range store.Snapshot() {
		if msg.Role == types.RoleTool && strings.Contains(msg.Content, "could not parse") {
			found = true
		}
	}
	if !found {
		t.Error("parse error not fed back as a tool message")
	}
}

func TestProcessQuery_FailingToolStaysInLoop(t *testing.T) {
	rec := &recordingTool{err: errors.New("disk on fire")}
	client := &scriptedClient{replies: []string{
		"TOOL: burn\nARGS: {}",
		"noted the failure",
	}}
	a, store := newTestAgent(t, client, rec.spec("burn"))

	answer, err := a.ProcessQuery(context.Background(), "try it")
	if err != nil {
		t.Fatalf("tool failure escaped the loop: %v", err)
	}
	if answer != "noted the failure" {
		t.Errorf("answer = %q", answer)
	}

	found := false
	for _, msg := range store.Snapshot() {
		if msg.Role == types.RoleTool && strings.Contains(msg.Content, "disk on fire") {
			found = true
		}
	}
	if !found {
		t.Error("tool error text not recorded in history")
	}
}

func TestProcessQuery_IterationCapForcesAnswer(t *testing.T) {
	rec := &recordingTool{output: "again"}
	client := &scriptedClient{replies: []string{
		"TOOL: loop\nARGS: {}",
	}}
	a, _ := newTestAgent(t, client, rec.spec("loop"))

	answer, err := a.ProcessQuery(context.Background(), "loop forever")
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}

	if client.calls != 5 {
		t.Errorf("model called %d times, want exactly the cap of 5", client.calls)
	}
	if !strings.Contains(answer, maxIterationsMessage) {
		t.Errorf("forced answer missing cap notice: %q", answer)
	}
	if !strings.Contains(answer, "TOOL: loop") {
		t.Errorf("forced answer missing last partial reply: %q", answer)
	}
}

func TestProcessQuery_ModelFailureRollsBackTurn(t *testing.T) {
	client := &scriptedClient{err: errors.New("connection refused")}
	a, store := newTestAgent(t, client)

	if _, err := a.ProcessQuery(context.Background(), "hello"); err == nil {
		t.Fatal("expected error from failing model call")
	}

	// Only the system prompt survives; the user message was rolled back.
	history := store.Snapshot()
	if len(history) != 1 || history[0].Role != types.RoleSystem {
		t.Errorf("history after rollback = %v", roles(history))
	}
}

func TestProcessQuery_RejectsEmptyInput(t *testing.T) {
	client := &scriptedClient{replies: []string{"unused"}}
	a, _ := newTestAgent(t, client)

	if _, err := a.ProcessQuery(context.Background(), "   "); err == nil {
		t.Fatal("expected error for blank input")
	}
	if client.calls != 0 {
		t.Errorf("model called %d times for invalid input", client.calls)
	}
}

func TestProcessQuery_EmptyReplyFedBack(t *testing.T) {
	client := &scriptedClient{replies: []string{"", "actual answer"}}
	a, store := newTestAgent(t, client)

	answer, err := a.ProcessQuery(context.Background(), "hello")
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if answer != "actual answer" {
		t.Errorf("answer = %q", answer)
	}

	found := false
	for _, msg := range store.Snapshot() {
		if msg.Role == types.RoleTool && strings.Contains(msg.Content, "empty reply") {
			found = true
		}
	}
	if !found {
		t.Error("empty reply not fed back as an error")
	}
}

func TestProcessQuery_EndToEndWriteAndRun(t *testing.T) {
	writeRec := &recordingTool{output: "Write hello.py success."}
	bashRec := &recordingTool{output: `{"exit_code": 0, "stdout": "hi\n", "stderr": ""}`}

	client := &scriptedClient{replies: []string{
		"TOOL: write\nARGS: {\"path\": \"hello.py\", \"content\": \"print('hi')\"}",
		"TOOL: bash\nARGS: {\"command\": \"python3 hello.py\"}",
		"Created hello.py and ran it; it printed hi.",
	}}

	a, store := newTestAgent(t, client,
		writeRec.spec("write",
			tools.Parameter{Name: "path", Type: "string", Required: true},
			tools.Parameter{Name: "content", Type: "string", Required: true},
		),
		bashRec.spec("bash",
			tools.Parameter{Name: "command", Type: "string", Required: true},
		),
	)

	answer, err := a.ProcessQuery(context.Background(), "create hello.py with print('hi') and run it")
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if !strings.Contains(answer, "printed hi") {
		t.Errorf("answer = %q", answer)
	}

	if len(writeRec.calls) != 1 {
		t.Fatalf("write called %d times", len(writeRec.calls))
	}
	if writeRec.calls[0]["path"] != "hello.py" || writeRec.calls[0]["content"] != "print('hi')" {
		t.Errorf("write args = %v", writeRec.calls[0])
	}
	if len(bashRec.calls) != 1 {
		t.Fatalf("bash called %d times", len(bashRec.calls))
	}

	// 1 system + 1 user + 2x(assistant + tool) + 1 final assistant.
	got := roles(store.Snapshot())
	want := []string{"system", "user", "assistant", "tool", "assistant", "tool", "assistant"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("history roles = %v, want %v", got, want)
	}

	// The bash output made it back to the model before the final answer.
	third := client.seen[2]
	if !strings.Contains(third[len(third)-1].Content, "hi") {
		t.Errorf("final model call missing bash output: %q", third[len(third)-1].Content)
	}
}

func TestProcessQuery_EmitsEvents(t *testing.T) {
	rec := &recordingTool{output: "done"}
	client := &scriptedClient{replies: []string{
		"TOOL: work\nARGS: {}",
		"finished",
	}}
	a, _ := newTestAgent(t, client, rec.spec("work"))

	var states []types.AgentState
	a.SetOnEvent(func(event types.AgentEvent) {
		states = append(states, event.State)
	})

	if _, err := a.ProcessQuery(context.Background(), "work it"); err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}

	sawToolCall := false
	for _, s := range states {
		if s == types.StateToolCall {
			sawToolCall = true
		}
	}
	if !sawToolCall {
		t.Errorf("no tool-call event emitted: %v", states)
	}
	if len(states) == 0 || states[len(states)-1] != types.StateResponding {
		t.Errorf("last event = %v, want responding", states)
	}
}

func TestProcessQuery_ReflectionRevisesAnswer(t *testing.T) {
	client := &scriptedClient{replies: []string{"rough draft"}}
	reflClient := &scriptedClient{replies: []string{
		"The draft is thin.\nImproved Response:\npolished answer",
	}}

	registry := tools.NewRegistry()
	cfg := config.DefaultConfig()
	store := memory.NewStore(0)

	a, err := New(Config{
		AppConfig: &cfg,
		Client:    client,
		Registry:  registry,
		Memory:    store,
		Reflector: reflector.New(reflClient, true, zap.NewNop()),
		Logger:    zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	answer, err := a.ProcessQuery(context.Background(), "write something")
	if err != nil {
		t.Fatalf("ProcessQuery: %v", err)
	}
	if answer != "polished answer" {
		t.Errorf("answer = %q, want the revision", answer)
	}

	// History records the revised answer, not the draft.
	history := store.Snapshot()
	if history[len(history)-1].Content != "polished answer" {
		t.Errorf("final history entry = %q", history[len(history)-1].Content)
	}
}

func TestMaxIterationsAnswer(t *testing.T) {
	if got := maxIterationsAnswer(""); got != maxIterationsMessage {
		t.Errorf("empty partial: %q", got)
	}
	if got := maxIterationsAnswer("partial text"); !strings.Contains(got, "partial text") {
		t.Errorf("partial dropped: %q", got)
	}
}
