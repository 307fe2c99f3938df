package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/quillsh/quill/internal/config"
	"github.com/quillsh/quill/internal/types"
)

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.APIKey = "sk-test"
	cfg.BaseURL = baseURL
	cfg.TimeoutSeconds = 5
	client := NewClient(&cfg, zap.NewNop())
	client.backoff = func(int) time.Duration { return time.Millisecond }
	return client
}

func completionBody(content string) string {
	return fmt.Sprintf(`{"choices":[{"message":{"role":"assistant","content":%q}}]}`, content)
}

func errorBody(message string) string {
	return fmt.Sprintf(`{"error":{"message":%q,"type":"test_error"}}`, message)
}

func TestClient_CompleteSuccess(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, completionBody("final answer"))
	}))
	defer srv.Close()

	client := testClient(t, srv.URL+"/v1")
	got, err := client.Complete(context.Background(), []types.Message{
		{Role: types.RoleSystem, Content: "be brief"},
		{Role: types.RoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if got != "final answer" {
		t.Fatalf("expected reply text, got %q", got)
	}
	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Fatalf("expected 1 request, got %d", n)
	}
}

func TestClient_CompleteAuthErrorNotRetried(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, errorBody("bad key"))
	}))
	defer srv.Close()

	client := testClient(t, srv.URL+"/v1")
	_, err := client.Complete(context.Background(), []types.Message{
		{Role: types.RoleUser, Content: "hi"},
	})

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if n := atomic.LoadInt32(&requests); n != 1 {
		t.Fatalf("auth failure must not retry, got %d requests", n)
	}
}

func TestClient_CompleteRetriesTransient(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, errorBody("overloaded"))
			return
		}
		fmt.Fprint(w, completionBody("recovered"))
	}))
	defer srv.Close()

	client := testClient(t, srv.URL+"/v1")
	got, err := client.Complete(context.Background(), []types.Message{
		{Role: types.RoleUser, Content: "hi"},
	})
	if err != nil {
		t.Fatalf("expected recovery after retry, got %v", err)
	}
	if got != "recovered" {
		t.Fatalf("expected recovered reply, got %q", got)
	}
	if n := atomic.LoadInt32(&requests); n != 2 {
		t.Fatalf("expected 2 requests, got %d", n)
	}
}

func TestClient_CompleteExhaustsAttempts(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, errorBody("still down"))
	}))
	defer srv.Close()

	client := testClient(t, srv.URL+"/v1")
	_, err := client.Complete(context.Background(), []types.Message{
		{Role: types.RoleUser, Content: "hi"},
	})
	if err == nil {
		t.Fatal("expected failure after exhausting attempts")
	}
	if n := atomic.LoadInt32(&requests); n != maxAttempts {
		t.Fatalf("expected %d requests, got %d", maxAttempts, n)
	}
	var transport *TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("expected TransportError in chain, got %v", err)
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   string
	}{
		{"unauthorized", 401, "auth"},
		{"forbidden", 403, "auth"},
		{"rate limited", 429, "rate"},
		{"server error", 500, "transport"},
		{"bad request", 400, "transport"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStatus(tt.status, "boom", errors.New("boom"))
			switch tt.want {
			case "auth":
				var e *AuthError
				if !errors.As(err, &e) {
					t.Fatalf("expected AuthError, got %T", err)
				}
			case "rate":
				var e *RateLimitError
				if !errors.As(err, &e) {
					t.Fatalf("expected RateLimitError, got %T", err)
				}
			case "transport":
				var e *TransportError
				if !errors.As(err, &e) {
					t.Fatalf("expected TransportError, got %T", err)
				}
			}
		})
	}
}

func TestClassifyWrapsOpenAIErrors(t *testing.T) {
	apiErr := &openai.APIError{HTTPStatusCode: 429, Message: "slow down"}
	var rate *RateLimitError
	if !errors.As(classify(apiErr), &rate) {
		t.Fatal("APIError 429 should classify as RateLimitError")
	}

	netErr := errors.New("dial tcp: connection refused")
	var transport *TransportError
	if !errors.As(classify(netErr), &transport) {
		t.Fatal("plain network error should classify as TransportError")
	}
	if transport.Status != 0 {
		t.Fatalf("network error should have no status, got %d", transport.Status)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"auth", &AuthError{Status: 401}, false},
		{"rate limit", &RateLimitError{}, true},
		{"network", &TransportError{Status: 0}, true},
		{"server 503", &TransportError{Status: 503}, true},
		{"client 400", &TransportError{Status: 400}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryable(tt.err); got != tt.want {
				t.Fatalf("retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestBackoffDelayBounds(t *testing.T) {
	for attempt := 1; attempt <= 12; attempt++ {
		for i := 0; i < 50; i++ {
			d := backoffDelay(attempt)
			if d < 0 {
				t.Fatalf("attempt %d: negative delay %v", attempt, d)
			}
			if d >= backoffCeiling {
				t.Fatalf("attempt %d: delay %v at or above ceiling %v", attempt, d, backoffCeiling)
			}
			if attempt <= 3 {
				limit := backoffBaseUnit << uint(attempt)
				if d >= limit {
					t.Fatalf("attempt %d: delay %v above window %v", attempt, d, limit)
				}
			}
		}
	}
}

func TestToWireMessages_ToolRoleMapping(t *testing.T) {
	wire := toWireMessages([]types.Message{
		{Role: types.RoleSystem, Content: "sys"},
		{Role: types.RoleUser, Content: "do it"},
		{Role: types.RoleAssistant, Content: "TOOL: bash\nARGS: {}"},
		{Role: types.RoleTool, ToolName: "bash", Content: "exit 0"},
	})

	if len(wire) != 4 {
		t.Fatalf("expected 4 wire messages, got %d", len(wire))
	}
	if wire[0].Role != openai.ChatMessageRoleSystem {
		t.Fatalf("expected system role, got %s", wire[0].Role)
	}
	last := wire[3]
	if last.Role != openai.ChatMessageRoleUser {
		t.Fatalf("tool result should travel as user role, got %s", last.Role)
	}
	if last.Content != "Tool bash returned: exit 0" {
		t.Fatalf("unexpected tool feedback text: %q", last.Content)
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	manifest := "- read: Read a file\n"

	prompt := BuildSystemPrompt(manifest, "")
	if !strings.Contains(prompt, "Available Tools:\n- read: Read a file") {
		t.Fatalf("prompt missing manifest:\n%s", prompt)
	}
	if !strings.Contains(prompt, "TOOL: <tool name>") {
		t.Fatal("prompt missing protocol instructions")
	}
	if strings.Contains(prompt, "{{") {
		t.Fatal("unreplaced placeholder left in prompt")
	}
	if strings.Contains(prompt, "remember about this user") {
		t.Fatal("memory block should be absent when context is empty")
	}

	withMemory := BuildSystemPrompt(manifest, "User preferences:\n- language: go\n")
	if !strings.Contains(withMemory, "What you remember about this user:") {
		t.Fatal("memory block missing")
	}
	if !strings.Contains(withMemory, "- language: go") {
		t.Fatal("memory content missing")
	}
}

func TestClient_ContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, errorBody("down"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := testClient(t, srv.URL+"/v1")
	client.backoff = backoffDelay
	start := time.Now()
	_, err := client.Complete(ctx, []types.Message{{Role: types.RoleUser, Content: "hi"}})
	if err == nil {
		t.Fatal("expected error when context expires")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("cancellation not honored, took %v", elapsed)
	}
}
