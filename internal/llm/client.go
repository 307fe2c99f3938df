// Package llm adapts the OpenAI-compatible chat completion API for the
// agent loop: one Complete call per model turn, with typed errors and
// bounded retry.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/quillsh/quill/internal/config"
	"github.com/quillsh/quill/internal/types"
)

const (
	maxAttempts     = 3
	backoffCeiling  = 60 * time.Second
	backoffBaseUnit = time.Second
)

// Completer is the single-method interface the agent and reflector
// depend on.
type Completer interface {
	Complete(ctx context.Context, messages []types.Message) (string, error)
}

// Client calls an OpenAI-compatible chat completion endpoint.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	topP        float32
	maxTokens   int
	logger      *zap.Logger
	backoff     func(attempt int) time.Duration
}

// NewClient builds a client from configuration. The base URL override
// makes any OpenAI-compatible endpoint usable, local servers included.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	apiConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = cfg.BaseURL
	}
	apiConfig.HTTPClient = &http.Client{
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}

	return &Client{
		api:         openai.NewClientWithConfig(apiConfig),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
		topP:        float32(cfg.TopP),
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
		backoff:     backoffDelay,
	}
}

// WithParams returns a copy of the client using a different sampling
// temperature and token cap. Used by the reflection pass.
func (c *Client) WithParams(temperature float64, maxTokens int) *Client {
	clone := *c
	clone.temperature = float32(temperature)
	clone.maxTokens = maxTokens
	return &clone
}

// Complete sends the message history and returns the model's raw text
// reply. Transient failures are retried up to maxAttempts with
// random-exponential backoff; auth failures return immediately.
func (c *Client) Complete(ctx context.Context, messages []types.Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    toWireMessages(messages),
		Temperature: c.temperature,
		TopP:        c.topP,
	}
	if c.maxTokens > 0 {
		req.MaxTokens = c.maxTokens
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.backoff(attempt)
			c.logger.Warn("retrying llm call",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return "", &TransportError{Message: "cancelled while waiting to retry", Cause: ctx.Err()}
			case <-time.After(delay):
			}
		}

		resp, err := c.api.CreateChatCompletion(ctx, req)
		if err != nil {
			lastErr = classify(err)
			if !retryable(lastErr) {
				return "", lastErr
			}
			continue
		}

		if len(resp.Choices) == 0 {
			lastErr = &TransportError{Message: "response contained no choices"}
			continue
		}

		content := resp.Choices[0].Message.Content
		c.logger.Debug("llm reply",
			zap.Int("messages", len(messages)),
			zap.Int("reply_len", len(content)),
		)
		return content, nil
	}

	return "", fmt.Errorf("llm call failed after %d attempts: %w", maxAttempts, lastErr)
}

// toWireMessages maps internal messages onto the chat completion shape.
// Tool results travel as user messages; the text protocol has no native
// tool-call ids for the tool role to reference.
func toWireMessages(messages []types.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case types.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Tool %s returned: %s", msg.ToolName, msg.Content),
			})
		default:
			out = append(out, openai.ChatCompletionMessage{
				Role:    msg.Role,
				Content: msg.Content,
			})
		}
	}
	return out
}

// classify converts client errors into the package taxonomy.
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, reqErr.Error(), err)
	}
	return &TransportError{Message: err.Error(), Cause: err}
}

func classifyStatus(status int, message string, cause error) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &AuthError{Status: status, Message: message}
	case status == http.StatusTooManyRequests:
		return &RateLimitError{Message: message}
	default:
		return &TransportError{Status: status, Message: message, Cause: cause}
	}
}

// backoffDelay returns a random delay up to min(ceiling, base<<attempt).
func backoffDelay(attempt int) time.Duration {
	limit := backoffBaseUnit << uint(attempt)
	if limit > backoffCeiling {
		limit = backoffCeiling
	}
	return time.Duration(rand.Int63n(int64(limit)))
}
