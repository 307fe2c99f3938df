// Package reflector implements the answer-improvement pass: one extra
// model call that critiques a draft answer and may replace it.
package reflector

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/quillsh/quill/internal/types"
)

// improvedMarker introduces the revised answer in the model's critique.
const improvedMarker = "Improved Response:"

// Completer is the model call the reflector depends on.
type Completer interface {
	Complete(ctx context.Context, messages []types.Message) (string, error)
}

// Reflector critiques draft answers. Disabled or failing reflection
// always degrades to the unchanged draft; it never breaks a session.
type Reflector struct {
	client  Completer
	enabled bool
	logger  *zap.Logger
}

// New builds a reflector. A nil client behaves as disabled.
func New(client Completer, enabled bool, logger *zap.Logger) *Reflector {
	return &Reflector{
		client:  client,
		enabled: enabled && client != nil,
		logger:  logger,
	}
}

// Enabled reports whether reflection will run.
func (r *Reflector) Enabled() bool { return r.enabled }

// Critique asks the model to evaluate the draft answer to query and
// returns the revision when one is produced, else the draft unchanged.
// Deterministic for a deterministic client: same query, history, and
// draft yield the same result.
func (r *Reflector) Critique(ctx context.Context, query string, history []types.Message, draft string) string {
	if !r.enabled || strings.TrimSpace(draft) == "" {
		return draft
	}

	messages := []types.Message{
		{Role: types.RoleUser, Content: buildReflectionPrompt(query, draft)},
	}

	critique, err := r.client.Complete(ctx, messages)
	if err != nil {
		r.logger.Warn("reflection call failed, keeping draft", zap.Error(err))
		return draft
	}

	revised := extractImprovedResponse(critique)
	if revised == "" {
		return draft
	}
	return revised
}

// buildReflectionPrompt embeds the query and draft into the critique
// request.
func buildReflectionPrompt(query, draft string) string {
	return fmt.Sprintf(`Evaluate the following response to a user's request.

User request:
%s

Response:
%s

Point out anything incorrect, incomplete, or unclear. If the response can
be improved, write the full improved version after a line reading exactly
"%s". If the response is already good, do not include that line.`, query, draft, improvedMarker)
}

// extractImprovedResponse returns the text after the marker, or empty
// when the critique contains no revision.
func extractImprovedResponse(critique string) string {
	idx := strings.Index(critique, improvedMarker)
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(critique[idx+len(improvedMarker):])
}
