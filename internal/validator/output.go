package validator

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ReplyValidator checks raw model output before the agent acts on it.
// A rejected reply is fed back to the model as an error, not shown to
// the user.
type ReplyValidator struct {
	maxLength int
}

func NewReplyValidator() *ReplyValidator {
	return &ReplyValidator{
		maxLength: 200000,
	}
}

func (v *ReplyValidator) Validate(reply string) error {
	if strings.TrimSpace(reply) == "" {
		return errors.New("model returned an empty reply")
	}

	if len(reply) > v.maxLength {
		return fmt.Errorf("model reply too long: %d bytes", len(reply))
	}

	if !utf8.ValidString(reply) {
		return errors.New("model reply is not valid UTF-8")
	}

	return nil
}

// Elide shortens text for terminal display. The full text still goes to
// history; only what the user sees is cut.
func Elide(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	return text[:max] + "\n... (output elided)"
}
