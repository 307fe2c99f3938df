// Package validator checks what crosses the agent loop boundary: user
// input on the way in, raw model replies on the way out.
package validator

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

type InputValidator struct {
	maxLength int
}

func NewInputValidator() *InputValidator {
	return &InputValidator{
		maxLength: 8000,
	}
}

func (v *InputValidator) Validate(query string) error {
	if strings.TrimSpace(query) == "" {
		return errors.New("query is empty")
	}

	if len(query) > v.maxLength {
		return fmt.Errorf("query too long: maximum %d characters", v.maxLength)
	}

	if !utf8.ValidString(query) {
		return errors.New("invalid UTF-8 encoding")
	}

	return nil
}

// Sanitize trims surrounding whitespace. Internal whitespace is left
// alone; pasted code depends on it.
func (v *InputValidator) Sanitize(query string) string {
	return strings.TrimSpace(query)
}
