package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/quillsh/quill/internal/types"
)

// ParseError means the reply contained a tool invocation the agent could
// not decode. It is fed back to the model as an error tool message, never
// surfaced to the user.
type ParseError struct {
	Tool   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("could not parse arguments for tool %s: %s", e.Tool, e.Reason)
	}
	return fmt.Sprintf("could not parse tool invocation: %s", e.Reason)
}

// toolPatterns match the invocation header and capture the tool name.
// The protocol asks for "TOOL:"/"ARGS:", the rest tolerate the ways
// models actually misrender it.
var toolPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)TOOL:\s*(\w+)\s*ARGS:\s*`),
	regexp.MustCompile(`(?s)TOL:\s*(\w+)\s*ARGS:\s*`),
	regexp.MustCompile(`(?s)USE TOOL:\s*(\w+)\s*WITH ARGS:\s*`),
	regexp.MustCompile(`(?s)Tool:\s*(\w+)\s*Args:\s*`),
	regexp.MustCompile(`(?s)Tool:\s*(\w+)\s*Arguments:\s*`),
}

// ParseReply scans a model reply for a tool invocation.
//
// Returns (nil, nil) when the reply contains no invocation header: the
// whole text is a final answer. Returns an invocation when a header is
// found and its arguments decode. Returns a ParseError when a header is
// present but no argument object can be recovered.
func ParseReply(content string) (*types.ToolInvocation, *ParseError) {
	var firstErr *ParseError

	for _, pattern := range toolPatterns {
		match := pattern.FindStringSubmatchIndex(content)
		if match == nil {
			continue
		}

		name := content[match[2]:match[3]]
		remaining := content[match[1]:]

		// The write tool carries file content whose quotes and newlines
		// routinely break the JSON; try the raw extraction first.
		if name == "write" {
			if args, ok := extractWriteArgs(remaining); ok {
				return &types.ToolInvocation{Name: name, Args: args, Raw: content}, nil
			}
		}

		argsText := extractBalancedJSON(remaining)
		if argsText == "" {
			if firstErr == nil {
				firstErr = &ParseError{Tool: name, Reason: "no JSON object found after ARGS"}
			}
			continue
		}

		args, err := parseLooseJSON(argsText)
		if err != nil {
			if firstErr == nil {
				firstErr = &ParseError{Tool: name, Reason: err.Error()}
			}
			continue
		}

		return &types.ToolInvocation{Name: name, Args: args, Raw: content}, nil
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return nil, nil
}

// extractBalancedJSON returns the last complete top-level object in
// text, tracking strings and escapes so braces inside values do not
// count. Replies sometimes show an example object before the real one;
// the last complete object wins.
func extractBalancedJSON(text string) string {
	depth := 0
	inString := false
	escape := false
	start := -1
	lastStart, lastEnd := -1, -1

	for i := 0; i < len(text); i++ {
		c := text[i]

		if escape {
			escape = false
			continue
		}
		if c == '\\' {
			escape = true
			continue
		}
		if c == '"' || c == '\'' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					lastStart, lastEnd = start, i
				}
			}
		}
	}

	if lastEnd < 0 {
		return ""
	}
	return text[lastStart : lastEnd+1]
}

var (
	writePathPattern    = regexp.MustCompile(`["']path["']\s*:\s*["']([^"']+)["']`)
	writeContentPattern = regexp.MustCompile(`["']content["']\s*:\s*["']`)
)

// extractWriteArgs recovers path and content for the write tool without
// requiring valid JSON. Models embed code in content with unescaped
// quotes and newlines; the end of the value is found by looking for a
// quote that plausibly closes the object instead.
func extractWriteArgs(text string) (map[string]any, bool) {
	pathMatch := writePathPattern.FindStringSubmatch(text)
	if pathMatch == nil {
		return nil, false
	}

	contentMatch := writeContentPattern.FindStringIndex(text)
	if contentMatch == nil {
		return nil, false
	}

	quote := text[contentMatch[1]-1]
	content, ok := extractStringValue(text[contentMatch[1]:], quote)
	if !ok {
		return nil, false
	}

	return map[string]any{"path": pathMatch[1], "content": content}, true
}

// extractStringValue finds where a possibly quote-riddled string value
// ends: the first closing quote directly followed by '}' wins, otherwise
// the last quote whose trailing text still ends the object, otherwise
// everything up to the last quote.
func extractStringValue(text string, quote byte) (string, bool) {
	best := -1

	for i := 0; i < len(text); i++ {
		if text[i] == '\\' && i+1 < len(text) {
			i++
			continue
		}
		if text[i] != quote {
			continue
		}

		rest := strings.TrimSpace(text[i+1:])
		if strings.HasPrefix(rest, "}") {
			return text[:i], true
		}
		if strings.HasSuffix(rest, "}") || strings.HasSuffix(rest, ",}") {
			best = i
		}
	}

	if best > 0 {
		return text[:best], true
	}
	if last := strings.LastIndexByte(text, quote); last > 0 {
		return text[:last], true
	}
	return "", false
}

// parseLooseJSON decodes an argument object, first strictly, then after
// scrubbing the decorations models add: code fences, comments, and
// trailing commas.
func parseLooseJSON(text string) (map[string]any, error) {
	var args map[string]any
	if err := json.Unmarshal([]byte(text), &args); err == nil {
		return args, nil
	}

	cleaned := cleanJSONString(text)
	if err := json.Unmarshal([]byte(cleaned), &args); err != nil {
		return nil, fmt.Errorf("invalid JSON arguments: %v", err)
	}
	return args, nil
}

// cleanJSONString strips markdown fences, // and /* */ comments, and
// trailing commas. Comment markers inside string values are left alone.
func cleanJSONString(text string) string {
	text = stripCodeFences(text)

	var b strings.Builder
	b.Grow(len(text))

	inString := false
	escape := false
	for i := 0; i < len(text); i++ {
		c := text[i]

		if inString {
			b.WriteByte(c)
			if escape {
				escape = false
			} else if c == '\\' {
				escape = true
			} else if c == '"' {
				inString = false
			}
			continue
		}

		switch {
		case c == '"':
			inString = true
			b.WriteByte(c)
		case c == '/' && i+1 < len(text) && text[i+1] == '/':
			for i < len(text) && text[i] != '\n' {
				i++
			}
			if i < len(text) {
				b.WriteByte('\n')
			}
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			i += 2
			for i+1 < len(text) && !(text[i] == '*' && text[i+1] == '/') {
				i++
			}
			i++
		default:
			b.WriteByte(c)
		}
	}

	return trailingCommaPattern.ReplaceAllString(b.String(), "$1")
}

var trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)

// stripCodeFences unwraps ```json ... ``` blocks.
func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if i := strings.IndexByte(trimmed, '\n'); i >= 0 {
		// Drop the language tag line.
		if lang := strings.TrimSpace(trimmed[:i]); lang == "json" || lang == "" {
			trimmed = trimmed[i+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
