// Package desktop provides tools that reach out of the terminal: app
// launching, the OS clipboard, and simple document creation.
package desktop

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/quillsh/quill/internal/tools"
)

// Register adds the desktop tools to the registry.
func Register(reg *tools.Registry) {
	reg.MustRegister(&tools.Tool{
		Name:        "open_app",
		Description: "Launch an application by name",
		Params: []tools.Parameter{
			{Name: "name", Type: "string", Description: "Application name", Required: true},
		},
		Func: openApp,
	})

	reg.MustRegister(&tools.Tool{
		Name:        "clipboard_copy",
		Description: "Copy text to the system clipboard",
		Params: []tools.Parameter{
			{Name: "text", Type: "string", Description: "Text to copy", Required: true},
		},
		Func: clipboardCopy,
	})

	reg.MustRegister(&tools.Tool{
		Name:        "create_doc",
		Description: "Create a plain-text document with a title and body",
		Params: []tools.Parameter{
			{Name: "path", Type: "string", Description: "Where to write the document", Required: true},
			{Name: "title", Type: "string", Description: "Document title", Required: true},
			{Name: "content", Type: "string", Description: "Document body", Required: true},
		},
		Func: createDoc,
	})
}

func openApp(ctx context.Context, args map[string]any) (string, error) {
	name := tools.StringArg(args, "name", "")

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", "-a", name)
	case "windows":
		cmd = exec.CommandContext(ctx, "cmd", "/c", "start", "", name)
	default:
		bin, err := exec.LookPath(name)
		if err != nil {
			return "", fmt.Errorf("application %q not found in PATH", name)
		}
		cmd = exec.CommandContext(ctx, bin)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("launch %s: %w", name, err)
	}
	return "Launched " + name + ".", nil
}

func clipboardCopy(ctx context.Context, args map[string]any) (string, error) {
	text := tools.StringArg(args, "text", "")

	if err := clipboard.WriteAll(text); err != nil {
		return "", fmt.Errorf("copy to clipboard: %w", err)
	}
	return fmt.Sprintf("Copied %d characters to the clipboard.", len(text)), nil
}

// createDoc writes a plain-text document. Paths asking for .docx are
// redirected to .txt; the rendered layout is the contract, not the
// container format.
func createDoc(ctx context.Context, args map[string]any) (string, error) {
	path := tools.StringArg(args, "path", "")
	title := tools.StringArg(args, "title", "")
	content := tools.StringArg(args, "content", "")

	if strings.EqualFold(filepath.Ext(path), ".docx") {
		path = strings.TrimSuffix(path, filepath.Ext(path)) + ".txt"
	}

	var b strings.Builder
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n\n")
	b.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create directory for %s: %w", path, err)
		}
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write document: %w", err)
	}
	return "Created document " + path + ".", nil
}
