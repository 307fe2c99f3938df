// Package shell provides the bash tool: run a shell command and report
// its exit code and captured output.
package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/quillsh/quill/internal/config"
	"github.com/quillsh/quill/internal/tools"
)

// outputCap bounds how much of each stream is fed back to the model.
const outputCap = 10000

// Register adds the bash tool to the registry. The configured LLM
// timeout doubles as the default command timeout.
func Register(reg *tools.Registry, cfg *config.Config) {
	defaultTimeout := 60
	if cfg != nil && cfg.TimeoutSeconds > 0 {
		defaultTimeout = cfg.TimeoutSeconds
	}

	reg.MustRegister(&tools.Tool{
		Name:        "bash",
		Description: "Run a shell command and return its exit code, stdout, and stderr",
		Params: []tools.Parameter{
			{Name: "command", Type: "string", Description: "Command to run with sh -c", Required: true},
			{Name: "timeout", Type: "integer", Description: "Seconds before the command is killed", Default: float64(defaultTimeout)},
		},
		Func: runBash,
	})
}

// bashResult is rendered as a JSON object string so the model sees all
// three channels at once.
type bashResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	TimedOut bool   `json:"timed_out,omitempty"`
}

func runBash(ctx context.Context, args map[string]any) (string, error) {
	command := tools.StringArg(args, "command", "")
	timeout := tools.IntArg(args, "timeout", 60)

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	result := bashResult{
		Stdout:   truncate(stdout.String()),
		Stderr:   truncate(stderr.String()),
		TimedOut: runCtx.Err() == context.DeadlineExceeded,
	}

	switch e := runErr.(type) {
	case nil:
	case *exec.ExitError:
		result.ExitCode = e.ExitCode()
	default:
		return "", fmt.Errorf("run command: %w", runErr)
	}

	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(out), nil
}

func truncate(s string) string {
	if len(s) <= outputCap {
		return s
	}
	return s[:outputCap] + "... (truncated)"
}
