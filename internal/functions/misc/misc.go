// Package misc provides the small utility tools: arithmetic, time, and
// environment variables.
package misc

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/quillsh/quill/internal/tools"
)

// Register adds the utility tools to the registry.
func Register(reg *tools.Registry) {
	reg.MustRegister(&tools.Tool{
		Name:        "calculator",
		Description: "Evaluate an arithmetic expression (+ - * / % ^, parentheses, sqrt/abs/min/max/round/floor/ceil/pow)",
		Params: []tools.Parameter{
			{Name: "expression", Type: "string", Description: "Expression to evaluate", Required: true},
		},
		Func: calculate,
	})

	reg.MustRegister(&tools.Tool{
		Name:        "get_current_time",
		Description: "Get the current date and time",
		Params: []tools.Parameter{
			{Name: "layout", Type: "string", Description: "Go time layout, e.g. 2006-01-02 15:04:05"},
		},
		Func: currentTime,
	})

	reg.MustRegister(&tools.Tool{
		Name:        "env_get",
		Description: "Read an environment variable",
		Params: []tools.Parameter{
			{Name: "name", Type: "string", Description: "Variable name", Required: true},
		},
		Func: envGet,
	})

	reg.MustRegister(&tools.Tool{
		Name:        "env_set",
		Description: "Set an environment variable for this session",
		Params: []tools.Parameter{
			{Name: "name", Type: "string", Description: "Variable name", Required: true},
			{Name: "value", Type: "string", Description: "Value to set", Required: true},
		},
		Func: envSet,
	})
}

func calculate(ctx context.Context, args map[string]any) (string, error) {
	expr := tools.StringArg(args, "expression", "")

	value, err := evaluate(expr)
	if err != nil {
		return "", fmt.Errorf("evaluate %q: %w", expr, err)
	}

	// Whole results print without a trailing .000000.
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10), nil
	}
	return strconv.FormatFloat(value, 'g', -1, 64), nil
}

func currentTime(ctx context.Context, args map[string]any) (string, error) {
	layout := tools.StringArg(args, "layout", "2006-01-02 15:04:05 MST")
	return time.Now().Format(layout), nil
}

func envGet(ctx context.Context, args map[string]any) (string, error) {
	name := tools.StringArg(args, "name", "")

	value, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", name)
	}
	return fmt.Sprintf("%s=%s", name, value), nil
}

func envSet(ctx context.Context, args map[string]any) (string, error) {
	name := tools.StringArg(args, "name", "")
	value := tools.StringArg(args, "value", "")

	if err := os.Setenv(name, value); err != nil {
		return "", fmt.Errorf("set %s: %w", name, err)
	}
	return fmt.Sprintf("Set %s for this session.", name), nil
}
