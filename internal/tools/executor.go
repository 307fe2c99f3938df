package tools

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/quillsh/quill/internal/types"
)

// Executor runs tools with schema validation, default filling, timing, and
// panic containment. Handler failures of any kind become a failed
// ToolResult; nothing propagates to the caller.
type Executor struct {
	registry *Registry
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// Execute runs a tool by name with the given arguments.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any) types.ToolResult {
	start := time.Now()

	fail := func(msg string) types.ToolResult {
		return types.ToolResult{
			ToolName: name,
			Success:  false,
			Output:   msg,
			Duration: time.Since(start),
		}
	}

	tool, err := e.registry.Lookup(name)
	if err != nil {
		return fail(err.Error())
	}

	if err := validateArgs(tool, args); err != nil {
		return fail(fmt.Sprintf("invalid arguments: %v", err))
	}
	args = applyDefaults(tool, args)

	output, err := e.invoke(ctx, tool, args)
	if err != nil {
		return fail(err.Error())
	}

	return types.ToolResult{
		ToolName: name,
		Success:  true,
		Output:   output,
		Duration: time.Since(start),
	}
}

// invoke calls the handler, converting a panic into an error.
func (e *Executor) invoke(ctx context.Context, tool *Tool, args map[string]any) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", tool.Name, r)
		}
	}()
	return tool.Func(ctx, args)
}

// validateArgs checks required parameters, value types, and enum values
// against the tool schema. Arguments not declared in the schema pass
// through untouched; the model sometimes adds harmless extras.
func validateArgs(tool *Tool, args map[string]any) error {
	for _, def := range tool.Params {
		value, exists := args[def.Name]

		if !exists || value == nil {
			if def.Required {
				return fmt.Errorf("missing required parameter: %s", def.Name)
			}
			continue
		}

		if err := checkType(def, value); err != nil {
			return err
		}

		if len(def.Enum) > 0 {
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("parameter %s must be a string, one of %v", def.Name, def.Enum)
			}
			valid := false
			for _, allowed := range def.Enum {
				if s == allowed {
					valid = true
					break
				}
			}
			if !valid {
				return fmt.Errorf("invalid value for %s: must be one of %v", def.Name, def.Enum)
			}
		}
	}
	return nil
}

// checkType verifies one value against its declared parameter type.
// JSON numbers arrive as float64; integers additionally require a whole
// value.
func checkType(def Parameter, value any) error {
	switch def.Type {
	case "string", "":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("parameter %s must be a string, got %T", def.Name, value)
		}
	case "number":
		switch value.(type) {
		case float64, int, int64:
		default:
			return fmt.Errorf("parameter %s must be a number, got %T", def.Name, value)
		}
	case "integer":
		switch v := value.(type) {
		case int, int64:
		case float64:
			if v != math.Trunc(v) {
				return fmt.Errorf("parameter %s must be an integer, got %v", def.Name, v)
			}
		default:
			return fmt.Errorf("parameter %s must be an integer, got %T", def.Name, value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("parameter %s must be a boolean, got %T", def.Name, value)
		}
	}
	return nil
}

// applyDefaults fills missing optional parameters that declare a default.
func applyDefaults(tool *Tool, args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	for _, def := range tool.Params {
		if _, exists := out[def.Name]; !exists && def.Default != nil {
			out[def.Name] = def.Default
		}
	}
	return out
}
