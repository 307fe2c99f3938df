// Package tools provides the tool framework for quill: the registry the
// agent dispatches through and the schema each tool declares to the model.
package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// HandlerFunc executes a tool with parsed arguments and returns a short
// text result. Errors are converted to failed results by the Executor and
// never escape the agent loop.
type HandlerFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool describes one registered tool: its unique name, the description and
// parameter schema shown to the model, and the handler that runs it.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []Parameter `json:"parameters"`
	Func        HandlerFunc `json:"-"`
}

// Parameter defines a tool parameter with validation rules.
type Parameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"` // "string", "number", "integer", "boolean"
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Registry manages tool registration and lookup. Registration order is
// preserved so the manifest shown to the model is deterministic.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool to the registry. Registering a name twice is
// rejected with a DuplicateToolError rather than overwriting.
func (r *Registry) Register(tool *Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tool.Name == "" {
		return fmt.Errorf("tool has no name")
	}
	if tool.Func == nil {
		return fmt.Errorf("tool %s has no handler", tool.Name)
	}
	if _, exists := r.tools[tool.Name]; exists {
		return &DuplicateToolError{Name: tool.Name}
	}

	r.tools[tool.Name] = tool
	r.order = append(r.order, tool.Name)
	return nil
}

// MustRegister adds a tool to the registry, panicking on error. Intended
// for startup wiring where a duplicate is a programming mistake.
func (r *Registry) MustRegister(tool *Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Lookup retrieves a tool by name, or an UnknownToolError.
func (r *Registry) Lookup(name string) (*Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	if !exists {
		return nil, &UnknownToolError{Name: name}
	}
	return tool, nil
}

// List returns all registered tool names in registration order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// All returns all registered tools in registration order.
func (r *Registry) All() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Manifest produces the human-readable tool listing embedded in the system
// prompt. Output is deterministic: tools appear in registration order,
// parameters in declaration order.
func (r *Registry) Manifest() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var b strings.Builder
	for _, name := range r.order {
		tool := r.tools[name]
		fmt.Fprintf(&b, "- %s: %s\n", tool.Name, tool.Description)
		for _, p := range tool.Params {
			req := "optional"
			if p.Required {
				req = "required"
			}
			fmt.Fprintf(&b, "    %s (%s, %s): %s\n", p.Name, p.Type, req, p.Description)
			if len(p.Enum) > 0 {
				sorted := make([]string, len(p.Enum))
				copy(sorted, p.Enum)
				sort.Strings(sorted)
				fmt.Fprintf(&b, "      one of: %s\n", strings.Join(sorted, ", "))
			}
		}
	}
	return b.String()
}
