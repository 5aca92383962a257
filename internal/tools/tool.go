// Package tools defines the Tool interface and the builtin call-center tools
// the agent engine can invoke during a session.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors for the tools package.
var (
	// ErrToolNotFound is returned when a requested tool is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolAlreadyExists is returned when attempting to register a tool
	// with a name that is already in use.
	ErrToolAlreadyExists = errors.New("tool already exists")

	// ErrInvalidArgs is returned when tool arguments are invalid or malformed.
	ErrInvalidArgs = errors.New("invalid tool arguments")
)

// Tool is a capability the agent engine can invoke mid-session.
type Tool interface {
	// Name returns the unique identifier for this tool.
	Name() string

	// Description returns a human-readable description of what this tool does.
	Description() string

	// Execute runs the tool with the given JSON arguments.
	Execute(ctx context.Context, args json.RawMessage) (Result, error)
}

// Result is the outcome of a tool execution.
type Result struct {
	// Content is the main output of the tool, typically text.
	Content string `json:"content"`

	// IsError indicates whether this result represents an error condition.
	IsError bool `json:"is_error"`
}

// NewSuccessResult creates a successful tool result with the given content.
func NewSuccessResult(content string) Result {
	return Result{Content: content}
}

// NewErrorResult creates an error tool result with the given message.
func NewErrorResult(errMsg string) Result {
	return Result{Content: errMsg, IsError: true}
}

// FuncTool adapts a plain function into a Tool.
type FuncTool struct {
	name        string
	description string
	fn          func(ctx context.Context, args json.RawMessage) (Result, error)
}

// NewFuncTool wraps fn as a Tool with the given name and description.
func NewFuncTool(name, description string, fn func(ctx context.Context, args json.RawMessage) (Result, error)) *FuncTool {
	return &FuncTool{name: name, description: description, fn: fn}
}

// Name implements Tool.
func (t *FuncTool) Name() string { return t.name }

// Description implements Tool.
func (t *FuncTool) Description() string { return t.description }

// Execute implements Tool.
func (t *FuncTool) Execute(ctx context.Context, args json.RawMessage) (Result, error) {
	return t.fn(ctx, args)
}

// Registry manages a collection of tools.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("%w: tool cannot be nil", ErrInvalidArgs)
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("%w: tool name cannot be empty", ErrInvalidArgs)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyExists, name)
	}

	r.tools[name] = tool
	return nil
}

// MustRegister adds a tool to the registry and panics on error.
// Useful for registering built-in tools during initialization.
func (r *Registry) MustRegister(tool Tool) {
	if err := r.Register(tool); err != nil {
		panic(err)
	}
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the names of all registered tools.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Execute looks up and runs the named tool. A missing tool or an execution
// failure is reported as an error Result rather than a hard error, so one
// bad tool call never faults the calling session.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) Result {
	tool, ok := r.Get(name)
	if !ok {
		return NewErrorResult(fmt.Sprintf("tool not found: %s", name))
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		return NewErrorResult(err.Error())
	}
	return result
}
