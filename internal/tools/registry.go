// Package tools exposes memory operations as function-calling tools that a
// chat model can invoke.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

var (
	// ErrUnknownTool is returned by Execute for a name that is not registered.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidArgs is returned by Execute when arguments do not match the
	// tool's parameter schema.
	ErrInvalidArgs = errors.New("invalid tool arguments")
)

// Definition describes a tool to a model. A nil Parameters schema accepts
// any arguments.
type Definition struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// Call is a single tool invocation requested by a model.
type Call struct {
	ID   string
	Name string
	Args map[string]interface{}
}

// Executor runs a tool call and returns its textual result.
type Executor func(ctx context.Context, call Call) (string, error)

// Registry manages available tools and their execution.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]Definition
	executors map[string]Executor
	schemas   map[string]*jsonschema.Resolved
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:     make(map[string]Definition),
		executors: make(map[string]Executor),
		schemas:   make(map[string]*jsonschema.Resolved),
	}
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool Definition, executor Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return fmt.Errorf("tool %q already registered", tool.Name)
	}
	if tool.Parameters != nil {
		resolved, err := tool.Parameters.Resolve(nil)
		if err != nil {
			return fmt.Errorf("tool %q: invalid parameter schema: %w", tool.Name, err)
		}
		r.schemas[tool.Name] = resolved
	}

	r.tools[tool.Name] = tool
	r.executors[tool.Name] = executor
	return nil
}

// Unregister removes a tool from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tools, name)
	delete(r.executors, name)
	delete(r.schemas, name)
}

// Get returns a tool definition by name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	return tool, ok
}

// List returns all registered tool definitions sorted by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Definition, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// Execute validates the call arguments against the tool's schema, then runs
// the tool and returns its result.
func (r *Registry) Execute(ctx context.Context, call Call) (string, error) {
	r.mu.RLock()
	executor, ok := r.executors[call.Name]
	schema := r.schemas[call.Name]
	r.mu.RUnlock()

	if !ok || executor == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}

	if schema != nil {
		if err := validateArgs(schema, call.Args); err != nil {
			return "", fmt.Errorf("%w for %s: %v", ErrInvalidArgs, call.Name, err)
		}
	}

	return executor(ctx, call)
}

// validateArgs checks args in their JSON form, so Go ints and json.Numbers
// validate the same as decoded JSON numbers.
func validateArgs(schema *jsonschema.Resolved, args map[string]interface{}) error {
	if args == nil {
		args = map[string]interface{}{}
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	var instance interface{}
	if err := json.Unmarshal(raw, &instance); err != nil {
		return err
	}
	return schema.Validate(instance)
}

// DecodeArgs converts call arguments into the struct v points to.
func DecodeArgs(args map[string]interface{}, v interface{}) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	return nil
}

// HasTool checks if a tool is registered.
func (r *Registry) HasTool(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.tools[name]
	return ok
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}

// GetToolsForProvider returns tool definitions in the function-calling
// shape used by chat completion APIs.
func (r *Registry) GetToolsForProvider() []map[string]interface{} {
	tools := r.List()
	result := make([]map[string]interface{}, 0, len(tools))
	for _, tool := range tools {
		result = append(result, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters":  tool.Parameters,
			},
		})
	}
	return result
}
