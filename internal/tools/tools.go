// Package tools defines the tool executor seam between the MCP gateway and
// the memory service behind it. The gateway validates that a tool exists and
// forwards arguments; ranking, persistence and embedding stay on the service
// side of this interface.
package tools

import (
	"context"
	"fmt"

	"mcp-memory-gateway/internal/protocol"
)

// Executor is the collaborator interface consumed by the method router for
// tools/call and tools/list.
type Executor interface {
	// Execute runs the named tool and shapes its output as MCP content
	// blocks. It does not retry; retries, if any, belong to the service.
	Execute(ctx context.Context, name string, args map[string]any) (*protocol.ToolCallResult, error)

	// Descriptors returns the immutable tool descriptors registered at
	// startup, in registration order.
	Descriptors() []protocol.Tool
}

// Handler executes a single tool.
type Handler func(ctx context.Context, args map[string]any) (*protocol.ToolCallResult, error)

// UnknownToolError reports a tools/call against a name that was never
// registered.
type UnknownToolError struct {
	Name string
}

func (e *UnknownToolError) Error() string {
	return fmt.Sprintf("unknown tool: %s", e.Name)
}

// InvalidArgumentsError reports tool arguments that failed validation, e.g.
// a missing required field.
type InvalidArgumentsError struct {
	Tool   string
	Reason string
}

func (e *InvalidArgumentsError) Error() string {
	return fmt.Sprintf("invalid arguments for %s: %s", e.Tool, e.Reason)
}

type registration struct {
	descriptor protocol.Tool
	handler    Handler
}

// Registry is an Executor backed by an in-process handler table. Descriptors
// are registered once at startup and immutable afterwards; Execute is safe
// for concurrent use.
type Registry struct {
	order []string
	tools map[string]registration
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registration)}
}

// Register adds a tool. Registering a duplicate name is a programming error.
func (r *Registry) Register(descriptor protocol.Tool, handler Handler) {
	if _, exists := r.tools[descriptor.Name]; exists {
		panic(fmt.Sprintf("tools: duplicate registration of %q", descriptor.Name))
	}
	r.order = append(r.order, descriptor.Name)
	r.tools[descriptor.Name] = registration{descriptor: descriptor, handler: handler}
}

// Descriptors returns the registered descriptors verbatim.
func (r *Registry) Descriptors() []protocol.Tool {
	out := make([]protocol.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].descriptor)
	}
	return out
}

// Execute dispatches to the named tool's handler.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (*protocol.ToolCallResult, error) {
	reg, ok := r.tools[name]
	if !ok {
		return nil, &UnknownToolError{Name: name}
	}
	return reg.handler(ctx, args)
}
