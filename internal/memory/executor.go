package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"mcp-memory-gateway/internal/protocol"
	"mcp-memory-gateway/internal/tools"
)

// NewExecutor builds the tool registry exposing the memory service as MCP
// tools. Descriptors are registered once here and returned verbatim by
// tools/list.
func NewExecutor(svc *Service) *tools.Registry {
	reg := tools.NewRegistry()

	reg.Register(protocol.Tool{
		Name:        "memory_search",
		Description: "Search through stored memories using semantic search",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query":     map[string]any{"type": "string", "description": "Search query"},
				"tenant_id": map[string]any{"type": "string", "description": "Tenant ID"},
				"limit":     map[string]any{"type": "number", "description": "Max results", "default": 10},
			},
			"required": []any{"query", "tenant_id"},
		},
	}, svc.handleSearch)

	reg.Register(protocol.Tool{
		Name:        "memory_create",
		Description: "Create a new memory entry",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content":   map[string]any{"type": "string", "description": "Memory content"},
				"tenant_id": map[string]any{"type": "string", "description": "Tenant ID"},
				"user_id":   map[string]any{"type": "string", "description": "User ID"},
				"metadata":  map[string]any{"type": "object", "description": "Additional metadata"},
			},
			"required": []any{"content", "tenant_id", "user_id"},
		},
	}, svc.handleCreate)

	reg.Register(protocol.Tool{
		Name:        "memory_update",
		Description: "Update an existing memory",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"memory_id": map[string]any{"type": "string", "description": "Memory ID"},
				"content":   map[string]any{"type": "string", "description": "New content"},
				"metadata":  map[string]any{"type": "object", "description": "Updated metadata"},
			},
			"required": []any{"memory_id"},
		},
	}, svc.handleUpdate)

	reg.Register(protocol.Tool{
		Name:        "memory_delete",
		Description: "Delete a memory entry",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"memory_id": map[string]any{"type": "string", "description": "Memory ID to delete"},
			},
			"required": []any{"memory_id"},
		},
	}, svc.handleDelete)

	reg.Register(protocol.Tool{
		Name:        "memory_list",
		Description: "List all memories for a tenant",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"tenant_id": map[string]any{"type": "string", "description": "Tenant ID"},
				"skip":      map[string]any{"type": "number", "default": 0},
				"limit":     map[string]any{"type": "number", "default": 50},
			},
			"required": []any{"tenant_id"},
		},
	}, svc.handleList)

	return reg
}

type searchArgs struct {
	Query    string `mapstructure:"query"`
	TenantID string `mapstructure:"tenant_id"`
	Limit    int    `mapstructure:"limit"`
}

func (s *Service) handleSearch(ctx context.Context, args map[string]any) (*protocol.ToolCallResult, error) {
	var in searchArgs
	if err := decodeArgs("memory_search", args, &in); err != nil {
		return nil, err
	}
	if in.Query == "" || in.TenantID == "" {
		return nil, &tools.InvalidArgumentsError{Tool: "memory_search", Reason: "query and tenant_id are required"}
	}

	results, err := s.Search(ctx, in.Query, in.TenantID, in.Limit)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []SearchResult{}
	}
	return jsonResult(map[string]any{"memories": results})
}

type createArgs struct {
	Content  string         `mapstructure:"content"`
	TenantID string         `mapstructure:"tenant_id"`
	UserID   string         `mapstructure:"user_id"`
	Metadata map[string]any `mapstructure:"metadata"`
}

func (s *Service) handleCreate(ctx context.Context, args map[string]any) (*protocol.ToolCallResult, error) {
	var in createArgs
	if err := decodeArgs("memory_create", args, &in); err != nil {
		return nil, err
	}
	if in.Content == "" || in.TenantID == "" || in.UserID == "" {
		return nil, &tools.InvalidArgumentsError{Tool: "memory_create", Reason: "content, tenant_id and user_id are required"}
	}

	m, err := s.Create(ctx, CreateParams{
		Content:  in.Content,
		TenantID: in.TenantID,
		UserID:   in.UserID,
		Metadata: in.Metadata,
	})
	if err != nil {
		return nil, err
	}
	return protocol.NewToolCallResult(protocol.NewContent("Memory created with ID: " + m.ID)), nil
}

type updateArgs struct {
	MemoryID string         `mapstructure:"memory_id"`
	Content  *string        `mapstructure:"content"`
	Metadata map[string]any `mapstructure:"metadata"`
}

func (s *Service) handleUpdate(ctx context.Context, args map[string]any) (*protocol.ToolCallResult, error) {
	var in updateArgs
	if err := decodeArgs("memory_update", args, &in); err != nil {
		return nil, err
	}
	if in.MemoryID == "" {
		return nil, &tools.InvalidArgumentsError{Tool: "memory_update", Reason: "memory_id is required"}
	}

	m, err := s.Update(ctx, UpdateParams{MemoryID: in.MemoryID, Content: in.Content, Metadata: in.Metadata})
	if errors.Is(err, ErrNotFound) {
		return nil, &tools.InvalidArgumentsError{Tool: "memory_update", Reason: "memory not found: " + in.MemoryID}
	}
	if err != nil {
		return nil, err
	}
	return protocol.NewToolCallResult(protocol.NewContent("Memory updated: " + m.ID)), nil
}

type deleteArgs struct {
	MemoryID string `mapstructure:"memory_id"`
}

func (s *Service) handleDelete(ctx context.Context, args map[string]any) (*protocol.ToolCallResult, error) {
	var in deleteArgs
	if err := decodeArgs("memory_delete", args, &in); err != nil {
		return nil, err
	}
	if in.MemoryID == "" {
		return nil, &tools.InvalidArgumentsError{Tool: "memory_delete", Reason: "memory_id is required"}
	}

	err := s.Delete(ctx, in.MemoryID)
	if errors.Is(err, ErrNotFound) {
		return nil, &tools.InvalidArgumentsError{Tool: "memory_delete", Reason: "memory not found: " + in.MemoryID}
	}
	if err != nil {
		return nil, err
	}
	return protocol.NewToolCallResult(protocol.NewContent("Memory deleted: " + in.MemoryID)), nil
}

type listArgs struct {
	TenantID string `mapstructure:"tenant_id"`
	Skip     int    `mapstructure:"skip"`
	Limit    int    `mapstructure:"limit"`
}

func (s *Service) handleList(ctx context.Context, args map[string]any) (*protocol.ToolCallResult, error) {
	var in listArgs
	if err := decodeArgs("memory_list", args, &in); err != nil {
		return nil, err
	}
	if in.TenantID == "" {
		return nil, &tools.InvalidArgumentsError{Tool: "memory_list", Reason: "tenant_id is required"}
	}

	entries, err := s.List(ctx, in.TenantID, in.Skip, in.Limit)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []ListEntry{}
	}
	return jsonResult(map[string]any{"memories": entries})
}

// decodeArgs maps the raw arguments object onto a typed struct. Numeric
// fields arrive as JSON floats, so decoding is weakly typed.
func decodeArgs(tool string, args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("building argument decoder: %w", err)
	}
	if err := dec.Decode(args); err != nil {
		return &tools.InvalidArgumentsError{Tool: tool, Reason: err.Error()}
	}
	return nil
}

func jsonResult(v any) (*protocol.ToolCallResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding tool result: %w", err)
	}
	return protocol.NewToolCallResult(protocol.NewContent(string(data))), nil
}
