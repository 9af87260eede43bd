// Package router dispatches decoded JSON-RPC requests to typed MCP method
// handlers and drives the per-session initialize state machine.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"mcp-memory-gateway/internal/logging"
	"mcp-memory-gateway/internal/memory"
	"mcp-memory-gateway/internal/protocol"
	"mcp-memory-gateway/internal/session"
	"mcp-memory-gateway/internal/tools"
	"mcp-memory-gateway/internal/wikilink"
)

// ServerName and ServerVersion identify the gateway in initialize results.
const (
	ServerName    = "mcp-memory-gateway"
	ServerVersion = "1.0.0"
)

const entityURLPattern = "/memory/entity/{entity}"

// CustomHandler handles one method of the memory/ namespace, keyed by the
// method suffix.
type CustomHandler func(ctx context.Context, sess session.Session, params json.RawMessage) (any, error)

// Router maps method names to handlers. Standard MCP methods are built in;
// custom methods live under the memory/ prefix.
type Router struct {
	registry *session.Registry
	executor tools.Executor
	memories *memory.Service
	logger   logging.Logger
	custom   map[string]CustomHandler
}

// New creates a router over the given collaborators and registers the
// built-in memory/stats custom method.
func New(registry *session.Registry, executor tools.Executor, memories *memory.Service, logger logging.Logger) *Router {
	r := &Router{
		registry: registry,
		executor: executor,
		memories: memories,
		logger:   logger.WithComponent("router"),
		custom:   make(map[string]CustomHandler),
	}
	r.RegisterMemoryMethod("stats", r.handleStats)
	return r
}

// RegisterMemoryMethod adds a handler for memory/<suffix>.
func (r *Router) RegisterMemoryMethod(suffix string, h CustomHandler) {
	r.custom[suffix] = h
}

// Dispatch routes one request against a session and always returns a
// response carrying the request's id. Handler errors become JSON-RPC error
// objects; panics from the executor boundary surface as InternalError, never
// as a crash.
func (r *Router) Dispatch(ctx context.Context, sessionID string, req *protocol.Request) (resp *protocol.Response) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "handler panic", "method", req.Method, "panic", rec)
			resp = protocol.NewErrorResponse(req.ID,
				protocol.NewError(protocol.InternalError, "Internal error", fmt.Sprintf("%v", rec)))
		}
	}()

	sess, ok := r.registry.Get(sessionID)
	if !ok {
		return protocol.NewErrorResponse(req.ID,
			protocol.NewError(protocol.SessionNotFound, "Session not found", map[string]any{"session_id": sessionID}))
	}

	// Ordering is not hard-enforced; calls before initialize are
	// permitted but noted.
	if sess.State == session.StateUninitialized && req.Method != "initialize" {
		r.logger.DebugContext(ctx, "method before initialize",
			"session_id", sessionID, "method", req.Method)
	}

	ctx = session.NewContext(ctx, sessionID)

	result, err := r.route(ctx, sess, req)
	if err != nil {
		return protocol.NewErrorResponse(req.ID, asRPCError(err))
	}
	return protocol.NewResponse(req.ID, result)
}

func (r *Router) route(ctx context.Context, sess session.Session, req *protocol.Request) (any, error) {
	switch req.Method {
	case "initialize":
		return r.handleInitialize(sess, req.Params)
	case "initialized":
		return r.handleInitialized(sess)
	case "ping":
		return map[string]any{}, nil
	case "tools/list":
		return map[string]any{"tools": r.executor.Descriptors()}, nil
	case "tools/call":
		return r.handleToolCall(ctx, req.Params)
	case "resources/list":
		return r.handleResourcesList(sess)
	case "resources/read":
		return r.handleResourceRead(ctx, req.Params)
	case "prompts/list":
		return r.handlePromptsList()
	case "prompts/get":
		return r.handlePromptGet(req.Params)
	}

	if suffix, ok := strings.CutPrefix(req.Method, "memory/"); ok {
		handler, ok := r.custom[suffix]
		if !ok {
			return nil, protocol.NewError(protocol.MethodNotFound,
				"Method not found: "+req.Method, nil)
		}
		return handler(ctx, sess, req.Params)
	}

	return nil, protocol.NewError(protocol.MethodNotFound, "Method not found: "+req.Method, nil)
}

func (r *Router) handleInitialize(sess session.Session, params json.RawMessage) (any, error) {
	var in protocol.InitializeParams
	if len(params) > 0 {
		if err := json.Unmarshal(params, &in); err != nil {
			return nil, protocol.NewError(protocol.InvalidParams, "Invalid params", err.Error())
		}
	}

	r.registry.Update(sess.ID, func(s *session.Session) {
		s.State = session.StateInitialized
		if in.Capabilities != nil {
			s.Capabilities = in.Capabilities
		}
		if in.ClientInfo != nil {
			s.Metadata["clientInfo"] = map[string]any{
				"name":    in.ClientInfo.Name,
				"version": in.ClientInfo.Version,
			}
		}
	})

	return protocol.InitializeResult{
		ProtocolVersion: protocol.Version,
		Capabilities: map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{"subscribe": true},
			"prompts":   map[string]any{},
			"logging":   map[string]any{},
		},
		ServerInfo: protocol.ServerInfo{Name: ServerName, Version: ServerVersion},
	}, nil
}

// handleInitialized acknowledges the initialized notification. Repeats are
// accepted without a state change.
func (r *Router) handleInitialized(sess session.Session) (any, error) {
	r.registry.Update(sess.ID, func(s *session.Session) {
		s.State = session.StateInitialized
	})
	return map[string]any{"status": "acknowledged"}, nil
}

func (r *Router) handleToolCall(ctx context.Context, params json.RawMessage) (any, error) {
	var in protocol.ToolCallParams
	if len(params) == 0 {
		return nil, protocol.NewError(protocol.InvalidParams, "Invalid params", "params are required for tools/call")
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, protocol.NewError(protocol.InvalidParams, "Invalid params", err.Error())
	}
	if in.Name == "" {
		return nil, protocol.NewError(protocol.InvalidParams, "Invalid params", "tool name is required")
	}

	result, err := r.executor.Execute(ctx, in.Name, in.Arguments)
	if err != nil {
		var unknown *tools.UnknownToolError
		var invalid *tools.InvalidArgumentsError
		switch {
		case errors.As(err, &unknown):
			return nil, protocol.NewError(protocol.InvalidParams, err.Error(),
				map[string]any{"tool": unknown.Name})
		case errors.As(err, &invalid):
			return nil, protocol.NewError(protocol.InvalidParams, err.Error(),
				map[string]any{"tool": invalid.Tool})
		default:
			r.logger.ErrorContext(ctx, "tool execution failed", "tool", in.Name, "error", err)
			return nil, protocol.NewError(protocol.InternalError, "Internal error", err.Error())
		}
	}
	return result, nil
}

func (r *Router) handleResourcesList(sess session.Session) (any, error) {
	tenant := sess.TenantID
	if tenant == "" {
		tenant = "default"
	}
	return map[string]any{
		"resources": []protocol.Resource{
			{
				URI:         fmt.Sprintf("memory://tenant/%s/all", tenant),
				Name:        "All Memories",
				Description: "Access to all memories in the tenant",
				MimeType:    "application/json",
			},
			{
				URI:         fmt.Sprintf("memory://tenant/%s/html", tenant),
				Name:        "Rendered Memories",
				Description: "Tenant memories rendered to HTML with wiki-links resolved",
				MimeType:    "text/html",
			},
		},
	}, nil
}

type readResourceParams struct {
	URI string `json:"uri"`
}

func (r *Router) handleResourceRead(ctx context.Context, params json.RawMessage) (any, error) {
	var in readResourceParams
	if len(params) == 0 {
		return nil, protocol.NewError(protocol.InvalidParams, "Invalid params", "uri is required for resources/read")
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, protocol.NewError(protocol.InvalidParams, "Invalid params", err.Error())
	}
	if in.URI == "" {
		return nil, protocol.NewError(protocol.InvalidParams, "Invalid params", "uri is required for resources/read")
	}

	tenant, view, err := parseMemoryURI(in.URI)
	if err != nil {
		return nil, protocol.NewError(protocol.ResourceNotFound, "Resource not found",
			map[string]any{"uri": in.URI})
	}

	memories, err := r.memories.TenantMemories(ctx, tenant)
	if err != nil {
		return nil, protocol.NewError(protocol.InternalError, "Internal error", err.Error())
	}

	contents, err := renderResource(in.URI, view, memories)
	if err != nil {
		return nil, err
	}
	return map[string]any{"contents": []protocol.ResourceContents{*contents}}, nil
}

func (r *Router) handlePromptsList() (any, error) {
	return map[string]any{
		"prompts": []protocol.Prompt{
			{
				Name:        "search_memories",
				Description: "Template for searching memories",
				Arguments: []protocol.PromptArgument{
					{Name: "query", Description: "Search query", Required: true},
				},
			},
		},
	}, nil
}

type promptGetParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

func (r *Router) handlePromptGet(params json.RawMessage) (any, error) {
	var in promptGetParams
	if len(params) == 0 {
		return nil, protocol.NewError(protocol.InvalidParams, "Invalid params", "name is required for prompts/get")
	}
	if err := json.Unmarshal(params, &in); err != nil {
		return nil, protocol.NewError(protocol.InvalidParams, "Invalid params", err.Error())
	}

	if in.Name != "search_memories" {
		return nil, protocol.NewError(protocol.InvalidParams, "Unknown prompt: "+in.Name, nil)
	}

	query := in.Arguments["query"]
	if query == "" {
		query = "your topic"
	}
	return map[string]any{
		"description": "Search for relevant memories",
		"messages": []protocol.PromptMessage{
			{
				Role:    "user",
				Content: protocol.NewContent("Search for memories related to: " + query),
			},
		},
	}, nil
}

func (r *Router) handleStats(ctx context.Context, sess session.Session, _ json.RawMessage) (any, error) {
	stats, err := r.memories.Stats(ctx)
	if err != nil {
		return nil, protocol.NewError(protocol.InternalError, "Internal error", err.Error())
	}
	stats["session_id"] = sess.ID
	return stats, nil
}

// parseMemoryURI splits a memory://tenant/{tenant}/{view} URI.
func parseMemoryURI(uri string) (tenant, view string, err error) {
	rest, ok := strings.CutPrefix(uri, "memory://")
	if !ok {
		return "", "", fmt.Errorf("unsupported scheme in %q", uri)
	}
	parts := strings.Split(rest, "/")
	if len(parts) < 3 || parts[0] != "tenant" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed memory uri %q", uri)
	}
	return parts[1], parts[2], nil
}

func renderResource(uri, view string, memories []*memory.Memory) (*protocol.ResourceContents, error) {
	switch view {
	case "all":
		if memories == nil {
			memories = []*memory.Memory{}
		}
		data, err := json.MarshalIndent(memories, "", "  ")
		if err != nil {
			return nil, protocol.NewError(protocol.InternalError, "Internal error", err.Error())
		}
		return &protocol.ResourceContents{URI: uri, MimeType: "application/json", Text: string(data)}, nil

	case "html":
		var sb strings.Builder
		for _, m := range memories {
			html, err := wikilink.RenderHTML(m.Content, entityURLPattern)
			if err != nil {
				return nil, protocol.NewError(protocol.InternalError, "Internal error", err.Error())
			}
			sb.WriteString(html)
		}
		return &protocol.ResourceContents{URI: uri, MimeType: "text/html", Text: sb.String()}, nil

	default:
		return nil, protocol.NewError(protocol.ResourceNotFound, "Resource not found",
			map[string]any{"uri": uri})
	}
}

func asRPCError(err error) *protocol.Error {
	var rpcErr *protocol.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return protocol.NewError(protocol.InternalError, "Internal error", err.Error())
}
