// Package protocol implements the JSON-RPC 2.0 message layer for the MCP
// memory gateway, including the MCP method payload types.
package protocol

import "encoding/json"

// Version is the MCP protocol version negotiated during initialize.
const Version = "2024-11-05"

// JSONRPCVersion is the only accepted value of the "jsonrpc" field.
const JSONRPCVersion = "2.0"

// Error codes as defined by JSON-RPC 2.0 plus the gateway's custom range.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603

	// Custom codes (-32000 to -32099).
	SessionNotFound  = -32000
	Unauthorized     = -32001
	ResourceNotFound = -32002
)

// Request represents a JSON-RPC request. Params stay raw so each handler can
// parse them into its own typed form; a shape mismatch is an InvalidParams
// outcome, never a decode-time type error.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// HasID reports whether the request carries a non-null id and therefore
// expects exactly one response with that id.
func (r *Request) HasID() bool {
	return r.ID != nil
}

// Response represents a JSON-RPC response. The id field is always emitted,
// encoding as null for responses to unparseable input.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Notification represents a JSON-RPC notification: a method call that never
// produces a response.
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Error represents a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// NewError creates a new JSON-RPC error.
func NewError(code int, message string, data any) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

// NewResponse creates a success response echoing the given request id.
func NewResponse(id, result any) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Result: result}
}

// NewErrorResponse creates an error response echoing the given request id.
func NewErrorResponse(id any, err *Error) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Error: err}
}

// NewNotification creates a notification for the given method.
func NewNotification(method string, params any) *Notification {
	return &Notification{JSONRPC: JSONRPCVersion, Method: method, Params: params}
}

// Tool describes a named, schema-described operation invocable via
// tools/call. Descriptors are registered once at startup and returned
// verbatim by tools/list.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ToolCallParams are the params of a tools/call request.
type ToolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolCallResult is the MCP-shaped result of a tool invocation.
type ToolCallResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Content is a single typed content block in an MCP result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// NewContent creates a text content block.
func NewContent(text string) Content {
	return Content{Type: "text", Text: text}
}

// NewToolCallResult creates a successful tool call result.
func NewToolCallResult(content ...Content) *ToolCallResult {
	return &ToolCallResult{Content: content}
}

// NewToolCallError creates a tool call result flagged as an error.
func NewToolCallError(message string) *ToolCallResult {
	return &ToolCallResult{Content: []Content{NewContent(message)}, IsError: true}
}

// Resource describes an addressable resource exposed by resources/list.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourceContents is one entry of a resources/read result.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Prompt describes a prompt template exposed by prompts/list.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

// PromptArgument describes a single prompt template argument.
type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// PromptMessage is one message of a prompts/get result.
type PromptMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// InitializeParams are the params of an initialize request.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion,omitempty"`
	Capabilities    map[string]any `json:"capabilities,omitempty"`
	ClientInfo      *ClientInfo    `json:"clientInfo,omitempty"`
}

// ClientInfo identifies the connecting client.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the result of a successful initialize.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

// ServerInfo identifies this server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
