// Package mcp holds the wire types for the tool-invocation protocol:
// JSON-RPC 2.0 envelopes, the tool descriptor and call result shapes, and
// the server-push notification methods.
package mcp

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the protocol revision this server speaks.
const ProtocolVersion = "2024-11-05"

// JSON-RPC 2.0 error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Server-defined error codes (reserved range -32000..-32099) for dispatch
// rejections that happen before a tool runs.
const (
	CodeUnauthorized = -32001
	CodeForbidden    = -32002
)

// Request methods handled by the server
const (
	MethodInitialize = "initialize"
	MethodPing       = "ping"
	MethodToolsList  = "tools/list"
	MethodToolsCall  = "tools/call"
)

// Notification methods pushed to subscribers
const (
	NotifyToolsListChanged     = "notifications/tools/list_changed"
	NotifyResourcesListChanged = "notifications/resources/list_changed"
	NotifyPromptsListChanged   = "notifications/prompts/list_changed"
)

// Request is a JSON-RPC 2.0 request envelope. The ID is kept raw so numeric
// and string identifiers echo back exactly as the client sent them.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no ID and therefore
// expects no response.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0 || string(r.ID) == "null"
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object. Data carries the structured
// application error when one exists.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Notification is a JSON-RPC 2.0 notification (no ID, no response expected).
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// NewNotification builds a notification envelope for the given method.
func NewNotification(method string) Notification {
	return Notification{JSONRPC: "2.0", Method: method}
}

// NewResponse builds a success response echoing the request ID.
func NewResponse(id json.RawMessage, result interface{}) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

// NewErrorResponse builds an error response echoing the request ID.
func NewErrorResponse(id json.RawMessage, code int, message string, data interface{}) Response {
	return Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message, Data: data}}
}

// Implementation identifies a protocol party (name + version).
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolsCapability advertises tool support; ListChanged signals that the
// server pushes notifications/tools/list_changed.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged"`
}

// ResourcesCapability mirrors ToolsCapability for resource listings.
type ResourcesCapability struct {
	ListChanged bool `json:"listChanged"`
}

// Capabilities advertises what the server supports.
type Capabilities struct {
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Resources *ResourcesCapability `json:"resources,omitempty"`
}

// InitializeResult answers the initialize handshake.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    Capabilities   `json:"capabilities"`
	ServerInfo      Implementation `json:"serverInfo"`
}

// Tool describes a callable tool: its wire name and the JSON schema of its
// arguments.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// ListToolsResult answers tools/list.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallParams are the params of a tools/call request.
type CallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// Content is a single result content block. Only text blocks are produced
// by this server.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallResult is the result of a tools/call request. Business-level failures
// are reported in-band with IsError set, per the protocol contract.
type CallResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// TextResult marshals the payload to JSON and wraps it in a text content
// block.
func TextResult(payload interface{}) (*CallResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &CallResult{Content: []Content{{Type: "text", Text: string(raw)}}}, nil
}

// ErrorResult wraps an application error as an in-band failed call result.
func ErrorResult(payload interface{}) *CallResult {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte(fmt.Sprintf("%q", fmt.Sprint(payload)))
	}
	return &CallResult{Content: []Content{{Type: "text", Text: string(raw)}}, IsError: true}
}
