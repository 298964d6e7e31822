// Package mcpclient defines the MCP client contract ragcore federates
// across (§6 of the spec), plus one concrete adapter over the official
// modelcontextprotocol/go-sdk client session. The core (capability
// manager, health monitor, auth adapter) depends only on the McpClient
// interface; go-sdk specifics are confined to SDKClient.
package mcpclient

import "context"

// Tool, Prompt, and Resource describe the capabilities an MCP server
// advertises.
type Tool struct {
	Name        string
	Description string
}

type Prompt struct {
	Name        string
	Description string
}

type Resource struct {
	URI      string
	Name     string
	MIMEType string
}

// CallResult is the result of invoking a tool, prompt, or reading a
// resource.
type CallResult struct {
	Content any
	IsError bool
}

// McpClient is the contract ragcore consumes for a single MCP server
// connection. Absence of ExecuteBatch/EnableAuthentication (checked via
// type assertion by callers, see BatchExecutor/AuthEnabler below) is a
// valid capability signal, not an error.
type McpClient interface {
	ListTools(ctx context.Context) ([]Tool, error)
	ListPrompts(ctx context.Context) ([]Prompt, error)
	ListResources(ctx context.Context) ([]Resource, error)

	CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error)
	CallPrompt(ctx context.Context, name string, args map[string]any) (*CallResult, error)
	ReadResource(ctx context.Context, uri string) (*CallResult, error)
}

// BatchRequest/BatchResponse mirror the JSON-RPC 2.0 batch wire form (§6);
// defined here (not imported from rpcbatch) so that McpClient implementers
// need not depend on the batching package.
type BatchRequest struct {
	ID     int64
	Method string
	Params map[string]any
}

type BatchResponse struct {
	ID     int64
	Result any
	Error  *BatchError
}

type BatchError struct {
	Code    int
	Message string
}

// BatchExecutor is an optional capability: an McpClient may additionally
// support submitting a JSON-RPC batch in one round trip.
type BatchExecutor interface {
	ExecuteBatch(ctx context.Context, reqs []BatchRequest) ([]BatchResponse, error)
}

// TokenValidator is the minimal shape an auth adapter's validator exposes
// to a client's EnableAuthentication hook, duplicated here to avoid a
// dependency on internal/mcpauth.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (bool, error)
}

// AuthEnabler is an optional capability: an McpClient may support having
// authentication enabled against it post-construction.
type AuthEnabler interface {
	EnableAuthentication(validator TokenValidator) error
}
