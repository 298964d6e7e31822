package mcpclient

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// SDKClient adapts a *mcp.ClientSession from modelcontextprotocol/go-sdk to
// the McpClient interface. This is the only file in ragcore that touches
// go-sdk's client-session API directly; everything else depends on
// McpClient.
type SDKClient struct {
	session *mcp.ClientSession
}

// NewSDKClient wraps an already-connected client session.
func NewSDKClient(session *mcp.ClientSession) *SDKClient {
	return &SDKClient{session: session}
}

var _ McpClient = (*SDKClient)(nil)

func (c *SDKClient) ListTools(ctx context.Context) ([]Tool, error) {
	res, err := c.session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, err
	}
	out := make([]Tool, 0, len(res.Tools))
	for _, t := range res.Tools {
		out = append(out, Tool{Name: t.Name, Description: t.Description})
	}
	return out, nil
}

func (c *SDKClient) ListPrompts(ctx context.Context) ([]Prompt, error) {
	res, err := c.session.ListPrompts(ctx, &mcp.ListPromptsParams{})
	if err != nil {
		return nil, err
	}
	out := make([]Prompt, 0, len(res.Prompts))
	for _, p := range res.Prompts {
		out = append(out, Prompt{Name: p.Name, Description: p.Description})
	}
	return out, nil
}

func (c *SDKClient) ListResources(ctx context.Context) ([]Resource, error) {
	res, err := c.session.ListResources(ctx, &mcp.ListResourcesParams{})
	if err != nil {
		return nil, err
	}
	out := make([]Resource, 0, len(res.Resources))
	for _, r := range res.Resources {
		out = append(out, Resource{URI: r.URI, Name: r.Name, MIMEType: r.MIMEType})
	}
	return out, nil
}

func (c *SDKClient) CallTool(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	res, err := c.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	return &CallResult{Content: res.Content, IsError: res.IsError}, nil
}

func (c *SDKClient) CallPrompt(ctx context.Context, name string, args map[string]any) (*CallResult, error) {
	stringArgs := make(map[string]string, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok {
			stringArgs[k] = s
		}
	}
	res, err := c.session.GetPrompt(ctx, &mcp.GetPromptParams{Name: name, Arguments: stringArgs})
	if err != nil {
		return nil, err
	}
	return &CallResult{Content: res.Messages}, nil
}

func (c *SDKClient) ReadResource(ctx context.Context, uri string) (*CallResult, error) {
	res, err := c.session.ReadResource(ctx, &mcp.ReadResourceParams{URI: uri})
	if err != nil {
		return nil, err
	}
	return &CallResult{Content: res.Contents}, nil
}
