package tools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/cybereason-mcp/internal/toolreg"
)

// RegisterAll exposes every dispatcher tool on the MCP server.
func RegisterAll(server *mcp.Server, d *toolreg.Dispatcher) {
	for _, t := range d.Registry().Tools() {
		register(server, d, t)
	}
}

func register(server *mcp.Server, d *toolreg.Dispatcher, t toolreg.Tool) {
	name := t.Name()
	server.AddTool(&mcp.Tool{
		Name:        name,
		Description: t.Description(),
		InputSchema: t.Parameters(),
		Annotations: &mcp.ToolAnnotations{
			ReadOnlyHint: t.ReadOnly(),
			// Status updates are not guaranteed idempotent by the console.
			IdempotentHint: t.ReadOnly(),
		},
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := d.DispatchRaw(ctx, name, req.Params.Arguments)
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: res.Text}},
			IsError: res.IsError,
		}, nil
	})
}
