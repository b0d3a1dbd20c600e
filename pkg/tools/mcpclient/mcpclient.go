package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/germanamz/llamagent/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Version is reported to servers during initialization.
const Version = "0.1.0"

// MCPClient is a connection to one remote tool provider.
type MCPClient struct {
	name     string
	endpoint string
	client   *mcp.Client
	session  *mcp.ClientSession
}

// New spawns an MCP server process and connects to it over stdio.
func New(ctx context.Context, name, command string, args ...string) (*MCPClient, error) {
	transport := &mcp.CommandTransport{
		Command: exec.Command(command, args...), //nolint:gosec // command comes from operator configuration
	}

	endpoint := strings.TrimSpace(command + " " + strings.Join(args, " "))

	return newFromTransport(ctx, name, endpoint, transport)
}

// NewHTTP connects to a streamable-HTTP MCP server at url.
func NewHTTP(ctx context.Context, name, url string) (*MCPClient, error) {
	return newFromTransport(ctx, name, url, &mcp.StreamableClientTransport{Endpoint: url})
}

// NewSSE connects to an SSE-based MCP server at url.
func NewSSE(ctx context.Context, name, url string) (*MCPClient, error) {
	return newFromTransport(ctx, name, url, &mcp.SSEClientTransport{Endpoint: url})
}

// newFromTransport connects over an arbitrary transport. Tests use it with
// in-memory transports.
func newFromTransport(ctx context.Context, name, endpoint string, transport mcp.Transport) (*MCPClient, error) {
	client := mcp.NewClient(&mcp.Implementation{
		Name:    "llamagent",
		Version: Version,
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: connect %s: %w", name, err)
	}

	return &MCPClient{name: name, endpoint: endpoint, client: client, session: session}, nil
}

// Name returns the provider name the client was configured with.
func (c *MCPClient) Name() string { return c.name }

// Endpoint returns a human-readable description of where the provider lives.
func (c *MCPClient) Endpoint() string { return c.endpoint }

// ListTools discovers the provider's tools. Each returned Tool forwards its
// calls through CallTool and carries the provider name as Source.
func (c *MCPClient) ListTools(ctx context.Context) ([]toolbox.Tool, error) {
	result, err := c.session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: list tools: %w", err)
	}

	tools := make([]toolbox.Tool, 0, len(result.Tools))
	for _, sdkTool := range result.Tools {
		t, err := fromSDKTool(sdkTool, c)
		if err != nil {
			return nil, fmt.Errorf("mcpclient: convert tool %q: %w", sdkTool.Name, err)
		}
		tools = append(tools, t)
	}

	return tools, nil
}

// CallTool invokes a named tool on the provider. Every failure is returned as
// a classified *toolbox.Error: bad local arguments, transport failures, and
// errors reported by the remote tool.
func (c *MCPClient) CallTool(ctx context.Context, name string, arguments json.RawMessage) (string, error) {
	var args map[string]any
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &args); err != nil {
			return "", toolbox.Errorf(toolbox.KindInvalidArguments, "mcpclient: unmarshal arguments: %w", err)
		}
	}
	if args == nil {
		args = map[string]any{}
	}

	result, err := c.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return "", toolbox.Errorf(toolbox.KindTransport, "mcpclient: call tool %s on %s: %w", name, c.name, err)
	}

	text := extractText(result)

	if result.IsError {
		return "", toolbox.Errorf(toolbox.KindRemote, "mcpclient: tool error: %s", text)
	}

	return text, nil
}

// Close terminates the session. For command transports the SDK also stops
// the server process.
func (c *MCPClient) Close() error {
	return c.session.Close()
}

func fromSDKTool(sdkTool *mcp.Tool, c *MCPClient) (toolbox.Tool, error) {
	schemaBytes, err := json.Marshal(sdkTool.InputSchema)
	if err != nil {
		return toolbox.Tool{}, fmt.Errorf("marshal input schema: %w", err)
	}

	name := sdkTool.Name

	return toolbox.Tool{
		Name:        sdkTool.Name,
		Description: sdkTool.Description,
		InputSchema: json.RawMessage(schemaBytes),
		Source:      c.name,
		Handler: func(ctx context.Context, input json.RawMessage) (string, error) {
			return c.CallTool(ctx, name, input)
		},
	}, nil
}

// extractText joins all text content items with newlines.
func extractText(result *mcp.CallToolResult) string {
	var texts []string
	for _, item := range result.Content {
		if tc, ok := item.(*mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}

	return strings.Join(texts, "\n")
}
