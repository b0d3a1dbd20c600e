package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/germanamz/llamagent/pkg/chats/content"
	"github.com/germanamz/llamagent/pkg/tools/toolbox"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestServer runs an SDK server with the given tools on in-memory
// transports and returns a connected client named "remote".
func setupTestServer(t *testing.T, tools ...toolbox.Tool) *MCPClient {
	t.Helper()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "test-server",
		Version: "1.0.0",
	}, nil)

	for _, tool := range tools {
		handler := tool.Handler
		server.AddTool(&mcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			result, err := handler(ctx, req.Params.Arguments)
			if err != nil {
				return &mcp.CallToolResult{
					Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
					IsError: true,
				}, nil
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: result}},
			}, nil
		})
	}

	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Run(ctx, serverTransport)
	}()
	t.Cleanup(func() {
		cancel()
		<-serverDone
	})

	client, err := newFromTransport(ctx, "remote", "in-memory", clientTransport)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func echoHandler(_ context.Context, input json.RawMessage) (string, error) {
	return string(input), nil
}

func TestListTools(t *testing.T) {
	client := setupTestServer(t,
		toolbox.Tool{
			Name:        "shell_command",
			Description: "Execute basic shell commands",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"command":{"type":"string"}},"required":["command"]}`),
			Handler:     echoHandler,
		},
		toolbox.Tool{
			Name:        "calculator",
			Description: "Perform basic calculations",
			InputSchema: json.RawMessage(`{"type":"object"}`),
			Handler:     echoHandler,
		},
	)

	assert.Equal(t, "remote", client.Name())
	assert.Equal(t, "in-memory", client.Endpoint())

	tools, err := client.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)

	byName := make(map[string]toolbox.Tool, len(tools))
	for _, tool := range tools {
		byName[tool.Name] = tool
	}

	shell, ok := byName["shell_command"]
	require.True(t, ok)
	assert.Equal(t, "Execute basic shell commands", shell.Description)
	assert.Equal(t, "remote", shell.Source)
	assert.NotNil(t, shell.Handler)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(shell.InputSchema, &schema))
	assert.Equal(t, "object", schema["type"])
}

func TestCallToolSuccess(t *testing.T) {
	client := setupTestServer(t, toolbox.Tool{
		Name:        "echo",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler:     echoHandler,
	})

	text, err := client.CallTool(context.Background(), "echo", json.RawMessage(`{"msg":"hello"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"msg":"hello"}`, text)
}

func TestCallToolRemoteError(t *testing.T) {
	client := setupTestServer(t, toolbox.Tool{
		Name:        "fail",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler: func(_ context.Context, _ json.RawMessage) (string, error) {
			return "", errors.New("Division by zero")
		},
	})

	text, err := client.CallTool(context.Background(), "fail", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Empty(t, text)
	assert.Contains(t, err.Error(), "Division by zero")
	assert.Equal(t, toolbox.KindRemote, toolbox.KindOf(err))
}

func TestCallToolUnknownIsTransportError(t *testing.T) {
	client := setupTestServer(t)

	_, err := client.CallTool(context.Background(), "missing", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Equal(t, toolbox.KindTransport, toolbox.KindOf(err))
}

func TestCallToolInvalidArguments(t *testing.T) {
	client := setupTestServer(t)

	_, err := client.CallTool(context.Background(), "echo", json.RawMessage(`not json`))
	require.Error(t, err)
	assert.Equal(t, toolbox.KindInvalidArguments, toolbox.KindOf(err))
}

func TestDiscoveredToolsDispatchThroughToolBox(t *testing.T) {
	client := setupTestServer(t, toolbox.Tool{
		Name:        "greet",
		InputSchema: json.RawMessage(`{"type":"object"}`),
		Handler: func(_ context.Context, _ json.RawMessage) (string, error) {
			return "hello world", nil
		},
	})

	tools, err := client.ListTools(context.Background())
	require.NoError(t, err)

	tb := toolbox.New()
	tb.Register(tools...)

	result := tb.Call(context.Background(), content.ToolCall{ID: "c1", Name: "greet", Arguments: `{}`})
	assert.False(t, result.IsError, result.Content)
	assert.Equal(t, "hello world", result.Content)
	assert.Equal(t, "c1", result.ToolCallID)
}

func TestCallToolMultipleContent(t *testing.T) {
	server := mcp.NewServer(&mcp.Implementation{Name: "test-server", Version: "1.0.0"}, nil)
	server.AddTool(&mcp.Tool{
		Name:        "multi",
		InputSchema: json.RawMessage(`{"type":"object"}`),
	}, func(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: "line 1"},
				&mcp.TextContent{Text: "line 2"},
			},
		}, nil
	})

	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Run(ctx, serverTransport)
	}()
	defer func() {
		cancel()
		<-serverDone
	}()

	client, err := newFromTransport(ctx, "multi", "in-memory", clientTransport)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	text, err := client.CallTool(context.Background(), "multi", json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, "line 1\nline 2", text)
}

func TestNewHTTP_InvalidEndpoint(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewHTTP(ctx, "nowhere", "http://127.0.0.1:1/mcp")
	assert.Error(t, err)
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name   string
		result *mcp.CallToolResult
		want   string
	}{
		{
			name:   "single text",
			result: &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: "hello"}}},
			want:   "hello",
		},
		{
			name: "multiple text",
			result: &mcp.CallToolResult{Content: []mcp.Content{
				&mcp.TextContent{Text: "a"},
				&mcp.TextContent{Text: "b"},
			}},
			want: "a\nb",
		},
		{
			name:   "empty content",
			result: &mcp.CallToolResult{Content: []mcp.Content{}},
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractText(tt.result))
		})
	}
}
