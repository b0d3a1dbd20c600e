// Package tools provides the tool registry and the tool-invocation transport.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/llamagent/pkg/tools/toolbox]: Tool type and ToolBox registry/dispatcher
//   - [github.com/germanamz/llamagent/pkg/tools/mcpclient]: MCP client that discovers and calls remote tools
//   - [github.com/germanamz/llamagent/pkg/tools/mcpserver]: MCP server that exposes local tools over stdio or HTTP
//
// The toolbox sub-package is the foundation layer. Both mcpclient and mcpserver
// depend on toolbox for the Tool type but are independent of each other.
// Both are thin wrappers around the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk).
package tools
