package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/germanamz/llamagent/pkg/builtin/calculator"
	"github.com/germanamz/llamagent/pkg/builtin/shell"
)

// toolFormatter produces a human-readable label from parsed tool arguments.
type toolFormatter func(str func(string) string) string

// toolFormatters maps known tool names to their human-readable formatters.
var toolFormatters = map[string]toolFormatter{
	shell.ToolName: func(s func(string) string) string {
		return fmt.Sprintf("Running %q", truncate(s("command"), 80))
	},
	calculator.ToolName: func(s func(string) string) string {
		return fmt.Sprintf("Calculating %q", truncate(s("expression"), 60))
	},
}

// formatToolCall returns a human-readable description of a tool invocation.
func formatToolCall(toolName, argsJSON string) string {
	var args map[string]any
	if argsJSON != "" {
		_ = json.Unmarshal([]byte(argsJSON), &args)
	}

	str := func(key string) string {
		if v, ok := args[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
		return ""
	}

	if fn, ok := toolFormatters[toolName]; ok && args != nil {
		return fn(str)
	}

	// Unknown and remote tools show name + truncated args.
	if argsJSON = strings.TrimSpace(argsJSON); argsJSON != "" && argsJSON != "{}" {
		return fmt.Sprintf("Calling %s %s", toolName, truncate(argsJSON, 80))
	}
	return fmt.Sprintf("Calling %s", toolName)
}
