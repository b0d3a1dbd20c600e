package toolbox

import (
	"context"
	"encoding/json"
)

// SourceLocal marks a tool whose handler runs in-process.
const SourceLocal = "local"

// Handler executes a tool with the given JSON object input and returns a text
// result. Failures should be returned as *Error so they carry a Kind.
type Handler func(ctx context.Context, input json.RawMessage) (string, error)

// Tool is a registered tool: its declaration plus the handler that serves it.
// Source is SourceLocal or the name of the remote provider it was discovered on.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Source      string
	Handler     Handler
}
