package agent

import (
	"context"

	"github.com/germanamz/llamagent/pkg/chats/content"
)

// Decision is the user's answer to a confirmation prompt.
type Decision int

const (
	// Deny skips the call and reports it as cancelled.
	Deny Decision = iota
	// Allow runs the call once.
	Allow
	// Trust runs the call and stops asking for this tool.
	Trust
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Trust:
		return "trust"
	default:
		return "deny"
	}
}

// Confirmer asks whether a tool call may run.
type Confirmer interface {
	Confirm(ctx context.Context, tc content.ToolCall) (Decision, error)
}

// ConfirmFunc adapts a plain function to the Confirmer interface.
type ConfirmFunc func(ctx context.Context, tc content.ToolCall) (Decision, error)

// Confirm calls the underlying function.
func (f ConfirmFunc) Confirm(ctx context.Context, tc content.ToolCall) (Decision, error) {
	return f(ctx, tc)
}
