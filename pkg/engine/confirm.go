package engine

import (
	"context"

	"github.com/germanamz/llamagent/pkg/agent"
	"github.com/germanamz/llamagent/pkg/audit"
	"github.com/germanamz/llamagent/pkg/chats/content"
)

// auditedConfirmer records every confirmation answer to the audit log.
type auditedConfirmer struct {
	next     agent.Confirmer
	recorder audit.Recorder
}

func (c auditedConfirmer) Confirm(ctx context.Context, tc content.ToolCall) (agent.Decision, error) {
	d, err := c.next.Confirm(ctx, tc)

	action, details := audit.ActionAllowed, d.String()
	if err != nil {
		action, details = audit.ActionDenied, err.Error()
	} else if d == agent.Deny {
		action = audit.ActionDenied
	}

	_ = c.recorder.Record(ctx, audit.Entry{
		Action:  action,
		Tool:    tc.Name,
		Command: tc.Arguments,
		Details: details,
	})

	return d, err
}
