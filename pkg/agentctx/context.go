// Package agentctx carries the running agent's name through a context, so
// tools and the audit log can attribute their work without importing
// pkg/agent.
package agentctx

import "context"

type agentNameCtxKey struct{}

// WithAgentName returns a new context carrying the given agent name.
func WithAgentName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, agentNameCtxKey{}, name)
}

// AgentNameFromContext extracts the agent name from the context.
// Returns "" if no agent name is present.
func AgentNameFromContext(ctx context.Context) string {
	v, _ := ctx.Value(agentNameCtxKey{}).(string)
	return v
}
