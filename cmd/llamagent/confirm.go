package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/germanamz/llamagent/pkg/agent"
	"github.com/germanamz/llamagent/pkg/chats/content"
)

// promptConfirmer asks on the terminal before a tool runs.
type promptConfirmer struct {
	console *console
	// ask runs the prompt; tests replace it.
	ask func(ctx context.Context, title, description string) (agent.Decision, error)
}

func newPromptConfirmer(c *console) *promptConfirmer {
	return &promptConfirmer{console: c, ask: askDecision}
}

// Confirm implements agent.Confirmer. The console is held for the duration
// of the prompt so tool activity is not printed over it.
func (p *promptConfirmer) Confirm(ctx context.Context, tc content.ToolCall) (agent.Decision, error) {
	p.console.mu.Lock()
	defer p.console.mu.Unlock()

	title := fmt.Sprintf("Allow %s?", formatToolCall(tc.Name, tc.Arguments))
	return p.ask(ctx, title, describeArguments(tc.Arguments))
}

// describeArguments pretty-prints JSON arguments for the prompt.
func describeArguments(args string) string {
	var v any
	if err := json.Unmarshal([]byte(args), &v); err != nil {
		return truncate(args, 200)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return truncate(args, 200)
	}
	return string(out)
}

func askDecision(ctx context.Context, title, description string) (agent.Decision, error) {
	decision := agent.Deny

	err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[agent.Decision]().
			Title(title).
			Description(description).
			Options(
				huh.NewOption("Yes", agent.Allow),
				huh.NewOption("Yes, and trust this tool from now on", agent.Trust),
				huh.NewOption("No", agent.Deny),
			).
			Value(&decision),
	)).RunWithContext(ctx)
	if err != nil {
		return agent.Deny, err
	}

	return decision, nil
}
