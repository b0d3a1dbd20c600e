// Package agent runs the conversational turn loop: ask the model for a reply,
// dispatch any tool calls it requests, feed the results back and repeat until
// the model answers without requesting tools.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/germanamz/llamagent/pkg/agentctx"
	"github.com/germanamz/llamagent/pkg/chats/chat"
	"github.com/germanamz/llamagent/pkg/chats/content"
	"github.com/germanamz/llamagent/pkg/chats/message"
	"github.com/germanamz/llamagent/pkg/chats/role"
	"github.com/germanamz/llamagent/pkg/modeladapter"
	"github.com/germanamz/llamagent/pkg/permissions"
	"github.com/germanamz/llamagent/pkg/tools/toolbox"
)

// ErrMaxIterations is returned when a turn exceeds MaxIterations without the
// model producing a final answer. Results for the last round of tool calls
// are already in the chat when it is returned.
var ErrMaxIterations = errors.New("agent: max iterations reached")

// Options configures an Agent.
type Options struct {
	MaxIterations int          // Generate/tool rounds per turn (0 = unlimited).
	Middleware    []Middleware // Applied around Run().

	// Confirm asks Confirmer before every tool call that is not trusted.
	Confirm     bool
	Confirmer   Confirmer
	Permissions *permissions.Store

	Observer Observer
	Logger   *slog.Logger
}

// Agent owns one conversation and drives it through the model and the tools.
type Agent struct {
	name         string
	instructions string
	completer    modeladapter.Completer
	chat         *chat.Chat
	toolboxes    []*toolbox.ToolBox
	options      Options
	log          *slog.Logger
}

// New creates an Agent with the given configuration.
func New(name, instructions string, completer modeladapter.Completer, opts Options) *Agent {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Agent{
		name:         name,
		instructions: instructions,
		completer:    completer,
		chat:         chat.New(),
		options:      opts,
		log:          log,
	}
}

// Init appends the system prompt to the chat if it has none. Call this after
// AddToolBoxes.
func (a *Agent) Init() {
	if a.chat.SystemPrompt() != "" {
		return
	}
	if prompt := a.buildSystemPrompt(); prompt != "" {
		a.chat.Append(message.NewText(a.name, role.System, prompt))
	}
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.name }

// Chat returns the agent's chat.
func (a *Agent) Chat() *chat.Chat { return a.chat }

// Completer returns the agent's completer.
func (a *Agent) Completer() modeladapter.Completer { return a.completer }

// AddToolBoxes adds tool boxes whose tools the agent may call. When two boxes
// hold a tool with the same name the first one added wins.
func (a *Agent) AddToolBoxes(tbs ...*toolbox.ToolBox) {
	a.toolboxes = append(a.toolboxes, tbs...)
}

// Tools returns every tool visible to the agent, deduplicated by name.
func (a *Agent) Tools() []toolbox.Tool {
	seen := make(map[string]struct{})
	var tools []toolbox.Tool
	for _, tb := range a.toolboxes {
		for _, t := range tb.Tools() {
			if _, ok := seen[t.Name]; ok {
				continue
			}
			seen[t.Name] = struct{}{}
			tools = append(tools, t)
		}
	}
	return tools
}

// Send appends a user message and runs one turn.
func (a *Agent) Send(ctx context.Context, sender, text string) (message.Message, error) {
	a.append(message.NewText(sender, role.User, text))
	return a.Run(ctx)
}

// Run executes one turn over the current chat with middleware applied. The
// agent's name is attached to ctx for tools and recorders downstream.
func (a *Agent) Run(ctx context.Context) (message.Message, error) {
	ctx = agentctx.WithAgentName(ctx, a.name)

	var runner Runner = RunnerFunc(a.run)

	for i := len(a.options.Middleware) - 1; i >= 0; i-- {
		runner = a.options.Middleware[i](runner)
	}

	return runner.Run(ctx)
}

func (a *Agent) run(ctx context.Context) (message.Message, error) {
	tools := a.Tools()

	for i := 0; a.options.MaxIterations == 0 || i < a.options.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return message.Message{}, err
		}

		reply, err := a.completer.Complete(ctx, a.chat, tools)
		if err != nil {
			return message.Message{}, err
		}

		reply.Sender = a.name
		a.append(reply)

		calls := reply.ToolCalls()
		if len(calls) == 0 {
			return reply, nil
		}

		for _, tc := range calls {
			result := a.dispatch(ctx, tc)
			a.append(message.NewToolResult(a.name, result))
		}
	}

	return message.Message{}, ErrMaxIterations
}

// dispatch resolves one tool call into its result, asking for confirmation
// first when required.
func (a *Agent) dispatch(ctx context.Context, tc content.ToolCall) content.ToolResult {
	a.observeStart(tc)

	result := a.resolve(ctx, tc)
	if result.IsError {
		a.log.WarnContext(ctx, "tool call failed",
			"tool", tc.Name, "kind", result.ErrorKind, "error", result.Content)
	}

	a.observeEnd(tc, result)
	return result
}

func (a *Agent) resolve(ctx context.Context, tc content.ToolCall) content.ToolResult {
	tb, ok := a.find(tc.Name)
	if !ok {
		return failure(tc, toolbox.KindNotFound, fmt.Sprintf("tool not found: %s", tc.Name))
	}

	if !a.needsConfirmation(tc.Name) {
		return tb.Call(ctx, tc)
	}

	// Malformed arguments are reported without bothering the user.
	if _, err := toolbox.ValidateArguments(tc.Arguments); err != nil {
		return failure(tc, toolbox.KindInvalidArguments, err.Error())
	}

	decision, err := a.confirm(ctx, tc)
	if err != nil {
		return failure(tc, toolbox.KindCancelled, fmt.Sprintf("confirmation failed: %v", err))
	}

	switch decision {
	case Allow:
	case Trust:
		if err := a.options.Permissions.TrustTool(tc.Name); err != nil {
			a.log.WarnContext(ctx, "failed to persist trusted tool", "tool", tc.Name, "error", err)
		}
	default:
		return failure(tc, toolbox.KindCancelled, fmt.Sprintf("user declined to run %s", tc.Name))
	}

	return tb.Call(ctx, tc)
}

func (a *Agent) needsConfirmation(name string) bool {
	if !a.options.Confirm {
		return false
	}
	if a.options.Permissions != nil && a.options.Permissions.IsToolTrusted(name) {
		return false
	}
	return true
}

func (a *Agent) confirm(ctx context.Context, tc content.ToolCall) (Decision, error) {
	if a.options.Confirmer == nil {
		return Deny, nil
	}

	d, err := a.options.Confirmer.Confirm(ctx, tc)
	if err != nil {
		return Deny, err
	}
	if d == Trust && a.options.Permissions == nil {
		d = Allow
	}
	return d, nil
}

func (a *Agent) find(name string) (*toolbox.ToolBox, bool) {
	for _, tb := range a.toolboxes {
		if _, ok := tb.Get(name); ok {
			return tb, true
		}
	}
	return nil, false
}

func (a *Agent) append(m message.Message) {
	a.chat.Append(m)
	if a.options.Observer != nil {
		a.options.Observer.MessageAdded(a.name, m)
	}
}

func (a *Agent) observeStart(tc content.ToolCall) {
	if a.options.Observer != nil {
		a.options.Observer.ToolCallStarted(a.name, tc)
	}
}

func (a *Agent) observeEnd(tc content.ToolCall, r content.ToolResult) {
	if a.options.Observer != nil {
		a.options.Observer.ToolCallFinished(a.name, tc, r)
	}
}

func (a *Agent) buildSystemPrompt() string {
	var b strings.Builder

	if a.instructions != "" {
		b.WriteString(strings.TrimSpace(a.instructions))
	}

	tools := a.Tools()
	if len(tools) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("You can call the following tools. Call a tool only when it helps answer the user; " +
			"otherwise reply directly.\n")
		for _, t := range tools {
			fmt.Fprintf(&b, "- %s: %s\n", t.Name, t.Description)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func failure(tc content.ToolCall, kind toolbox.Kind, detail string) content.ToolResult {
	return content.ToolResult{
		ToolCallID: tc.ID,
		Name:       tc.Name,
		Content:    detail,
		IsError:    true,
		ErrorKind:  string(kind),
	}
}
