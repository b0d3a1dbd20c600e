package modeladapter

import (
	"context"
	"fmt"

	"github.com/germanamz/llamagent/pkg/chats/chat"
	"github.com/germanamz/llamagent/pkg/chats/message"
	"github.com/germanamz/llamagent/pkg/chattmpl"
	"github.com/germanamz/llamagent/pkg/generate"
	"github.com/germanamz/llamagent/pkg/inference"
	"github.com/germanamz/llamagent/pkg/modeladapter/usage"
	"github.com/germanamz/llamagent/pkg/reply"
	"github.com/germanamz/llamagent/pkg/tools/toolbox"
)

// Metadata keys set on messages produced by Local.
const (
	MetaStop            = "stop"
	MetaPromptTokens    = "prompt_tokens"
	MetaGeneratedTokens = "generated_tokens"
)

// Local is a Completer that runs a local model: it renders the chat with a
// template, tokenizes it, runs one generation cycle and parses the output.
type Local struct {
	Template   chattmpl.Template
	Engine     inference.Engine
	Driver     *generate.Driver
	Parser     *reply.Parser
	ToolChoice string
	// OnPiece receives generated text as it is produced.
	OnPiece func(string)

	usage usage.Tracker
}

// NewLocal creates a Local completer. The driver's Engine is set to eng.
func NewLocal(eng inference.Engine, tmpl chattmpl.Template, driver generate.Driver) *Local {
	driver.Engine = eng

	return &Local{
		Template: tmpl,
		Engine:   eng,
		Driver:   &driver,
		Parser:   reply.New(),
	}
}

// Complete implements Completer.
func (l *Local) Complete(ctx context.Context, c *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	params, err := l.Template.Apply(chattmpl.Inputs{
		Messages:            c.Messages(),
		Tools:               tools,
		ToolChoice:          l.ToolChoice,
		AddGenerationPrompt: true,
	})
	if err != nil {
		return message.Message{}, fmt.Errorf("adapter: render prompt: %w", err)
	}

	prompt, err := l.Engine.Tokenize(ctx, params.Prompt, true)
	if err != nil {
		return message.Message{}, &generate.Error{Op: "tokenize", Err: err}
	}

	res, err := l.Driver.Generate(ctx, prompt, l.OnPiece)
	if err != nil {
		return message.Message{}, err
	}

	l.usage.Add(usage.TokenCount{PromptTokens: res.PromptTokens, GeneratedTokens: len(res.Tokens)})

	msg := l.Parser.Parse(res.Text, params.Format)
	msg.SetMeta(MetaStop, string(res.Stop))
	msg.SetMeta(MetaPromptTokens, res.PromptTokens)
	msg.SetMeta(MetaGeneratedTokens, len(res.Tokens))

	return msg, nil
}

// UsageTracker implements UsageReporter.
func (l *Local) UsageTracker() *usage.Tracker { return &l.usage }

// ModelMaxTokens implements UsageReporter.
func (l *Local) ModelMaxTokens() int { return l.Driver.ContextSize }
