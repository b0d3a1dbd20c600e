package modeladapter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/germanamz/llamagent/pkg/chats/chat"
	"github.com/germanamz/llamagent/pkg/chats/message"
	"github.com/germanamz/llamagent/pkg/chats/role"
	"github.com/germanamz/llamagent/pkg/chattmpl"
	"github.com/germanamz/llamagent/pkg/generate"
	"github.com/germanamz/llamagent/pkg/inference/inferencetest"
	"github.com/germanamz/llamagent/pkg/modeladapter"
	"github.com/germanamz/llamagent/pkg/tools/toolbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface checks.
var (
	_ modeladapter.Completer     = (*modeladapter.Local)(nil)
	_ modeladapter.UsageReporter = (*modeladapter.Local)(nil)
)

func newLocal(t *testing.T, replies ...string) (*modeladapter.Local, *inferencetest.Scripted) {
	t.Helper()

	tmpl, err := chattmpl.ForFormat(chattmpl.FormatHermes)
	require.NoError(t, err)

	eng := inferencetest.NewScripted(replies...)
	return modeladapter.NewLocal(eng, tmpl, generate.Driver{MaxNewTokens: 256, ContextSize: 8192, BatchSize: 8192}), eng
}

func TestLocal_FinalAnswer(t *testing.T) {
	l, _ := newLocal(t, "Hi there.<|im_end|>")

	var streamed string
	l.OnPiece = func(p string) { streamed += p }

	c := chat.New(message.NewText("user", role.User, "hello"))
	msg, err := l.Complete(context.Background(), c, nil)
	require.NoError(t, err)

	assert.Equal(t, role.Assistant, msg.Role)
	assert.Equal(t, "Hi there.", msg.TextContent())
	assert.Equal(t, "Hi there.<|im_end|>", streamed)

	stop, _ := msg.GetMeta(modeladapter.MetaStop)
	assert.Equal(t, string(generate.StopEOG), stop)

	last, ok := l.UsageTracker().Last()
	require.True(t, ok)
	assert.Equal(t, len("Hi there.<|im_end|>"), last.GeneratedTokens)
	assert.Positive(t, last.PromptTokens)
	assert.Equal(t, 8192, l.ModelMaxTokens())
}

func TestLocal_ToolCall(t *testing.T) {
	l, eng := newLocal(t, `<tool_call>{"name":"shell_command","arguments":{"command":"ls"}}</tool_call>`)

	tools := []toolbox.Tool{{Name: "shell_command", Description: "Execute basic shell commands"}}
	c := chat.New(message.NewText("user", role.User, "list files"))

	msg, err := l.Complete(context.Background(), c, tools)
	require.NoError(t, err)

	calls := msg.ToolCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "shell_command", calls[0].Name)
	assert.JSONEq(t, `{"command":"ls"}`, calls[0].Arguments)

	// The rendered prompt declared the tool.
	prompt := eng.Batches()[0]
	var text []byte
	for _, tok := range prompt {
		text = append(text, byte(tok-inferencetest.TokenFor(0)))
	}
	assert.Contains(t, string(text), `"name":"shell_command"`)
}

func TestLocal_GenerationError(t *testing.T) {
	l, eng := newLocal(t, "x")
	eng.DecodeErr = errors.New("boom")

	_, err := l.Complete(context.Background(), chat.New(message.NewText("user", role.User, "hi")), nil)

	var genErr *generate.Error
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 0, l.UsageTracker().Count())
}

type failingTemplate struct{}

func (failingTemplate) Apply(chattmpl.Inputs) (chattmpl.Params, error) {
	return chattmpl.Params{}, errors.New("bad template")
}

func TestLocal_TemplateError(t *testing.T) {
	l := modeladapter.NewLocal(inferencetest.NewScripted(), failingTemplate{}, generate.Driver{})

	_, err := l.Complete(context.Background(), chat.New(), nil)
	assert.ErrorContains(t, err, "adapter: render prompt")
}
