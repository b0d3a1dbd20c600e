package chattmpl

import (
	"strings"

	"github.com/germanamz/llamagent/pkg/chats/role"
)

const (
	llamaBOS         = "<|begin_of_text|>"
	llamaHeaderStart = "<|start_header_id|>"
	llamaHeaderEnd   = "<|end_header_id|>"
	llamaEOT         = "<|eot_id|>"
	llamaPythonTag   = "<|python_tag|>"
)

const llama3ToolsPreamble = `Given the following functions, please respond with a JSON for a function call with its proper arguments that best answers the given prompt.

Respond in the format {"name": function name, "parameters": dictionary of argument name and its value}. Do not use variables.

`

type llama3 struct{}

func (llama3) Apply(in Inputs) (Params, error) {
	var b strings.Builder
	b.WriteString(llamaBOS)

	msgs := in.Messages
	system := ""
	if len(msgs) > 0 && msgs[0].Role == role.System {
		system = msgs[0].TextContent()
		msgs = msgs[1:]
	}

	if system != "" || toolsEnabled(in) {
		header(&b, "system")
		b.WriteString(system)
		if toolsEnabled(in) {
			if system != "" {
				b.WriteString("\n\n")
			}
			b.WriteString(llama3ToolsPreamble)
			for _, t := range in.Tools {
				b.WriteString(declare(t))
				b.WriteString("\n\n")
			}
			b.WriteString(strings.TrimPrefix(requiredHint(in), "\n"))
		}
		b.WriteString(llamaEOT)
	}

	for _, m := range msgs {
		switch m.Role {
		case role.Tool:
			header(&b, "ipython")
			for _, tr := range m.ToolResults() {
				b.WriteString(tr.Content)
			}
		case role.Assistant:
			header(&b, "assistant")
			b.WriteString(m.TextContent())
			for _, tc := range m.ToolCalls() {
				b.WriteString(callJSON(tc.Name, tc.Arguments, "parameters"))
			}
		default:
			header(&b, string(m.Role))
			b.WriteString(m.TextContent())
		}
		b.WriteString(llamaEOT)
	}

	if in.AddGenerationPrompt {
		header(&b, "assistant")
	}

	return Params{Prompt: b.String(), Format: FormatLlama3}, nil
}

func header(b *strings.Builder, name string) {
	b.WriteString(llamaHeaderStart)
	b.WriteString(name)
	b.WriteString(llamaHeaderEnd)
	b.WriteString("\n\n")
}
