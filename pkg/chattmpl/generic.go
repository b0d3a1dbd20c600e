package chattmpl

import (
	"strings"

	"github.com/germanamz/llamagent/pkg/chats/role"
)

const genericToolsPreamble = `You can use the following tools:
`

const genericToolsPostamble = `
To call a tool, reply with only a JSON object of the form {"name": "<tool name>", "arguments": {<argument object>}}.
To answer the user directly, reply with plain text.`

type generic struct{}

func (generic) Apply(in Inputs) (Params, error) {
	var b strings.Builder

	msgs := in.Messages
	system := ""
	if len(msgs) > 0 && msgs[0].Role == role.System {
		system = msgs[0].TextContent()
		msgs = msgs[1:]
	}

	if system != "" || toolsEnabled(in) {
		b.WriteString("System: ")
		b.WriteString(system)
		if toolsEnabled(in) {
			if system != "" {
				b.WriteString("\n\n")
			}
			b.WriteString(genericToolsPreamble)
			for _, t := range in.Tools {
				b.WriteString("- ")
				b.WriteString(declare(t))
				b.WriteString("\n")
			}
			b.WriteString(genericToolsPostamble)
			b.WriteString(requiredHint(in))
		}
		b.WriteString("\n\n")
	}

	for _, m := range msgs {
		switch m.Role {
		case role.Tool:
			for _, tr := range m.ToolResults() {
				b.WriteString("Tool (")
				b.WriteString(tr.Name)
				b.WriteString("): ")
				b.WriteString(tr.Content)
				b.WriteString("\n\n")
			}
		case role.Assistant:
			b.WriteString("Assistant: ")
			b.WriteString(m.TextContent())
			for _, tc := range m.ToolCalls() {
				b.WriteString(callJSON(tc.Name, tc.Arguments, "arguments"))
			}
			b.WriteString("\n\n")
		default:
			b.WriteString("User: ")
			b.WriteString(m.TextContent())
			b.WriteString("\n\n")
		}
	}

	if in.AddGenerationPrompt {
		b.WriteString("Assistant:")
	}

	return Params{Prompt: b.String(), Format: FormatGeneric}, nil
}
