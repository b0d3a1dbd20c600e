package chattmpl

import (
	"strings"

	"github.com/germanamz/llamagent/pkg/chats/role"
)

// ChatML markers.
const (
	imStart = "<|im_start|>"
	imEnd   = "<|im_end|>"
)

const hermesToolsPreamble = `# Tools

You may call one or more functions to assist with the user query.

You are provided with function signatures within <tools></tools> XML tags:
<tools>
`

const hermesToolsPostamble = `</tools>

For each function call, return a json object with function name and arguments within <tool_call></tool_call> XML tags:
<tool_call>
{"name": <function-name>, "arguments": <args-json-object>}
</tool_call>`

type hermes struct{}

func (hermes) Apply(in Inputs) (Params, error) {
	var b strings.Builder

	msgs := in.Messages
	system := ""
	if len(msgs) > 0 && msgs[0].Role == role.System {
		system = msgs[0].TextContent()
		msgs = msgs[1:]
	}

	if toolsEnabled(in) || system != "" {
		b.WriteString(imStart + "system\n")
		b.WriteString(system)
		if toolsEnabled(in) {
			if system != "" {
				b.WriteString("\n\n")
			}
			b.WriteString(hermesToolsPreamble)
			for _, t := range in.Tools {
				b.WriteString(declare(t))
				b.WriteString("\n")
			}
			b.WriteString(hermesToolsPostamble)
			b.WriteString(requiredHint(in))
		}
		b.WriteString(imEnd + "\n")
	}

	for i := 0; i < len(msgs); i++ {
		m := msgs[i]
		switch m.Role {
		case role.Tool:
			// Consecutive tool results share one user turn.
			b.WriteString(imStart + "user")
			for ; i < len(msgs) && msgs[i].Role == role.Tool; i++ {
				for _, tr := range msgs[i].ToolResults() {
					b.WriteString("\n<tool_response>\n")
					b.WriteString(tr.Content)
					b.WriteString("\n</tool_response>")
				}
			}
			i--
			b.WriteString(imEnd + "\n")
		case role.Assistant:
			b.WriteString(imStart + "assistant\n")
			b.WriteString(m.TextContent())
			for _, tc := range m.ToolCalls() {
				if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
					b.WriteString("\n")
				}
				b.WriteString("<tool_call>\n")
				b.WriteString(callJSON(tc.Name, tc.Arguments, "arguments"))
				b.WriteString("\n</tool_call>")
			}
			b.WriteString(imEnd + "\n")
		default:
			b.WriteString(imStart + string(m.Role) + "\n")
			b.WriteString(m.TextContent())
			b.WriteString(imEnd + "\n")
		}
	}

	if in.AddGenerationPrompt {
		b.WriteString(imStart + "assistant\n")
	}

	return Params{Prompt: b.String(), Format: FormatHermes}, nil
}
