// Package chattmpl renders a conversation plus tool declarations into the
// prompt text a local model expects, and parses the model's raw completion
// back into content and tool calls. Each Format pairs a rendering with the
// grammar used to recognise tool calls in the output.
package chattmpl

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/germanamz/llamagent/pkg/chats/message"
	"github.com/germanamz/llamagent/pkg/tools/toolbox"
)

// Format names a prompt layout and tool-call grammar.
type Format string

const (
	// FormatHermes is ChatML with <tool_call> JSON blocks (Qwen, Hermes).
	FormatHermes Format = "hermes"
	// FormatLlama3 is the Llama 3.x header layout with bare JSON calls.
	FormatLlama3 Format = "llama3"
	// FormatGeneric is a plain transcript; calls are JSON objects found
	// anywhere in the output.
	FormatGeneric Format = "generic"
)

// ParseFormat converts a name to a Format. Empty selects FormatHermes.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatHermes, nil
	case FormatHermes, FormatLlama3, FormatGeneric:
		return f, nil
	default:
		return "", fmt.Errorf("chattmpl: unknown format %q", s)
	}
}

// Tool choice values.
const (
	ToolChoiceAuto     = "auto"
	ToolChoiceNone     = "none"
	ToolChoiceRequired = "required"
)

// Inputs is everything a template needs to render one prompt.
type Inputs struct {
	Messages            []message.Message
	Tools               []toolbox.Tool
	ToolChoice          string
	AddGenerationPrompt bool
}

// Params is a rendered prompt and the grammar its completion must be parsed
// with.
type Params struct {
	Prompt string
	Format Format
}

// Template renders Inputs into Params.
type Template interface {
	Apply(in Inputs) (Params, error)
}

// ForFormat returns the built-in template for f.
func ForFormat(f Format) (Template, error) {
	switch f {
	case FormatHermes, "":
		return hermes{}, nil
	case FormatLlama3:
		return llama3{}, nil
	case FormatGeneric:
		return generic{}, nil
	default:
		return nil, fmt.Errorf("chattmpl: unknown format %q", f)
	}
}

// toolsEnabled reports whether tools should be declared in the prompt.
func toolsEnabled(in Inputs) bool {
	return len(in.Tools) > 0 && in.ToolChoice != ToolChoiceNone
}

// functionDecl is the OpenAI-style declaration most chat templates embed.
type functionDecl struct {
	Type     string       `json:"type"`
	Function functionBody `json:"function"`
}

type functionBody struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

func declare(t toolbox.Tool) string {
	params := t.InputSchema
	if len(params) == 0 {
		params = json.RawMessage(`{"type":"object","properties":{}}`)
	}

	data, err := json.Marshal(functionDecl{
		Type:     "function",
		Function: functionBody{Name: t.Name, Description: t.Description, Parameters: params},
	})
	if err != nil {
		// InputSchema was not valid JSON; declare the tool without parameters.
		data, _ = json.Marshal(functionDecl{
			Type:     "function",
			Function: functionBody{Name: t.Name, Description: t.Description, Parameters: json.RawMessage(`{}`)},
		})
	}

	return string(data)
}

// callJSON renders a tool call the way a model would have emitted it. Invalid
// argument text is embedded as a JSON string so the prompt stays well formed.
func callJSON(name, args, argsKey string) string {
	raw := json.RawMessage(strings.TrimSpace(args))
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}
	if !json.Valid(raw) {
		quoted, _ := json.Marshal(args)
		raw = quoted
	}

	var b strings.Builder
	nameJSON, _ := json.Marshal(name)
	b.WriteString(`{"name": `)
	b.Write(nameJSON)
	b.WriteString(`, "`)
	b.WriteString(argsKey)
	b.WriteString(`": `)
	b.Write(raw)
	b.WriteString(`}`)

	return b.String()
}

func requiredHint(in Inputs) string {
	if in.ToolChoice == ToolChoiceRequired {
		return "\nYou must call at least one tool before answering."
	}
	return ""
}
