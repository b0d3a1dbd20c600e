// Package reply turns raw model output into an assistant message. It strips
// chat markers and reasoning blocks, recognises tool calls with the grammar of
// the prompt's chattmpl.Format, and assigns correlation ids.
package reply

import (
	"strings"

	"github.com/google/uuid"

	"github.com/germanamz/llamagent/pkg/chats/content"
	"github.com/germanamz/llamagent/pkg/chats/message"
	"github.com/germanamz/llamagent/pkg/chats/role"
	"github.com/germanamz/llamagent/pkg/chattmpl"
)

// MetaReasoning is the metadata key holding stripped reasoning text.
const MetaReasoning = "reasoning"

// Role markers a model may leak into its output.
var roleMarkers = []string{
	"<|im_start|>", "<|im_end|>",
	"<|assistant|>", "<|user|>",
	"<|eot_id|>", "<|endoftext|>",
}

// cleanMarkers additionally drops role lines anywhere in a value.
var cleanMarkers = append(append([]string{}, roleMarkers...), "assistant\n", "user\n")

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// Parser builds assistant messages from raw completions.
type Parser struct {
	// Sender is recorded on every message. Defaults to "assistant".
	Sender string
	// NewID generates tool-call ids for calls the model left unnamed.
	// Defaults to "call_" followed by a random UUID.
	NewID func() string
}

// New creates a Parser with default settings.
func New() *Parser {
	return &Parser{}
}

// Parse converts raw output into an assistant message. Tool-call arguments
// are passed through as text, whether or not they are valid JSON.
func (p *Parser) Parse(raw string, format chattmpl.Format) message.Message {
	reasoning, rest := splitReasoning(raw)
	rest = stripRoleMarkers(rest)

	parsed := chattmpl.Parse(rest, format)

	var parts []content.Part
	if parsed.Content != "" || len(parsed.ToolCalls) == 0 {
		parts = append(parts, content.Text{Text: parsed.Content})
	}
	for _, c := range parsed.ToolCalls {
		id := c.ID
		if id == "" {
			id = p.newID()
		}
		parts = append(parts, content.ToolCall{ID: id, Name: c.Name, Arguments: c.Arguments})
	}

	msg := message.New(p.sender(), role.Assistant, parts...)
	if reasoning != "" {
		msg.SetMeta(MetaReasoning, reasoning)
	}

	return msg
}

// Final reports whether msg ends the turn. A message that requests tools is
// never final; its text is only a preamble.
func Final(msg message.Message) (string, bool) {
	if len(msg.ToolCalls()) > 0 {
		return "", false
	}
	return msg.TextContent(), true
}

// Clean removes every chat marker and stray role line from a value the model
// produced, then trims surrounding whitespace. Tools apply it to their string
// arguments.
func Clean(s string) string {
	for _, m := range cleanMarkers {
		s = strings.ReplaceAll(s, m, "")
	}
	return strings.TrimSpace(s)
}

func (p *Parser) sender() string {
	if p.Sender != "" {
		return p.Sender
	}
	return string(role.Assistant)
}

func (p *Parser) newID() string {
	if p.NewID != nil {
		return p.NewID()
	}
	return "call_" + uuid.NewString()
}

// splitReasoning extracts <think> blocks. A closing tag with no opening tag
// means the prompt already opened the block.
func splitReasoning(raw string) (reasoning, rest string) {
	var thoughts []string

	if end := strings.Index(raw, thinkClose); end >= 0 {
		if start := strings.Index(raw, thinkOpen); start < 0 || start > end {
			thoughts = append(thoughts, strings.TrimSpace(raw[:end]))
			raw = raw[end+len(thinkClose):]
		}
	}

	for {
		start := strings.Index(raw, thinkOpen)
		if start < 0 {
			break
		}
		body := raw[start+len(thinkOpen):]
		end := strings.Index(body, thinkClose)
		if end < 0 {
			// Output ended while still reasoning.
			thoughts = append(thoughts, strings.TrimSpace(body))
			raw = raw[:start]
			break
		}
		thoughts = append(thoughts, strings.TrimSpace(body[:end]))
		raw = raw[:start] + body[end+len(thinkClose):]
	}

	return strings.TrimSpace(strings.Join(thoughts, "\n")), raw
}

func stripRoleMarkers(s string) string {
	for _, m := range roleMarkers {
		s = strings.ReplaceAll(s, m, "")
	}
	s = strings.TrimLeft(s, " \t\r\n")
	return strings.TrimPrefix(s, "assistant\n")
}
