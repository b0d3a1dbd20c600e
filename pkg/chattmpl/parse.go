package chattmpl

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Call is a tool call recognised in model output. Arguments is raw JSON text
// and may be malformed; ID is set only when the model supplied one.
type Call struct {
	ID        string
	Name      string
	Arguments string
}

// Parsed is a completion split into free text and tool calls.
type Parsed struct {
	Content   string
	ToolCalls []Call
}

// Parse splits raw model output according to the grammar of f. It never
// fails: text that cannot be recognised as a call is left in Content.
func Parse(raw string, f Format) Parsed {
	switch f {
	case FormatLlama3:
		return parseLlama3(raw)
	case FormatGeneric:
		return parseGeneric(raw)
	default:
		return parseHermes(raw)
	}
}

const (
	toolCallOpen  = "<tool_call>"
	toolCallClose = "</tool_call>"
)

func parseHermes(raw string) Parsed {
	var (
		text  strings.Builder
		calls []Call
	)

	rest := raw
	for {
		start := strings.Index(rest, toolCallOpen)
		if start < 0 {
			text.WriteString(rest)
			break
		}

		text.WriteString(rest[:start])
		body := rest[start+len(toolCallOpen):]

		// An unterminated block at the end of output is still a call.
		end := strings.Index(body, toolCallClose)
		next := ""
		if end >= 0 {
			next = body[end+len(toolCallClose):]
			body = body[:end]
		}

		if c, ok := decodeCall(body); ok {
			calls = append(calls, c)
		} else {
			text.WriteString(rest[start : len(rest)-len(next)])
		}

		if end < 0 {
			break
		}
		rest = next
	}

	return Parsed{Content: strings.TrimSpace(text.String()), ToolCalls: calls}
}

func parseLlama3(raw string) Parsed {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, llamaPythonTag))

	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if calls, ok := decodeCalls(trimmed); ok {
			return Parsed{ToolCalls: calls}
		}
		// Several calls separated by ';'.
		var calls []Call
		for _, part := range strings.Split(trimmed, ";") {
			c, ok := decodeCall(part)
			if !ok {
				calls = nil
				break
			}
			calls = append(calls, c)
		}
		if len(calls) > 0 {
			return Parsed{ToolCalls: calls}
		}
	}

	return Parsed{Content: strings.TrimSpace(raw)}
}

func parseGeneric(raw string) Parsed {
	content := strings.TrimSpace(raw)

	// Strip markdown code fences around a lone JSON payload.
	unfenced := content
	if strings.HasPrefix(unfenced, "```") {
		lines := strings.Split(unfenced, "\n")
		if len(lines) >= 3 && strings.HasPrefix(lines[len(lines)-1], "```") {
			unfenced = strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
		}
	}

	if calls, ok := decodeCalls(unfenced); ok {
		return Parsed{ToolCalls: calls}
	}

	// JSON embedded in surrounding prose.
	if start, end := findJSONBounds(content); start >= 0 {
		if calls, ok := decodeCalls(content[start:end]); ok {
			text := fenceReplacer.Replace(content[:start] + content[end:])
			text = strings.TrimSpace(text)
			return Parsed{Content: text, ToolCalls: calls}
		}
	}

	return Parsed{Content: content}
}

type wireCall struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Arguments  json.RawMessage `json:"arguments"`
	Parameters json.RawMessage `json:"parameters"`
	Function   *wireCall       `json:"function"`
}

func (w wireCall) toCall() (Call, bool) {
	if w.Function != nil && w.Name == "" {
		inner := *w.Function
		if inner.ID == "" {
			inner.ID = w.ID
		}
		return inner.toCall()
	}
	if w.Name == "" {
		return Call{}, false
	}

	args := w.Arguments
	if len(args) == 0 {
		args = w.Parameters
	}

	return Call{ID: w.ID, Name: w.Name, Arguments: normalizeArguments(args)}, true
}

// decodeCalls accepts a single call object or an array of them.
func decodeCalls(s string) ([]Call, bool) {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "[") {
		var list []wireCall
		if err := json.Unmarshal([]byte(s), &list); err != nil || len(list) == 0 {
			return nil, false
		}
		calls := make([]Call, 0, len(list))
		for _, w := range list {
			c, ok := w.toCall()
			if !ok {
				return nil, false
			}
			calls = append(calls, c)
		}
		return calls, true
	}

	c, ok := decodeStrictCall(s)
	if !ok {
		return nil, false
	}
	return []Call{c}, true
}

func decodeStrictCall(s string) (Call, bool) {
	var w wireCall
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &w); err != nil {
		return Call{}, false
	}
	return w.toCall()
}

var fenceReplacer = strings.NewReplacer("```json", "", "```", "")

var (
	nameRe = regexp.MustCompile(`"name"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	argsRe = regexp.MustCompile(`"(?:arguments|parameters)"\s*:\s*`)
)

// decodeCall parses one call, falling back to a lenient scan that keeps the
// raw argument text when the JSON is malformed.
func decodeCall(s string) (Call, bool) {
	if c, ok := decodeStrictCall(s); ok {
		return c, true
	}

	m := nameRe.FindStringSubmatch(s)
	if m == nil {
		return Call{}, false
	}

	var name string
	if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &name); err != nil || name == "" {
		return Call{}, false
	}

	args := ""
	if loc := argsRe.FindStringIndex(s); loc != nil {
		args = strings.TrimSpace(s[loc[1]:])
		// Drop the enclosing object's closing brace.
		if i := strings.LastIndex(args, "}"); i >= 0 && strings.Count(args, "{") < strings.Count(args, "}") {
			args = strings.TrimSpace(args[:i])
		}
	}

	return Call{Name: name, Arguments: args}, true
}

// normalizeArguments returns argument JSON text. Arguments encoded as a JSON
// string are unwrapped; a missing value becomes an empty object.
func normalizeArguments(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "{}"
	}

	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err == nil {
			return strings.TrimSpace(inner)
		}
	}

	return trimmed
}

// findJSONBounds locates the first top-level JSON object or array in s.
// It returns the start index and end+1 index, or (-1, -1) if not found.
func findJSONBounds(s string) (int, int) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return -1, -1
	}

	openChar := s[start]
	closeChar := byte('}')
	if openChar == '[' {
		closeChar = ']'
	}

	depth := 0
	inStr := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inStr {
			if ch == '\\' {
				i++
				continue
			}
			if ch == '"' {
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case openChar:
			depth++
		case closeChar:
			depth--
			if depth == 0 {
				return start, i + 1
			}
		}
	}

	return -1, -1
}
