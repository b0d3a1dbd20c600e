package toolbox

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/germanamz/llamagent/pkg/chats/content"
)

// ToolBox is the tool registry and dispatcher. Tools are registered at
// startup and looked up by name for every call. It is safe for concurrent use.
type ToolBox struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// New creates an empty ToolBox.
func New() *ToolBox {
	return &ToolBox{
		tools: make(map[string]Tool),
	}
}

// Register adds tools to the ToolBox, replacing any tool with the same name.
// Tools without a Source are marked SourceLocal.
func (tb *ToolBox) Register(tools ...Tool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	for _, t := range tools {
		if t.Source == "" {
			t.Source = SourceLocal
		}
		tb.tools[t.Name] = t
	}
}

// Add registers t only if its name is free. It reports whether t was added.
func (tb *ToolBox) Add(t Tool) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if _, exists := tb.tools[t.Name]; exists {
		return false
	}
	if t.Source == "" {
		t.Source = SourceLocal
	}
	tb.tools[t.Name] = t
	return true
}

// Get returns a tool by name.
func (tb *ToolBox) Get(name string) (Tool, bool) {
	tb.mu.RLock()
	defer tb.mu.RUnlock()

	t, ok := tb.tools[name]
	return t, ok
}

// Merge registers every tool of other into tb, replacing duplicates.
func (tb *ToolBox) Merge(other *ToolBox) {
	tb.Register(other.Tools()...)
}

// Tools returns all registered tools sorted by name.
func (tb *ToolBox) Tools() []Tool {
	tb.mu.RLock()
	defer tb.mu.RUnlock()

	result := make([]Tool, 0, len(tb.tools))
	for _, t := range tb.tools {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Len returns the number of registered tools.
func (tb *ToolBox) Len() int {
	tb.mu.RLock()
	defer tb.mu.RUnlock()

	return len(tb.tools)
}

// Call dispatches a tool call and returns its correlated result. It never
// panics and never returns an error: unknown tools, malformed arguments and
// handler failures are all reported through the result.
func (tb *ToolBox) Call(ctx context.Context, tc content.ToolCall) content.ToolResult {
	t, ok := tb.Get(tc.Name)
	if !ok {
		return failure(tc, KindNotFound, fmt.Sprintf("tool not found: %s", tc.Name))
	}

	args, err := ValidateArguments(tc.Arguments)
	if err != nil {
		return failure(tc, KindInvalidArguments, err.Error())
	}

	result, err := safeCall(ctx, t.Handler, args)
	if err != nil {
		return failure(tc, KindOf(err), err.Error())
	}

	return content.ToolResult{
		ToolCallID: tc.ID,
		Name:       tc.Name,
		Content:    result,
	}
}

// Invoke calls the named tool with raw JSON arguments. It is Call without a
// correlation id, used by the interactive client.
func (tb *ToolBox) Invoke(ctx context.Context, name, args string) content.ToolResult {
	return tb.Call(ctx, content.ToolCall{Name: name, Arguments: args})
}

// ValidateArguments checks that raw is a JSON object. Blank input is treated
// as an empty object.
func ValidateArguments(raw string) (json.RawMessage, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return json.RawMessage("{}"), nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return nil, fmt.Errorf("invalid tool arguments: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("invalid tool arguments: expected a JSON object")
	}

	return json.RawMessage(trimmed), nil
}

func safeCall(ctx context.Context, h Handler, args json.RawMessage) (result string, err error) {
	if h == nil {
		return "", Errorf(KindHandler, "tool has no handler")
	}

	defer func() {
		if r := recover(); r != nil {
			err = Errorf(KindHandler, "tool panicked: %v", r)
		}
	}()

	return h(ctx, args)
}

func failure(tc content.ToolCall, kind Kind, detail string) content.ToolResult {
	return content.ToolResult{
		ToolCallID: tc.ID,
		Name:       tc.Name,
		Content:    detail,
		IsError:    true,
		ErrorKind:  string(kind),
	}
}
