// Package content defines the parts a conversation message is made of.
package content

// Part is a piece of content within a message.
type Part interface {
	PartKind() string
}

// Text is a plain text content part.
type Text struct {
	Text string
}

func (t Text) PartKind() string { return "text" }

// ToolCall is a model request to invoke a tool. Arguments holds the raw JSON
// text exactly as the model produced it; it may be malformed.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

func (tc ToolCall) PartKind() string { return "tool_call" }

// ToolResult is the outcome of one tool call, correlated by ToolCallID.
// ErrorKind classifies failures and is empty on success.
type ToolResult struct {
	ToolCallID string
	Name       string
	Content    string
	IsError    bool
	ErrorKind  string
}

func (tr ToolResult) PartKind() string { return "tool_result" }
