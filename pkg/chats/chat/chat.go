// Package chat provides the append-only conversation owned by an agent.
package chat

import (
	"github.com/germanamz/llamagent/pkg/chats/content"
	"github.com/germanamz/llamagent/pkg/chats/message"
	"github.com/germanamz/llamagent/pkg/chats/role"
)

// Chat is an append-only conversation. The zero value is ready to use.
// Chat is not safe for concurrent use; the owning agent serialises access.
type Chat struct {
	messages []message.Message
}

// New creates a Chat pre-populated with the given messages.
func New(msgs ...message.Message) *Chat {
	return &Chat{messages: msgs}
}

// Append adds one or more messages to the end of the conversation.
func (c *Chat) Append(msgs ...message.Message) {
	c.messages = append(c.messages, msgs...)
}

// Len returns the number of messages.
func (c *Chat) Len() int {
	return len(c.messages)
}

// At returns the message at index. It panics if the index is out of range.
func (c *Chat) At(index int) message.Message {
	return c.messages[index]
}

// Last returns the most recent message and true, or false if the chat is empty.
func (c *Chat) Last() (message.Message, bool) {
	if len(c.messages) == 0 {
		return message.Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}

// Messages returns a copy of all messages.
func (c *Chat) Messages() []message.Message {
	cp := make([]message.Message, len(c.messages))
	copy(cp, c.messages)
	return cp
}

// Since returns a copy of the messages appended at or after index.
func (c *Chat) Since(index int) []message.Message {
	if index >= len(c.messages) {
		return nil
	}
	if index < 0 {
		index = 0
	}
	cp := make([]message.Message, len(c.messages)-index)
	copy(cp, c.messages[index:])
	return cp
}

// Each calls fn for every message in order until fn returns false.
func (c *Chat) Each(fn func(int, message.Message) bool) {
	for i, m := range c.messages {
		if !fn(i, m) {
			return
		}
	}
}

// SystemPrompt returns the text of the first system message, or "".
func (c *Chat) SystemPrompt() string {
	for _, m := range c.messages {
		if m.Role == role.System {
			return m.TextContent()
		}
	}
	return ""
}

// Unanswered returns the tool calls that have no correlated tool result yet,
// in the order they were requested. A well-formed conversation has none
// before each generation cycle.
func (c *Chat) Unanswered() []content.ToolCall {
	answered := make(map[string]struct{})
	for _, m := range c.messages {
		for _, tr := range m.ToolResults() {
			answered[tr.ToolCallID] = struct{}{}
		}
	}

	var pending []content.ToolCall
	for _, m := range c.messages {
		for _, tc := range m.ToolCalls() {
			if _, ok := answered[tc.ID]; !ok {
				pending = append(pending, tc)
			}
		}
	}
	return pending
}
