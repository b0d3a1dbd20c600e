package agent

import (
	"github.com/germanamz/llamagent/pkg/chats/content"
	"github.com/germanamz/llamagent/pkg/chats/message"
)

// Observer is notified as a turn progresses. Callbacks run synchronously on
// the turn's goroutine.
type Observer interface {
	MessageAdded(agent string, m message.Message)
	ToolCallStarted(agent string, tc content.ToolCall)
	ToolCallFinished(agent string, tc content.ToolCall, r content.ToolResult)
}
