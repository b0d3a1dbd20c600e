package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartKinds(t *testing.T) {
	tests := []struct {
		part Part
		want string
	}{
		{Text{Text: "hi"}, "text"},
		{ToolCall{ID: "c1", Name: "shell_command"}, "tool_call"},
		{ToolResult{ToolCallID: "c1"}, "tool_result"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.part.PartKind())
	}
}
