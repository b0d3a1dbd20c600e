package calculator

import (
	"context"
	"testing"

	"github.com/germanamz/llamagent/pkg/chats/content"
	"github.com/germanamz/llamagent/pkg/tools/toolbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want float64
	}{
		{"2 + 2", 4},
		{"10 - 3", 7},
		{"6 * 7", 42},
		{"9 / 2", 4.5},
		{"-3 + 5", 2},
		{"1.5*2", 3},
		{"2 - -1", 3},
		{"1e2 / 4", 25},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := Evaluate(tt.expr)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	_, err := Evaluate("1 / 0")
	assert.ErrorIs(t, err, ErrDivisionByZero)

	for _, expr := range []string{"", "abc", "1", "1 ^ 2", "1 + ", "1 + 2 + 3"} {
		_, err := Evaluate(expr)
		assert.Error(t, err, "expr %q", expr)
	}
}

func TestTool(t *testing.T) {
	tb := Tools()

	res := tb.Call(context.Background(), content.ToolCall{ID: "1", Name: ToolName, Arguments: `{"expression":"2 + 2"}`})
	assert.False(t, res.IsError)
	assert.Equal(t, "4", res.Content)

	res = tb.Call(context.Background(), content.ToolCall{ID: "2", Name: ToolName, Arguments: `{"expression":"<|im_start|>7 / 2<|im_end|>"}`})
	assert.Equal(t, "3.5", res.Content)

	res = tb.Call(context.Background(), content.ToolCall{ID: "3", Name: ToolName, Arguments: `{"expression":"1 / 0"}`})
	assert.True(t, res.IsError)
	assert.Equal(t, string(toolbox.KindExecution), res.ErrorKind)
	assert.Contains(t, res.Content, "division by zero")

	res = tb.Call(context.Background(), content.ToolCall{ID: "4", Name: ToolName, Arguments: `{}`})
	assert.Equal(t, string(toolbox.KindInvalidArguments), res.ErrorKind)

	res = tb.Call(context.Background(), content.ToolCall{ID: "5", Name: ToolName, Arguments: `{"expression":""}`})
	assert.Equal(t, string(toolbox.KindInvalidArguments), res.ErrorKind)
}
