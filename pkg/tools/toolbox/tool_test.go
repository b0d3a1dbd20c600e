package toolbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolHandler(t *testing.T) {
	tool := Tool{
		Name:        "echo",
		Description: "Echoes input back",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"text":{"type":"string"}}}`),
		Handler: func(_ context.Context, input json.RawMessage) (string, error) {
			var params struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(input, &params); err != nil {
				return "", err
			}
			return params.Text, nil
		},
	}

	result, err := tool.Handler(context.Background(), json.RawMessage(`{"text":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", result)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindSafetyRejected, KindOf(Errorf(KindSafetyRejected, "nope")))
	assert.Equal(t, KindTransport, KindOf(fmtWrap(Wrap(KindTransport, errors.New("eof")))))
	assert.Equal(t, KindHandler, KindOf(errors.New("plain")))
	assert.NoError(t, Wrap(KindRemote, nil))
}

func TestErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(KindExecution, base)

	assert.ErrorIs(t, err, base)
	assert.Equal(t, "boom", err.Error())
}

func fmtWrap(err error) error {
	return errors.Join(errors.New("context"), err)
}
