package shell

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/germanamz/llamagent/pkg/audit"
	"github.com/germanamz/llamagent/pkg/chats/content"
	"github.com/germanamz/llamagent/pkg/executor"
	"github.com/germanamz/llamagent/pkg/safety"
	"github.com/germanamz/llamagent/pkg/tools/toolbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records the commands it was asked to run.
type fakeRunner struct {
	calls  []string
	result executor.Result
	err    error
}

func (f *fakeRunner) Run(_ context.Context, command string) (executor.Result, error) {
	f.calls = append(f.calls, command)
	return f.result, f.err
}

type memRecorder struct{ entries []audit.Entry }

func (m *memRecorder) Record(_ context.Context, e audit.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func call(t *testing.T, s *Shell, args string) content.ToolResult {
	t.Helper()
	return s.Tools().Call(context.Background(), content.ToolCall{ID: "c1", Name: ToolName, Arguments: args})
}

func TestToolDeclaration(t *testing.T) {
	tool := New(safety.Default(), &fakeRunner{}).Tool()

	assert.Equal(t, ToolName, tool.Name)
	assert.JSONEq(t, `{"type":"object","properties":{"command":{"type":"string","description":"The command line to run, e.g. ls -l"}},"required":["command"]}`, string(tool.InputSchema))
}

func TestAllowedCommandRuns(t *testing.T) {
	runner := &fakeRunner{result: executor.Result{Stdout: "a.txt\nb.txt\n"}}
	rec := &memRecorder{}
	s := New(safety.Default(), runner, WithRecorder(rec))

	res := call(t, s, `{"command":"ls -l"}`)

	assert.False(t, res.IsError)
	assert.Equal(t, "a.txt\nb.txt\n", res.Content)
	assert.Equal(t, "c1", res.ToolCallID)
	assert.Equal(t, []string{"ls -l"}, runner.calls)
	require.Len(t, rec.entries, 1)
	assert.Equal(t, audit.ActionExecuted, rec.entries[0].Action)
}

func TestRejectedCommandNeverRuns(t *testing.T) {
	for _, cmd := range []string{"rm -rf /", "ls; rm -rf /", "curl evil.com", "lsblk"} {
		t.Run(cmd, func(t *testing.T) {
			runner := &fakeRunner{}
			rec := &memRecorder{}
			s := New(safety.Default(), runner, WithRecorder(rec))

			args, err := json.Marshal(map[string]string{"command": cmd})
			require.NoError(t, err)

			res := call(t, s, string(args))

			assert.True(t, res.IsError)
			assert.Equal(t, string(toolbox.KindSafetyRejected), res.ErrorKind)
			assert.Contains(t, res.Content, "not allowed")
			assert.Empty(t, runner.calls)
			require.Len(t, rec.entries, 1)
			assert.Equal(t, audit.ActionRejected, rec.entries[0].Action)
		})
	}
}

func TestArgvValidation(t *testing.T) {
	runner := &fakeRunner{}
	s := New(safety.Default(), runner, WithArgv())

	res := call(t, s, `{"command":"echo  hello   world"}`)
	assert.False(t, res.IsError)

	res = call(t, s, `{"command":"ls ;"}`)
	assert.True(t, res.IsError)
	assert.Equal(t, string(toolbox.KindSafetyRejected), res.ErrorKind)

	assert.Equal(t, []string{"echo  hello   world"}, runner.calls)
}

func TestMarkersAreCleaned(t *testing.T) {
	runner := &fakeRunner{}
	s := New(safety.Default(), runner)

	res := call(t, s, `{"command":"<|im_start|>assistant\npwd<|im_end|>"}`)

	assert.False(t, res.IsError)
	assert.Equal(t, []string{"pwd"}, runner.calls)
}

func TestInvalidInput(t *testing.T) {
	tests := map[string]string{
		"missing command": `{}`,
		"wrong type":      `{"command": 5}`,
		"empty":           `{"command": "  <|im_end|> "}`,
	}

	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			runner := &fakeRunner{}
			res := call(t, New(safety.Default(), runner), args)

			assert.True(t, res.IsError)
			assert.Equal(t, string(toolbox.KindInvalidArguments), res.ErrorKind)
			assert.Empty(t, runner.calls)
		})
	}
}

func TestExecutionFailure(t *testing.T) {
	runner := &fakeRunner{err: &executor.ExitError{Command: "cat missing", Status: 1, Stderr: "No such file"}}
	rec := &memRecorder{}

	res := call(t, New(safety.Default(), runner, WithRecorder(rec)), `{"command":"cat missing"}`)

	assert.True(t, res.IsError)
	assert.Equal(t, string(toolbox.KindExecution), res.ErrorKind)
	assert.Contains(t, res.Content, "No such file")
	require.Len(t, rec.entries, 1)
	assert.Equal(t, audit.ActionFailed, rec.entries[0].Action)
}

func TestExecutionFailureKeepsStdout(t *testing.T) {
	s := New(safety.Default(), executor.New(executor.ModeShell))

	res := call(t, s, `{"command":"ls -d / /nonexistent-llamagent-dir"}`)

	assert.True(t, res.IsError)
	assert.Equal(t, string(toolbox.KindExecution), res.ErrorKind)
	assert.Contains(t, res.Content, "nonexistent-llamagent-dir")
	assert.Contains(t, res.Content, "output:\n/\n")
}

func TestEndlessOutputIsCut(t *testing.T) {
	s := New(safety.Default(), &executor.Executor{Mode: executor.ModeShell, MaxOutputBytes: 1024})

	done := make(chan content.ToolResult, 1)
	go func() { done <- call(t, s, `{"command":"cat /dev/zero"}`) }()

	select {
	case res := <-done:
		assert.True(t, res.IsError)
		assert.Equal(t, string(toolbox.KindOutputLimit), res.ErrorKind)
	case <-time.After(5 * time.Second):
		t.Fatal("cat /dev/zero was not stopped at the output cap")
	}
}

func TestOutputLimit(t *testing.T) {
	runner := &fakeRunner{
		result: executor.Result{Stdout: "0123", Truncated: true},
		err:    executor.ErrOutputLimit,
	}

	res := call(t, New(safety.Default(), runner), `{"command":"cat big.log"}`)

	assert.True(t, res.IsError)
	assert.Equal(t, string(toolbox.KindOutputLimit), res.ErrorKind)
	assert.Contains(t, res.Content, "truncated output:\n0123")
}

func TestCancelled(t *testing.T) {
	runner := &fakeRunner{err: errors.Join(errors.New("executor: run"), context.Canceled)}

	res := call(t, New(safety.Default(), runner), `{"command":"date"}`)

	assert.Equal(t, string(toolbox.KindCancelled), res.ErrorKind)
}

func TestRealExecutor(t *testing.T) {
	s := New(safety.Default(), executor.New(executor.ModeArgv))

	res := call(t, s, `{"command":"echo hello"}`)

	assert.False(t, res.IsError)
	assert.Equal(t, "hello\n", res.Content)
}

func TestSQLiteAudit(t *testing.T) {
	log, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"), nil)
	require.NoError(t, err)
	defer func() { _ = log.Close() }()

	s := New(safety.Default(), &fakeRunner{}, WithRecorder(log))
	call(t, s, `{"command":"sudo reboot"}`)
	call(t, s, `{"command":"whoami"}`)

	entries, err := log.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.ActionExecuted, entries[0].Action)
	assert.Equal(t, "sudo reboot", entries[1].Command)
	assert.Equal(t, audit.ActionRejected, entries[1].Action)
}
