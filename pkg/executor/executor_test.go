package executor

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunShell(t *testing.T) {
	e := New(ModeShell)

	res, err := e.Run(context.Background(), "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, 0, res.ExitStatus)
	assert.False(t, res.Truncated)
}

func TestRunZeroValueUsesShell(t *testing.T) {
	var e Executor

	res, err := e.Run(context.Background(), "echo a b")
	require.NoError(t, err)
	assert.Equal(t, "a b\n", res.Stdout)
}

func TestRunArgv(t *testing.T) {
	e := New(ModeArgv)

	res, err := e.Run(context.Background(), "echo   one  two")
	require.NoError(t, err)
	assert.Equal(t, "one two\n", res.Stdout)
}

func TestRunArgvDoesNotInterpretShellSyntax(t *testing.T) {
	e := New(ModeArgv)

	res, err := e.Run(context.Background(), "echo $HOME")
	require.NoError(t, err)
	assert.Equal(t, "$HOME\n", res.Stdout)
}

func TestRunDir(t *testing.T) {
	dir := t.TempDir()
	e := &Executor{Mode: ModeShell, Dir: dir}

	res, err := e.Run(context.Background(), "pwd")
	require.NoError(t, err)
	assert.Equal(t, dir, strings.TrimSpace(res.Stdout))
}

func TestRunNonZeroExit(t *testing.T) {
	e := New(ModeShell)

	res, err := e.Run(context.Background(), "echo partial; echo oops >&2; exit 3")
	require.Error(t, err)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.Status)
	assert.Equal(t, "oops\n", exitErr.Stderr)
	assert.Equal(t, "partial\n", exitErr.Stdout)
	assert.Contains(t, err.Error(), "oops")
	assert.Equal(t, 3, res.ExitStatus)
	assert.Equal(t, "partial\n", res.Stdout)
}

func TestRunStartFailure(t *testing.T) {
	e := New(ModeArgv)

	_, err := e.Run(context.Background(), "definitely-not-a-real-binary-xyz")
	require.Error(t, err)

	var startErr *StartError
	assert.True(t, errors.As(err, &startErr))
}

func TestRunArgvEmpty(t *testing.T) {
	_, err := New(ModeArgv).Run(context.Background(), "   ")

	var startErr *StartError
	assert.True(t, errors.As(err, &startErr))
}

func TestRunUnknownMode(t *testing.T) {
	_, err := (&Executor{Mode: "weird"}).Run(context.Background(), "ls")

	var startErr *StartError
	assert.True(t, errors.As(err, &startErr))
}

func TestRunOutputLimit(t *testing.T) {
	e := &Executor{Mode: ModeShell, MaxOutputBytes: 4}

	res, err := e.Run(context.Background(), "echo 0123456789")
	require.ErrorIs(t, err, ErrOutputLimit)
	assert.Equal(t, "0123", res.Stdout)
	assert.True(t, res.Truncated)
}

func TestRunOutputLimitStopsEndlessCommand(t *testing.T) {
	for _, mode := range []Mode{ModeShell, ModeArgv} {
		t.Run(string(mode), func(t *testing.T) {
			e := &Executor{Mode: mode, MaxOutputBytes: 1024}

			done := make(chan struct{})
			var (
				res Result
				err error
			)
			go func() {
				defer close(done)
				res, err = e.Run(context.Background(), "cat /dev/zero")
			}()

			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("command still running after the output cap was exceeded")
			}

			require.ErrorIs(t, err, ErrOutputLimit)
			assert.True(t, res.Truncated)
			assert.Len(t, res.Stdout, 1024)
		})
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(ModeShell).Run(ctx, "echo never")
	require.Error(t, err)
}

func TestCapWriter(t *testing.T) {
	w := &capWriter{limit: 5}

	n, err := w.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = w.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "abcde", w.buf.String())
	assert.True(t, w.overflow)

	n, err = w.Write([]byte("z"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "abcde", w.buf.String())
}
