// Package executor runs already-validated command lines as child processes
// and captures their output.
//
// The executor performs no safety checks of its own. Callers must pass every
// command through pkg/safety first; the shell tool in pkg/builtin/shell is the
// only production caller and does so.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	osexec "os/exec"
	"strings"
	"time"
)

// DefaultMaxOutputBytes caps captured stdout when Executor.MaxOutputBytes is
// zero.
const DefaultMaxOutputBytes = 64 << 10

// ErrOutputLimit is returned when a command writes more than the output cap.
// The Result still carries the truncated prefix.
var ErrOutputLimit = errors.New("executor: output limit exceeded")

// killGrace is how long Run waits for output pipes to close after the
// process was killed.
const killGrace = time.Second

// Mode selects how a command line is turned into a process.
type Mode string

const (
	// ModeShell runs the command through "sh -c".
	ModeShell Mode = "shell"
	// ModeArgv splits the command on whitespace and runs it without a shell.
	ModeArgv Mode = "argv"
)

// Runner runs a command line to completion.
type Runner interface {
	Run(ctx context.Context, command string) (Result, error)
}

// Result is what a finished command produced.
type Result struct {
	Stdout     string
	ExitStatus int
	Truncated  bool
}

// StartError means the process could not be started at all.
type StartError struct {
	Command string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("executor: start %q: %v", e.Command, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// ExitError means the process ran and exited with a non-zero status.
type ExitError struct {
	Command string
	Status  int
	Stdout  string
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("executor: %q exited with status %d", e.Command, e.Status)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// Executor is the process-backed Runner. The zero value runs commands through
// the shell in the current directory with the default output cap.
type Executor struct {
	Mode           Mode
	MaxOutputBytes int
	Dir            string
	// Env replaces the child environment when non-nil.
	Env []string
}

// New creates an Executor in the given mode with default settings.
func New(mode Mode) *Executor {
	return &Executor{Mode: mode}
}

// Run executes command and waits for it to exit. No retries are made. The
// process group is killed as soon as stdout passes the output cap.
func (e *Executor) Run(ctx context.Context, command string) (Result, error) {
	runCtx, kill := context.WithCancel(ctx)
	defer kill()

	cmd, err := e.command(runCtx, command)
	if err != nil {
		return Result{}, err
	}

	stdout := &capWriter{limit: e.limit(), onOverflow: kill}
	stderr := &capWriter{limit: e.limit()}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Dir = e.Dir
	cmd.WaitDelay = killGrace
	if e.Env != nil {
		cmd.Env = e.Env
	}
	killGroup(cmd)

	if err := cmd.Start(); err != nil {
		return Result{}, &StartError{Command: command, Err: err}
	}

	waitErr := cmd.Wait()

	res := Result{
		Stdout:     stdout.buf.String(),
		ExitStatus: cmd.ProcessState.ExitCode(),
		Truncated:  stdout.overflow,
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("executor: run %q: %w", command, ctxErr)
	}

	if res.Truncated {
		return res, ErrOutputLimit
	}

	if waitErr != nil {
		var exitErr *osexec.ExitError
		if errors.As(waitErr, &exitErr) {
			return res, &ExitError{Command: command, Status: exitErr.ExitCode(), Stdout: res.Stdout, Stderr: stderr.buf.String()}
		}
		return res, fmt.Errorf("executor: wait %q: %w", command, waitErr)
	}

	return res, nil
}

func (e *Executor) command(ctx context.Context, command string) (*osexec.Cmd, error) {
	switch e.Mode {
	case ModeShell, "":
		return osexec.CommandContext(ctx, "sh", "-c", command), nil //nolint:gosec // validated by pkg/safety
	case ModeArgv:
		argv := strings.Fields(command)
		if len(argv) == 0 {
			return nil, &StartError{Command: command, Err: errors.New("empty command")}
		}
		return osexec.CommandContext(ctx, argv[0], argv[1:]...), nil //nolint:gosec // validated by pkg/safety
	default:
		return nil, &StartError{Command: command, Err: fmt.Errorf("unknown mode %q", e.Mode)}
	}
}

func (e *Executor) limit() int {
	if e.MaxOutputBytes > 0 {
		return e.MaxOutputBytes
	}
	return DefaultMaxOutputBytes
}

// capWriter keeps at most limit bytes and discards the rest. onOverflow, if
// set, is called once when the limit is first passed.
type capWriter struct {
	buf        bytes.Buffer
	limit      int
	overflow   bool
	onOverflow func()
}

func (w *capWriter) Write(p []byte) (int, error) {
	if remaining := w.limit - w.buf.Len(); remaining < len(p) {
		if !w.overflow && w.onOverflow != nil {
			w.onOverflow()
		}
		w.overflow = true
		if remaining > 0 {
			w.buf.Write(p[:remaining])
		}
		return len(p), nil
	}
	return w.buf.Write(p)
}
