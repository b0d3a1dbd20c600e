// Package shell provides the shell_command tool. Every command is cleaned of
// chat markers, checked by a safety.Validator and only then handed to an
// executor.Runner. Rejected commands never reach the runner.
package shell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/germanamz/llamagent/pkg/audit"
	"github.com/germanamz/llamagent/pkg/executor"
	"github.com/germanamz/llamagent/pkg/reply"
	"github.com/germanamz/llamagent/pkg/safety"
	"github.com/germanamz/llamagent/pkg/tools/toolbox"
)

// ToolName is the registered name of the shell tool.
const ToolName = "shell_command"

// Shell serves the shell_command tool.
type Shell struct {
	validator *safety.Validator
	runner    executor.Runner
	recorder  audit.Recorder
	logger    *slog.Logger
	argv      bool
}

// Option configures a Shell.
type Option func(*Shell)

// WithRecorder records every decision to r.
func WithRecorder(r audit.Recorder) Option {
	return func(s *Shell) { s.recorder = r }
}

// WithArgv validates commands as whitespace-split argv, matching an
// executor running in executor.ModeArgv.
func WithArgv() Option {
	return func(s *Shell) { s.argv = true }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Shell) { s.logger = l }
}

// New creates a Shell that validates with v and runs with r.
func New(v *safety.Validator, r executor.Runner, opts ...Option) *Shell {
	s := &Shell{
		validator: v,
		runner:    r,
		recorder:  audit.Nop{},
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Tools returns a ToolBox containing the shell tool.
func (s *Shell) Tools() *toolbox.ToolBox {
	tb := toolbox.New()
	tb.Register(s.Tool())

	return tb
}

// Tool returns the shell_command declaration.
func (s *Shell) Tool() toolbox.Tool {
	return toolbox.Tool{
		Name:        ToolName,
		Description: "Execute basic shell commands. Only read-only commands (ls, pwd, echo, cat, date, whoami, uname) are allowed; pipes, redirection and command chaining are rejected.",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"command":{"type":"string","description":"The command line to run, e.g. ls -l"}},"required":["command"]}`),
		Handler:     s.handle,
	}
}

type input struct {
	Command *string `json:"command"`
}

func (s *Shell) handle(ctx context.Context, raw json.RawMessage) (string, error) {
	var in input
	if err := json.Unmarshal(raw, &in); err != nil {
		return "", toolbox.Errorf(toolbox.KindInvalidArguments, "%s: invalid input: %v", ToolName, err)
	}
	if in.Command == nil {
		return "", toolbox.Errorf(toolbox.KindInvalidArguments, "%s: missing 'command' parameter", ToolName)
	}

	command := reply.Clean(*in.Command)
	if command == "" {
		return "", toolbox.Errorf(toolbox.KindInvalidArguments, "%s: empty command", ToolName)
	}

	if err := s.check(command); err != nil {
		s.logger.Warn("command rejected", "command", command, "error", err)
		s.record(ctx, audit.ActionRejected, command, "blocked", err.Error())
		return "", toolbox.Wrap(toolbox.KindSafetyRejected, fmt.Errorf("%s: command not allowed for security reasons: %w", ToolName, err))
	}

	res, err := s.runner.Run(ctx, command)
	if err != nil {
		return "", s.classify(ctx, command, res, err)
	}

	s.logger.Debug("command executed", "command", command, "bytes", len(res.Stdout))
	s.record(ctx, audit.ActionExecuted, command, fmt.Sprintf("exit %d", res.ExitStatus), "")

	return res.Stdout, nil
}

func (s *Shell) check(command string) error {
	if s.argv {
		return s.validator.CheckArgv(strings.Fields(command))
	}
	return s.validator.Check(command)
}

func (s *Shell) classify(ctx context.Context, command string, res executor.Result, err error) error {
	s.logger.Warn("command failed", "command", command, "error", err)
	s.record(ctx, audit.ActionFailed, command, fmt.Sprintf("exit %d", res.ExitStatus), err.Error())

	switch {
	case errors.Is(err, executor.ErrOutputLimit):
		return toolbox.Errorf(toolbox.KindOutputLimit, "%s: %v; truncated output:\n%s", ToolName, err, res.Stdout)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return toolbox.Wrap(toolbox.KindCancelled, fmt.Errorf("%s: %w", ToolName, err))
	default:
		if res.Stdout != "" {
			return toolbox.Wrap(toolbox.KindExecution, fmt.Errorf("%s: %w\noutput:\n%s", ToolName, err, res.Stdout))
		}
		return toolbox.Wrap(toolbox.KindExecution, fmt.Errorf("%s: %w", ToolName, err))
	}
}

func (s *Shell) record(ctx context.Context, action, command, result, details string) {
	// Audit failures are logged by the recorder and never fail the call.
	_ = s.recorder.Record(ctx, audit.Entry{
		Action:  action,
		Tool:    ToolName,
		Command: command,
		Result:  result,
		Details: details,
	})
}
