package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/germanamz/llamagent/pkg/chats/message"
)

// ErrPanicked wraps a panic recovered from a turn.
var ErrPanicked = errors.New("agent: turn panicked")

// Runner executes one turn and returns the model's final message.
type Runner interface {
	Run(ctx context.Context) (message.Message, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context) (message.Message, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context) (message.Message, error) {
	return f(ctx)
}

// Middleware wraps a Runner. Options.Middleware is applied outermost first.
type Middleware func(next Runner) Runner

// Timeout bounds a whole turn, tool calls included. A non-positive d
// disables it.
func Timeout(d time.Duration) Middleware {
	return func(next Runner) Runner {
		if d <= 0 {
			return next
		}
		return RunnerFunc(func(ctx context.Context) (message.Message, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()

			msg, err := next.Run(ctx)
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
				return msg, fmt.Errorf("agent: turn exceeded %s: %w", d, err)
			}
			return msg, err
		})
	}
}

// Recovery turns a panic during the turn into an error wrapping ErrPanicked.
func Recovery() Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context) (msg message.Message, err error) {
			defer func() {
				if r := recover(); r != nil {
					msg, err = message.Message{}, fmt.Errorf("%w: %v", ErrPanicked, r)
				}
			}()

			return next.Run(ctx)
		})
	}
}

// Logger logs the start and outcome of every turn. Hitting the iteration
// limit is a warning; other failures are errors.
func Logger(log *slog.Logger, name string) Middleware {
	return func(next Runner) Runner {
		return RunnerFunc(func(ctx context.Context) (message.Message, error) {
			log.InfoContext(ctx, "turn started", "agent", name)
			start := time.Now()

			msg, err := next.Run(ctx)
			attrs := []any{"agent", name, "duration", time.Since(start)}

			switch {
			case errors.Is(err, ErrMaxIterations):
				log.WarnContext(ctx, "turn stopped at iteration limit", attrs...)
			case err != nil:
				log.ErrorContext(ctx, "turn finished with error", append(attrs, "error", err)...)
			default:
				log.InfoContext(ctx, "turn finished", append(attrs, "answer_bytes", len(msg.TextContent()))...)
			}

			return msg, err
		})
	}
}
