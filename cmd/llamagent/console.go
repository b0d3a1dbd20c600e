package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/germanamz/llamagent/pkg/chats/content"
	"github.com/germanamz/llamagent/pkg/chats/message"
	"github.com/germanamz/llamagent/pkg/engine"
	"github.com/germanamz/llamagent/pkg/modeladapter/usage"
	"github.com/germanamz/llamagent/pkg/reply"
)

// resultPreview is how many cells of a tool result are echoed.
const resultPreview = 120

// console writes the conversation to a terminal. Output from the event
// printer and from confirmation prompts is serialised through mu.
type console struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool

	// ended is signalled by the event printer when a turn's events are out.
	ended     chan struct{}
	following bool
}

func newConsole(out io.Writer, verbose bool) *console {
	return &console{out: out, verbose: verbose, ended: make(chan struct{}, 1)}
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, _ = fmt.Fprintf(c.out, format, args...)
}

// follow prints tool activity from sub in the background until it is
// closed.
func (c *console) follow(sub *engine.Subscription) {
	c.following = true
	go func() {
		for e := range sub.C {
			c.printEvent(e)
		}
	}()
}

// reset discards an end-of-turn signal left over from a turn whose settle
// timed out.
func (c *console) reset() {
	select {
	case <-c.ended:
	default:
	}
}

// settle waits until the event printer has caught up with the last turn.
func (c *console) settle() {
	if !c.following {
		return
	}
	select {
	case <-c.ended:
	case <-time.After(time.Second):
	}
}

func (c *console) printEvent(e engine.Event) {
	switch e.Kind {
	case engine.EventAgentEnd:
		select {
		case c.ended <- struct{}{}:
		default:
		}

	case engine.EventToolCallStart:
		tc, ok := e.Data.(content.ToolCall)
		if !ok {
			return
		}
		c.printf("%s%s\n", treePipe, toolNameStyle.Render(formatToolCall(tc.Name, tc.Arguments)))

	case engine.EventToolCallEnd:
		end, ok := e.Data.(engine.ToolCallEnd)
		if !ok {
			return
		}
		c.printf("%s\n", formatToolResult(end.Result, c.verbose))

	case engine.EventMessageAdded:
		m, ok := e.Data.(message.Message)
		if !ok || !c.verbose {
			return
		}
		if r, ok := m.GetMeta(reply.MetaReasoning); ok {
			if s, _ := r.(string); s != "" {
				c.printf("%s\n", thinkingTextStyle.Render(s))
			}
		}
	}
}

// formatToolResult renders a tool result on one line, or in full when
// verbose is set.
func formatToolResult(r content.ToolResult, verbose bool) string {
	body := r.Content
	if !verbose {
		body = truncate(body, resultPreview)
	}

	if r.IsError {
		return treeCorner + toolErrorStyle.Render(fmt.Sprintf("%s error: %s", r.ErrorKind, body))
	}
	if strings.TrimSpace(body) == "" {
		body = "(no output)"
	}
	return treeCorner + toolResultStyle.Render(body)
}

func (c *console) printAnswer(m message.Message) {
	text, _ := reply.Final(m)
	c.printf("%s\n", answerBlockStyle.Render(answerPrefixStyle.Render("🤖 ")+renderMarkdown(text)))
}

func (c *console) printError(err error) {
	c.printf("%s\n", errorBlockStyle.Render(err.Error()))
}

func (c *console) printUsage(tc usage.TokenCount, elapsed time.Duration) {
	c.printf("%s\n", statusStyle.Render(fmt.Sprintf("%s prompt · %s generated · %s",
		fmtTokens(tc.PromptTokens), fmtTokens(tc.GeneratedTokens), fmtDuration(elapsed))))
}

// turn sends one user message and prints the outcome.
func (c *console) turn(ctx context.Context, sess *engine.Session, tracker *usage.Tracker, text string) {
	before := 0
	if tracker != nil {
		before = tracker.Count()
	}

	c.reset()
	start := time.Now()
	answer, err := sess.Send(ctx, text)
	elapsed := time.Since(start)
	c.settle()

	if err != nil {
		c.printError(err)
	} else {
		c.printAnswer(answer)
	}

	if tracker != nil {
		c.printUsage(tracker.Since(before), elapsed)
	}
}
