// Package generate runs one generation cycle: it feeds a tokenized prompt to
// an inference.Engine in batches, then samples one token at a time until the
// model emits an end-of-generation token or the token budget is spent.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/germanamz/llamagent/pkg/inference"
)

// Defaults applied when a Driver field is zero.
const (
	DefaultMaxNewTokens = 512
	DefaultBatchSize    = 512
)

// ErrContextOverflow is returned when the prompt does not fit the context.
var ErrContextOverflow = errors.New("generate: prompt exceeds context size")

// Stop says why a cycle ended.
type Stop string

const (
	// StopEOG means the model produced an end-of-generation token.
	StopEOG Stop = "eog"
	// StopBudget means the new-token budget or the context was exhausted.
	StopBudget Stop = "budget"
)

// Error is a failure inside a cycle. The cycle is aborted and never retried.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("generate: %s: %v", e.Op, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Result is the output of one cycle. Text excludes the end-of-generation
// token; Tokens are the sampled ids in order.
type Result struct {
	Text         string
	Tokens       []inference.Token
	PromptTokens int
	Stop         Stop
}

// Driver owns the generation loop. A Driver may be reused across cycles but
// not concurrently, since it drives a single Engine.
type Driver struct {
	Engine       inference.Engine
	Sampler      Sampler
	MaxNewTokens int
	BatchSize    int
	// ContextSize bounds prompt plus generated tokens. Zero means unbounded.
	ContextSize int
}

// Generate runs one cycle over prompt. onPiece, if set, receives every
// generated piece as soon as it is decoded.
func (d *Driver) Generate(ctx context.Context, prompt []inference.Token, onPiece func(string)) (Result, error) {
	nPrompt := len(prompt)
	res := Result{PromptTokens: nPrompt, Stop: StopBudget}

	if nPrompt == 0 {
		return res, &Error{Op: "decode", Err: errors.New("empty prompt")}
	}
	if d.ContextSize > 0 && nPrompt > d.ContextSize {
		return res, fmt.Errorf("%w: %d > %d", ErrContextOverflow, nPrompt, d.ContextSize)
	}

	budget := d.maxNewTokens()
	if d.ContextSize > 0 && nPrompt+budget > d.ContextSize {
		budget = d.ContextSize - nPrompt
	}

	sampler := d.Sampler
	if sampler == nil {
		sampler = Greedy{}
	}

	d.Engine.Reset()

	pos := 0
	pending := prompt

	// Every prompt chunk but the last only fills the context.
	for batch := d.batchSize(); len(pending) > batch; pending = pending[batch:] {
		if err := ctx.Err(); err != nil {
			return res, &Error{Op: "decode", Err: err}
		}
		if _, err := d.Engine.Decode(ctx, pending[:batch]); err != nil {
			return res, &Error{Op: "decode", Err: err}
		}
		pos += batch
	}

	var text strings.Builder
	for pos+len(pending) < nPrompt+budget {
		if err := ctx.Err(); err != nil {
			res.Text = text.String()
			return res, &Error{Op: "decode", Err: err}
		}

		cands, err := d.Engine.Decode(ctx, pending)
		if err != nil {
			res.Text = text.String()
			return res, &Error{Op: "decode", Err: err}
		}
		pos += len(pending)

		tok, err := sampler.Sample(cands)
		if err != nil {
			res.Text = text.String()
			return res, &Error{Op: "sample", Err: err}
		}

		if d.Engine.IsEOG(tok) {
			res.Stop = StopEOG
			break
		}

		piece, err := d.Engine.TokenToPiece(ctx, tok)
		if err != nil {
			res.Text = text.String()
			return res, &Error{Op: "piece", Err: err}
		}

		text.WriteString(piece)
		res.Tokens = append(res.Tokens, tok)
		if onPiece != nil {
			onPiece(piece)
		}

		pending = []inference.Token{tok}
	}

	res.Text = text.String()

	return res, nil
}

func (d *Driver) maxNewTokens() int {
	if d.MaxNewTokens > 0 {
		return d.MaxNewTokens
	}
	return DefaultMaxNewTokens
}

func (d *Driver) batchSize() int {
	if d.BatchSize > 0 {
		return d.BatchSize
	}
	return DefaultBatchSize
}
