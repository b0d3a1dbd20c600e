// Package inference defines the boundary between llamagent and a local
// language model runtime: tokenization, incremental decoding and
// detokenization. Concrete runtimes live in subpackages.
package inference

import (
	"context"
	"errors"
)

// ErrModelLoad means the runtime could not load or serve the requested
// model. It is fatal at startup.
var ErrModelLoad = errors.New("inference: model load failed")

// Token is a vocabulary id.
type Token int32

// Candidate is one possible next token with its score. Higher Logit is more
// likely; only the relative order matters to greedy sampling.
type Candidate struct {
	Token Token
	Logit float64
}

// Engine is a stateful model context. Decode appends a batch to the context
// and returns the scores for the token that follows it. Engines are not safe
// for concurrent use; one generation cycle owns the engine at a time.
type Engine interface {
	// Tokenize converts text to tokens. Special markers in text are parsed as
	// special tokens.
	Tokenize(ctx context.Context, text string, addSpecial bool) ([]Token, error)
	// Decode evaluates batch after everything decoded since the last Reset.
	Decode(ctx context.Context, batch []Token) ([]Candidate, error)
	// IsEOG reports whether tok ends generation.
	IsEOG(tok Token) bool
	// TokenToPiece returns the text of a single token.
	TokenToPiece(ctx context.Context, tok Token) (string, error)
	// Reset clears the decoded context.
	Reset()
}

// Info describes the loaded model.
type Info struct {
	Model       string
	ContextSize int
}

// Describer is implemented by engines that can report model details.
type Describer interface {
	Info(ctx context.Context) (Info, error)
}
