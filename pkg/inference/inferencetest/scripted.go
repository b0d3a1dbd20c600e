// Package inferencetest provides a deterministic inference.Engine for tests.
package inferencetest

import (
	"context"
	"sync"

	"github.com/germanamz/llamagent/pkg/inference"
)

// EOG is the end-of-generation token of a Scripted engine.
const EOG inference.Token = 1

const byteOffset = 10

// Scripted replays one canned reply per generation cycle. Text is tokenized
// one byte per token. After every Reset the engine steers greedy sampling
// through the next reply byte by byte, then offers EOG.
type Scripted struct {
	// Replies are consumed one per cycle; extra cycles produce empty replies.
	Replies []string
	// DecodeErr, if set, is returned by every Decode call.
	DecodeErr error

	mu      sync.Mutex
	cycle   int
	reply   string
	step    int
	expect  inference.Token
	pending bool
	batches [][]inference.Token
	resets  int
}

// NewScripted creates a Scripted engine with the given replies.
func NewScripted(replies ...string) *Scripted {
	return &Scripted{Replies: replies}
}

// TokenFor returns the token of byte b.
func TokenFor(b byte) inference.Token { return inference.Token(b) + byteOffset }

// Tokenize implements inference.Engine.
func (s *Scripted) Tokenize(_ context.Context, text string, _ bool) ([]inference.Token, error) {
	toks := make([]inference.Token, len(text))
	for i := range len(text) {
		toks[i] = TokenFor(text[i])
	}
	return toks, nil
}

// Decode implements inference.Engine.
func (s *Scripted) Decode(_ context.Context, batch []inference.Token) ([]inference.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches = append(s.batches, append([]inference.Token(nil), batch...))
	if s.DecodeErr != nil {
		return nil, s.DecodeErr
	}

	// The previous suggestion was accepted; move to the next byte.
	if s.pending && len(batch) == 1 && batch[0] == s.expect {
		s.step++
	}

	if s.step >= len(s.reply) {
		s.pending = false
		return []inference.Candidate{{Token: EOG, Logit: 1}, {Token: TokenFor(' '), Logit: 0.5}}, nil
	}

	s.expect = TokenFor(s.reply[s.step])
	s.pending = true

	// A decoy with the same score but a higher id checks tie breaking.
	return []inference.Candidate{
		{Token: s.expect + 1000, Logit: 1},
		{Token: s.expect, Logit: 1},
		{Token: EOG, Logit: 0.1},
	}, nil
}

// IsEOG implements inference.Engine.
func (s *Scripted) IsEOG(tok inference.Token) bool { return tok == EOG }

// TokenToPiece implements inference.Engine.
func (s *Scripted) TokenToPiece(_ context.Context, tok inference.Token) (string, error) {
	return string([]byte{byte(tok - byteOffset)}), nil
}

// Reset implements inference.Engine. It starts the next scripted reply.
func (s *Scripted) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resets++
	s.step = 0
	s.pending = false
	s.reply = ""
	if s.cycle < len(s.Replies) {
		s.reply = s.Replies[s.cycle]
	}
	s.cycle++
}

// Batches returns every batch passed to Decode.
func (s *Scripted) Batches() [][]inference.Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([][]inference.Token(nil), s.batches...)
}

// Resets returns how many times Reset was called.
func (s *Scripted) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.resets
}
