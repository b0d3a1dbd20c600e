// Package llamaserver implements inference.Engine on top of the HTTP API of a
// llama.cpp server. The server owns the model weights; llamagent drives it one
// token at a time through /completion with n_predict=1 and reads the
// candidate distribution from the returned probabilities.
package llamaserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/germanamz/llamagent/pkg/inference"
	"github.com/germanamz/llamagent/pkg/modeladapter"
)

// DefaultURL is where llama-server listens by default.
const DefaultURL = "http://127.0.0.1:8080"

// DefaultCandidates is the number of top candidates requested per step.
const DefaultCandidates = 8

// eogMarkers are end-of-generation tokens of the common chat templates.
var eogMarkers = []string{"<|im_end|>", "<|eot_id|>", "<|end_of_text|>", "</s>", "<|endoftext|>", "<|end|>"}

// Engine is a llama.cpp server backed inference.Engine.
type Engine struct {
	modeladapter.ModelAdapter

	// Candidates is the number of top tokens requested per step.
	Candidates int

	mu      sync.Mutex
	context []inference.Token
	eog     map[inference.Token]struct{}
	pieces  map[inference.Token]string
}

// New creates an Engine for the server at baseURL. A nil client uses the
// adapter's default.
func New(baseURL string, client *http.Client) *Engine {
	if baseURL == "" {
		baseURL = DefaultURL
	}

	return &Engine{
		ModelAdapter: modeladapter.New(strings.TrimRight(baseURL, "/"), modeladapter.Auth{}, client),
		Candidates:   DefaultCandidates,
		eog:          make(map[inference.Token]struct{}),
		pieces:       make(map[inference.Token]string),
	}
}

// Load checks that the server is healthy and serving model, then learns the
// end-of-generation tokens of its vocabulary. model may be empty to accept
// whatever the server loaded; otherwise it is compared by file name.
func (e *Engine) Load(ctx context.Context, model string) error {
	var health struct {
		Status string `json:"status"`
	}
	if err := e.GetJSON(ctx, "/health", &health); err != nil {
		return fmt.Errorf("%w: %v", inference.ErrModelLoad, err)
	}

	info, err := e.Info(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", inference.ErrModelLoad, err)
	}

	if model != "" && info.Model != "" && filepath.Base(info.Model) != filepath.Base(model) {
		return fmt.Errorf("%w: server is serving %q, not %q", inference.ErrModelLoad, info.Model, model)
	}

	e.Name = info.Model
	e.MaxTokens = info.ContextSize

	return e.learnEOG(ctx)
}

// Info implements inference.Describer.
func (e *Engine) Info(ctx context.Context) (inference.Info, error) {
	var props struct {
		ModelPath                 string `json:"model_path"`
		DefaultGenerationSettings struct {
			NCtx int `json:"n_ctx"`
		} `json:"default_generation_settings"`
	}
	if err := e.GetJSON(ctx, "/props", &props); err != nil {
		return inference.Info{}, fmt.Errorf("llamaserver: props: %w", err)
	}

	return inference.Info{Model: props.ModelPath, ContextSize: props.DefaultGenerationSettings.NCtx}, nil
}

func (e *Engine) learnEOG(ctx context.Context) error {
	for _, m := range eogMarkers {
		toks, err := e.Tokenize(ctx, m, false)
		if err != nil {
			return fmt.Errorf("%w: %v", inference.ErrModelLoad, err)
		}
		// Markers the vocabulary lacks tokenize into several pieces.
		if len(toks) == 1 {
			e.mu.Lock()
			e.eog[toks[0]] = struct{}{}
			e.pieces[toks[0]] = m
			e.mu.Unlock()
		}
	}
	return nil
}

// SetEOG replaces the end-of-generation token set.
func (e *Engine) SetEOG(tokens ...inference.Token) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.eog = make(map[inference.Token]struct{}, len(tokens))
	for _, t := range tokens {
		e.eog[t] = struct{}{}
	}
}

// Tokenize implements inference.Engine.
func (e *Engine) Tokenize(ctx context.Context, text string, addSpecial bool) ([]inference.Token, error) {
	req := struct {
		Content      string `json:"content"`
		AddSpecial   bool   `json:"add_special"`
		ParseSpecial bool   `json:"parse_special"`
	}{Content: text, AddSpecial: addSpecial, ParseSpecial: true}

	var resp struct {
		Tokens []inference.Token `json:"tokens"`
	}
	if err := e.PostJSON(ctx, "/tokenize", req, &resp); err != nil {
		return nil, fmt.Errorf("llamaserver: tokenize: %w", err)
	}

	return resp.Tokens, nil
}

// Decode implements inference.Engine. The server keeps the evaluated prefix in
// its prompt cache, so each step only evaluates the new tokens.
func (e *Engine) Decode(ctx context.Context, batch []inference.Token) ([]inference.Candidate, error) {
	if len(batch) == 0 {
		return nil, errors.New("llamaserver: decode: empty batch")
	}

	e.mu.Lock()
	prompt := append(append([]inference.Token(nil), e.context...), batch...)
	e.mu.Unlock()

	req := completionRequest{
		Prompt:      prompt,
		NPredict:    1,
		NProbs:      e.candidates(),
		Temperature: 0,
		CachePrompt: true,
		ReturnToks:  true,
	}

	var resp completionResponse
	if err := e.PostJSON(ctx, "/completion", req, &resp); err != nil {
		return nil, fmt.Errorf("llamaserver: decode: %w", err)
	}

	e.mu.Lock()
	e.context = prompt
	e.mu.Unlock()

	cands := resp.candidates()
	if len(cands) == 0 {
		if resp.StopType == "eos" {
			if tok, ok := e.anyEOG(); ok {
				return []inference.Candidate{{Token: tok}}, nil
			}
		}
		return nil, errors.New("llamaserver: decode: no candidates returned")
	}

	e.mu.Lock()
	for _, c := range cands {
		if c.piece != "" {
			e.pieces[c.Token] = c.piece
		}
	}
	e.mu.Unlock()

	out := make([]inference.Candidate, len(cands))
	for i, c := range cands {
		out[i] = c.Candidate
	}

	return out, nil
}

// IsEOG implements inference.Engine.
func (e *Engine) IsEOG(tok inference.Token) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.eog[tok]
	return ok
}

// TokenToPiece implements inference.Engine. Pieces seen in candidate lists are
// cached; others are fetched from /detokenize.
func (e *Engine) TokenToPiece(ctx context.Context, tok inference.Token) (string, error) {
	e.mu.Lock()
	piece, ok := e.pieces[tok]
	e.mu.Unlock()
	if ok {
		return piece, nil
	}

	req := struct {
		Tokens []inference.Token `json:"tokens"`
	}{Tokens: []inference.Token{tok}}

	var resp struct {
		Content string `json:"content"`
	}
	if err := e.PostJSON(ctx, "/detokenize", req, &resp); err != nil {
		return "", fmt.Errorf("llamaserver: detokenize: %w", err)
	}

	e.mu.Lock()
	e.pieces[tok] = resp.Content
	e.mu.Unlock()

	return resp.Content, nil
}

// Reset implements inference.Engine.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.context = nil
}

func (e *Engine) candidates() int {
	if e.Candidates > 0 {
		return e.Candidates
	}
	return DefaultCandidates
}

func (e *Engine) anyEOG() (inference.Token, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	first, found := inference.Token(0), false
	for t := range e.eog {
		if !found || t < first {
			first, found = t, true
		}
	}
	return first, found
}
