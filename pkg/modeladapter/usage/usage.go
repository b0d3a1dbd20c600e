// Package usage accumulates token counts across generation cycles.
package usage

import "sync"

// TokenCount holds the prompt and generated token counts of one cycle.
type TokenCount struct {
	PromptTokens    int
	GeneratedTokens int
}

// Total returns the sum of prompt and generated tokens.
func (tc TokenCount) Total() int {
	return tc.PromptTokens + tc.GeneratedTokens
}

// Tracker accumulates token usage across multiple cycles.
// It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	entries []TokenCount
}

// Add records a token count entry.
func (t *Tracker) Add(tc TokenCount) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, tc)
}

// Last returns the most recent token count entry.
// The bool is false when the tracker has no entries.
func (t *Tracker) Last() (TokenCount, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.entries) == 0 {
		return TokenCount{}, false
	}

	return t.entries[len(t.entries)-1], true
}

// Since returns the aggregate of entries recorded after the first n.
func (t *Tracker) Since(n int) TokenCount {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total TokenCount
	for i := max(n, 0); i < len(t.entries); i++ {
		total.PromptTokens += t.entries[i].PromptTokens
		total.GeneratedTokens += t.entries[i].GeneratedTokens
	}

	return total
}

// Total returns the aggregate token count across all entries.
func (t *Tracker) Total() TokenCount {
	return t.Since(0)
}

// Count returns the number of recorded entries.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.entries)
}

// Reset clears all recorded entries.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = nil
}
