package generate

import (
	"errors"

	"github.com/germanamz/llamagent/pkg/inference"
)

// ErrNoCandidates is returned when a sampler is given nothing to choose from.
var ErrNoCandidates = errors.New("generate: no candidates to sample")

// Sampler picks the next token from a candidate distribution.
type Sampler interface {
	Sample(cands []inference.Candidate) (inference.Token, error)
}

// Greedy picks the highest-scoring candidate. Ties go to the lowest token id,
// so the choice does not depend on candidate order.
type Greedy struct{}

// Sample implements Sampler.
func (Greedy) Sample(cands []inference.Candidate) (inference.Token, error) {
	if len(cands) == 0 {
		return 0, ErrNoCandidates
	}

	best := cands[0]
	for _, c := range cands[1:] {
		if c.Logit > best.Logit || (c.Logit == best.Logit && c.Token < best.Token) {
			best = c
		}
	}

	return best.Token, nil
}
