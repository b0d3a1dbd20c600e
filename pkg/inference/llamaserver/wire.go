package llamaserver

import "github.com/germanamz/llamagent/pkg/inference"

type completionRequest struct {
	Prompt      []inference.Token `json:"prompt"`
	NPredict    int               `json:"n_predict"`
	NProbs      int               `json:"n_probs"`
	Temperature float64           `json:"temperature"`
	CachePrompt bool              `json:"cache_prompt"`
	ReturnToks  bool              `json:"return_tokens"`
}

type completionResponse struct {
	Content                 string            `json:"content"`
	Tokens                  []inference.Token `json:"tokens"`
	StopType                string            `json:"stop_type"`
	CompletionProbabilities []stepProbs       `json:"completion_probabilities"`
}

type stepProbs struct {
	ID          inference.Token `json:"id"`
	Token       string          `json:"token"`
	Logprob     float64         `json:"logprob"`
	TopLogprobs []tokenLogprob  `json:"top_logprobs"`
}

type tokenLogprob struct {
	ID      inference.Token `json:"id"`
	Token   string          `json:"token"`
	Logprob float64         `json:"logprob"`
}

type candidate struct {
	inference.Candidate
	piece string
}

// candidates returns the distribution for the first generated position. The
// sampled token itself is included in case top_logprobs omitted it.
func (r completionResponse) candidates() []candidate {
	if len(r.CompletionProbabilities) == 0 {
		return nil
	}

	step := r.CompletionProbabilities[0]
	out := make([]candidate, 0, len(step.TopLogprobs)+1)
	seen := make(map[inference.Token]struct{}, len(step.TopLogprobs)+1)

	for _, lp := range step.TopLogprobs {
		if _, dup := seen[lp.ID]; dup {
			continue
		}
		seen[lp.ID] = struct{}{}
		out = append(out, candidate{Candidate: inference.Candidate{Token: lp.ID, Logit: lp.Logprob}, piece: lp.Token})
	}

	if _, ok := seen[step.ID]; !ok {
		out = append(out, candidate{Candidate: inference.Candidate{Token: step.ID, Logit: step.Logprob}, piece: step.Token})
	}

	return out
}
