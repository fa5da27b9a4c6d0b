package inference

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// VotingMethod selects how ensemble member responses are merged.
type VotingMethod string

const (
	VoteMajority  VotingMethod = "majority"
	VoteWeighted  VotingMethod = "weighted"
	VoteConsensus VotingMethod = "consensus"
)

// EnsembleConfig names the member models and the merge strategy.
type EnsembleConfig struct {
	Models       []string           `json:"models"`
	VotingMethod VotingMethod       `json:"voting_method"`
	Weights      map[string]float64 `json:"weights,omitempty"`
}

// maxEnsembleFanOut bounds how many member calls run at once.
const maxEnsembleFanOut = 4

// maxAlternatives caps how many member texts are exposed alongside the
// merged answer.
const maxAlternatives = 3

// EnsembleInfer runs the request against every member model concurrently
// and merges the answers. A failing member is logged and excluded; it never
// cancels the others. The call fails only when every member fails.
func (r *Router) EnsembleInfer(ctx context.Context, req *Request, cfg *EnsembleConfig) (*Response, error) {
	if len(cfg.Models) == 0 {
		return nil, newError(ErrorInvalidRequest, "ensemble requires at least one model", nil)
	}

	start := time.Now()

	sem := semaphore.NewWeighted(maxEnsembleFanOut)
	results := make([]*Response, len(cfg.Models))

	var wg sync.WaitGroup
	for i, modelID := range cfg.Models {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(i int, modelID string) {
			defer wg.Done()
			defer sem.Release(1)

			memberReq := *req
			memberReq.ModelID = modelID
			resp, err := r.Infer(ctx, &memberReq)
			if err != nil {
				slog.Warn("ensemble member failed", "model", modelID, "error", err)
				return
			}
			results[i] = resp
		}(i, modelID)
	}
	wg.Wait()

	responses := make([]*Response, 0, len(results))
	for _, resp := range results {
		if resp != nil {
			responses = append(responses, resp)
		}
	}
	if len(responses) == 0 {
		return nil, newError(ErrorAllModelsFailed, "every ensemble member failed", nil)
	}

	merged := mergeResponses(responses, cfg)
	merged.ModelUsed = "ensemble(" + strings.Join(cfg.Models, "+") + ")"
	merged.ProcessingTimeMs = time.Since(start).Milliseconds()

	var tokens int
	var cost float64
	for _, resp := range responses {
		tokens += resp.TokensUsed
		cost += resp.Cost
	}
	merged.TokensUsed = tokens
	merged.Cost = cost

	return merged, nil
}

// majorityDamping reflects ensemble uncertainty in the winning response.
const majorityDamping = 0.9

func mergeResponses(responses []*Response, cfg *EnsembleConfig) *Response {
	switch cfg.VotingMethod {
	case VoteWeighted:
		return mergeWeighted(responses, cfg.Weights)
	case VoteConsensus:
		return mergeConsensus(responses)
	default:
		return mergeMajority(responses)
	}
}

// mergeMajority picks the highest-confidence member, damping its confidence
// and exposing the other answers as alternatives.
func mergeMajority(responses []*Response) *Response {
	best := responses[0]
	for _, resp := range responses[1:] {
		if resp.Confidence > best.Confidence {
			best = resp
		}
	}

	return &Response{
		Text:         best.Text,
		Confidence:   best.Confidence * majorityDamping,
		Alternatives: alternativeTexts(responses),
	}
}

// mergeWeighted concatenates every member's text and weight-averages their
// confidences. This is a textual merge, not semantic synthesis; that
// limitation is inherited deliberately.
func mergeWeighted(responses []*Response, weights map[string]float64) *Response {
	var sb strings.Builder
	var weightedConfidence, totalWeight float64

	for _, resp := range responses {
		weight, ok := weights[resp.ModelUsed]
		if !ok {
			weight = 1
		}
		sb.WriteString(resp.Text)
		sb.WriteString(" ")
		weightedConfidence += resp.Confidence * weight
		totalWeight += weight
	}

	return &Response{
		Text:         strings.TrimSpace(sb.String()),
		Confidence:   weightedConfidence / totalWeight,
		Alternatives: alternativeTexts(responses),
	}
}

// consensusSentences is how many leading sentences form the consensus text.
const consensusSentences = 5

// mergeConsensus takes the first sentences across all answers as the
// consensus. Confidence is min(all)+0.1, clamped to 1.
func mergeConsensus(responses []*Response) *Response {
	var all []string
	for _, resp := range responses {
		all = append(all, resp.Text)
	}

	var keep []string
	for _, sentence := range strings.Split(strings.Join(all, " "), ".") {
		s := strings.TrimSpace(sentence)
		if s == "" {
			continue
		}
		keep = append(keep, s)
		if len(keep) == consensusSentences {
			break
		}
	}

	minConfidence := responses[0].Confidence
	for _, resp := range responses[1:] {
		if resp.Confidence < minConfidence {
			minConfidence = resp.Confidence
		}
	}
	confidence := minConfidence + 0.1
	if confidence > 1 {
		confidence = 1
	}

	return &Response{
		Text:         strings.Join(keep, ". ") + ".",
		Confidence:   confidence,
		Alternatives: alternativeTexts(responses),
	}
}

func alternativeTexts(responses []*Response) []string {
	out := make([]string, 0, maxAlternatives)
	for _, resp := range responses {
		out = append(out, resp.Text)
		if len(out) == maxAlternatives {
			break
		}
	}
	return out
}
