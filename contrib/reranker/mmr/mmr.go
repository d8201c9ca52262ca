// Package mmr implements Max Marginal Relevance reranking. Textbook pages
// often produce near-duplicate chunks; MMR trades a little relevance for
// diversity so the fused context covers more ground.
package mmr

import (
	"context"
	"math"

	"github.com/sweetpotato0/ai-tutor/vector"
)

// Reranker picks hits greedily, penalizing similarity to already-picked ones.
type Reranker struct {
	// Lambda balances relevance (1.0) against diversity (0.0).
	Lambda float32
	// Limit caps the output; non-positive keeps every hit.
	Limit int
}

// New returns an MMR reranker with sensible defaults.
func New() *Reranker {
	return &Reranker{
		Lambda: 0.7,
		Limit:  8,
	}
}

// Rank implements reranker.Reranker. Hits keep their original relevance
// score; only the order changes.
func (m *Reranker) Rank(_ context.Context, queryVector []float32, hits []*vector.Result) ([]*vector.Result, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	type item struct {
		hit       *vector.Result
		relevance float32
	}
	remaining := make([]item, len(hits))
	for i, hit := range hits {
		relevance := hit.Score
		if len(hit.Vector) > 0 && len(hit.Vector) == len(queryVector) {
			relevance = vector.CosineSimilarity(queryVector, hit.Vector)
		}
		remaining[i] = item{hit: hit, relevance: relevance}
	}

	selected := make([]*vector.Result, 0, len(hits))
	for len(remaining) > 0 && (m.Limit <= 0 || len(selected) < m.Limit) {
		bestIdx := -1
		bestScore := float32(math.Inf(-1))
		for idx, cand := range remaining {
			var redundancy float32
			for _, picked := range selected {
				if len(cand.hit.Vector) == 0 || len(picked.Vector) != len(cand.hit.Vector) {
					continue
				}
				if sim := vector.CosineSimilarity(cand.hit.Vector, picked.Vector); sim > redundancy {
					redundancy = sim
				}
			}
			score := m.Lambda*cand.relevance - (1-m.Lambda)*redundancy
			if score > bestScore {
				bestScore = score
				bestIdx = idx
			}
		}
		if bestIdx == -1 {
			break
		}
		selected = append(selected, remaining[bestIdx].hit)
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return selected, nil
}
