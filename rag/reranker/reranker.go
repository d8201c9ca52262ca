// Package reranker reorders retrieval hits before they reach fusion.
package reranker

import (
	"context"
	"sort"

	"github.com/sweetpotato0/ai-tutor/vector"
)

// Reranker reorders hits for a query, optionally refining their scores.
// Implementations must not mutate the input slice.
type Reranker interface {
	Rank(ctx context.Context, queryVector []float32, hits []*vector.Result) ([]*vector.Result, error)
}

// Cosine re-scores hits against the query vector and sorts descending.
// Hits without a stored vector keep their backend score.
type Cosine struct{}

// NewCosine creates a cosine-similarity reranker.
func NewCosine() *Cosine {
	return &Cosine{}
}

// Rank implements the Reranker interface.
func (c *Cosine) Rank(_ context.Context, queryVector []float32, hits []*vector.Result) ([]*vector.Result, error) {
	ranked := make([]*vector.Result, 0, len(hits))
	for _, hit := range hits {
		out := *hit
		if len(hit.Vector) > 0 && len(hit.Vector) == len(queryVector) {
			out.Score = vector.CosineSimilarity(queryVector, hit.Vector)
		}
		ranked = append(ranked, &out)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked, nil
}
