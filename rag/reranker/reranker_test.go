package reranker_test

import (
	"context"
	"testing"

	"github.com/sweetpotato0/ai-tutor/rag/reranker"
	"github.com/sweetpotato0/ai-tutor/vector"
)

func hit(id string, vec []float32, score float32) *vector.Result {
	return &vector.Result{
		Record: vector.Record{ID: id, Vector: vec},
		Score:  score,
	}
}

func TestCosineReordersByQuerySimilarity(t *testing.T) {
	query := []float32{1, 0}
	hits := []*vector.Result{
		hit("far", []float32{0, 1}, 0.9),
		hit("near", []float32{1, 0}, 0.1),
	}

	ranked, err := reranker.NewCosine().Rank(context.Background(), query, hits)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if ranked[0].ID != "near" {
		t.Errorf("first hit = %s, want near", ranked[0].ID)
	}
	if hits[0].Score != 0.9 {
		t.Error("input slice was mutated")
	}
}

func TestCosineKeepsScoreWithoutVector(t *testing.T) {
	hits := []*vector.Result{
		hit("a", nil, 0.3),
		hit("b", nil, 0.7),
	}

	ranked, err := reranker.NewCosine().Rank(context.Background(), []float32{1, 0}, hits)
	if err != nil {
		t.Fatalf("rank: %v", err)
	}
	if ranked[0].ID != "b" || ranked[0].Score != 0.7 {
		t.Errorf("first hit = %s score %v, want b with 0.7", ranked[0].ID, ranked[0].Score)
	}
}
