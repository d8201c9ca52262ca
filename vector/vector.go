package vector

import (
	"context"
	"math"
)

// Record is one indexed chunk: its identifier, embedding, raw text, and the
// metadata needed to cite it (source file, page number, extraction method).
type Record struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]string
}

// Result is a search hit with its similarity score normalized to [0, 1].
type Result struct {
	Record
	Score float32
}

// Store defines the interface for vector storage and similarity search.
// Upsert must be idempotent: writing a record whose ID already exists
// replaces it in place.
type Store interface {
	// Upsert writes records, replacing any with the same ID.
	Upsert(ctx context.Context, records []*Record) error

	// Search finds the topK records most similar to the query vector.
	// A non-nil filter restricts hits to records whose metadata contains
	// every key/value pair.
	Search(ctx context.Context, queryVector []float32, topK int, filter map[string]string) ([]*Result, error)

	// DeleteBySource removes all records whose "source" metadata matches.
	DeleteBySource(ctx context.Context, source string) error

	// DeleteAll removes every record.
	DeleteAll(ctx context.Context) error

	// Count returns the number of records in the store.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

// Embedder defines the interface for creating embeddings from text
type Embedder interface {
	// Embed converts text to a vector embedding
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts to embeddings
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension return number of embedding dimensions
	Dimension() int
}

// SearchText embeds the query and runs a similarity search, a convenience
// for callers that hold raw text rather than a vector.
func SearchText(ctx context.Context, s Store, e Embedder, query string, topK int, filter map[string]string) ([]*Result, error) {
	vec, err := e.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.Search(ctx, vec, topK, filter)
}

// CosineSimilarity calculates the cosine similarity between two vectors
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return float32(dotProduct / (math.Sqrt(normA)*math.Sqrt(normB) + 1e-8))
}

// NormalizeScore maps a cosine similarity onto [0, 1] so scores are
// comparable across backends and against the relevance threshold.
func NormalizeScore(sim float32) float32 {
	if sim <= 0 {
		return 0
	}
	if sim >= 1 {
		return 1
	}
	return sim
}

// Normalize scales the vector to unit length (L2 norm).
func Normalize(vec []float32) []float32 {
	if len(vec) == 0 {
		return vec
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

// MatchesFilter reports whether the record metadata satisfies every
// key/value pair in the filter. A nil or empty filter matches everything.
func MatchesFilter(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}
