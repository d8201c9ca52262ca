package embedder

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/sweetpotato0/ai-tutor/rag/document"
	"github.com/sweetpotato0/ai-tutor/vector"
)

// Embedder exposes methods tailored for retrieval components.
type Embedder interface {
	EmbedDocument(ctx context.Context, chunk document.Chunk) ([]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// VectorAdapter bridges the generic vector.Embedder interface into a rag Embedder.
type VectorAdapter struct {
	base vector.Embedder
}

// NewVectorAdapter creates a new adapter.
func NewVectorAdapter(base vector.Embedder) *VectorAdapter {
	return &VectorAdapter{base: base}
}

// EmbedDocument embeds the chunk content using the base embedder.
func (v *VectorAdapter) EmbedDocument(ctx context.Context, chunk document.Chunk) ([]float32, error) {
	if v == nil || v.base == nil {
		return nil, nil
	}
	return v.base.Embed(ctx, chunk.Content)
}

// EmbedQuery embeds the query string.
func (v *VectorAdapter) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if v == nil || v.base == nil {
		return nil, nil
	}
	return v.base.Embed(ctx, query)
}

const (
	// DefaultBatchSize is how many texts go into one provider call.
	DefaultBatchSize = 64
	// DefaultConcurrency bounds in-flight provider calls during ingestion.
	DefaultConcurrency = 4
)

// Batcher embeds large text sets by splitting them into provider-sized
// batches and running a bounded number of batches concurrently. Output
// order matches input order regardless of which batch finishes first.
type Batcher struct {
	base        vector.Embedder
	batchSize   int
	concurrency int
}

// BatcherOption configures a Batcher.
type BatcherOption func(*Batcher)

// WithBatchSize sets how many texts are sent per provider call.
func WithBatchSize(n int) BatcherOption {
	return func(b *Batcher) {
		if n > 0 {
			b.batchSize = n
		}
	}
}

// WithConcurrency bounds the number of concurrent provider calls.
func WithConcurrency(n int) BatcherOption {
	return func(b *Batcher) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatcher wraps a vector.Embedder with batching and bounded concurrency.
func NewBatcher(base vector.Embedder, opts ...BatcherOption) *Batcher {
	b := &Batcher{
		base:        base,
		batchSize:   DefaultBatchSize,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// EmbedAll embeds every text, preserving input order. Any batch failure
// fails the whole call; partial results are discarded.
func (b *Batcher) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)

	for start := 0; start < len(texts); start += b.batchSize {
		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		start, end := start, end

		g.Go(func() error {
			vectors, err := b.base.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vectors)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
