package embedder

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

// fakeEmbedder records batch sizes and returns one-hot vectors whose index
// encodes the input text so ordering can be verified.
type fakeEmbedder struct {
	mu         sync.Mutex
	batchSizes []int
	inFlight   atomic.Int32
	maxFlight  atomic.Int32
	failOn     string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	cur := f.inFlight.Add(1)
	for {
		max := f.maxFlight.Load()
		if cur <= max || f.maxFlight.CompareAndSwap(max, cur) {
			break
		}
	}
	defer f.inFlight.Add(-1)

	f.mu.Lock()
	f.batchSizes = append(f.batchSizes, len(texts))
	f.mu.Unlock()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if text == f.failOn {
			return nil, fmt.Errorf("embedding failed for %q", text)
		}
		var n int
		fmt.Sscanf(text, "text-%d", &n)
		out[i] = []float32{float32(n)}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return 1 }

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("text-%d", i)
	}
	return out
}

func TestBatcherPreservesOrder(t *testing.T) {
	fake := &fakeEmbedder{}
	b := NewBatcher(fake, WithBatchSize(3), WithConcurrency(4))

	vectors, err := b.EmbedAll(context.Background(), texts(10))
	if err != nil {
		t.Fatalf("EmbedAll returned error: %v", err)
	}
	if len(vectors) != 10 {
		t.Fatalf("expected 10 vectors, got %d", len(vectors))
	}
	for i, vec := range vectors {
		if len(vec) != 1 || vec[0] != float32(i) {
			t.Errorf("vector %d = %v, want [%d]", i, vec, i)
		}
	}
}

func TestBatcherBatchSizes(t *testing.T) {
	fake := &fakeEmbedder{}
	b := NewBatcher(fake, WithBatchSize(4), WithConcurrency(1))

	if _, err := b.EmbedAll(context.Background(), texts(10)); err != nil {
		t.Fatalf("EmbedAll returned error: %v", err)
	}

	total := 0
	for _, size := range fake.batchSizes {
		if size > 4 {
			t.Errorf("batch size %d exceeds limit 4", size)
		}
		total += size
	}
	if total != 10 {
		t.Errorf("batches covered %d texts, want 10", total)
	}
}

func TestBatcherConcurrencyBound(t *testing.T) {
	fake := &fakeEmbedder{}
	b := NewBatcher(fake, WithBatchSize(1), WithConcurrency(2))

	if _, err := b.EmbedAll(context.Background(), texts(16)); err != nil {
		t.Fatalf("EmbedAll returned error: %v", err)
	}
	if max := fake.maxFlight.Load(); max > 2 {
		t.Errorf("observed %d concurrent batches, limit is 2", max)
	}
}

func TestBatcherFailureDiscardsResults(t *testing.T) {
	fake := &fakeEmbedder{failOn: "text-5"}
	b := NewBatcher(fake, WithBatchSize(2), WithConcurrency(2))

	vectors, err := b.EmbedAll(context.Background(), texts(10))
	if err == nil {
		t.Fatal("expected error when a batch fails")
	}
	if vectors != nil {
		t.Error("expected nil results on failure")
	}
}

func TestBatcherEmptyInput(t *testing.T) {
	b := NewBatcher(&fakeEmbedder{})
	vectors, err := b.EmbedAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedAll returned error: %v", err)
	}
	if vectors != nil {
		t.Errorf("expected nil for empty input, got %v", vectors)
	}
}
