package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sweetpotato0/ai-tutor/vector"
)

// Store implements vector.Store with in-process storage. It is the default
// for tests and for running without any external index.
type Store struct {
	records map[string]*vector.Record
	mu      sync.RWMutex
}

var _ vector.Store = (*Store)(nil)

// New creates an empty in-memory vector store.
func New() *Store {
	return &Store{
		records: make(map[string]*vector.Record),
	}
}

// Upsert writes records, replacing existing ones with the same ID.
func (s *Store) Upsert(ctx context.Context, records []*vector.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if rec == nil {
			return fmt.Errorf("record cannot be nil")
		}
		if rec.ID == "" {
			return fmt.Errorf("record ID cannot be empty")
		}
		if len(rec.Vector) == 0 {
			return fmt.Errorf("record vector cannot be empty")
		}
		s.records[rec.ID] = rec
	}
	return nil
}

// Search finds the records most similar to the query vector.
func (s *Store) Search(ctx context.Context, queryVector []float32, topK int, filter map[string]string) ([]*vector.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(queryVector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}
	if topK <= 0 {
		topK = 10
	}

	results := make([]*vector.Result, 0, len(s.records))
	for _, rec := range s.records {
		if len(rec.Vector) != len(queryVector) {
			continue
		}
		if !vector.MatchesFilter(rec.Metadata, filter) {
			continue
		}
		sim := vector.CosineSimilarity(queryVector, rec.Vector)
		results = append(results, &vector.Result{
			Record: *rec,
			Score:  vector.NormalizeScore(sim),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// DeleteBySource removes all records ingested from the given source.
func (s *Store) DeleteBySource(ctx context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range s.records {
		if rec.Metadata["source"] == source {
			delete(s.records, id)
		}
	}
	return nil
}

// DeleteAll removes every record.
func (s *Store) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = make(map[string]*vector.Record)
	return nil
}

// Count returns the number of records in the store.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records), nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}
