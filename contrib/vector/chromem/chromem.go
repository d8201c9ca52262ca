package chromem

import (
	"context"
	"fmt"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/sweetpotato0/ai-tutor/vector"
)

const collectionName = "textbook_chunks"

// Store implements vector.Store on top of chromem-go with on-disk
// persistence. Records survive process restarts under the persist directory.
type Store struct {
	db         *chromem.DB
	collection *chromem.Collection
	mu         sync.RWMutex
}

var _ vector.Store = (*Store)(nil)

// Config holds chromem store options.
type Config struct {
	// PersistDir is the directory holding the on-disk index.
	PersistDir string
	// Compress gzip-compresses persisted documents.
	Compress bool
}

// New opens (or creates) a persistent chromem store under cfg.PersistDir.
func New(cfg Config) (*Store, error) {
	if cfg.PersistDir == "" {
		return nil, fmt.Errorf("persist directory cannot be empty")
	}

	db, err := chromem.NewPersistentDB(cfg.PersistDir, cfg.Compress)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}

	// Embeddings are supplied by the caller, so no embedding func is wired.
	collection, err := db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("open collection: %w", err)
	}

	return &Store{db: db, collection: collection}, nil
}

// Upsert writes records, replacing any existing document with the same ID.
func (s *Store) Upsert(ctx context.Context, records []*vector.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if rec == nil || rec.ID == "" {
			return fmt.Errorf("record must have an ID")
		}
		if len(rec.Vector) == 0 {
			return fmt.Errorf("record %s has no vector", rec.ID)
		}

		// chromem's AddDocument rejects duplicate IDs, so drop any previous
		// version first. A missing document is not an error.
		_ = s.collection.Delete(ctx, nil, nil, rec.ID)

		doc := chromem.Document{
			ID:        rec.ID,
			Content:   rec.Text,
			Embedding: rec.Vector,
			Metadata:  rec.Metadata,
		}
		if err := s.collection.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("add document %s: %w", rec.ID, err)
		}
	}
	return nil
}

// Search queries the collection by embedding.
func (s *Store) Search(ctx context.Context, queryVector []float32, topK int, filter map[string]string) ([]*vector.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(queryVector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}
	if topK <= 0 {
		topK = 10
	}

	// chromem rejects queries asking for more results than stored documents.
	n := topK
	if count := s.collection.Count(); count < n {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	docs, err := s.collection.QueryEmbedding(ctx, queryVector, n, filter, nil)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	results := make([]*vector.Result, 0, len(docs))
	for _, doc := range docs {
		results = append(results, &vector.Result{
			Record: vector.Record{
				ID:       doc.ID,
				Text:     doc.Content,
				Metadata: doc.Metadata,
			},
			Score: vector.NormalizeScore(doc.Similarity),
		})
	}
	return results, nil
}

// DeleteBySource removes all documents ingested from the given source.
func (s *Store) DeleteBySource(ctx context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.collection.Delete(ctx, map[string]string{"source": source}, nil); err != nil {
		return fmt.Errorf("delete by source %s: %w", source, err)
	}
	return nil
}

// DeleteAll drops and recreates the collection.
func (s *Store) DeleteAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("drop collection: %w", err)
	}
	collection, err := s.db.GetOrCreateCollection(collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("recreate collection: %w", err)
	}
	s.collection = collection
	return nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collection.Count(), nil
}

// Close is a no-op: chromem persists on every write.
func (s *Store) Close() error {
	return nil
}
