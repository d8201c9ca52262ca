package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/sweetpotato0/ai-tutor/config"
	"github.com/sweetpotato0/ai-tutor/vector"
)

// Store implements vector.Store using PostgreSQL with the pgvector extension.
// Suitable for multi-instance deployments where the index must be shared.
type Store struct {
	db        *sql.DB
	dimension int
	tableName string
}

var _ vector.Store = (*Store)(nil)

// Config holds pgvector connection options.
type Config struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	SSLMode   string
	Dimension int    // Embedding dimension (default: 1536 for OpenAI)
	TableName string // Table name (default: textbook_chunks)
}

// DefaultConfig returns default pgvector configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:      "127.0.0.1",
		Port:      5432,
		User:      "postgres",
		Password:  "postgres",
		DBName:    "ai_tutor",
		SSLMode:   "disable",
		Dimension: 1536,
		TableName: "textbook_chunks",
	}
}

// New creates a pgvector-backed store, creating the extension and table on
// first use.
func New(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := config.ValidatePGVectorConfig(cfg.Host, cfg.Port, cfg.User, cfg.Password,
		cfg.DBName, cfg.SSLMode, cfg.Dimension, cfg.TableName); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	store := &Store{
		db:        db,
		dimension: cfg.Dimension,
		tableName: cfg.TableName,
	}
	if err := store.setup(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to setup pgvector: %w", err)
	}
	return store, nil
}

func (s *Store) setup(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTableSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(255) PRIMARY KEY,
		source TEXT NOT NULL,
		text TEXT NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}',
		embedding vector(%d) NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`, s.tableName, s.dimension)

	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	indexSQL := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s_source_idx ON %s (source)",
		s.tableName, s.tableName)
	if _, err := s.db.ExecContext(ctx, indexSQL); err != nil {
		return fmt.Errorf("failed to create source index: %w", err)
	}

	return nil
}

// Upsert writes records, replacing rows with the same ID.
func (s *Store) Upsert(ctx context.Context, records []*vector.Record) error {
	query := fmt.Sprintf(`
	INSERT INTO %s (id, source, text, metadata, embedding)
	VALUES ($1, $2, $3, $4, $5::vector)
	ON CONFLICT (id) DO UPDATE SET
		source = EXCLUDED.source,
		text = EXCLUDED.text,
		metadata = EXCLUDED.metadata,
		embedding = EXCLUDED.embedding,
		created_at = CURRENT_TIMESTAMP
	`, s.tableName)

	for _, rec := range records {
		if rec == nil || rec.ID == "" {
			return fmt.Errorf("record must have an ID")
		}
		if len(rec.Vector) != s.dimension {
			return fmt.Errorf("record %s dimension mismatch: expected %d, got %d",
				rec.ID, s.dimension, len(rec.Vector))
		}

		metaJSON, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", rec.ID, err)
		}

		_, err = s.db.ExecContext(ctx, query,
			rec.ID, rec.Metadata["source"], rec.Text, metaJSON, vectorToString(rec.Vector))
		if err != nil {
			return fmt.Errorf("failed to upsert record %s: %w", rec.ID, err)
		}
	}
	return nil
}

// Search finds records by cosine similarity, optionally filtered by metadata.
func (s *Store) Search(ctx context.Context, queryVector []float32, topK int, filter map[string]string) ([]*vector.Result, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}
	if len(queryVector) != s.dimension {
		return nil, fmt.Errorf("query vector dimension mismatch: expected %d, got %d",
			s.dimension, len(queryVector))
	}
	if topK <= 0 {
		topK = 10
	}

	args := []any{vectorToString(queryVector), topK}
	where := ""
	if len(filter) > 0 {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to encode filter: %w", err)
		}
		where = "WHERE metadata @> $3::jsonb"
		args = append(args, filterJSON)
	}

	// <=>  is pgvector cosine distance; similarity = 1 - distance.
	query := fmt.Sprintf(`
	SELECT id, text, metadata, 1 - (embedding <=> $1::vector) AS similarity
	FROM %s
	%s
	ORDER BY embedding <=> $1::vector
	LIMIT $2
	`, s.tableName, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search records: %w", err)
	}
	defer rows.Close()

	results := make([]*vector.Result, 0, topK)
	for rows.Next() {
		var id, text string
		var metaJSON []byte
		var similarity float64

		if err := rows.Scan(&id, &text, &metaJSON, &similarity); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		metadata := make(map[string]string)
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata for %s: %w", id, err)
			}
		}

		results = append(results, &vector.Result{
			Record: vector.Record{
				ID:       id,
				Text:     text,
				Metadata: metadata,
			},
			Score: vector.NormalizeScore(float32(similarity)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return results, nil
}

// DeleteBySource removes all rows ingested from the given source.
func (s *Store) DeleteBySource(ctx context.Context, source string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE source = $1", s.tableName)
	if _, err := s.db.ExecContext(ctx, query, source); err != nil {
		return fmt.Errorf("failed to delete by source: %w", err)
	}
	return nil
}

// DeleteAll removes every row.
func (s *Store) DeleteAll(ctx context.Context) error {
	query := fmt.Sprintf("DELETE FROM %s", s.tableName)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to delete all records: %w", err)
	}
	return nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.tableName)
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func vectorToString(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = fmt.Sprintf("%f", v)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
