package cached

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sweetpotato0/ai-tutor/pkg/logging"
	"github.com/sweetpotato0/ai-tutor/vector"
)

// Embedder wraps another vector.Embedder with a Redis cache keyed by a hash
// of the model and input text. Re-ingesting unchanged documents skips the
// provider entirely.
type Embedder struct {
	base   vector.Embedder
	client *redis.Client
	model  string
	prefix string
	ttl    time.Duration
}

var _ vector.Embedder = (*Embedder)(nil)

// Config holds Redis cache configuration.
type Config struct {
	Addr     string // Redis server address (e.g., "localhost:6379")
	Password string
	DB       int
	Model    string        // embedding model name, part of the cache key
	Prefix   string        // key prefix for namespacing
	TTL      time.Duration // 0 means no expiration
}

// New creates a cache-fronted embedder.
func New(base vector.Embedder, cfg *Config) *Embedder {
	if cfg == nil {
		cfg = &Config{Addr: "localhost:6379"}
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "ai-tutor:embed:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Embedder{
		base:   base,
		client: client,
		model:  cfg.Model,
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
	}
}

// Dimension returns the wrapped embedder's dimension.
func (e *Embedder) Dimension() int {
	return e.base.Dimension()
}

// Embed returns the cached vector when present, otherwise embeds and caches.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vectors[0], nil
}

// EmbedBatch resolves each text from cache and embeds only the misses. Cache
// failures are logged and treated as misses, never as embedding failures.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	logger := logging.WithComponent("embedder-cache")

	out := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))

	keys := make([]string, len(texts))
	for i, text := range texts {
		keys[i] = e.key(text)
	}

	cached, err := e.client.MGet(ctx, keys...).Result()
	if err != nil {
		logger.Warn("cache lookup failed, embedding everything", "error", err)
		cached = make([]any, len(texts))
	}

	for i, raw := range cached {
		str, ok := raw.(string)
		if !ok {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(str), &vec); err != nil {
			logger.Warn("corrupt cache entry, re-embedding", "key", keys[i], "error", err)
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
			continue
		}
		out[i] = vec
	}

	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := e.base.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(missTexts), len(fresh))
	}

	for j, idx := range missIdx {
		out[idx] = fresh[j]
		encoded, err := json.Marshal(fresh[j])
		if err != nil {
			continue
		}
		if err := e.client.Set(ctx, keys[idx], encoded, e.ttl).Err(); err != nil {
			logger.Warn("cache write failed", "key", keys[idx], "error", err)
		}
	}
	return out, nil
}

// Close releases the Redis connection.
func (e *Embedder) Close() error {
	return e.client.Close()
}

func (e *Embedder) key(text string) string {
	sum := sha256.Sum256([]byte(e.model + "\x00" + text))
	return e.prefix + hex.EncodeToString(sum[:])
}
