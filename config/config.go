package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the assistant. Values are read
// from the environment (optionally seeded from a .env file) with defaults
// that match the published contracts.
type Config struct {
	// Provider credentials and model selection.
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string
	WebSearchAPIKey string
	EmbeddingModel  string
	LLMModel        string
	LLMTemperature  float64

	// Hybrid retrieval.
	UseHybridAgent        bool
	DefaultSearchK        int
	RelevanceThreshold    float64
	WebSearchResultsLimit int
	WebSearchDaysBack     int
	UseMMRRerank          bool
	RetrievalDeadline     time.Duration
	TurnDeadline          time.Duration
	ContextCharBudget     int

	// Chunking.
	ChunkTokens        int
	ChunkOverlapTokens int
	MinChars           int
	MaxDigitRatio      float64

	// Sessions.
	MaxHistoryMessages int

	// Vector repository.
	VectorBackend    string // chromem | pgvector | memory
	ChromaPersistDir string

	// Optional embedding cache (Redis).
	RedisAddr string

	// Model call budget per minute; zero disables the limiter.
	LLMRateLimitPerMin int

	// HTTP server.
	Host string
	Port int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		WebSearchAPIKey: os.Getenv("WEB_SEARCH_API_KEY"),
		EmbeddingModel:  getString("EMBEDDING_MODEL", "text-embedding-3-small"),
		LLMModel:        getString("LLM_MODEL", "gpt-4o-mini"),
		LLMTemperature:  getFloat("LLM_TEMPERATURE", 0.7),

		UseHybridAgent:        getBool("USE_HYBRID_AGENT", true),
		DefaultSearchK:        getInt("DEFAULT_SEARCH_K", 4),
		RelevanceThreshold:    getFloat("RELEVANCE_THRESHOLD", 0.2),
		WebSearchResultsLimit: getInt("WEB_SEARCH_RESULTS_LIMIT", 3),
		WebSearchDaysBack:     getInt("WEB_SEARCH_DAYS_BACK", 90),
		UseMMRRerank:          getBool("USE_MMR_RERANK", false),
		RetrievalDeadline:     time.Duration(getInt("RETRIEVAL_DEADLINE_MS", 8000)) * time.Millisecond,
		TurnDeadline:          time.Duration(getInt("TURN_DEADLINE_MS", 60000)) * time.Millisecond,
		ContextCharBudget:     getInt("CONTEXT_CHAR_BUDGET", 16000),

		ChunkTokens:        getInt("CHUNK_TOKENS", 800),
		ChunkOverlapTokens: getInt("CHUNK_OVERLAP_TOKENS", 100),
		MinChars:           getInt("MIN_CHARS", 100),
		MaxDigitRatio:      getFloat("MAX_DIGIT_RATIO", 0.5),

		MaxHistoryMessages: getInt("MAX_HISTORY_MESSAGES", 10),

		VectorBackend:    getString("VECTOR_BACKEND", "chromem"),
		ChromaPersistDir: getString("CHROMA_PERSIST_DIR", "./chroma_db"),

		RedisAddr: os.Getenv("REDIS_ADDR"),

		LLMRateLimitPerMin: getInt("LLM_RATE_LIMIT_PER_MIN", 0),

		Host: getString("HOST", "0.0.0.0"),
		Port: getInt("PORT", 8000),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration for consistency.
func (c *Config) Validate() error {
	v := NewValidator()
	v.RequireNonEmpty("OPENAI_API_KEY", c.OpenAIAPIKey)
	if c.UseHybridAgent {
		v.RequireNonEmpty("WEB_SEARCH_API_KEY", c.WebSearchAPIKey)
	}
	v.RequireNonEmpty("EMBEDDING_MODEL", c.EmbeddingModel)
	v.RequireNonEmpty("LLM_MODEL", c.LLMModel)
	v.ValidateFloatRange("LLM_TEMPERATURE", c.LLMTemperature, 0.0, 2.0)
	v.RequirePositive("DEFAULT_SEARCH_K", c.DefaultSearchK)
	v.ValidateFloatRange("RELEVANCE_THRESHOLD", c.RelevanceThreshold, 0.0, 1.0)
	v.RequirePositive("WEB_SEARCH_RESULTS_LIMIT", c.WebSearchResultsLimit)
	v.RequirePositive("CHUNK_TOKENS", c.ChunkTokens)
	v.RequirePositive("MAX_HISTORY_MESSAGES", c.MaxHistoryMessages)
	v.ValidateOneOf("VECTOR_BACKEND", c.VectorBackend, "chromem", "pgvector", "memory")
	v.RequireNonEmpty("CHROMA_PERSIST_DIR", c.ChromaPersistDir)
	v.ValidatePort("PORT", c.Port)
	if c.ChunkOverlapTokens < 0 || c.ChunkOverlapTokens >= c.ChunkTokens {
		v.errors = append(v.errors, ValidationError{
			Field:   "CHUNK_OVERLAP_TOKENS",
			Message: "overlap must be non-negative and smaller than CHUNK_TOKENS",
		})
	}
	return v.Error()
}

func getString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
