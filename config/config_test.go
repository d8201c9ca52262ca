package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("WEB_SEARCH_API_KEY", "test-search-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.DefaultSearchK != 4 {
		t.Errorf("DefaultSearchK = %d, want 4", cfg.DefaultSearchK)
	}
	if cfg.RelevanceThreshold != 0.2 {
		t.Errorf("RelevanceThreshold = %v, want 0.2", cfg.RelevanceThreshold)
	}
	if cfg.ChunkTokens != 800 {
		t.Errorf("ChunkTokens = %d, want 800", cfg.ChunkTokens)
	}
	if cfg.ChunkOverlapTokens != 100 {
		t.Errorf("ChunkOverlapTokens = %d, want 100", cfg.ChunkOverlapTokens)
	}
	if cfg.RetrievalDeadline != 8*time.Second {
		t.Errorf("RetrievalDeadline = %v, want 8s", cfg.RetrievalDeadline)
	}
	if cfg.TurnDeadline != 60*time.Second {
		t.Errorf("TurnDeadline = %v, want 60s", cfg.TurnDeadline)
	}
	if cfg.VectorBackend != "chromem" {
		t.Errorf("VectorBackend = %q, want chromem", cfg.VectorBackend)
	}
	if cfg.MaxHistoryMessages != 10 {
		t.Errorf("MaxHistoryMessages = %d, want 10", cfg.MaxHistoryMessages)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("WEB_SEARCH_API_KEY", "test-search-key")
	t.Setenv("DEFAULT_SEARCH_K", "8")
	t.Setenv("VECTOR_BACKEND", "memory")
	t.Setenv("RETRIEVAL_DEADLINE_MS", "2000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.DefaultSearchK != 8 {
		t.Errorf("DefaultSearchK = %d, want 8", cfg.DefaultSearchK)
	}
	if cfg.VectorBackend != "memory" {
		t.Errorf("VectorBackend = %q, want memory", cfg.VectorBackend)
	}
	if cfg.RetrievalDeadline != 2*time.Second {
		t.Errorf("RetrievalDeadline = %v, want 2s", cfg.RetrievalDeadline)
	}
}

func TestLoadMissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("WEB_SEARCH_API_KEY", "test-search-key")

	if _, err := Load(); err == nil {
		t.Error("expected error when OPENAI_API_KEY is unset")
	}
}

func TestLoadWebSearchKeyOptionalWithoutHybrid(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("WEB_SEARCH_API_KEY", "")
	t.Setenv("USE_HYBRID_AGENT", "false")

	if _, err := Load(); err != nil {
		t.Errorf("Load() without hybrid agent should not require WEB_SEARCH_API_KEY: %v", err)
	}
}

func TestValidateChunkOverlap(t *testing.T) {
	tests := []struct {
		name    string
		tokens  int
		overlap int
		wantErr bool
	}{
		{"valid", 800, 100, false},
		{"zero overlap", 800, 0, false},
		{"negative overlap", 800, -1, true},
		{"overlap equals tokens", 800, 800, true},
		{"overlap above tokens", 800, 900, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.ChunkTokens = tt.tokens
			cfg.ChunkOverlapTokens = tt.overlap
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateVectorBackend(t *testing.T) {
	cfg := validConfig()
	cfg.VectorBackend = "qdrant"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unsupported vector backend")
	}
}

func validConfig() *Config {
	return &Config{
		OpenAIAPIKey:          "key",
		WebSearchAPIKey:       "search-key",
		EmbeddingModel:        "text-embedding-3-small",
		LLMModel:              "gpt-4o-mini",
		LLMTemperature:        0.7,
		UseHybridAgent:        true,
		DefaultSearchK:        4,
		RelevanceThreshold:    0.2,
		WebSearchResultsLimit: 3,
		WebSearchDaysBack:     90,
		RetrievalDeadline:     8 * time.Second,
		TurnDeadline:          60 * time.Second,
		ContextCharBudget:     16000,
		ChunkTokens:           800,
		ChunkOverlapTokens:    100,
		MinChars:              100,
		MaxDigitRatio:         0.5,
		MaxHistoryMessages:    10,
		VectorBackend:         "chromem",
		ChromaPersistDir:      "./chroma_db",
		Host:                  "0.0.0.0",
		Port:                  8000,
	}
}
