// Command tutord runs the educational assistant HTTP server: PDF and
// webpage ingestion, hybrid textbook/web retrieval, and streaming chat.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	openaisdk "github.com/openai/openai-go/v3"

	"github.com/sweetpotato0/ai-tutor/config"
	"github.com/sweetpotato0/ai-tutor/contrib/embedder/cached"
	openaiembed "github.com/sweetpotato0/ai-tutor/contrib/embedder/openai"
	claudegen "github.com/sweetpotato0/ai-tutor/contrib/generator/claude"
	geminigen "github.com/sweetpotato0/ai-tutor/contrib/generator/gemini"
	openaigen "github.com/sweetpotato0/ai-tutor/contrib/generator/openai"
	"github.com/sweetpotato0/ai-tutor/contrib/ocr/tesseract"
	"github.com/sweetpotato0/ai-tutor/contrib/reranker/mmr"
	"github.com/sweetpotato0/ai-tutor/contrib/tokenizer/tiktoken"
	"github.com/sweetpotato0/ai-tutor/contrib/vector/chromem"
	"github.com/sweetpotato0/ai-tutor/contrib/vector/inmemory"
	pgvector "github.com/sweetpotato0/ai-tutor/contrib/vector/pg"
	"github.com/sweetpotato0/ai-tutor/contrib/websearch/exa"
	"github.com/sweetpotato0/ai-tutor/hybrid"
	"github.com/sweetpotato0/ai-tutor/llm"
	"github.com/sweetpotato0/ai-tutor/middleware"
	"github.com/sweetpotato0/ai-tutor/middleware/limiter"
	mwlogger "github.com/sweetpotato0/ai-tutor/middleware/logger"
	"github.com/sweetpotato0/ai-tutor/pkg/logging"
	"github.com/sweetpotato0/ai-tutor/pkg/telemetry"
	"github.com/sweetpotato0/ai-tutor/rag/chunking"
	"github.com/sweetpotato0/ai-tutor/rag/embedder"
	"github.com/sweetpotato0/ai-tutor/rag/ingest"
	"github.com/sweetpotato0/ai-tutor/rag/loader"
	"github.com/sweetpotato0/ai-tutor/server"
	"github.com/sweetpotato0/ai-tutor/session"
	sessionstore "github.com/sweetpotato0/ai-tutor/session/store"
	"github.com/sweetpotato0/ai-tutor/vector"
	"github.com/sweetpotato0/ai-tutor/websearch"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tutord:", err)
		os.Exit(1)
	}
}

func run() error {
	logger := logging.Logger()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := context.Background()
	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "ai-tutor",
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer shutdownTracing(context.Background())

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open vector store: %w", err)
	}
	defer store.Close()

	var vecEmbedder vector.Embedder = openaiembed.New(cfg.OpenAIAPIKey, "", openaisdk.EmbeddingModel(cfg.EmbeddingModel), 1536)
	if cfg.RedisAddr != "" {
		vecEmbedder = cached.New(vecEmbedder, &cached.Config{
			Addr:  cfg.RedisAddr,
			Model: cfg.EmbeddingModel,
		})
		logger.Info("embedding cache enabled", "addr", cfg.RedisAddr)
	}

	var searcher websearch.Searcher
	if cfg.UseHybridAgent {
		searcher, err = exa.New(cfg.WebSearchAPIKey)
		if err != nil {
			return fmt.Errorf("init web search: %w", err)
		}
	}

	generator, err := newGenerator(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init generator: %w", err)
	}

	retrieverOpts := []hybrid.RetrieverOption{
		hybrid.WithSearchK(cfg.DefaultSearchK),
		hybrid.WithRelevanceThreshold(cfg.RelevanceThreshold),
		hybrid.WithWebResultsLimit(cfg.WebSearchResultsLimit),
		hybrid.WithWebDaysBack(cfg.WebSearchDaysBack),
		hybrid.WithRetrievalDeadline(cfg.RetrievalDeadline),
	}
	if cfg.UseMMRRerank {
		retrieverOpts = append(retrieverOpts, hybrid.WithReranker(mmr.New()))
	}
	retriever := hybrid.NewRetriever(embedder.NewVectorAdapter(vecEmbedder), store, searcher, retrieverOpts...)
	router := hybrid.NewRouter(hybrid.WithClassifier(generator))

	var sessionOpts []session.Option
	if cfg.RedisAddr != "" {
		sessionOpts = append(sessionOpts, session.WithStore(sessionstore.NewRedisStore(&sessionstore.RedisConfig{Addr: cfg.RedisAddr})))
	} else {
		sessionOpts = append(sessionOpts, session.WithStore(sessionstore.NewMemoryStore()))
	}
	sessionOpts = append(sessionOpts, session.WithMaxHistory(cfg.MaxHistoryMessages))
	sessions := session.NewManager(sessionOpts...)

	machine := hybrid.NewMachine(router, retriever, generator, sessions,
		hybrid.WithTemperature(cfg.LLMTemperature),
		hybrid.WithContextBudget(cfg.ContextCharBudget),
		hybrid.WithTurnDeadline(cfg.TurnDeadline),
		hybrid.WithMaxHistory(cfg.MaxHistoryMessages),
	)

	orchestrator := ingest.New(
		newFileLoader(logger),
		loader.NewWebLoader(nil),
		newChunker(cfg, logger),
		embedder.NewBatcher(vecEmbedder),
		store,
	)

	srv := server.New(machine, orchestrator, sessions, vecEmbedder, store,
		server.WithQueryK(cfg.DefaultSearchK))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port))
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

// newGenerator picks the provider client by model name prefix and wraps it
// with the call middleware.
func newGenerator(ctx context.Context, cfg *config.Config) (llm.Generator, error) {
	var base llm.Generator
	switch {
	case strings.HasPrefix(cfg.LLMModel, "claude"):
		base = claudegen.New(&claudegen.Config{
			APIKey:      cfg.AnthropicAPIKey,
			Model:       cfg.LLMModel,
			Temperature: cfg.LLMTemperature,
		})
	case strings.HasPrefix(cfg.LLMModel, "gemini"):
		g, err := geminigen.New(ctx, &geminigen.Config{
			APIKey:      cfg.GeminiAPIKey,
			Model:       cfg.LLMModel,
			Temperature: float32(cfg.LLMTemperature),
		})
		if err != nil {
			return nil, err
		}
		base = g
	default:
		base = openaigen.New(&openaigen.Config{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.LLMModel,
			Temperature: cfg.LLMTemperature,
		})
	}

	wrappers := []middleware.Wrapper{mwlogger.Wrap(nil)}
	if cfg.LLMRateLimitPerMin > 0 {
		wrappers = append(wrappers, limiter.Wrap(limiter.New(cfg.LLMRateLimitPerMin, time.Minute)))
	}
	return middleware.Chain(base, wrappers...), nil
}

func openStore(cfg *config.Config) (vector.Store, error) {
	switch cfg.VectorBackend {
	case "pgvector":
		return pgvector.New(nil)
	case "memory":
		return inmemory.New(), nil
	default:
		return chromem.New(chromem.Config{PersistDir: cfg.ChromaPersistDir})
	}
}

// newFileLoader attaches tesseract OCR when the binary is installed;
// image-only PDFs are rejected otherwise.
func newFileLoader(logger *slog.Logger) *loader.Loader {
	ocr, err := tesseract.New()
	if err != nil {
		logger.Warn("tesseract unavailable, OCR fallback disabled", "error", err)
		return loader.New()
	}
	return loader.New(loader.WithOCR(ocr))
}

func newChunker(cfg *config.Config, logger *slog.Logger) *chunking.Chunker {
	opts := []chunking.Option{
		chunking.WithChunkTokens(cfg.ChunkTokens),
		chunking.WithOverlapTokens(cfg.ChunkOverlapTokens),
		chunking.WithMinChars(cfg.MinChars),
		chunking.WithMaxDigitRatio(cfg.MaxDigitRatio),
	}
	tok, err := tiktoken.New(cfg.EmbeddingModel)
	if err != nil {
		logger.Warn("tokenizer unavailable, falling back to character sizing", "error", err)
	} else {
		opts = append(opts, chunking.WithTokenizer(tok))
	}
	return chunking.New(opts...)
}
