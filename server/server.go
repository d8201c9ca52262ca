// Package server exposes the assistant over HTTP: document ingestion,
// blocking and streaming chat, raw vector queries, and session management.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sweetpotato0/ai-tutor/hybrid"
	"github.com/sweetpotato0/ai-tutor/pkg/logging"
	"github.com/sweetpotato0/ai-tutor/rag/ingest"
	"github.com/sweetpotato0/ai-tutor/session"
	"github.com/sweetpotato0/ai-tutor/vector"
)

// DefaultQueryK caps /query results when the request omits k.
const DefaultQueryK = 4

// Server wires the hybrid machine, the ingestion orchestrator, and the
// session manager onto a gin engine. It owns the listener lifecycle;
// everything else is injected.
type Server struct {
	machine  *hybrid.Machine
	ingestor *ingest.Orchestrator
	sessions *session.Manager
	embedder vector.Embedder
	store    vector.Store

	queryK      int
	corsOrigins []string

	engine *gin.Engine
	srv    *http.Server
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithQueryK sets the default result count for /query.
func WithQueryK(k int) Option {
	return func(s *Server) {
		if k > 0 {
			s.queryK = k
		}
	}
}

// WithCORSOrigins sets the allowed CORS origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// New builds the server and registers all routes.
func New(machine *hybrid.Machine, ingestor *ingest.Orchestrator, sessions *session.Manager, emb vector.Embedder, store vector.Store, opts ...Option) *Server {
	s := &Server{
		machine:     machine,
		ingestor:    ingestor,
		sessions:    sessions,
		embedder:    emb,
		store:       store,
		queryK:      DefaultQueryK,
		corsOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		logger:      logging.WithComponent("server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = s.corsOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	s.engine.Use(cors.New(corsConfig))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.POST("/upload-pdf", s.handleUploadPDF)
	s.engine.POST("/process-webpages", s.handleProcessWebpages)
	s.engine.POST("/chat", s.handleChat)
	s.engine.POST("/chat/stream", s.handleChatStream)
	s.engine.POST("/query", s.handleQuery)
	s.engine.GET("/chat/history/:id", s.handleHistory)
	s.engine.DELETE("/chat/clear/:id", s.handleClear)
	s.engine.DELETE("/clear-vector-store", s.handleClearVectorStore)
	s.engine.GET("/health", s.handleHealth)
}

// Handler returns the underlying http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until Shutdown is called or the listener fails.
func (s *Server) Run(addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server listening", "addr", addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
