package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/sweetpotato0/ai-tutor/errors"
	"github.com/sweetpotato0/ai-tutor/hybrid"
	"github.com/sweetpotato0/ai-tutor/rag/ingest"
	"github.com/sweetpotato0/ai-tutor/vector"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	UseRAG    *bool  `json:"use_rag"`
}

type chatResponse struct {
	Response  string          `json:"response"`
	SessionID string          `json:"session_id"`
	Sources   *hybrid.Sources `json:"sources,omitempty"`
}

type queryRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

type queryHit struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

type fileReport struct {
	Source      string `json:"source"`
	Pages       int    `json:"pages"`
	ChunksAdded int    `json:"chunks_added"`
	OCRUsed     bool   `json:"ocr_used"`
	Error       string `json:"error,omitempty"`
}

type ingestDetails struct {
	FilesProcessed int          `json:"files_processed"`
	TotalChunks    int          `json:"total_chunks"`
	Filenames      []string     `json:"filenames"`
	Files          []fileReport `json:"files"`
}

type ingestResponse struct {
	Status  string        `json:"status"`
	Details ingestDetails `json:"details"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleUploadPDF(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files provided"})
		return
	}

	dir, err := os.MkdirTemp("", "upload-*")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not stage uploads"})
		return
	}
	defer os.RemoveAll(dir)

	reports := make([]*ingest.Report, 0, len(files))
	var paths, names []string
	for _, fh := range files {
		name := filepath.Base(fh.Filename)
		if !strings.EqualFold(filepath.Ext(name), ".pdf") {
			reports = append(reports, &ingest.Report{Source: name, Err: apperrors.ErrUnsupportedFormat})
			continue
		}
		dst := filepath.Join(dir, name)
		if err := c.SaveUploadedFile(fh, dst); err != nil {
			reports = append(reports, &ingest.Report{Source: name, Err: err})
			continue
		}
		paths = append(paths, dst)
		names = append(names, name)
	}

	ingested := s.ingestor.IngestFiles(c.Request.Context(), paths)
	for i, rep := range ingested {
		rep.Source = names[i]
	}
	reports = append(reports, ingested...)

	status, resp := buildIngestResponse(reports)
	c.JSON(status, resp)
}

func (s *Server) handleProcessWebpages(c *gin.Context) {
	var req struct {
		URLs []string `json:"urls"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if len(req.URLs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no urls provided"})
		return
	}

	reports := s.ingestor.IngestURLs(c.Request.Context(), req.URLs)
	status, resp := buildIngestResponse(reports)
	c.JSON(status, resp)
}

func buildIngestResponse(reports []*ingest.Report) (int, *ingestResponse) {
	details := ingestDetails{
		Filenames: []string{},
		Files:     make([]fileReport, 0, len(reports)),
	}
	for _, rep := range reports {
		details.Files = append(details.Files, fileReport{
			Source:      rep.Source,
			Pages:       rep.Pages,
			ChunksAdded: rep.ChunksAdded,
			OCRUsed:     rep.OCRUsed,
			Error:       rep.Error(),
		})
		if rep.Err != nil {
			continue
		}
		details.FilesProcessed++
		details.TotalChunks += rep.ChunksAdded
		details.Filenames = append(details.Filenames, rep.Source)
	}
	if details.FilesProcessed == 0 {
		return http.StatusInternalServerError, &ingestResponse{Status: "error", Details: details}
	}
	return http.StatusOK, &ingestResponse{Status: "success", Details: details}
}

func (s *Server) handleChat(c *gin.Context) {
	turn, ok := s.startTurn(c)
	if !ok {
		return
	}

	var answer strings.Builder
	var sources *hybrid.Sources
	for ev := range turn.Events {
		switch ev.Type {
		case hybrid.EventChunk:
			answer.WriteString(ev.Content)
		case hybrid.EventSources:
			sources = ev.Sources
		case hybrid.EventError:
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":      ev.Message,
				"session_id": turn.SessionID,
			})
			return
		}
	}

	c.JSON(http.StatusOK, &chatResponse{
		Response:  answer.String(),
		SessionID: turn.SessionID,
		Sources:   sources,
	})
}

func (s *Server) handleChatStream(c *gin.Context) {
	turn, ok := s.startTurn(c)
	if !ok {
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	for ev := range turn.Events {
		data, err := json.Marshal(ev)
		if err != nil {
			s.logger.Error("marshal stream event", "error", err)
			return
		}
		if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", data); err != nil {
			return
		}
		c.Writer.Flush()
		if ctx.Err() != nil {
			return
		}
	}
}

// startTurn binds a chat request and resolves it against the machine.
// On failure it writes the error response and returns ok=false.
func (s *Server) startTurn(c *gin.Context) (*hybrid.Turn, bool) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return nil, false
	}
	useRAG := true
	if req.UseRAG != nil {
		useRAG = *req.UseRAG
	}
	turn, err := s.machine.Answer(c.Request.Context(), &hybrid.TurnRequest{
		SessionID: req.SessionID,
		Message:   req.Message,
		UseRAG:    useRAG,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return turn, true
}

func (s *Server) handleQuery(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}
	k := req.K
	if k <= 0 {
		k = s.queryK
	}

	results, err := vector.SearchText(c.Request.Context(), s.store, s.embedder, req.Query, k, nil)
	if err != nil {
		s.logger.Error("vector query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	hits := make([]queryHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, queryHit{Content: r.Text, Metadata: r.Metadata})
	}
	c.JSON(http.StatusOK, hits)
}

func (s *Server) handleHistory(c *gin.Context) {
	id := c.Param("id")
	msgs, err := s.sessions.History(c.Request.Context(), id, 0)
	if err != nil {
		if errors.Is(err, apperrors.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (s *Server) handleClear(c *gin.Context) {
	id := c.Param("id")
	if err := s.sessions.Clear(c.Request.Context(), id); err != nil {
		if errors.Is(err, apperrors.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not clear session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func (s *Server) handleClearVectorStore(c *gin.Context) {
	removed, err := s.ingestor.Purge(c.Request.Context())
	if err != nil {
		s.logger.Error("purge vector store", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not clear vector store"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
