// Package ingest runs the document pipeline: load, chunk, embed in
// bounded batches, and upsert into the vector repository. Each input is
// reported individually; one bad document never aborts a batch.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/sweetpotato0/ai-tutor/pkg/logging"
	"github.com/sweetpotato0/ai-tutor/pkg/telemetry"
	"github.com/sweetpotato0/ai-tutor/rag/chunking"
	"github.com/sweetpotato0/ai-tutor/rag/document"
	"github.com/sweetpotato0/ai-tutor/rag/embedder"
	"github.com/sweetpotato0/ai-tutor/rag/loader"
	"github.com/sweetpotato0/ai-tutor/vector"
)

// Report is the per-document outcome of an ingestion run.
type Report struct {
	Source      string `json:"source"`
	Pages       int    `json:"pages"`
	ChunksAdded int    `json:"chunks_added"`
	OCRUsed     bool   `json:"ocr_used"`
	Err         error  `json:"-"`
}

// Error surfaces the failure as a string for JSON responses.
func (r *Report) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Orchestrator wires the ingestion pipeline together.
type Orchestrator struct {
	files   *loader.Loader
	web     *loader.WebLoader
	chunker *chunking.Chunker
	batcher *embedder.Batcher
	store   vector.Store
	logger  *slog.Logger
}

// New creates an Orchestrator. The web loader may be nil when URL
// ingestion is not offered.
func New(files *loader.Loader, web *loader.WebLoader, chunker *chunking.Chunker, batcher *embedder.Batcher, store vector.Store) *Orchestrator {
	return &Orchestrator{
		files:   files,
		web:     web,
		chunker: chunker,
		batcher: batcher,
		store:   store,
		logger:  logging.WithComponent("ingest"),
	}
}

// IngestFiles runs the pipeline over local files, one report per path.
func (o *Orchestrator) IngestFiles(ctx context.Context, paths []string) []*Report {
	reports := make([]*Report, 0, len(paths))
	for _, path := range paths {
		reports = append(reports, o.ingestOne(ctx, path, func(ctx context.Context) (*document.Document, error) {
			return o.files.Load(ctx, path)
		}))
	}
	return reports
}

// IngestURLs runs the pipeline over web pages, one report per URL.
func (o *Orchestrator) IngestURLs(ctx context.Context, urls []string) []*Report {
	reports := make([]*Report, 0, len(urls))
	for _, url := range urls {
		reports = append(reports, o.ingestOne(ctx, url, func(ctx context.Context) (*document.Document, error) {
			if o.web == nil {
				return nil, fmt.Errorf("web ingestion not configured")
			}
			return o.web.Load(ctx, url)
		}))
	}
	return reports
}

func (o *Orchestrator) ingestOne(ctx context.Context, source string, load func(context.Context) (*document.Document, error)) *Report {
	ctx, span := telemetry.Tracer().Start(ctx, "ingest.document")
	report := &Report{Source: source}
	defer func() { telemetry.End(span, report.Err) }()

	doc, err := load(ctx)
	if err != nil {
		o.logger.Error("document load failed", "source", source, "error", err)
		report.Err = err
		return report
	}

	report.Pages = len(doc.Pages)
	for _, page := range doc.Pages {
		if page.Extraction == document.ExtractionOCR {
			report.OCRUsed = true
			break
		}
	}

	added, err := o.index(ctx, doc)
	if err != nil {
		o.logger.Error("document indexing failed", "source", source, "error", err)
		report.Err = err
		return report
	}
	report.ChunksAdded = added

	o.logger.Info("document ingested",
		"source", source, "pages", report.Pages,
		"chunks", report.ChunksAdded, "ocr", report.OCRUsed)
	return report
}

// index chunks the document, embeds the chunk texts in batches, and
// upserts the records. Re-ingesting the same content overwrites the same
// ids, so the operation is idempotent.
func (o *Orchestrator) index(ctx context.Context, doc *document.Document) (int, error) {
	chunks, err := o.chunker.Chunk(ctx, *doc)
	if err != nil {
		return 0, fmt.Errorf("chunking: %w", err)
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := o.batcher.EmbedAll(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding: %w", err)
	}

	records := make([]*vector.Record, len(chunks))
	for i, chunk := range chunks {
		records[i] = &vector.Record{
			ID:       chunk.ID,
			Vector:   vectors[i],
			Text:     chunk.Content,
			Metadata: recordMetadata(chunk),
		}
	}
	if err := o.store.Upsert(ctx, records); err != nil {
		return 0, fmt.Errorf("upsert: %w", err)
	}
	return len(records), nil
}

// recordMetadata flattens chunk metadata into the string form the vector
// repository stores and the fusion layer cites from.
func recordMetadata(chunk document.Chunk) map[string]string {
	meta := make(map[string]string, len(chunk.Metadata))
	for k, v := range chunk.Metadata {
		switch val := v.(type) {
		case string:
			meta[k] = val
		case bool:
			meta[k] = strconv.FormatBool(val)
		case int:
			meta[k] = strconv.Itoa(val)
		default:
			meta[k] = fmt.Sprint(val)
		}
	}
	return meta
}

// Purge clears the vector repository and returns how many records were
// removed.
func (o *Orchestrator) Purge(ctx context.Context) (int, error) {
	n, err := o.store.Count(ctx)
	if err != nil {
		return 0, err
	}
	if err := o.store.DeleteAll(ctx); err != nil {
		return 0, err
	}
	return n, nil
}
