package errors

import "errors"

// Sentinel errors for common error conditions across the assistant.
var (
	// ErrUnsupportedFormat indicates that an ingested file has an extension
	// the document loader does not understand.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrOCRUnavailable indicates that a document requires OCR but no OCR
	// engine is configured.
	ErrOCRUnavailable = errors.New("ocr engine unavailable")

	// ErrEmbeddingFailed indicates the embedding provider returned no usable
	// vectors for a request.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrVectorStoreFailed indicates a vector repository operation failed.
	ErrVectorStoreFailed = errors.New("vector store failed")

	// ErrWebSearchFailed indicates the web search provider failed or timed out.
	ErrWebSearchFailed = errors.New("web search failed")

	// ErrRouteClassifierFailed indicates the LLM route classifier failed or
	// returned an unusable label.
	ErrRouteClassifierFailed = errors.New("route classifier failed")

	// ErrRetrievalDeadline indicates a retrieval task exceeded its deadline.
	ErrRetrievalDeadline = errors.New("retrieval deadline exceeded")

	// ErrGenerationUnavailable indicates the generator produced no output at all.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrGenerationInterrupted indicates the generator failed after emitting
	// partial output.
	ErrGenerationInterrupted = errors.New("generation interrupted")

	// ErrSessionNotFound indicates a lookup for an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
)
