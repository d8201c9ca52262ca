package document

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Extraction identifies how the text of a page was obtained.
type Extraction string

const (
	ExtractionNative Extraction = "native"
	ExtractionOCR    Extraction = "ocr"
	ExtractionWeb    Extraction = "web"
)

// Document represents a knowledge source that can be chunked and indexed.
type Document struct {
	ID       string         `json:"id"`
	Title    string         `json:"title,omitempty"`
	Source   string         `json:"source"`
	Pages    []Page         `json:"pages"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Page is one unit of extracted text. For PDFs it corresponds to a physical
// page; for web pages the whole article is a single page numbered 1.
type Page struct {
	Number     int        `json:"number"`
	Content    string     `json:"content"`
	Extraction Extraction `json:"extraction"`
}

// Chunk represents a slice of a document that is indexed into a vector store.
type Chunk struct {
	ID       string         `json:"id"`
	Source   string         `json:"source"`
	Page     int            `json:"page"`
	Content  string         `json:"content"`
	Ordinal  int            `json:"ordinal"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// EnsureDocumentID makes sure every document has a stable identifier. The ID
// is derived from the source path so that re-ingesting the same file yields
// the same document.
func EnsureDocumentID(doc *Document) {
	if doc == nil || doc.ID != "" {
		return
	}
	sum := sha256.Sum256([]byte(doc.Source))
	doc.ID = "doc_" + hex.EncodeToString(sum[:8])
}

// ChunkID derives a stable chunk identifier from the source, page, and chunk
// text. The same content always maps to the same ID, which makes indexing
// idempotent: re-ingesting an unchanged file overwrites chunks in place.
func ChunkID(source string, page int, text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%d\x00%s", source, page, text)
	return hex.EncodeToString(h.Sum(nil))[:24]
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := d
	if d.Pages != nil {
		out.Pages = make([]Page, len(d.Pages))
		copy(out.Pages, d.Pages)
	}
	if d.Metadata != nil {
		out.Metadata = make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Clone returns a deep copy of the chunk.
func (c Chunk) Clone() Chunk {
	out := c
	if c.Metadata != nil {
		out.Metadata = make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
