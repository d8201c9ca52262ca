package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sweetpotato0/ai-tutor/rag/document"
	"github.com/sweetpotato0/ai-tutor/rag/preprocess"
)

// maxPageBytes caps how much of a web page is read.
const maxPageBytes = 4 << 20

// WebLoader fetches a web page and extracts its readable content as a
// single-page document.
type WebLoader struct {
	client *http.Client
}

// NewWebLoader creates a web page loader. A nil client gets a default with
// a sane timeout.
func NewWebLoader(client *http.Client) *WebLoader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &WebLoader{client: client}
}

// Load fetches url and returns its content as one page.
func (l *WebLoader) Load(ctx context.Context, url string) (*document.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", "ai-tutor/1.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	html := string(body)
	text, err := preprocess.HTMLToText(html)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", url, err)
	}

	doc := &document.Document{
		Title:  preprocess.HTMLTitle(html),
		Source: url,
		Pages: []document.Page{
			{Number: 1, Content: preprocess.Preprocess(text), Extraction: document.ExtractionWeb},
		},
		Metadata: map[string]any{
			"total_pages": 1,
		},
	}
	document.EnsureDocumentID(doc)
	return doc, nil
}
