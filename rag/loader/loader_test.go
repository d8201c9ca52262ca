package loader

import (
	"context"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sweetpotato0/ai-tutor/errors"
	"github.com/sweetpotato0/ai-tutor/rag/document"
)

func TestLoadUnsupportedFormat(t *testing.T) {
	l := New()

	_, err := l.Load(context.Background(), "notes.docx")
	if !stderrors.Is(err, errors.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestImageBased(t *testing.T) {
	pl := &PDFLoader{threshold: DefaultOCRThreshold}

	pages := func(contents ...string) []document.Page {
		out := make([]document.Page, len(contents))
		for i, c := range contents {
			out[i] = document.Page{Number: i + 1, Content: c}
		}
		return out
	}

	longText := strings.Repeat("prose ", 50)

	tests := []struct {
		name  string
		pages []document.Page
		want  bool
	}{
		{"empty document", nil, false},
		{"text document", pages(longText, longText), false},
		{"scanned document", pages("", "", ""), true},
		{"sparse fragments", pages("a", "bb", "c"), true},
		{"only first pages sampled", pages(longText, longText, longText, longText, longText, "", ""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pl.imageBased(tt.pages); got != tt.want {
				t.Errorf("imageBased = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWebLoader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Photosynthesis</title></head>
		<body><h1>Photosynthesis</h1><p>Plants convert light into chemical energy.</p></body></html>`))
	}))
	defer srv.Close()

	l := NewWebLoader(srv.Client())
	doc, err := l.Load(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if doc.Title != "Photosynthesis" {
		t.Errorf("Title = %q, want Photosynthesis", doc.Title)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}
	if doc.Pages[0].Extraction != document.ExtractionWeb {
		t.Errorf("Extraction = %q, want web", doc.Pages[0].Extraction)
	}
	if !strings.Contains(doc.Pages[0].Content, "chemical energy") {
		t.Errorf("page content missing body text: %q", doc.Pages[0].Content)
	}
	if doc.ID == "" {
		t.Error("expected document ID to be assigned")
	}
}

func TestWebLoaderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	l := NewWebLoader(srv.Client())
	if _, err := l.Load(context.Background(), srv.URL); err == nil {
		t.Error("expected error for 404 response")
	}
}

func TestWebLoaderContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewWebLoader(srv.Client())
	if _, err := l.Load(ctx, srv.URL); err == nil {
		t.Error("expected error for cancelled context")
	}
}
