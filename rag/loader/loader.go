package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sweetpotato0/ai-tutor/errors"
	"github.com/sweetpotato0/ai-tutor/rag/document"
)

// OCR recognizes the text of a single document page. Implementations
// rasterize the page and run a recognition engine over the image.
type OCR interface {
	ExtractPage(ctx context.Context, path string, page int) (string, error)
}

// Loader turns source files into page-level documents. Format dispatch is
// by file extension; unknown extensions fail with ErrUnsupportedFormat.
type Loader struct {
	pdf *PDFLoader
}

// Option configures a Loader.
type Option func(*Loader)

// WithOCR wires an OCR engine for image-based PDFs.
func WithOCR(ocr OCR) Option {
	return func(l *Loader) {
		l.pdf.ocr = ocr
	}
}

// WithOCRThreshold overrides the average characters-per-page below which a
// document is treated as image-based.
func WithOCRThreshold(chars int) Option {
	return func(l *Loader) {
		if chars > 0 {
			l.pdf.threshold = chars
		}
	}
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		pdf: &PDFLoader{threshold: DefaultOCRThreshold},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load extracts page-level text from the file at path.
func (l *Loader) Load(ctx context.Context, path string) (*document.Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return l.pdf.Load(ctx, path)
	default:
		return nil, fmt.Errorf("%s: %w", path, errors.ErrUnsupportedFormat)
	}
}
