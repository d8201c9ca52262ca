package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	pdf "github.com/dslipak/pdf"

	"github.com/sweetpotato0/ai-tutor/errors"
	"github.com/sweetpotato0/ai-tutor/pkg/logging"
	"github.com/sweetpotato0/ai-tutor/rag/document"
	"github.com/sweetpotato0/ai-tutor/rag/preprocess"
)

// DefaultOCRThreshold is the average characters per page below which a
// document is treated as image-based and routed through OCR.
const DefaultOCRThreshold = 100

// probePages is how many leading pages are sampled for the OCR decision.
const probePages = 5

// PDFLoader extracts per-page text from PDF files, switching the whole
// document to OCR when direct extraction yields near-empty text.
type PDFLoader struct {
	ocr       OCR
	threshold int
}

// Load reads every page of the PDF at path.
func (l *PDFLoader) Load(ctx context.Context, path string) (*document.Document, error) {
	logger := logging.WithComponent("loader")

	r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}

	total := r.NumPage()
	pages := make([]document.Page, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text := ""
		p := r.Page(i)
		if !p.V.IsNull() {
			extracted, err := p.GetPlainText(nil)
			if err != nil {
				// a single unreadable page does not fail the document
				logger.Warn("page extraction failed", "source", path, "page", i, "error", err)
			} else {
				text = extracted
			}
		}
		pages = append(pages, document.Page{
			Number:     i,
			Content:    preprocess.CleanBasic(text),
			Extraction: document.ExtractionNative,
		})
	}

	if l.imageBased(pages) {
		if l.ocr == nil {
			return nil, fmt.Errorf("%s: %w", path, errors.ErrOCRUnavailable)
		}
		logger.Info("document is image-based, running ocr", "source", path, "pages", total)
		for i := range pages {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			text, err := l.ocr.ExtractPage(ctx, path, pages[i].Number)
			if err != nil {
				logger.Warn("ocr failed for page", "source", path, "page", pages[i].Number, "error", err)
				text = ""
			}
			pages[i].Content = preprocess.CleanBasic(text)
			pages[i].Extraction = document.ExtractionOCR
		}
	}

	doc := &document.Document{
		Title:  strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Source: path,
		Pages:  pages,
		Metadata: map[string]any{
			"total_pages": total,
		},
	}
	document.EnsureDocumentID(doc)
	return doc, nil
}

// imageBased samples the first few pages and reports whether the average
// extracted length falls under the OCR threshold.
func (l *PDFLoader) imageBased(pages []document.Page) bool {
	if len(pages) == 0 {
		return false
	}
	n := probePages
	if len(pages) < n {
		n = len(pages)
	}
	var chars int
	for _, p := range pages[:n] {
		chars += len(strings.TrimSpace(p.Content))
	}
	return chars/n < l.threshold
}
