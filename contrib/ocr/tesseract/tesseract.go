package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/sweetpotato0/ai-tutor/rag/loader"
)

// OCR recognizes PDF pages by rasterizing them with pdftoppm and running
// tesseract over the image. Both binaries must be on PATH.
type OCR struct {
	dpi  int
	lang string
}

var _ loader.OCR = (*OCR)(nil)

// Option configures the OCR engine.
type Option func(*OCR)

// WithDPI sets the rasterization resolution (default 200).
func WithDPI(dpi int) Option {
	return func(o *OCR) {
		if dpi > 0 {
			o.dpi = dpi
		}
	}
}

// WithLanguage sets the tesseract language pack (default "eng").
func WithLanguage(lang string) Option {
	return func(o *OCR) {
		if lang != "" {
			o.lang = lang
		}
	}
}

// New creates a tesseract-backed OCR engine, verifying both tools exist.
func New(opts ...Option) (*OCR, error) {
	for _, tool := range []string{"pdftoppm", "tesseract"} {
		if _, err := exec.LookPath(tool); err != nil {
			return nil, fmt.Errorf("ocr requires %s on PATH: %w", tool, err)
		}
	}

	o := &OCR{dpi: 200, lang: "eng"}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// ExtractPage rasterizes one page of the PDF and runs recognition on it.
func (o *OCR) ExtractPage(ctx context.Context, path string, page int) (string, error) {
	tmpDir, err := os.MkdirTemp("", "ai-tutor-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	rasterize := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-r", strconv.Itoa(o.dpi),
		"-f", strconv.Itoa(page),
		"-l", strconv.Itoa(page),
		path, prefix,
	)
	if out, err := rasterize.CombinedOutput(); err != nil {
		return "", fmt.Errorf("rasterize page %d: %w: %s", page, err, bytes.TrimSpace(out))
	}

	images, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(images) == 0 {
		return "", fmt.Errorf("no rasterized image produced for page %d", page)
	}

	var stdout, stderr bytes.Buffer
	recognize := exec.CommandContext(ctx, "tesseract", images[0], "stdout", "-l", o.lang)
	recognize.Stdout = &stdout
	recognize.Stderr = &stderr
	if err := recognize.Run(); err != nil {
		return "", fmt.Errorf("recognize page %d: %w: %s", page, err, bytes.TrimSpace(stderr.Bytes()))
	}

	return stdout.String(), nil
}
