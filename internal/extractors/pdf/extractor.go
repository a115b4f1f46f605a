// Package pdf extracts paged text from PDF files, falling back to a
// vision OCR pass for scanned documents.
package pdf

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
	"github.com/custodia-labs/recall-cli/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// minBytesPerPage is the density threshold below which a PDF is
// treated as scanned and routed to OCR.
const minBytesPerPage = 16

// CommandRunner executes an external command and returns its combined
// output. Abstracted for testing.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Extractor extracts per-page text from PDFs. vision is optional; when
// nil, scanned PDFs fail with domain.ErrOCRUnavailable.
type Extractor struct {
	vision driven.GenerationService
	runner CommandRunner
}

// Option configures the extractor.
type Option func(*Extractor)

// WithVision sets the vision client used for the OCR fallback.
func WithVision(vision driven.GenerationService) Option {
	return func(e *Extractor) { e.vision = vision }
}

// WithRunner overrides the subprocess runner. Used in tests.
func WithRunner(r CommandRunner) Option {
	return func(e *Extractor) { e.runner = r }
}

// New creates a PDF extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{runner: execRunner{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Supports reports whether this extractor handles the file type.
func (e *Extractor) Supports(fileType domain.FileType) bool {
	return fileType == domain.FileTypePDF
}

// Extract reads the PDF page by page. When the direct text yield is
// too thin to be a text PDF, the pages are rendered and described by
// the vision client instead; the OCR pass reports per-page progress.
func (e *Extractor) Extract(ctx context.Context, path string, progress driven.ProgressFunc) (domain.ExtractedContent, error) {
	pages, err := extractPages(path)
	if err != nil {
		logger.Warn("pdf text extraction failed for %s, trying ocr: %v", path, err)
		return e.extractOCR(ctx, path, progress)
	}

	if isScanned(pages) {
		logger.Info("pdf %s has too little text (%d pages), trying ocr", path, len(pages))
		return e.extractOCR(ctx, path, progress)
	}

	for i := range pages {
		pages[i] = repairLigatures(pages[i])
	}
	return domain.ExtractedContent{Pages: pages}, nil
}

// extractPages pulls the plain text of every page.
func extractPages(path string) ([]string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := r.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			// A single undecodable page should not sink the document.
			logger.Debug("pdf page %d of %s unreadable: %v", i, path, err)
			text = ""
		}
		pages = append(pages, strings.TrimSpace(text))
	}
	return pages, nil
}

// isScanned applies the density threshold: no text at all, or less
// than minBytesPerPage on average, means image-only pages.
func isScanned(pages []string) bool {
	if len(pages) == 0 {
		return true
	}
	total := 0
	for _, p := range pages {
		total += len(p)
	}
	return total/len(pages) < minBytesPerPage
}

// extractOCR renders each page to an image and asks the vision client
// to read it. Page anchors are preserved.
func (e *Extractor) extractOCR(ctx context.Context, path string, progress driven.ProgressFunc) (domain.ExtractedContent, error) {
	if e.vision == nil {
		return domain.ExtractedContent{}, fmt.Errorf("pdf %s needs ocr: %w", path, domain.ErrOCRUnavailable)
	}

	dir, err := os.MkdirTemp("", "recall-ocr-*")
	if err != nil {
		return domain.ExtractedContent{}, fmt.Errorf("ocr temp dir: %w", domain.ErrExtractionFailed)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	if out, err := e.runner.Run(ctx, "pdftoppm", "-png", "-r", "150", path, prefix); err != nil {
		return domain.ExtractedContent{}, fmt.Errorf("render pdf pages: %s: %w", strings.TrimSpace(string(out)), domain.ErrExtractionFailed)
	}

	images, err := filepath.Glob(prefix + "*.png")
	if err != nil || len(images) == 0 {
		return domain.ExtractedContent{}, fmt.Errorf("no pages rendered from %s: %w", path, domain.ErrExtractionFailed)
	}
	sort.Strings(images)

	pages := make([]string, 0, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return domain.ExtractedContent{}, err
		}
		data, err := os.ReadFile(img)
		if err != nil {
			return domain.ExtractedContent{}, fmt.Errorf("read rendered page: %w", domain.ErrExtractionFailed)
		}
		text, err := e.vision.DescribeImage(ctx, data, "image/png")
		if err != nil {
			// Keep going; one unreadable page leaves a gap, not a failure.
			logger.Warn("ocr failed for %s: %v", img, err)
			text = ""
		}
		pages = append(pages, strings.TrimSpace(text))

		if progress != nil {
			if err := progress(float64(i+1) / float64(len(images))); err != nil {
				return domain.ExtractedContent{}, err
			}
		}
	}

	content := domain.ExtractedContent{Pages: pages}
	if content.IsEmpty() {
		return domain.ExtractedContent{}, fmt.Errorf("ocr produced no text for %s: %w", path, domain.ErrExtractionFailed)
	}
	return content, nil
}
