// Package pdftext turns uploaded policy PDFs into analyzable plain
// text. Extraction is local by default (pdftotext) with an OCR provider
// for documents that turn out to be scans.
package pdftext

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/smartdoc/policyd/internal/config"
)

// Extractor extracts text content from PDF files.
type Extractor interface {
	ExtractText(ctx context.Context, pdfPath string) (string, error)
}

const (
	// A text layer with fewer words than this is treated as a scan.
	scannedMinWords = 30
	// So is one where more than half the pages came back blank.
	scannedEmptyPageRatio = 0.5
)

// Stats describe the text layer pulled out of a PDF. Pages are the
// form-feed separated segments pdftotext emits.
type Stats struct {
	PageCount      int
	WordCount      int
	EmptyPageRatio float64
}

// Measure computes page and word statistics for extracted text.
func Measure(text string) Stats {
	pages := strings.Split(text, "\f")
	// pdftotext terminates the last page with a form feed, leaving an
	// empty trailing segment that is not a page.
	if n := len(pages); n > 1 && strings.TrimSpace(pages[n-1]) == "" {
		pages = pages[:n-1]
	}

	empty := 0
	words := 0
	for _, page := range pages {
		trimmed := strings.TrimSpace(page)
		if trimmed == "" {
			empty++
			continue
		}
		words += len(strings.Fields(trimmed))
	}

	s := Stats{PageCount: len(pages), WordCount: words}
	if s.PageCount > 0 {
		s.EmptyPageRatio = float64(empty) / float64(s.PageCount)
	}
	return s
}

// LooksScanned reports whether the text layer is too thin to trust,
// meaning the document is likely a scan that needs OCR.
func (s Stats) LooksScanned() bool {
	return s.WordCount < scannedMinWords || s.EmptyPageRatio > scannedEmptyPageRatio
}

// Clean applies Unicode NFC normalization so that visually identical
// strings from different PDF producers compare equal downstream.
func Clean(text string) string {
	return norm.NFC.String(text)
}

// NewExtractor creates the primary Extractor based on config.
func NewExtractor(cfg config.OCRConfig) (Extractor, error) {
	switch cfg.Provider {
	case "local", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("pdftext: mistral provider requires mistral_api_key")
		}
		return NewMistralOCR(cfg.MistralKey, cfg.MistralModel), nil
	default:
		return nil, eris.Errorf("pdftext: unknown provider %q", cfg.Provider)
	}
}

// NewFallback returns the OCR extractor used when the local text layer
// looks scanned, or nil when no OCR credentials are configured.
func NewFallback(cfg config.OCRConfig) Extractor {
	if cfg.MistralKey == "" {
		return nil
	}
	return NewMistralOCR(cfg.MistralKey, cfg.MistralModel)
}
