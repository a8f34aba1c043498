package pdftext

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartdoc/policyd/internal/config"
)

func TestMeasure(t *testing.T) {
	text := "Policy Number: 12345\nSum Assured: Rs. 5,00,000\f" +
		"Terms and exclusions apply as per schedule\f" +
		"\f" // trailing form feed from pdftotext

	stats := Measure(text)
	assert.Equal(t, 3, stats.PageCount)
	assert.Equal(t, 14, stats.WordCount)
	assert.InDelta(t, 1.0/3.0, stats.EmptyPageRatio, 1e-9)
}

func TestMeasure_SinglePageNoFormFeed(t *testing.T) {
	stats := Measure("just one page of text")
	assert.Equal(t, 1, stats.PageCount)
	assert.Equal(t, 5, stats.WordCount)
	assert.Equal(t, 0.0, stats.EmptyPageRatio)
}

func TestMeasure_Empty(t *testing.T) {
	stats := Measure("")
	assert.Equal(t, 1, stats.PageCount)
	assert.Equal(t, 0, stats.WordCount)
	assert.Equal(t, 1.0, stats.EmptyPageRatio)
}

func TestLooksScanned(t *testing.T) {
	tests := []struct {
		name    string
		stats   Stats
		scanned bool
	}{
		{"plenty of text", Stats{PageCount: 4, WordCount: 900}, false},
		{"too few words", Stats{PageCount: 2, WordCount: 12}, true},
		{"mostly blank pages", Stats{PageCount: 10, WordCount: 60, EmptyPageRatio: 0.8}, true},
		{"half blank is still fine", Stats{PageCount: 4, WordCount: 200, EmptyPageRatio: 0.5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.scanned, tt.stats.LooksScanned())
		})
	}
}

func TestClean_NormalizesToNFC(t *testing.T) {
	// "é" as combining sequence vs precomposed.
	decomposed := "Assurée"
	composed := "Assurée"
	assert.Equal(t, composed, Clean(decomposed))
}

func TestNewExtractor_Local(t *testing.T) {
	ext, err := NewExtractor(config.OCRConfig{Provider: "local", PdfToTextPath: "/usr/bin/pdftotext"})
	require.NoError(t, err)
	assert.IsType(t, &PdfToText{}, ext)
}

func TestNewExtractor_LocalDefault(t *testing.T) {
	ext, err := NewExtractor(config.OCRConfig{})
	require.NoError(t, err)
	assert.IsType(t, &PdfToText{}, ext)
}

func TestNewExtractor_MistralMissingKey(t *testing.T) {
	_, err := NewExtractor(config.OCRConfig{Provider: "mistral"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral provider requires mistral_api_key")
}

func TestNewExtractor_UnknownProvider(t *testing.T) {
	_, err := NewExtractor(config.OCRConfig{Provider: "tesseract"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown provider "tesseract"`)
}

func TestNewFallback(t *testing.T) {
	assert.Nil(t, NewFallback(config.OCRConfig{}))
	assert.IsType(t, &MistralOCR{}, NewFallback(config.OCRConfig{MistralKey: "k"}))
}

func TestPdfToText_BinPath(t *testing.T) {
	p := NewPdfToText("")
	assert.Equal(t, "pdftotext", p.binPath)

	p = NewPdfToText("/custom/pdftotext")
	assert.Equal(t, "/custom/pdftotext", p.binPath)
}

func TestPdfToText_ExtractText_Success(t *testing.T) {
	// Fake pdftotext that echoes two form-feed separated pages.
	tmpDir := t.TempDir()
	fakeBin := filepath.Join(tmpDir, "pdftotext")
	script := "#!/bin/sh\nprintf 'page one\\fpage two\\f'\n"
	require.NoError(t, os.WriteFile(fakeBin, []byte(script), 0755))

	p := NewPdfToText(fakeBin)
	text, err := p.ExtractText(context.Background(), "/tmp/dummy.pdf")
	require.NoError(t, err)
	assert.Equal(t, 2, Measure(text).PageCount)
}

func TestPdfToText_ExtractText_BinaryNotFound(t *testing.T) {
	p := NewPdfToText("/nonexistent/pdftotext")
	_, err := p.ExtractText(context.Background(), "/tmp/test.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext failed")
}

func TestMistralOCR_DefaultModel(t *testing.T) {
	m := NewMistralOCR("key", "")
	assert.Equal(t, defaultMistralModel, m.model)
	assert.Equal(t, mistralOCREndpoint, m.endpoint)
}

func TestMistralOCR_ExtractText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req mistralOCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "document_url", req.Document.Type)
		assert.True(t, strings.HasPrefix(req.Document.DocumentURL, "data:application/pdf;base64,"))

		resp := mistralOCRResponse{
			Pages: []mistralOCRPage{
				{Index: 0, Markdown: "Page one content"},
				{Index: 1, Markdown: "Page two content"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp) //nolint:errcheck
	}))
	defer srv.Close()

	pdfPath := filepath.Join(t.TempDir(), "test.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 test content"), 0644))

	m := &MistralOCR{
		apiKey:   "test-key",
		model:    "test-model",
		endpoint: srv.URL,
		client:   &http.Client{},
	}

	text, err := m.ExtractText(context.Background(), pdfPath)
	require.NoError(t, err)
	assert.Equal(t, "Page one content\fPage two content", text)
	assert.Equal(t, 2, Measure(text).PageCount)
}

func TestMistralOCR_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer srv.Close()

	pdfPath := filepath.Join(t.TempDir(), "test.pdf")
	require.NoError(t, os.WriteFile(pdfPath, []byte("%PDF-1.4 test"), 0644))

	m := &MistralOCR{apiKey: "bad-key", model: "m", endpoint: srv.URL, client: &http.Client{}}

	_, err := m.ExtractText(context.Background(), pdfPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral API returned 401")
}

func TestMistralOCR_FileNotFound(t *testing.T) {
	m := NewMistralOCR("key", "model")
	_, err := m.ExtractText(context.Background(), "/nonexistent/file.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read PDF")
}
