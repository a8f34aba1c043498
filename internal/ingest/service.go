// Package ingest runs the upload pipeline: text extraction, chunk
// indexing, model extraction and persistence.
package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/smartdoc/policyd/internal/apperr"
	"github.com/smartdoc/policyd/internal/model"
	"github.com/smartdoc/policyd/internal/normalize"
	"github.com/smartdoc/policyd/internal/pdftext"
	"github.com/smartdoc/policyd/internal/store"
	"github.com/smartdoc/policyd/pkg/anthropic"
	"github.com/smartdoc/policyd/pkg/azsearch"
	"github.com/smartdoc/policyd/pkg/embeddings"
)

// Options tune the extraction model and chunk indexing.
type Options struct {
	Model           string
	MaxTokens       int64
	Temperature     float64
	MaxConcurrent   int
	ChunksPerSecond int
}

// Service orchestrates document ingestion.
type Service struct {
	store      store.Store
	llm        anthropic.Client
	extractor  pdftext.Extractor
	ocr        pdftext.Extractor
	embedder   embeddings.Client
	search     azsearch.Client
	normalizer *normalize.Normalizer
	system     []anthropic.SystemBlock
	opts       Options
	now        func() time.Time
}

// NewService creates a Service. The ocr fallback, embedder and search
// clients may be nil; the corresponding steps are skipped. nowFn may be
// nil to use time.Now.
func NewService(st store.Store, llm anthropic.Client, extractor pdftext.Extractor, ocr pdftext.Extractor, embedder embeddings.Client, search azsearch.Client, opts Options, nowFn func() time.Time) *Service {
	if nowFn == nil {
		nowFn = time.Now
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = 2048
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.ChunksPerSecond <= 0 {
		opts.ChunksPerSecond = 8
	}
	return &Service{
		store:      st,
		llm:        llm,
		extractor:  extractor,
		ocr:        ocr,
		embedder:   embedder,
		search:     search,
		normalizer: normalize.New(),
		system:     anthropic.BuildCachedSystemBlocks(buildSystemPrompt(model.DefaultSchema())),
		opts:       opts,
		now:        nowFn,
	}
}

// IngestFile extracts, indexes and records the PDF at path for the
// given owner. A model response that cannot be parsed still produces a
// stored document, just a degraded one.
func (s *Service) IngestFile(ctx context.Context, path, ownerID string) (*model.Document, error) {
	if ownerID == "" {
		return nil, apperr.New(apperr.KindInvalidInput, "missing user id")
	}

	name := displayName(filepath.Base(path))
	log := zap.L().With(zap.String("pdf", name), zap.String("user_id", ownerID))

	raw, err := s.extractor.ExtractText(ctx, path)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamFailure, err, "ingest: extract text")
	}
	text := pdftext.Clean(raw)
	stats := pdftext.Measure(text)

	if stats.LooksScanned() && s.ocr != nil {
		log.Warn("text layer looks scanned, running OCR",
			zap.Int("word_count", stats.WordCount),
			zap.Float64("empty_page_ratio", stats.EmptyPageRatio),
		)
		ocrText, ocrErr := s.ocr.ExtractText(ctx, path)
		if ocrErr != nil {
			log.Warn("OCR fallback failed, keeping text layer", zap.Error(ocrErr))
		} else {
			text = pdftext.Clean(ocrText)
			stats = pdftext.Measure(text)
		}
	}

	docID := uuid.NewString()
	s.indexChunks(ctx, docID, name, ownerID, text, log)

	resp, err := s.llm.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       s.opts.Model,
		MaxTokens:   s.opts.MaxTokens,
		System:      s.system,
		Temperature: &s.opts.Temperature,
		Messages: []anthropic.Message{
			{Role: "user", Content: "Extract the policy fields from this document:\n\n" + text},
		},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUpstreamFailure, err, "ingest: extraction model call")
	}
	resp.Usage.LogCost(s.opts.Model, "extract")

	aiData := s.normalizer.Normalize(resp.Text(), text)
	if aiData.Degraded() {
		log.Warn("model output was not valid JSON, storing raw output")
	}

	doc := &model.Document{
		ID:        docID,
		Name:      name,
		AIData:    aiData,
		UserData:  map[string]string{},
		PageCount: stats.PageCount,
		WordCount: stats.WordCount,
		OwnerID:   ownerID,
		Timestamp: s.now().UTC(),
	}
	if err := s.store.InsertDocument(ctx, doc); err != nil {
		return nil, apperr.Wrap(apperr.KindPersistence, err, "ingest: insert document")
	}

	log.Info("document ingested",
		zap.String("id", doc.ID),
		zap.Int("pages", doc.PageCount),
		zap.Int("words", doc.WordCount),
		zap.Float64("accuracy", doc.AIData.Accuracy()),
	)
	return doc, nil
}

// indexChunks embeds each non-empty page and uploads it to the search
// index. Indexing is best-effort: failures are logged and never abort
// ingestion.
func (s *Service) indexChunks(ctx context.Context, docID, name, ownerID, text string, log *zap.Logger) {
	if s.embedder == nil || s.search == nil {
		return
	}

	var pages []string
	for _, page := range strings.Split(text, "\f") {
		if trimmed := strings.TrimSpace(page); trimmed != "" {
			pages = append(pages, trimmed)
		}
	}
	if len(pages) == 0 {
		return
	}

	limiter := rate.NewLimiter(rate.Limit(s.opts.ChunksPerSecond), s.opts.ChunksPerSecond)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxConcurrent)

	for _, content := range pages {
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return nil //nolint:nilerr // context cancelled, nothing to do
			}
			vectors, err := s.embedder.Embed(gctx, []string{content})
			if err != nil {
				log.Warn("chunk embedding failed", zap.Error(err))
				return nil
			}
			chunk := azsearch.Chunk{
				ID:           uuid.NewString(),
				DocumentID:   docID,
				DocumentName: name,
				OwnerID:      ownerID,
				Content:      content,
			}
			if len(vectors) > 0 {
				chunk.Vector = vectors[0]
			}
			if err := s.search.UploadChunks(gctx, []azsearch.Chunk{chunk}); err != nil {
				log.Warn("chunk upload failed", zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// displayName normalizes an uploaded filename for storage.
func displayName(filename string) string {
	return strings.ReplaceAll(strings.TrimSpace(filename), " ", "_")
}

// buildSystemPrompt renders the extraction instructions for the policy
// field schema.
func buildSystemPrompt(schema *model.Schema) string {
	hints := map[string]string{
		"policyholderName":    "full name of the policyholder",
		"premiumAmount":       "the sum assured / total benefit / maturity amount",
		"issueDate":           "the date the policy was issued or commenced",
		"expirationDate":      "the date the policy matures or expires",
		"providerName":        "the insurance company issuing the policy",
		"policyholderAddress": "the policyholder's address",
		"policyNumber":        "the policy or proposal number",
		"deductibles":         "the premium payable and its payment frequency",
		"termsAndExclusions":  "list of notable terms, conditions and exclusions",
	}

	var sb strings.Builder
	sb.WriteString("You extract structured data from insurance policy documents.\n")
	sb.WriteString("Respond with a single JSON object and nothing else: no prose, no markdown fences.\n")
	sb.WriteString("For each field, return an object {\"value\": <extracted value>, \"confidence\": <0-100>}.\n")
	sb.WriteString("Use null for fields the document does not contain. Fields:\n")
	for _, f := range schema.Fields {
		hint := hints[f.ProposalKey]
		if f.List {
			fmt.Fprintf(&sb, "- %s: %s (value is a JSON array of strings)\n", f.ProposalKey, hint)
		} else {
			fmt.Fprintf(&sb, "- %s: %s\n", f.ProposalKey, hint)
		}
		if f.RawKey != "" {
			fmt.Fprintf(&sb, "- %s: the %s exactly as written in the document\n", f.RawKey, hint)
		}
	}
	return sb.String()
}
