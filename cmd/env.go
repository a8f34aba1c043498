package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/smartdoc/policyd/internal/analytics"
	"github.com/smartdoc/policyd/internal/corrections"
	"github.com/smartdoc/policyd/internal/ingest"
	"github.com/smartdoc/policyd/internal/pdftext"
	"github.com/smartdoc/policyd/internal/store"
	anthropicpkg "github.com/smartdoc/policyd/pkg/anthropic"
	"github.com/smartdoc/policyd/pkg/azsearch"
	"github.com/smartdoc/policyd/pkg/embeddings"
)

// appEnv holds the initialized store and services shared by the
// ingest/serve commands.
type appEnv struct {
	Store     store.Store
	Ingest    *ingest.Service
	Tracker   *corrections.Tracker
	Analytics *analytics.Engine
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "policyd.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initQueryEnv sets up just the store and the read-side services.
func initQueryEnv(ctx context.Context) (*appEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return &appEnv{
		Store:     st,
		Tracker:   corrections.NewTracker(st, nil),
		Analytics: analytics.NewEngine(st, nil),
	}, nil
}

// initIngestEnv sets up the store plus the full ingestion pipeline.
// Callers should defer env.Close().
func initIngestEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env, err := initQueryEnv(ctx)
	if err != nil {
		return nil, err
	}

	extractor, err := pdftext.NewExtractor(cfg.OCR)
	if err != nil {
		env.Close()
		return nil, err
	}

	var embedClient embeddings.Client
	var searchClient azsearch.Client
	if cfg.Embeddings.Key != "" && cfg.Search.Key != "" {
		embedClient = embeddings.NewClient(cfg.Embeddings.Key, cfg.Embeddings.BaseURL, cfg.Embeddings.Deployment,
			embeddings.WithAPIVersion(cfg.Embeddings.APIVersion))
		searchClient = azsearch.NewClient(cfg.Search.Key, cfg.Search.Endpoint, cfg.Search.Index,
			azsearch.WithAPIVersion(cfg.Search.APIVersion))
	}

	env.Ingest = ingest.NewService(
		env.Store,
		anthropicpkg.NewClient(cfg.Anthropic.Key),
		extractor,
		pdftext.NewFallback(cfg.OCR),
		embedClient,
		searchClient,
		ingest.Options{
			Model:           cfg.Anthropic.Model,
			MaxTokens:       int64(cfg.Anthropic.MaxTokens),
			Temperature:     cfg.Anthropic.Temperature,
			MaxConcurrent:   cfg.Ingest.MaxConcurrent,
			ChunksPerSecond: cfg.Ingest.ChunksPerSecond,
		},
		time.Now,
	)
	return env, nil
}
