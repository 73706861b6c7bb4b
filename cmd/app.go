package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"document-qa/internal/analysis"
	"document-qa/internal/chromemdb"
	"document-qa/internal/config"
	"document-qa/internal/db"
	"document-qa/internal/embedding"
	"document-qa/internal/llmservice"
	"document-qa/internal/models"
	"document-qa/internal/parser"
	"document-qa/internal/rag"
)

// app holds the components shared by every session
type app struct {
	cfg      *config.Config
	parser   *parser.Parser
	builder  models.IndexBuilder
	gateway  llmservice.Gateway
	analyzer *analysis.Analyzer
	closers  []func() error
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	embedder, err := embedding.NewEmbedder(cfg.Embedding, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	gateway, err := llmservice.New(cfg.LLM, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm gateway: %w", err)
	}

	a := &app{
		cfg:     cfg,
		parser:  parser.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap),
		gateway: gateway,
		analyzer: analysis.New(gateway, analysis.Options{
			FetchLimit:          cfg.Analysis.FetchLimit,
			ClassificationLimit: cfg.Analysis.ClassificationLimit,
			SummaryLimit:        cfg.Analysis.SummaryLimit,
			ComparisonLimit:     cfg.Analysis.ComparisonLimit,
			Topics:              cfg.Analysis.Topics,
		}),
	}

	switch cfg.Index.Backend {
	case config.BackendPostgres:
		store, err := db.Open(ctx, cfg.Database, embedder)
		if err != nil {
			return nil, err
		}
		a.builder = store
		a.closers = append(a.closers, store.Close)
	default:
		a.builder = chromemdb.NewBuilder(embedder)
	}

	log.Info().Str("index", cfg.Index.Backend).Str("llm", cfg.LLM.Provider).
		Str("embeddings", cfg.Embedding.Provider).Msg("Components ready")
	return a, nil
}

func (a *app) newSession() *rag.Session {
	return rag.NewSession(a.parser, a.builder, a.gateway, rag.Options{TopK: a.cfg.RAG.TopK})
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			log.Warn().Err(err).Msg("Failed to close component")
		}
	}
}

// ingestArgs loads config, validates the batch and indexes it in a new session
func ingestArgs(ctx context.Context, paths []string) (*app, *rag.Session, *rag.IngestResult, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := rag.CheckBatch(paths); err != nil {
		return nil, nil, nil, err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	sess := a.newSession()
	res, err := sess.Ingest(ctx, paths)
	if err != nil {
		a.Close()
		return nil, nil, nil, fmt.Errorf(models.ProcessingErrorMessage, err)
	}
	log.Info().Int("documents", len(res.Documents)).Int("chunks", res.Chunks).Msg(res.Message)
	log.Debug().Interface("result", res).Msg("Ingested batch")
	return a, sess, res, nil
}
