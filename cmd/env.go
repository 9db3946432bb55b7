package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scholarstream/arxiv-digest/internal/config"
	"github.com/scholarstream/arxiv-digest/internal/enrich"
	"github.com/scholarstream/arxiv-digest/internal/pipeline"
	"github.com/scholarstream/arxiv-digest/internal/resilience"
	"github.com/scholarstream/arxiv-digest/internal/store"
	"github.com/scholarstream/arxiv-digest/pkg/arxiv"
	"github.com/scholarstream/arxiv-digest/pkg/llm"
	"github.com/scholarstream/arxiv-digest/pkg/paperswithcode"
	"github.com/scholarstream/arxiv-digest/pkg/zotero"
)

// env bundles the constructed pipeline with the resources the commands
// share.
type env struct {
	Store      *store.SQLiteStore
	Pipeline   *pipeline.Pipeline
	Categories []config.Category
}

func (e *env) Close() {
	if e.Store != nil {
		e.Store.Close()
	}
}

// initPipeline builds every client from config and wires the digest
// pipeline.
func initPipeline(ctx context.Context) (*env, error) {
	categories, err := config.LoadCategories(cfg.Arxiv.CategoriesFile)
	if err != nil {
		return nil, err
	}

	st, err := store.NewSQLite(cfg.Store.Path, time.Duration(cfg.Store.CacheTTLHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	completions, embedder, err := buildLLM()
	if err != nil {
		st.Close()
		return nil, err
	}

	tok, err := enrich.NewTiktoken()
	if err != nil {
		st.Close()
		return nil, err
	}

	retry := resilience.Config{
		Attempts: cfg.LLM.RetryAttempts,
		Delay:    time.Duration(cfg.LLM.RetryDelaySecs) * time.Second,
	}
	gen := enrich.NewGenerator(completions, tok, retry)

	arxivClient := arxiv.NewClient()
	preloader := enrich.NewPreloader(gen, arxivClient, paperswithcode.NewClient(), st, cfg.Preload.Workers)

	zoteroClient := zotero.NewClient(cfg.Zotero.UserID, cfg.Zotero.APIKey)

	p := pipeline.New(cfg, zoteroClient, arxivClient, embedder, gen, preloader, st)
	zap.L().Info("pipeline initialized",
		zap.String("backend", completions.Name()),
		zap.Int("categories", len(categories)),
	)

	return &env{Store: st, Pipeline: p, Categories: categories}, nil
}

// buildLLM selects the completion backend and always routes embeddings
// through the OpenAI-compatible endpoint.
func buildLLM() (llm.Client, llm.Embedder, error) {
	var openAIOpts []llm.OpenAIOption
	if cfg.LLM.BaseURL != "" {
		openAIOpts = append(openAIOpts, llm.WithBaseURL(cfg.LLM.BaseURL))
	}
	if cfg.LLM.EmbedModel != "" {
		openAIOpts = append(openAIOpts, llm.WithEmbedModel(cfg.LLM.EmbedModel))
	}
	openAIClient := llm.NewOpenAI(cfg.LLM.APIKey, cfg.LLM.Model, openAIOpts...)

	switch cfg.LLM.Backend {
	case "anthropic":
		return llm.NewAnthropic(cfg.LLM.APIKey, cfg.LLM.Model), openAIClient, nil
	case "openai":
		return openAIClient, openAIClient, nil
	default:
		return nil, nil, eris.Errorf("unknown llm backend %q", cfg.LLM.Backend)
	}
}
