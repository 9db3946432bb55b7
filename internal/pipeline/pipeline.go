// Package pipeline orchestrates a full digest run: corpus and
// candidate fetch, embedding, ranking, enrichment, and rendering.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scholarstream/arxiv-digest/internal/config"
	"github.com/scholarstream/arxiv-digest/internal/digest"
	"github.com/scholarstream/arxiv-digest/internal/enrich"
	"github.com/scholarstream/arxiv-digest/internal/model"
	"github.com/scholarstream/arxiv-digest/internal/ranker"
	"github.com/scholarstream/arxiv-digest/internal/store"
	"github.com/scholarstream/arxiv-digest/pkg/arxiv"
	"github.com/scholarstream/arxiv-digest/pkg/llm"
	"github.com/scholarstream/arxiv-digest/pkg/zotero"
)

// CorpusSource lists the user's reference library.
type CorpusSource interface {
	Items(ctx context.Context) ([]zotero.Item, error)
}

// CandidateSource lists newly announced papers.
type CandidateSource interface {
	ListNew(ctx context.Context, categories []string, limit int) ([]arxiv.Paper, error)
}

// RunStore persists completed runs. Optional.
type RunStore interface {
	CreateRun(ctx context.Context, runDate string, paperCount int, summary model.Bilingual, html string) (*store.Run, error)
}

// Result is the outcome of one digest run.
type Result struct {
	Date    time.Time
	Papers  []*model.Candidate
	Summary model.Bilingual
	HTML    string
}

// Pipeline wires the digest phases together.
type Pipeline struct {
	cfg       *config.Config
	corpus    CorpusSource
	papers    CandidateSource
	embedder  llm.Embedder
	gen       *enrich.Generator
	preloader *enrich.Preloader
	runs      RunStore
}

// New creates a Pipeline with all dependencies. runs may be nil to
// skip persistence.
func New(
	cfg *config.Config,
	corpus CorpusSource,
	papers CandidateSource,
	embedder llm.Embedder,
	gen *enrich.Generator,
	preloader *enrich.Preloader,
	runs RunStore,
) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		corpus:    corpus,
		papers:    papers,
		embedder:  embedder,
		gen:       gen,
		preloader: preloader,
		runs:      runs,
	}
}

// Rank fetches the corpus and candidates, embeds them, scores the
// candidates, and returns the top slice in rank order. No enrichment
// happens here.
func (p *Pipeline) Rank(ctx context.Context, categories []config.Category) ([]*model.Candidate, error) {
	corpus, candidates, err := p.fetch(ctx, categories)
	if err != nil {
		return nil, err
	}
	zap.L().Info("pipeline: fetch complete",
		zap.Int("corpus", len(corpus)),
		zap.Int("candidates", len(candidates)),
	)

	if len(candidates) == 0 {
		return nil, nil
	}

	if err := p.embed(ctx, corpus, candidates); err != nil {
		return nil, err
	}

	rankCfg := ranker.Config{DecayLambda: p.cfg.Rank.Decay, Scale: p.cfg.Rank.Scale}
	if err := ranker.Rank(candidates, corpus, rankCfg, time.Now()); err != nil {
		return nil, err
	}

	if max := p.cfg.Digest.MaxPapers; max > 0 && len(candidates) > max {
		candidates = candidates[:max]
	}
	zap.L().Info("pipeline: ranking complete", zap.Int("selected", len(candidates)))
	return candidates, nil
}

// Run executes the full digest pipeline for today.
func (p *Pipeline) Run(ctx context.Context, categories []config.Category) (*Result, error) {
	log := zap.L()
	start := time.Now()
	log.Info("pipeline: starting digest run")

	candidates, err := p.Rank(ctx, categories)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return p.finish(ctx, start, nil, model.Bilingual{})
	}

	p.preloader.Preload(ctx, candidates)

	summary, err := p.gen.DailySummary(ctx, candidates)
	if err != nil {
		log.Warn("pipeline: daily summary failed, digest proceeds without it", zap.Error(err))
		summary = model.Bilingual{}
	}

	return p.finish(ctx, start, candidates, summary)
}

// fetch pulls the corpus and the candidate list in parallel.
func (p *Pipeline) fetch(ctx context.Context, categories []config.Category) ([]model.CorpusPaper, []*model.Candidate, error) {
	var corpus []model.CorpusPaper
	var candidates []*model.Candidate

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		items, err := p.corpus.Items(gCtx)
		if err != nil {
			return eris.Wrap(err, "pipeline: fetch corpus")
		}
		for _, it := range items {
			corpus = append(corpus, model.CorpusPaper{
				Key:      it.Key,
				Title:    it.Title,
				Abstract: it.AbstractNote,
				AddedAt:  it.DateAdded,
			})
		}
		return nil
	})

	g.Go(func() error {
		names := make([]string, len(categories))
		limit := 0
		for i, c := range categories {
			names[i] = c.Name
			if c.MaxResults > limit {
				limit = c.MaxResults
			}
		}
		if limit == 0 || limit > p.cfg.Arxiv.MaxEntries {
			limit = p.cfg.Arxiv.MaxEntries
		}
		papers, err := p.papers.ListNew(gCtx, names, limit)
		if err != nil {
			return eris.Wrap(err, "pipeline: fetch candidates")
		}
		for _, paper := range papers {
			candidates = append(candidates, &model.Candidate{
				ID:        paper.ID,
				Title:     paper.Title,
				Abstract:  paper.Abstract,
				Authors:   paper.Authors,
				Published: paper.Published,
			})
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return corpus, candidates, nil
}

// embed computes corpus and candidate embeddings in a single batched
// call.
func (p *Pipeline) embed(ctx context.Context, corpus []model.CorpusPaper, candidates []*model.Candidate) error {
	texts := make([]string, 0, len(corpus)+len(candidates))
	for _, cp := range corpus {
		texts = append(texts, cp.EmbeddingText())
	}
	for _, c := range candidates {
		texts = append(texts, c.EmbeddingText())
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return eris.Wrap(err, "pipeline: embed papers")
	}
	if len(vectors) != len(texts) {
		return eris.Errorf("pipeline: embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}

	for i := range corpus {
		corpus[i].Embedding = vectors[i]
	}
	for i, c := range candidates {
		c.Embedding = vectors[len(corpus)+i]
	}
	return nil
}

func (p *Pipeline) finish(ctx context.Context, start time.Time, papers []*model.Candidate, summary model.Bilingual) (*Result, error) {
	html, err := digest.Render(papers, summary)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Date:    start,
		Papers:  papers,
		Summary: summary,
		HTML:    html,
	}

	if p.runs != nil {
		runDate := start.Format("2006/01/02")
		if _, err := p.runs.CreateRun(ctx, runDate, len(papers), summary, html); err != nil {
			zap.L().Warn("pipeline: persisting run failed", zap.Error(err))
		}
	}

	zap.L().Info("pipeline: digest run complete",
		zap.Int("papers", len(papers)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}
