package enrich

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/scholarstream/arxiv-digest/internal/latex"
	"github.com/scholarstream/arxiv-digest/internal/model"
)

// SourceFetcher resolves a paper's e-print files. A nil map means the
// paper has no fetchable source.
type SourceFetcher interface {
	Source(ctx context.Context, id string) (map[string]string, error)
}

// CodeResolver finds the repository link for a paper, "" if none.
type CodeResolver interface {
	RepositoryURL(ctx context.Context, arxivID string) (string, error)
}

// Cache persists enrichment snapshots across runs. A nil snapshot
// means no entry.
type Cache interface {
	GetEnrichment(ctx context.Context, paperID string) (*model.Enrichment, error)
	PutEnrichment(ctx context.Context, paperID string, e model.Enrichment) error
}

// Preloader fills every candidate's enrichment fields up front so that
// rendering never performs network or model work.
type Preloader struct {
	gen     *Generator
	sources SourceFetcher
	code    CodeResolver
	cache   Cache
	workers int
}

// NewPreloader builds a Preloader. cache and code may be nil to
// disable those steps. workers <= 0 selects the default of 5.
func NewPreloader(gen *Generator, sources SourceFetcher, code CodeResolver, cache Cache, workers int) *Preloader {
	if workers <= 0 {
		workers = 5
	}
	return &Preloader{gen: gen, sources: sources, code: code, cache: cache, workers: workers}
}

// Preload enriches all candidates with a bounded worker pool and
// blocks until every one has been processed. A failure or panic while
// enriching one candidate leaves that candidate's fields absent and
// does not disturb the others.
func (p *Preloader) Preload(ctx context.Context, candidates []*model.Candidate) {
	g := &errgroup.Group{}
	g.SetLimit(p.workers)

	for _, cand := range candidates {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					zap.L().Error("enrich: preload worker panicked",
						zap.String("paper", cand.ID),
						zap.Any("panic", r))
				}
			}()
			p.enrichOne(ctx, cand)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Preloader) enrichOne(ctx context.Context, cand *model.Candidate) {
	log := zap.L().With(zap.String("paper", cand.ID))

	if p.cache != nil {
		snap, err := p.cache.GetEnrichment(ctx, cand.ID)
		if err != nil {
			log.Warn("enrich: cache read failed", zap.Error(err))
		} else if snap != nil {
			cand.SeedEnrichment(*snap)
			log.Debug("enrich: fields seeded from cache")
		}
	}

	// Resolved at most once, and only if a field below needs it.
	// Cache-seeded fields never trigger the download.
	bundleOf := func() latex.Bundle {
		return cand.CachedSource(func() latex.Bundle {
			files, err := p.sources.Source(ctx, cand.ID)
			if err != nil {
				log.Warn("enrich: source fetch failed", zap.Error(err))
				return latex.Bundle{}
			}
			if files == nil {
				log.Debug("enrich: no e-print source available")
				return latex.Bundle{}
			}
			return latex.BuildBundle(files)
		})
	}

	cand.CachedTLDR(func() model.Bilingual {
		var intro, conclusion string
		if bundle := bundleOf(); bundle.Combined != "" {
			cleaned := latex.Clean(bundle.Combined)
			intro = latex.Section(cleaned, "introduction")
			conclusion = latex.Section(cleaned, "conclusion")
		}
		tldr, err := p.gen.TLDR(ctx, cand.Title, cand.Abstract, intro, conclusion)
		if err != nil {
			log.Warn("enrich: tldr generation failed", zap.Error(err))
			return model.Bilingual{}
		}
		return tldr
	})

	cand.CachedDetail(func() string {
		var intro, conclusion string
		if bundle := bundleOf(); bundle.Combined != "" {
			cleaned := latex.Clean(bundle.Combined)
			intro = latex.Section(cleaned, "introduction")
			conclusion = latex.Section(cleaned, "conclusion")
		}
		detail, err := p.gen.DetailedAnalysis(ctx, cand.Title, cand.Abstract, intro, conclusion)
		if err != nil {
			log.Warn("enrich: detailed analysis failed", zap.Error(err))
			return ""
		}
		return detail
	})

	cand.CachedAffiliations(func() []string {
		authorText := latex.AuthorBlock(bundleOf().Combined)
		affs, err := p.gen.Affiliations(ctx, authorText)
		if err != nil {
			log.Warn("enrich: affiliation extraction failed", zap.Error(err))
			return nil
		}
		return affs
	})

	cand.CachedCodeURL(func() string {
		if p.code == nil {
			return ""
		}
		link, err := p.code.RepositoryURL(ctx, cand.ID)
		if err != nil {
			log.Warn("enrich: code link lookup failed", zap.Error(err))
			return ""
		}
		return link
	})

	// A fully failed candidate leaves nothing worth pinning; the next
	// run retries from scratch.
	if snap := cand.EnrichmentSnapshot(); p.cache != nil && !snap.IsZero() {
		if err := p.cache.PutEnrichment(ctx, cand.ID, snap); err != nil {
			log.Warn("enrich: cache write failed", zap.Error(err))
		}
	}
}
