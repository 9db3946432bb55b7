package pipeline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scholarstream/arxiv-digest/internal/config"
	"github.com/scholarstream/arxiv-digest/internal/enrich"
	"github.com/scholarstream/arxiv-digest/internal/model"
	"github.com/scholarstream/arxiv-digest/internal/resilience"
	"github.com/scholarstream/arxiv-digest/internal/store"
	"github.com/scholarstream/arxiv-digest/pkg/arxiv"
	"github.com/scholarstream/arxiv-digest/pkg/llm"
	"github.com/scholarstream/arxiv-digest/pkg/zotero"
)

type fakeCorpus struct {
	items []zotero.Item
	err   error
}

func (f *fakeCorpus) Items(ctx context.Context) ([]zotero.Item, error) {
	return f.items, f.err
}

type fakePapers struct {
	papers []arxiv.Paper
	err    error
}

func (f *fakePapers) ListNew(ctx context.Context, categories []string, limit int) ([]arxiv.Paper, error) {
	return f.papers, f.err
}

func (f *fakePapers) Source(ctx context.Context, id string) (map[string]string, error) {
	return nil, nil
}

// axisEmbedder assigns axis-aligned vectors by topic keyword.
type axisEmbedder struct{}

func (axisEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i, text := range texts {
		switch {
		case strings.Contains(text, "transformer"):
			out[i] = []float64{1, 0}
		default:
			out[i] = []float64{0, 1}
		}
	}
	return out, nil
}

type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockLLM) Name() string { return "mock" }

type wordTokenizer struct{}

func (wordTokenizer) Count(text string) int { return len(strings.Fields(text)) }

func (wordTokenizer) Truncate(text string, maxTokens int) string {
	fields := strings.Fields(text)
	if len(fields) <= maxTokens {
		return text
	}
	return strings.Join(fields[:maxTokens], " ")
}

func testPipeline(t *testing.T, corpus CorpusSource, papers *fakePapers, runs RunStore) *Pipeline {
	t.Helper()
	client := new(mockLLM)
	client.On("Complete", mock.Anything, mock.Anything).
		Return("EN: Summary.\nZH: 总结。", nil)

	gen := enrich.NewGenerator(client, wordTokenizer{}, resilience.Config{Attempts: 1, Delay: time.Millisecond})
	preloader := enrich.NewPreloader(gen, papers, nil, nil, 2)
	cfg := &config.Config{}
	cfg.Arxiv.MaxEntries = 100
	cfg.Digest.MaxPapers = 2
	cfg.Rank.Decay = 0.2
	cfg.Rank.Scale = 10

	return New(cfg, corpus, papers, axisEmbedder{}, gen, preloader, runs)
}

func TestRun_RanksAndRenders(t *testing.T) {
	corpus := &fakeCorpus{items: []zotero.Item{
		{Key: "K1", Title: "transformer survey", AbstractNote: "transformer", DateAdded: time.Now().AddDate(0, 0, -1)},
	}}
	papers := &fakePapers{papers: []arxiv.Paper{
		{ID: "2401.00001", Title: "graph methods", Abstract: "graphs"},
		{ID: "2401.00002", Title: "a transformer paper", Abstract: "transformer things"},
	}}

	p := testPipeline(t, corpus, papers, nil)
	result, err := p.Run(context.Background(), []config.Category{{Name: "cs.LG"}})
	require.NoError(t, err)

	require.Len(t, result.Papers, 2)
	assert.Equal(t, "2401.00002", result.Papers[0].ID, "the corpus-aligned paper ranks first")
	assert.InDelta(t, 10.0, result.Papers[0].Score, 1e-9)
	assert.Contains(t, result.HTML, "a transformer paper")
	assert.Contains(t, result.HTML, "Summary.")
}

func TestRun_CutsToMaxPapers(t *testing.T) {
	corpus := &fakeCorpus{items: []zotero.Item{
		{Key: "K1", Title: "transformer", AbstractNote: "transformer", DateAdded: time.Now()},
	}}
	papers := &fakePapers{papers: []arxiv.Paper{
		{ID: "2401.00001", Title: "one", Abstract: "x"},
		{ID: "2401.00002", Title: "two", Abstract: "y"},
		{ID: "2401.00003", Title: "three", Abstract: "z"},
	}}

	p := testPipeline(t, corpus, papers, nil)
	result, err := p.Run(context.Background(), []config.Category{{Name: "cs.LG"}})
	require.NoError(t, err)
	assert.Len(t, result.Papers, 2)
}

func TestRun_NoCandidatesRendersRestDay(t *testing.T) {
	corpus := &fakeCorpus{items: []zotero.Item{{Key: "K1", Title: "t", AbstractNote: "a"}}}
	papers := &fakePapers{}

	p := testPipeline(t, corpus, papers, nil)
	result, err := p.Run(context.Background(), []config.Category{{Name: "cs.LG"}})
	require.NoError(t, err)

	assert.Empty(t, result.Papers)
	assert.Contains(t, result.HTML, "No Papers Today")
}

func TestRun_EmptyCorpusStillProduces(t *testing.T) {
	corpus := &fakeCorpus{}
	papers := &fakePapers{papers: []arxiv.Paper{
		{ID: "2401.00001", Title: "one", Abstract: "x"},
	}}

	p := testPipeline(t, corpus, papers, nil)
	result, err := p.Run(context.Background(), []config.Category{{Name: "cs.LG"}})
	require.NoError(t, err)

	require.Len(t, result.Papers, 1)
	assert.Zero(t, result.Papers[0].Score)
}

func TestRun_CorpusFetchErrorAborts(t *testing.T) {
	corpus := &fakeCorpus{err: assert.AnError}
	papers := &fakePapers{papers: []arxiv.Paper{{ID: "2401.00001", Title: "one", Abstract: "x"}}}

	p := testPipeline(t, corpus, papers, nil)
	_, err := p.Run(context.Background(), []config.Category{{Name: "cs.LG"}})
	assert.ErrorContains(t, err, "fetch corpus")
}

func TestRun_PersistsRun(t *testing.T) {
	s, err := store.NewSQLite(t.TempDir()+"/digest.db", 0)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))

	corpus := &fakeCorpus{items: []zotero.Item{
		{Key: "K1", Title: "transformer", AbstractNote: "transformer", DateAdded: time.Now()},
	}}
	papers := &fakePapers{papers: []arxiv.Paper{
		{ID: "2401.00001", Title: "a transformer paper", Abstract: "transformer"},
	}}

	p := testPipeline(t, corpus, papers, s)
	result, err := p.Run(context.Background(), []config.Category{{Name: "cs.LG"}})
	require.NoError(t, err)

	latest, err := s.LatestRun(context.Background())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 1, latest.PaperCount)
	assert.Equal(t, result.HTML, latest.HTML)
}

func TestEmbed_AssignsVectorsInOrder(t *testing.T) {
	cfg := &config.Config{}
	p := New(cfg, nil, nil, axisEmbedder{}, nil, nil, nil)

	corpus := []model.CorpusPaper{{Key: "K1", Title: "transformer", Abstract: ""}}
	candidates := []*model.Candidate{{ID: "1", Title: "other", Abstract: ""}}

	require.NoError(t, p.embed(context.Background(), corpus, candidates))
	assert.Equal(t, []float64{1, 0}, corpus[0].Embedding)
	assert.Equal(t, []float64{0, 1}, candidates[0].Embedding)
}
