package ranker

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarstream/arxiv-digest/internal/model"
)

var testNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func cand(id string, emb ...float64) *model.Candidate {
	return &model.Candidate{ID: id, Embedding: emb}
}

func corpusPaper(key string, daysOld int, emb ...float64) model.CorpusPaper {
	return model.CorpusPaper{
		Key:       key,
		Embedding: emb,
		AddedAt:   testNow.AddDate(0, 0, -daysOld),
	}
}

func TestRank_OrdersByWeightedSimilarity(t *testing.T) {
	candidates := []*model.Candidate{
		cand("far", 0, 1),
		cand("near", 1, 0),
	}
	corpus := []model.CorpusPaper{
		corpusPaper("K1", 0, 1, 0),
	}

	err := Rank(candidates, corpus, DefaultConfig(), testNow)
	require.NoError(t, err)

	assert.Equal(t, "near", candidates[0].ID)
	assert.InDelta(t, 10.0, candidates[0].Score, 1e-9)
	assert.InDelta(t, 0.0, candidates[1].Score, 1e-9)
}

func TestRank_OpposedEmbeddingScoresZeroNotNegative(t *testing.T) {
	candidates := []*model.Candidate{
		cand("opposed", -1, 0),
	}
	corpus := []model.CorpusPaper{
		corpusPaper("K1", 0, 1, 0),
	}

	err := Rank(candidates, corpus, DefaultConfig(), testNow)
	require.NoError(t, err)

	assert.Zero(t, candidates[0].Score)
}

func TestRank_EmptyCorpusScoresZeroKeepsOrder(t *testing.T) {
	candidates := []*model.Candidate{
		cand("first", 1, 0),
		cand("second", 0, 1),
		cand("third", 1, 1),
	}
	candidates[0].Score = 7 // stale score from a previous pass

	err := Rank(candidates, nil, DefaultConfig(), testNow)
	require.NoError(t, err)

	assert.Equal(t, "first", candidates[0].ID)
	assert.Equal(t, "second", candidates[1].ID)
	assert.Equal(t, "third", candidates[2].ID)
	for _, c := range candidates {
		assert.Zero(t, c.Score)
	}
}

func TestRank_RecencyWeighting(t *testing.T) {
	// Both corpus papers are unit vectors on different axes. A recent
	// paper on axis X must pull an X-aligned candidate above a
	// Y-aligned one even though each matches exactly one corpus paper.
	corpus := []model.CorpusPaper{
		corpusPaper("recent-x", 1, 1, 0),
		corpusPaper("old-y", 300, 0, 1),
	}
	candidates := []*model.Candidate{
		cand("y-aligned", 0, 1),
		cand("x-aligned", 1, 0),
	}

	err := Rank(candidates, corpus, DefaultConfig(), testNow)
	require.NoError(t, err)

	assert.Equal(t, "x-aligned", candidates[0].ID)
	assert.Greater(t, candidates[0].Score, candidates[1].Score)
}

func TestRank_WeightsNormalized(t *testing.T) {
	// A candidate identical to every corpus paper scores exactly the
	// scale regardless of corpus size or ages.
	corpus := []model.CorpusPaper{
		corpusPaper("a", 2, 1, 0),
		corpusPaper("b", 90, 1, 0),
		corpusPaper("c", 800, 1, 0),
	}
	candidates := []*model.Candidate{cand("match", 2, 0)}

	err := Rank(candidates, corpus, DefaultConfig(), testNow)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, candidates[0].Score, 1e-9)
}

func TestRank_StableForEqualScores(t *testing.T) {
	corpus := []model.CorpusPaper{corpusPaper("k", 0, 1, 0)}
	candidates := []*model.Candidate{
		cand("alpha", 0, 1),
		cand("beta", 0, 1),
		cand("gamma", 0, 1),
	}

	err := Rank(candidates, corpus, Config{Scale: 10}, testNow)
	require.NoError(t, err)

	assert.Equal(t, "alpha", candidates[0].ID)
	assert.Equal(t, "beta", candidates[1].ID)
	assert.Equal(t, "gamma", candidates[2].ID)
}

func TestRank_DimensionMismatchFatal(t *testing.T) {
	corpus := []model.CorpusPaper{corpusPaper("k", 0, 1, 0, 0)}
	candidates := []*model.Candidate{cand("short", 1, 0)}

	err := Rank(candidates, corpus, DefaultConfig(), testNow)
	assert.ErrorContains(t, err, "dimension mismatch")
}

func TestRank_MissingEmbeddingsFatal(t *testing.T) {
	corpus := []model.CorpusPaper{corpusPaper("k", 0, 1, 0)}

	err := Rank([]*model.Candidate{{ID: "bare"}}, corpus, DefaultConfig(), testNow)
	assert.ErrorContains(t, err, "no embedding")

	err = Rank([]*model.Candidate{cand("ok", 1, 0)},
		[]model.CorpusPaper{{Key: "empty"}}, DefaultConfig(), testNow)
	assert.ErrorContains(t, err, "no embedding")
}

func TestCorpusWeights_DecaySumsToOne(t *testing.T) {
	corpus := []model.CorpusPaper{
		corpusPaper("new", 0, 1),
		corpusPaper("mid", 10, 1),
		corpusPaper("old", 100, 1),
	}
	weights, err := corpusWeights(corpus, 0.2, testNow)
	require.NoError(t, err)

	var sum float64
	for _, w := range weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, weights[0], weights[1])
	assert.Greater(t, weights[1], weights[2])
}

func TestCorpusWeights_ZeroLambdaIsUniform(t *testing.T) {
	corpus := []model.CorpusPaper{
		corpusPaper("new", 0, 1),
		corpusPaper("old", 900, 1),
	}
	weights, err := corpusWeights(corpus, 0, testNow)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, weights[0], 1e-9)
	assert.InDelta(t, 0.5, weights[1], 1e-9)
}

func TestCosine(t *testing.T) {
	sim, err := cosine([]float64{1, 0}, []float64{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)

	sim, err = cosine([]float64{1, 0}, []float64{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)

	sim, err = cosine([]float64{1, 1}, []float64{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1/math.Sqrt2, sim, 1e-9)

	sim, err = cosine([]float64{0, 0}, []float64{1, 0})
	require.NoError(t, err)
	assert.Zero(t, sim)

	_, err = cosine([]float64{1}, []float64{1, 0})
	assert.Error(t, err)
}
