// Package ranker scores candidate papers against a reading corpus by
// embedding similarity with recency-weighted corpus papers.
package ranker

import (
	"math"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scholarstream/arxiv-digest/internal/model"
)

// Config controls recency decay and the output score range.
type Config struct {
	// DecayLambda is the per-day exponential decay rate applied to
	// corpus paper weights. Zero disables recency weighting.
	DecayLambda float64

	// Scale multiplies the weighted similarity. The default of 10
	// puts scores on a 0..10 band for cosine-normalized embeddings.
	Scale float64
}

// DefaultConfig returns the standard decay and scale settings.
func DefaultConfig() Config {
	return Config{DecayLambda: 0.2, Scale: 10}
}

func (c Config) withDefaults() Config {
	if c.Scale == 0 {
		c.Scale = 10
	}
	return c
}

// Rank assigns a relevance score to every candidate and reorders them
// best first. Candidates with equal scores keep their fetch order. An
// empty corpus leaves every score at zero and the order untouched.
// Embedding dimension mismatches are programming or provider errors
// and abort the run.
func Rank(candidates []*model.Candidate, corpus []model.CorpusPaper, cfg Config, now time.Time) error {
	cfg = cfg.withDefaults()

	if len(corpus) == 0 {
		for _, c := range candidates {
			c.Score = 0
		}
		zap.L().Warn("ranker: empty corpus, all candidates scored zero")
		return nil
	}

	weights, err := corpusWeights(corpus, cfg.DecayLambda, now)
	if err != nil {
		return err
	}

	for _, cand := range candidates {
		if len(cand.Embedding) == 0 {
			return eris.Errorf("ranker: candidate %s has no embedding", cand.ID)
		}
		var score float64
		for i, cp := range corpus {
			sim, err := cosine(cand.Embedding, cp.Embedding)
			if err != nil {
				return eris.Wrapf(err, "ranker: candidate %s vs corpus %s", cand.ID, cp.Key)
			}
			score += sim * weights[i]
		}
		// Opposed embeddings would go negative; scores stay in [0, scale].
		cand.Score = math.Max(0, score*cfg.Scale)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return nil
}

// maxAgeDays caps the age used for decay. Items with no AddedAt
// timestamp are treated as this old.
const maxAgeDays = 3650

// corpusWeights computes exp(-lambda * ageDays) per corpus paper,
// normalized to sum to one.
func corpusWeights(corpus []model.CorpusPaper, lambda float64, now time.Time) ([]float64, error) {
	weights := make([]float64, len(corpus))
	var sum float64
	for i, cp := range corpus {
		if len(cp.Embedding) == 0 {
			return nil, eris.Errorf("ranker: corpus paper %s has no embedding", cp.Key)
		}
		age := float64(maxAgeDays)
		if !cp.AddedAt.IsZero() {
			age = math.Min(maxAgeDays, math.Max(0, now.Sub(cp.AddedAt).Hours()/24))
		}
		weights[i] = math.Exp(-lambda * age)
		sum += weights[i]
	}
	if sum == 0 {
		// All weights decayed to zero; fall back to uniform.
		for i := range weights {
			weights[i] = 1 / float64(len(weights))
		}
		return weights, nil
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights, nil
}

// cosine returns the cosine similarity of two equal-length vectors.
// A zero-norm vector contributes zero similarity.
func cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, eris.Errorf("embedding dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
