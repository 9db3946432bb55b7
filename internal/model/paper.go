// Package model defines the paper types that flow through the digest pipeline.
package model

import (
	"time"

	"github.com/scholarstream/arxiv-digest/internal/latex"
	"github.com/scholarstream/arxiv-digest/internal/memo"
)

// Bilingual holds the two target-language renditions of a generated text.
type Bilingual struct {
	EN string `json:"en"`
	ZH string `json:"zh"`
}

// IsZero reports whether neither language has content.
func (b Bilingual) IsZero() bool {
	return b.EN == "" && b.ZH == ""
}

// CorpusPaper is an item from the user's reference library. It anchors the
// relevance scoring; newer items carry more weight. Immutable once fetched.
type CorpusPaper struct {
	Key       string
	Title     string
	Abstract  string
	Embedding []float64
	AddedAt   time.Time
}

// EmbeddingText returns the text the corpus embedding is computed from.
func (p CorpusPaper) EmbeddingText() string {
	return p.Title + "\n" + p.Abstract
}

// Candidate is a newly announced paper under consideration for the digest.
// ID is always the version-stripped canonical arXiv identifier. Score is
// assigned exactly once by the ranker. The enrichment fields are lazy and
// memoized: each is computed at most once per Candidate instance, and
// concurrent first access is safe.
type Candidate struct {
	ID        string
	Title     string
	Abstract  string
	Authors   []string
	Published time.Time
	Embedding []float64
	Score     float64

	source       memo.Cell[latex.Bundle]
	tldr         memo.Cell[Bilingual]
	detail       memo.Cell[string]
	affiliations memo.Cell[[]string]
	codeURL      memo.Cell[string]
}

// EmbeddingText returns the text the candidate embedding is computed from.
func (c *Candidate) EmbeddingText() string {
	return c.Title + "\n" + c.Abstract
}

// PDFURL returns the arXiv PDF link for the candidate.
func (c *Candidate) PDFURL() string {
	return "https://arxiv.org/pdf/" + c.ID
}

// CachedSource returns the paper's source bundle, resolving it via fetch on
// first access only.
func (c *Candidate) CachedSource(fetch func() latex.Bundle) latex.Bundle {
	return c.source.Get(fetch)
}

// CachedTLDR returns the bilingual one-sentence summary, generating it via
// gen on first access only.
func (c *Candidate) CachedTLDR(gen func() Bilingual) Bilingual {
	return c.tldr.Get(gen)
}

// CachedDetail returns the collapsible per-paper analysis, generating it via
// gen on first access only.
func (c *Candidate) CachedDetail(gen func() string) string {
	return c.detail.Get(gen)
}

// CachedAffiliations returns the top-level author affiliations, extracting
// them via gen on first access only. The result may be empty.
func (c *Candidate) CachedAffiliations(gen func() []string) []string {
	return c.affiliations.Get(gen)
}

// CachedCodeURL returns the external code repository link, if any, looking it
// up via fetch on first access only.
func (c *Candidate) CachedCodeURL(fetch func() string) string {
	return c.codeURL.Get(fetch)
}

// Enrichment is the persistable snapshot of a candidate's derived fields.
// Fields it does not carry were never successfully generated.
type Enrichment struct {
	TLDR         Bilingual `json:"tldr"`
	Detail       string    `json:"detailed_analysis,omitempty"`
	Affiliations []string  `json:"affiliations,omitempty"`
	CodeURL      string    `json:"code_url,omitempty"`
}

// IsZero reports whether the snapshot carries no field at all.
func (e Enrichment) IsZero() bool {
	return e.TLDR.IsZero() && e.Detail == "" && len(e.Affiliations) == 0 && e.CodeURL == ""
}

// SeedEnrichment pre-populates the memoized fields from a cached snapshot.
// Absent fields are left unseeded so a later run can still generate them.
func (c *Candidate) SeedEnrichment(e Enrichment) {
	if !e.TLDR.IsZero() {
		c.tldr.Set(e.TLDR)
	}
	if e.Detail != "" {
		c.detail.Set(e.Detail)
	}
	if len(e.Affiliations) > 0 {
		c.affiliations.Set(e.Affiliations)
	}
	if e.CodeURL != "" {
		c.codeURL.Set(e.CodeURL)
	}
}

// EnrichmentSnapshot captures the derived fields that were computed and came
// back non-empty. A field whose generation failed stays absent from the
// snapshot so that persisting it does not pin the failure.
func (c *Candidate) EnrichmentSnapshot() Enrichment {
	var e Enrichment
	if c.tldr.Done() {
		e.TLDR = c.tldr.Get(nil)
	}
	if c.detail.Done() {
		e.Detail = c.detail.Get(nil)
	}
	if c.affiliations.Done() {
		e.Affiliations = c.affiliations.Get(nil)
	}
	if c.codeURL.Done() {
		e.CodeURL = c.codeURL.Get(nil)
	}
	return e
}
