package digest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarstream/arxiv-digest/internal/model"
)

func enrichedCandidate(id, title string, score float64, authors []string, e model.Enrichment) *model.Candidate {
	c := &model.Candidate{
		ID:      id,
		Title:   title,
		Authors: authors,
		Score:   score,
	}
	c.SeedEnrichment(e)
	return c
}

func TestRender_EmptyListShowsRestDay(t *testing.T) {
	html, err := Render(nil, model.Bilingual{})
	require.NoError(t, err)

	assert.Contains(t, html, "No Papers Today. Take a Rest!")
	assert.NotContains(t, html, "Today's Digest")
}

func TestRender_PaperBlock(t *testing.T) {
	p := enrichedCandidate("2401.01234", "Attention Revisited", 9.1,
		[]string{"Ada Lovelace", "Alan Turing"},
		model.Enrichment{
			TLDR:         model.Bilingual{EN: "One sentence.", ZH: "一句话。"},
			Affiliations: []string{"MIT"},
			CodeURL:      "https://github.com/lab/attn",
		})

	html, err := Render([]*model.Candidate{p},
		model.Bilingual{EN: "Good papers today.", ZH: "今天的论文不错。"})
	require.NoError(t, err)

	assert.Contains(t, html, "Today's Digest")
	assert.Contains(t, html, "Good papers today.")
	assert.Contains(t, html, "今天的论文不错。")
	assert.Contains(t, html, `id="2401.01234"`)
	assert.Contains(t, html, "Attention Revisited")
	assert.Contains(t, html, "Ada Lovelace, Alan Turing")
	assert.Contains(t, html, "MIT")
	assert.Contains(t, html, "One sentence.")
	assert.Contains(t, html, "一句话。")
	assert.Contains(t, html, `href="https://arxiv.org/pdf/2401.01234"`)
	assert.Contains(t, html, `href="https://github.com/lab/attn"`)
}

func TestRender_DetailFold(t *testing.T) {
	p := enrichedCandidate("2401.00010", "Folded Paper", 0, []string{"A"},
		model.Enrichment{
			TLDR:   model.Bilingual{EN: "x", ZH: "y"},
			Detail: "该论文提出了一种新方法。",
		})

	html, err := Render([]*model.Candidate{p}, model.Bilingual{})
	require.NoError(t, err)
	assert.Contains(t, html, "<details")
	assert.Contains(t, html, "详细解读")
	assert.Contains(t, html, "该论文提出了一种新方法。")
}

func TestRender_NoDetailOmitsFold(t *testing.T) {
	p := enrichedCandidate("2401.00011", "Plain Paper", 0, []string{"A"},
		model.Enrichment{TLDR: model.Bilingual{EN: "x", ZH: "y"}})

	html, err := Render([]*model.Candidate{p}, model.Bilingual{})
	require.NoError(t, err)
	assert.NotContains(t, html, "<details")
}

func TestRender_SummaryRefsBecomeAnchors(t *testing.T) {
	papers := []*model.Candidate{
		enrichedCandidate("2401.11111", "First", 0, []string{"A"}, model.Enrichment{}),
		enrichedCandidate("2401.22222", "Second", 0, []string{"B"}, model.Enrichment{}),
	}

	html, err := Render(papers, model.Bilingual{
		EN: "Start with [1], then [2] & [7].",
		ZH: "先看 [1]。",
	})
	require.NoError(t, err)

	assert.Contains(t, html, `<a href="#2401.11111" style="color: #1a73e8; text-decoration: none; font-weight: bold;">[1]</a>`)
	assert.Contains(t, html, `<a href="#2401.22222" style="color: #1a73e8; text-decoration: none; font-weight: bold;">[2]</a>`)
	// References with no matching paper stay plain, and the summary
	// text is still escaped.
	assert.Contains(t, html, "[7]")
	assert.NotContains(t, html, `href="#2401.33333"`)
	assert.Contains(t, html, "&amp; [7]")
	assert.Equal(t, 1, strings.Count(html, `先看 <a href="#2401.11111"`))
}

func TestRender_NoCodeLinkOmitsButton(t *testing.T) {
	p := enrichedCandidate("2401.00001", "Quiet Paper", 7.0, []string{"A"},
		model.Enrichment{TLDR: model.Bilingual{EN: "x", ZH: "y"}})

	html, err := Render([]*model.Candidate{p}, model.Bilingual{})
	require.NoError(t, err)
	assert.NotContains(t, html, ">Code</a>")
	assert.Contains(t, html, "Unknown Affiliation")
}

func TestRender_EscapesTitles(t *testing.T) {
	p := enrichedCandidate("2401.00002", `Bounds for <k>-SAT & Friends`, 0, []string{"A"},
		model.Enrichment{})

	html, err := Render([]*model.Candidate{p}, model.Bilingual{})
	require.NoError(t, err)
	assert.Contains(t, html, "Bounds for &lt;k&gt;-SAT &amp; Friends")
}

func TestRender_AuthorsCappedAtFive(t *testing.T) {
	p := enrichedCandidate("2401.00003", "Big Collab", 0,
		[]string{"A1", "A2", "A3", "A4", "A5", "A6", "A7"},
		model.Enrichment{})

	html, err := Render([]*model.Candidate{p}, model.Bilingual{})
	require.NoError(t, err)
	assert.Contains(t, html, "A1, A2, A3, A4, A5, ...")
	assert.NotContains(t, html, "A6")
}

func TestStars(t *testing.T) {
	assert.Empty(t, stars(0))
	assert.Empty(t, stars(6))

	full := strings.Count(stars(10), "full-star")
	assert.Equal(t, 5, full)
	assert.Equal(t, 5, strings.Count(stars(8), "full-star"))

	// Midband: 7.0 sits five steps above the floor, two full stars
	// and one half star.
	mid := stars(7.0)
	assert.Equal(t, 2, strings.Count(mid, "full-star"))
	assert.Equal(t, 1, strings.Count(mid, "half-star"))

	// Just above the floor rounds up to a single half star.
	lowBand := stars(6.1)
	assert.Equal(t, 0, strings.Count(lowBand, "full-star"))
	assert.Equal(t, 1, strings.Count(lowBand, "half-star"))
}

func TestJoinCapped(t *testing.T) {
	assert.Equal(t, "a, b", joinCapped([]string{"a", "b"}, 5))
	assert.Equal(t, "a, b, ...", joinCapped([]string{"a", "b", "c"}, 2))
	assert.Empty(t, joinCapped(nil, 5))
}

func TestMailerMessage(t *testing.T) {
	m := Mailer{Sender: "bot@example.com", Receiver: "you@example.com"}
	msg := m.message("Daily arXiv 2024/06/01", "<html></html>")

	assert.Contains(t, msg, "From: Daily Digest <bot@example.com>")
	assert.Contains(t, msg, "To: You <you@example.com>")
	assert.Contains(t, msg, "Subject: =?utf-8?B?")
	assert.Contains(t, msg, "Content-Type: text/html; charset=utf-8")
	assert.True(t, strings.HasSuffix(msg, "\r\n<html></html>"))
}
