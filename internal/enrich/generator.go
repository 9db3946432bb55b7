// Package enrich produces per-paper summaries, affiliation lists, and
// the run-level digest summary through an LLM backend.
package enrich

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scholarstream/arxiv-digest/internal/model"
	"github.com/scholarstream/arxiv-digest/internal/resilience"
	"github.com/scholarstream/arxiv-digest/pkg/llm"
)

const (
	// Token budgets for prompt input truncation.
	tldrBudget         = 4000
	dailySummaryBudget = 12000

	callTimeout = 2 * time.Minute
)

const tldrSystem = `You summarize machine learning papers. Given excerpts of a paper,
write a one-sentence TLDR in English and the same TLDR in Simplified Chinese.
Respond in exactly this format, with no other text:
EN: <english tldr>
ZH: <chinese tldr>`

const detailSystem = `You write the collapsible analysis section of a paper digest.
Given excerpts of a paper, write a short structured interpretation in Simplified
Chinese covering the problem, the core method, the key results, and limitations,
in 4-6 sentences of plain prose. Respond with the analysis text only.`

const affiliationsSystem = `You extract author affiliations from LaTeX author blocks.
Return only top-level institutions (university, company, or lab), one per line,
deduplicated, in order of first appearance. Do not include departments, addresses,
emails, or any commentary.`

const dailySummarySystem = `You write the opening paragraph of a daily research digest.
Given today's numbered paper list, summarize the common themes, notable trends,
and one or two highlights in 3-5 sentences, in English and then in Simplified Chinese.
Cite papers by their number in square brackets, for example [1] or [3].
Respond in exactly this format, with no other text:
EN: <english paragraph>
ZH: <chinese paragraph>`

var bilingualRe = regexp.MustCompile(`(?s)EN:\s*(.*?)\s*ZH:\s*(.*)`)

// Generator issues enrichment completions with budget truncation and
// retry. Construct with NewGenerator.
type Generator struct {
	client llm.Client
	tok    Tokenizer
	retry  resilience.Config
}

// NewGenerator builds a Generator over the given backend and
// tokenizer. A zero retry config gets the package defaults.
func NewGenerator(client llm.Client, tok Tokenizer, retry resilience.Config) *Generator {
	return &Generator{client: client, tok: tok, retry: retry}
}

// TLDR produces a one-sentence bilingual summary from the paper's
// cleaned sections. Input beyond the token budget is truncated. When
// the model response does not match the expected delimited format,
// the raw response serves as both languages.
func (g *Generator) TLDR(ctx context.Context, title, abstract, intro, conclusion string) (model.Bilingual, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n\nAbstract: %s\n", title, abstract)
	if intro != "" {
		fmt.Fprintf(&b, "\nIntroduction: %s\n", intro)
	}
	if conclusion != "" {
		fmt.Fprintf(&b, "\nConclusion: %s\n", conclusion)
	}
	prompt := g.tok.Truncate(b.String(), tldrBudget)

	raw, err := g.complete(ctx, "tldr", tldrSystem, prompt)
	if err != nil {
		return model.Bilingual{}, err
	}
	return parseBilingual(raw), nil
}

// DetailedAnalysis produces the collapsible per-paper interpretation
// from the same excerpts the TLDR uses.
func (g *Generator) DetailedAnalysis(ctx context.Context, title, abstract, intro, conclusion string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n\nAbstract: %s\n", title, abstract)
	if intro != "" {
		fmt.Fprintf(&b, "\nIntroduction: %s\n", intro)
	}
	if conclusion != "" {
		fmt.Fprintf(&b, "\nConclusion: %s\n", conclusion)
	}
	prompt := g.tok.Truncate(b.String(), tldrBudget)

	return g.complete(ctx, "detailed_analysis", detailSystem, prompt)
}

// Affiliations extracts top-level institutions from a LaTeX author
// block. Empty input returns an empty list without a model call.
func (g *Generator) Affiliations(ctx context.Context, authorText string) ([]string, error) {
	if strings.TrimSpace(authorText) == "" {
		return nil, nil
	}
	prompt := g.tok.Truncate(authorText, tldrBudget)

	raw, err := g.complete(ctx, "affiliations", affiliationsSystem, prompt)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*• \t"))
		if line == "" {
			continue
		}
		key := strings.ToLower(line)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, line)
	}
	return out, nil
}

// DailySummary produces the bilingual digest opener covering the whole
// candidate set. Called once per run.
func (g *Generator) DailySummary(ctx context.Context, papers []*model.Candidate) (model.Bilingual, error) {
	var b strings.Builder
	for i, p := range papers {
		fmt.Fprintf(&b, "%d. %s\n%s\n\n", i+1, p.Title, p.Abstract)
	}
	prompt := g.tok.Truncate(b.String(), dailySummaryBudget)

	raw, err := g.complete(ctx, "daily_summary", dailySummarySystem, prompt)
	if err != nil {
		return model.Bilingual{}, err
	}
	return parseBilingual(raw), nil
}

func (g *Generator) complete(ctx context.Context, op, system, prompt string) (string, error) {
	cfg := g.retry
	cfg.OnRetry = resilience.Logger(g.client.Name(), op)

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		defer cancel()
		out, err := g.client.Complete(callCtx, llm.CompletionRequest{
			System:   system,
			Messages: []llm.Message{{Role: "user", Content: prompt}},
		})
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(out), nil
	})
}

// parseBilingual splits an "EN: ... ZH: ..." response. A response that
// does not match becomes both languages as-is.
func parseBilingual(raw string) model.Bilingual {
	m := bilingualRe.FindStringSubmatch(raw)
	if m == nil {
		zap.L().Debug("enrich: response missing EN/ZH delimiters, using raw text")
		return model.Bilingual{EN: raw, ZH: raw}
	}
	return model.Bilingual{EN: strings.TrimSpace(m[1]), ZH: strings.TrimSpace(m[2])}
}
