// Package digest renders the daily HTML digest and delivers it over
// SMTP.
package digest

import (
	"fmt"
	"html/template"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/scholarstream/arxiv-digest/internal/model"
)

const frameworkTmpl = `<!DOCTYPE HTML>
<html>
<head>
  <style>
    .star-wrapper {
      font-size: 1.3em;
      line-height: 1;
      display: inline-flex;
      align-items: center;
    }
    .half-star {
      display: inline-block;
      width: 0.5em;
      overflow: hidden;
      white-space: nowrap;
      vertical-align: middle;
    }
    .full-star {
      vertical-align: middle;
    }
  </style>
</head>
<body>

<div>
{{if not .Papers}}{{template "empty" .}}{{else}}{{if not .Summary.IsZero}}{{template "summary" .}}{{end}}{{range .Papers}}{{template "paper" .}}{{end}}{{end}}
</div>

<br><br>
<div>
To unsubscribe, remove your email from the delivery configuration.
</div>

</body>
</html>
`

const emptyTmpl = `<table border="0" cellpadding="0" cellspacing="0" width="100%" style="font-family: Arial, sans-serif; border: 1px solid #ddd; border-radius: 8px; padding: 16px; background-color: #f9f9f9;">
<tr>
  <td style="font-size: 20px; font-weight: bold; color: #333;">
      No Papers Today. Take a Rest!
  </td>
</tr>
</table>
`

const summaryTmpl = `<table border="0" cellpadding="0" cellspacing="0" width="100%" style="font-family: Arial, sans-serif; border: 1px solid #ddd; border-radius: 8px; padding: 16px; background-color: #f0f7ff; margin-bottom: 20px;">
<tr>
    <td style="font-size: 24px; font-weight: bold; color: #1a73e8; padding-bottom: 12px;">
        Today's Digest
    </td>
</tr>
<tr>
    <td style="font-size: 16px; color: #333; line-height: 1.8;">
        <div style="margin-bottom: 8px;">{{.SummaryEN}}</div>
        <div>{{.SummaryZH}}</div>
    </td>
</tr>
</table>
`

const paperTmpl = `<table id="{{.ID}}" border="0" cellpadding="0" cellspacing="0" width="100%" style="font-family: Arial, sans-serif; border: 1px solid #ddd; border-radius: 8px; padding: 16px; background-color: #f9f9f9; margin-bottom: 20px;">
<tr>
    <td style="font-size: 20px; font-weight: bold; color: #333;">
        {{.Title}}
    </td>
</tr>
<tr>
    <td style="font-size: 14px; color: #666; padding: 8px 0;">
        {{.Authors}}
        <br>
        <i>{{.Affiliations}}</i>
    </td>
</tr>
<tr>
    <td style="font-size: 14px; color: #333; padding: 8px 0;">
        <strong>Relevance:</strong> {{.Stars}}
    </td>
</tr>
<tr>
    <td style="font-size: 14px; color: #333; padding: 8px 0;">
        <strong>arXiv ID:</strong> {{.ID}}
    </td>
</tr>
<tr>
    <td style="font-size: 14px; color: #333; padding: 8px 0;">
        <div style="margin-bottom: 8px;">
            <strong>English TLDR:</strong> {{.TLDREN}}
        </div>
        <div style="margin-bottom: 8px;">
            <strong>中文 TLDR:</strong> {{.TLDRZH}}
        </div>
        {{if .Detail}}<details style="margin-top: 12px;">
            <summary style="cursor: pointer; color: #1a73e8; font-weight: bold;">
                &#128221; 详细解读
            </summary>
            <div style="margin-top: 8px; padding: 12px; background-color: #f8f9fa; border-radius: 4px; line-height: 1.6;">
                {{.Detail}}
            </div>
        </details>{{end}}
    </td>
</tr>
<tr>
    <td style="padding: 8px 0;">
        <a href="{{.PDFURL}}" style="display: inline-block; text-decoration: none; font-size: 14px; font-weight: bold; color: #fff; background-color: #d9534f; padding: 8px 16px; border-radius: 4px;">PDF</a>
        {{if .CodeURL}}<a href="{{.CodeURL}}" style="display: inline-block; text-decoration: none; font-size: 14px; font-weight: bold; color: #fff; background-color: #5bc0de; padding: 8px 16px; border-radius: 4px; margin-left: 8px;">Code</a>{{end}}
    </td>
</tr>
</table>
`

var digestTemplate = template.Must(template.Must(template.Must(template.Must(
	template.New("framework").Parse(frameworkTmpl)).
	New("empty").Parse(emptyTmpl)).
	New("summary").Parse(summaryTmpl)).
	New("paper").Parse(paperTmpl))

type paperView struct {
	ID           string
	Title        string
	Authors      string
	Affiliations string
	Stars        template.HTML
	TLDREN       string
	TLDRZH       string
	Detail       string
	PDFURL       string
	CodeURL      string
}

type digestView struct {
	Summary   model.Bilingual
	SummaryEN template.HTML
	SummaryZH template.HTML
	Papers    []paperView
}

// Render produces the digest HTML for an already-enriched, ranked
// candidate list. An empty list renders the rest-day page.
func Render(papers []*model.Candidate, summary model.Bilingual) (string, error) {
	view := digestView{Summary: summary}
	for _, p := range papers {
		tldr := p.CachedTLDR(nil)
		view.Papers = append(view.Papers, paperView{
			ID:           p.ID,
			Title:        p.Title,
			Authors:      joinCapped(p.Authors, 5),
			Affiliations: affiliationLine(p.CachedAffiliations(nil)),
			Stars:        template.HTML(stars(p.Score)),
			TLDREN:       tldr.EN,
			TLDRZH:       tldr.ZH,
			Detail:       p.CachedDetail(nil),
			PDFURL:       p.PDFURL(),
			CodeURL:      p.CachedCodeURL(nil),
		})
	}
	view.SummaryEN = linkRefs(summary.EN, view.Papers)
	view.SummaryZH = linkRefs(summary.ZH, view.Papers)

	var b strings.Builder
	if err := digestTemplate.ExecuteTemplate(&b, "framework", view); err != nil {
		return "", eris.Wrap(err, "digest: render")
	}
	return b.String(), nil
}

// linkRefs turns the summary's numbered [n] paper references into
// anchors onto the matching paper block.
func linkRefs(text string, papers []paperView) template.HTML {
	escaped := template.HTMLEscapeString(text)
	for i, p := range papers {
		ref := fmt.Sprintf("[%d]", i+1)
		anchor := fmt.Sprintf(`<a href="#%s" style="color: #1a73e8; text-decoration: none; font-weight: bold;">%s</a>`,
			template.HTMLEscapeString(p.ID), ref)
		escaped = strings.ReplaceAll(escaped, ref, anchor)
	}
	return template.HTML(escaped)
}

// stars maps a 0..10 relevance score to a star rating. Scores at or
// below 6 show nothing, 8 and above show five full stars, and the band
// in between fills in half-star steps.
func stars(score float64) string {
	const (
		fullStar = `<span class="full-star">&#11088;</span>`
		halfStar = `<span class="half-star">&#11088;</span>`
		low      = 6.0
		high     = 8.0
	)
	switch {
	case score <= low:
		return ""
	case score >= high:
		return strings.Repeat(fullStar, 5)
	}
	interval := (high - low) / 10
	starNum := int(math.Ceil((score - low) / interval))
	fullNum := starNum / 2
	halfNum := starNum - fullNum*2
	return `<div class="star-wrapper">` +
		strings.Repeat(fullStar, fullNum) +
		strings.Repeat(halfStar, halfNum) +
		`</div>`
}

// joinCapped joins at most max entries, marking overflow with an
// ellipsis entry.
func joinCapped(items []string, max int) string {
	if len(items) <= max {
		return strings.Join(items, ", ")
	}
	return strings.Join(items[:max], ", ") + ", ..."
}

func affiliationLine(affs []string) string {
	if len(affs) == 0 {
		return "Unknown Affiliation"
	}
	return joinCapped(affs, 5)
}
