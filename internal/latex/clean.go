package latex

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	commentRe = regexp.MustCompile(`(?m)(^|[^\\])%.*$`)
	figureRe  = regexp.MustCompile(`(?s)\\begin\{figure\*?\}.*?\\end\{figure\*?\}`)
	tableRe   = regexp.MustCompile(`(?s)\\begin\{table\*?\}.*?\\end\{table\*?\}`)
	citeRe    = regexp.MustCompile(`\\[Cc]ite(?:al)?[pt]?(?:author|year|num)?\*?(?:\[[^\]]*\])*\{[^}]*\}`)
	spaceRe   = regexp.MustCompile(`[ \t]+`)
	blankRe   = regexp.MustCompile(`\n{3,}`)
)

// Clean strips comments, figure and table environments, and citation
// commands, then collapses whitespace runs. The output is normalized to
// Unicode NFC. Section commands and prose survive untouched, so the result
// is still suitable for Section.
func Clean(text string) string {
	text = commentRe.ReplaceAllString(text, "$1")
	text = figureRe.ReplaceAllString(text, "")
	text = tableRe.ReplaceAllString(text, "")
	text = citeRe.ReplaceAllString(text, "")
	text = spaceRe.ReplaceAllString(text, " ")
	text = blankRe.ReplaceAllString(text, "\n\n")
	return norm.NFC.String(strings.TrimSpace(text))
}

// sectionVariants maps a logical section name to heading spellings papers
// actually use.
var sectionVariants = map[string][]string{
	"introduction": {"introduction"},
	"conclusion":   {"conclusion", "conclusions", "concluding remarks", "summary and conclusions", "summary and conclusion"},
}

var sectionCmdRe = regexp.MustCompile(`\\section\*?\{([^}]*)\}`)

// Terminators that end a top-level section when no further \section follows.
var sectionEndRe = regexp.MustCompile(`\\appendix\b|\\begin\{thebibliography\}|\\bibliography\{|\\end\{document\}`)

// Section returns the body of the named logical section ("introduction" or
// "conclusion"), from the matched heading to the next equal-or-higher
// heading. An absent heading yields "".
func Section(text, name string) string {
	variants, ok := sectionVariants[strings.ToLower(name)]
	if !ok {
		variants = []string{strings.ToLower(name)}
	}

	headings := sectionCmdRe.FindAllStringSubmatchIndex(text, -1)
	for i, h := range headings {
		title := strings.ToLower(strings.TrimSpace(text[h[2]:h[3]]))
		if !matchesVariant(title, variants) {
			continue
		}
		start := h[1]
		end := len(text)
		if i+1 < len(headings) {
			end = headings[i+1][0]
		}
		body := text[start:end]
		if m := sectionEndRe.FindStringIndex(body); m != nil {
			body = body[:m[0]]
		}
		return strings.TrimSpace(body)
	}
	return ""
}

func matchesVariant(title string, variants []string) bool {
	for _, v := range variants {
		if title == v || strings.HasPrefix(title, v+" ") || strings.HasPrefix(title, v+":") {
			return true
		}
	}
	return false
}

// Preamble author-region commands mined for affiliation extraction.
var authorCmds = []string{`\author`, `\affiliation`, `\affil`, `\address`, `\institute`, `\institution`}

// AuthorBlock extracts the author and affiliation command blocks from the
// document preamble (everything before \begin{document}). Absence of an
// author region yields "".
func AuthorBlock(text string) string {
	if idx := strings.Index(text, `\begin{document}`); idx >= 0 {
		text = text[:idx]
	}

	var blocks []string
	for _, cmd := range authorCmds {
		for offset := 0; ; {
			idx := strings.Index(text[offset:], cmd+"{")
			if idx < 0 {
				// Bracketed optional arguments (\author[...]{...}) as well.
				idx = strings.Index(text[offset:], cmd+"[")
				if idx < 0 {
					break
				}
			}
			pos := offset + idx
			arg, next := braceArg(text, pos+len(cmd))
			if arg == "" {
				offset = pos + len(cmd)
				continue
			}
			blocks = append(blocks, cmd+"{"+arg+"}")
			offset = next
		}
	}
	return strings.Join(blocks, "\n")
}

// braceArg scans a balanced {...} group starting at or after pos, skipping
// one optional [...] group. Returns the group content and the index just
// past the closing brace, or ("", pos) when no group opens there.
func braceArg(s string, pos int) (string, int) {
	i := pos
	for i < len(s) && (s[i] == ' ' || s[i] == '\n') {
		i++
	}
	if i < len(s) && s[i] == '[' {
		close := strings.IndexByte(s[i:], ']')
		if close < 0 {
			return "", pos
		}
		i += close + 1
	}
	if i >= len(s) || s[i] != '{' {
		return "", pos
	}
	depth := 0
	for j := i; j < len(s); j++ {
		switch s[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[i+1 : j], j + 1
			}
		}
	}
	return "", pos
}
