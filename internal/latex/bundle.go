// Package latex turns an unpacked arXiv source archive into a single
// normalized document and extracts text fragments from it. Everything here is
// best-effort pattern matching over loosely structured TeX, not a parser;
// callers must treat empty results as a normal outcome.
package latex

import (
	"path"
	"regexp"
	"strings"
)

// maxIncludeDepth bounds \input recursion for pathological inclusion graphs.
const maxIncludeDepth = 32

// Bundle is the source text of one paper: relative path → file content, plus
// the fully inlined main document. Combined is empty when no main file could
// be identified unambiguously.
type Bundle struct {
	Files    map[string]string
	Combined string
}

// Empty reports whether the bundle carries no usable source.
func (b Bundle) Empty() bool {
	return len(b.Files) == 0
}

var includeRe = regexp.MustCompile(`\\(?:input|include)\{([^}]*)\}`)

// BuildBundle identifies the main document among files and inlines its
// inclusion directives. An ambiguous or missing main file leaves Combined
// empty rather than guessing.
func BuildBundle(files map[string]string) Bundle {
	b := Bundle{Files: files}
	main := findMainFile(files)
	if main == "" {
		return b
	}
	visited := map[string]bool{main: true}
	b.Combined = expandIncludes(files[main], files, visited, 0)
	return b
}

// findMainFile picks the root .tex file. Preference order: the .tex file
// sharing a base name with a .bbl bibliography fragment, then the unique
// .tex file containing \begin{document}. More than one match at the second
// step is ambiguous and yields no main file.
func findMainFile(files map[string]string) string {
	var bblMatches []string
	for name := range files {
		if path.Ext(name) != ".bbl" {
			continue
		}
		stem := strings.TrimSuffix(name, ".bbl")
		if _, ok := files[stem+".tex"]; ok {
			bblMatches = append(bblMatches, stem+".tex")
		}
	}
	if len(bblMatches) == 1 {
		return bblMatches[0]
	}

	var docMatches []string
	for name, content := range files {
		if path.Ext(name) != ".tex" {
			continue
		}
		if strings.Contains(content, `\begin{document}`) {
			docMatches = append(docMatches, name)
		}
	}
	if len(docMatches) == 1 {
		return docMatches[0]
	}
	return ""
}

// expandIncludes substitutes \input{x}/\include{x} directives with the
// referenced file's content, recursively. Missing files become empty text;
// the visited set and depth cap terminate cyclic graphs.
func expandIncludes(text string, files map[string]string, visited map[string]bool, depth int) string {
	if depth >= maxIncludeDepth {
		return text
	}
	return includeRe.ReplaceAllStringFunc(text, func(directive string) string {
		ref := includeRe.FindStringSubmatch(directive)[1]
		ref = strings.TrimSpace(ref)
		name := resolveIncludeName(ref, files)
		if name == "" || visited[name] {
			return ""
		}
		visited[name] = true
		return expandIncludes(files[name], files, visited, depth+1)
	})
}

// resolveIncludeName maps an \input argument to a bundle file name. TeX
// allows the .tex extension to be omitted.
func resolveIncludeName(ref string, files map[string]string) string {
	if _, ok := files[ref]; ok {
		return ref
	}
	if _, ok := files[ref+".tex"]; ok {
		return ref + ".tex"
	}
	return ""
}
