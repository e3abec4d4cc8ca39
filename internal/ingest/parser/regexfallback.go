package parser

import (
	"regexp"
	"strings"

	"github.com/tracevine/tracevine-backend/internal/types"
)

// braceLookahead bounds how far past a declaration the extractor scans for a
// balanced body. Beyond it the snippet is cut at the window edge.
const braceLookahead = 2000

type declPattern struct {
	re   *regexp.Regexp
	kind string
}

// Language-agnostic declaration shapes. The first capture group is the name.
var declPatterns = []declPattern{
	{regexp.MustCompile(`(?m)^[ \t]*(?:class|interface|struct|trait)\s+([A-Za-z_]\w*)`), types.NodeKindClass},
	{regexp.MustCompile(`(?m)^[ \t]*(?:export\s+)?(?:async\s+)?(?:func|fn|def|function)\s+([A-Za-z_]\w*)`), types.NodeKindFunction},
	{regexp.MustCompile(`(?m)^[ \t]*(?:public|private|protected)\s+(?:static\s+)?[\w<>\[\],\s]+?\s([A-Za-z_]\w*)\s*\([^)\n]*\)\s*\{`), types.NodeKindMethod},
}

// regexExtract is the fallback tier for languages without a registered
// grammar. It matches declaration lines and brace-balances the body within a
// bounded window, capped at maxNodes candidates per file.
func regexExtract(content []byte, maxNodes int) []Candidate {
	text := string(content)
	seen := map[int]bool{}
	var out []Candidate

	for _, p := range declPatterns {
		if len(out) >= maxNodes {
			break
		}
		for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
			if len(out) >= maxNodes {
				break
			}
			start := loc[0]
			if seen[start] {
				continue
			}
			seen[start] = true

			name := text[loc[2]:loc[3]]
			end := snippetEnd(text, start)
			snippet := text[start:end]
			startLine := 1 + strings.Count(text[:start], "\n")
			out = append(out, Candidate{
				Kind:      p.kind,
				Name:      name,
				NodePath:  p.kind + ":" + name,
				StartLine: startLine,
				EndLine:   startLine + strings.Count(snippet, "\n"),
				Text:      snippet,
			})
		}
	}
	return out
}

// snippetEnd finds the end of a declaration body by balancing braces inside
// the lookahead window. No opening brace means the declaration is a single
// line; an unbalanced body is cut at the window edge.
func snippetEnd(text string, start int) int {
	limit := start + braceLookahead
	if limit > len(text) {
		limit = len(text)
	}
	depth := 0
	opened := false
	for i := start; i < limit; i++ {
		switch text[i] {
		case '{':
			depth++
			opened = true
		case '}':
			depth--
			if opened && depth == 0 {
				return i + 1
			}
		case '\n':
			if !opened {
				return i
			}
		}
	}
	return limit
}
