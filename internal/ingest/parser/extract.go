package parser

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/tracevine/tracevine-backend/internal/types"
)

// Limits are the extraction caps, taken from the pipeline config snapshot.
type Limits struct {
	MaxNodeBytes  int
	MaxRegexNodes int
	WholeFileCap  int
}

// Extract runs the tiered extraction for one file: grammar adapter when the
// language has one, regex fallback otherwise or when the grammar yields
// nothing usable, whole-file node when both tiers come up empty on non-empty
// input. Node paths are made unique with an ordinal suffix on collision.
func Extract(ctx context.Context, reg *Registry, filePath string, content []byte, lim Limits) []Candidate {
	language := LanguageForPath(filePath)

	var cands []Candidate
	if a, ok := reg.Get(language); ok {
		got, err := a.Parse(ctx, content)
		if err == nil {
			cands = capNodeBytes(got, lim.MaxNodeBytes)
		}
	}
	if len(cands) == 0 {
		cands = capNodeBytes(regexExtract(content, lim.MaxRegexNodes), lim.MaxNodeBytes)
	}
	if len(cands) == 0 && len(strings.TrimSpace(string(content))) > 0 {
		cands = []Candidate{wholeFile(filePath, content, lim.WholeFileCap)}
	}
	return uniqueNodePaths(cands)
}

func capNodeBytes(cands []Candidate, maxBytes int) []Candidate {
	out := cands[:0]
	for _, c := range cands {
		if len(c.Text) > maxBytes {
			continue
		}
		out = append(out, c)
	}
	return out
}

func wholeFile(filePath string, content []byte, limit int) Candidate {
	text := string(content)
	if len(text) > limit {
		text = text[:limit]
	}
	name := path.Base(filePath)
	return Candidate{
		Kind:      types.NodeKindFile,
		Name:      name,
		NodePath:  types.NodeKindFile + ":" + name,
		StartLine: 1,
		EndLine:   1 + strings.Count(text, "\n"),
		Text:      text,
	}
}

// uniqueNodePaths appends #2, #3, ... to repeated node paths so the
// (repo, file, node_path, blob) identity stays unique within one file.
func uniqueNodePaths(cands []Candidate) []Candidate {
	counts := make(map[string]int, len(cands))
	for i := range cands {
		counts[cands[i].NodePath]++
		if n := counts[cands[i].NodePath]; n > 1 {
			cands[i].NodePath = fmt.Sprintf("%s#%d", cands[i].NodePath, n)
		}
	}
	return cands
}
