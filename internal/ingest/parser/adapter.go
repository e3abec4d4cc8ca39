package parser

import (
	"context"
	"path"
	"strings"
)

// Candidate is one semantic unit lifted out of a source file, before
// persistence and before node-path collision handling.
type Candidate struct {
	Kind      string
	Name      string
	NodePath  string
	StartLine int
	EndLine   int
	Text      string
}

// Adapter extracts candidates for one language. Implementations must be safe
// for concurrent Parse calls.
type Adapter interface {
	Language() string
	Parse(ctx context.Context, content []byte) ([]Candidate, error)
}

// Registry is the language -> adapter table. It is populated once at startup
// and read-only afterwards, so lookups take no lock.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: map[string]Adapter{}}
}

func (r *Registry) Register(a Adapter) {
	r.adapters[a.Language()] = a
}

func (r *Registry) Get(language string) (Adapter, bool) {
	a, ok := r.adapters[language]
	return a, ok
}

func (r *Registry) Languages() []string {
	out := make([]string, 0, len(r.adapters))
	for l := range r.adapters {
		out = append(out, l)
	}
	return out
}

var extLanguages = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".java": "java",
}

// LanguageForPath maps a file path to a grammar language name. Unknown
// extensions return "" and fall through to the regex tier.
func LanguageForPath(p string) string {
	return extLanguages[strings.ToLower(path.Ext(p))]
}
