package parser

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/tracevine/tracevine-backend/internal/types"
)

// grammarAdapter walks a tree-sitter parse tree and collects the node types
// listed in kinds. Functions nested inside a class node are reported as
// methods.
type grammarAdapter struct {
	language string
	lang     *sitter.Language
	kinds    map[string]string
}

func (g *grammarAdapter) Language() string { return g.language }

func (g *grammarAdapter) Parse(ctx context.Context, content []byte) ([]Candidate, error) {
	// sitter.Parser is not safe for concurrent use; each call gets its own.
	p := sitter.NewParser()
	p.SetLanguage(g.lang)
	tree, err := p.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", g.language, err)
	}
	defer tree.Close()

	var out []Candidate
	g.walk(tree.RootNode(), content, false, &out)
	return out, nil
}

func (g *grammarAdapter) walk(node *sitter.Node, content []byte, inClass bool, out *[]Candidate) {
	if node == nil {
		return
	}
	kind, interesting := g.kinds[node.Type()]
	if interesting {
		if kind == types.NodeKindFunction && inClass {
			kind = types.NodeKindMethod
		}
		name := nodeName(node, content)
		*out = append(*out, Candidate{
			Kind:      kind,
			Name:      name,
			NodePath:  kind + ":" + name,
			StartLine: int(node.StartPoint().Row) + 1,
			EndLine:   int(node.EndPoint().Row) + 1,
			Text:      node.Content(content),
		})
	}
	childInClass := inClass || kind == types.NodeKindClass
	for i := 0; i < int(node.NamedChildCount()); i++ {
		g.walk(node.NamedChild(i), content, childInClass, out)
	}
}

func nodeName(node *sitter.Node, content []byte) string {
	if n := node.ChildByFieldName("name"); n != nil {
		return n.Content(content)
	}
	return "anonymous"
}

// RegisterGrammars installs the built-in tree-sitter adapters. Called once
// from process wiring before any worker starts.
func RegisterGrammars(r *Registry) {
	r.Register(&grammarAdapter{
		language: "go",
		lang:     golang.GetLanguage(),
		kinds: map[string]string{
			"function_declaration": types.NodeKindFunction,
			"method_declaration":   types.NodeKindMethod,
		},
	})
	r.Register(&grammarAdapter{
		language: "python",
		lang:     python.GetLanguage(),
		kinds: map[string]string{
			"function_definition": types.NodeKindFunction,
			"class_definition":    types.NodeKindClass,
		},
	})
	r.Register(&grammarAdapter{
		language: "javascript",
		lang:     javascript.GetLanguage(),
		kinds: map[string]string{
			"function_declaration":           types.NodeKindFunction,
			"generator_function_declaration": types.NodeKindFunction,
			"method_definition":              types.NodeKindMethod,
			"class_declaration":              types.NodeKindClass,
		},
	})
	r.Register(&grammarAdapter{
		language: "java",
		lang:     java.GetLanguage(),
		kinds: map[string]string{
			"method_declaration":      types.NodeKindMethod,
			"constructor_declaration": types.NodeKindMethod,
			"class_declaration":       types.NodeKindClass,
			"interface_declaration":   types.NodeKindClass,
		},
	})
}
