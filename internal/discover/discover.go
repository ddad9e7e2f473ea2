// Package discover turns a directory of Go source into pack.Documents by
// parsing each file with tree-sitter and emitting one document per
// top-level declaration, the unit `packctl chunk`/`packctl build` treat as
// a retrievable block.
package discover

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/knowpack-dev/knowpack/pkg/pack"
)

// topLevelKinds are the tree-sitter node types this walker treats as one
// retrievable unit. Each becomes exactly one pack.Document.
var topLevelKinds = map[string]bool{
	"function_declaration": true,
	"method_declaration":   true,
	"type_declaration":      true,
	"const_declaration":     true,
	"var_declaration":       true,
}

// Symbol is one discovered top-level declaration, before it is turned into
// a pack.Document.
type Symbol struct {
	Name      string
	Namespace string // import-style package path, e.g. "internal/query"
	File      string
	StartLine int
	EndLine   int
	Text      string
}

// Walker discovers Go source files under a root directory and extracts
// their top-level declarations.
type Walker struct {
	parser *sitter.Parser
}

// NewWalker creates a Walker with a tree-sitter Go parser.
func NewWalker() *Walker {
	p := sitter.NewParser()
	p.SetLanguage(golang.GetLanguage())
	return &Walker{parser: p}
}

// Close releases the underlying tree-sitter parser.
func (w *Walker) Close() {
	if w.parser != nil {
		w.parser.Close()
	}
}

// skipDirs names directories this walker never descends into.
var skipDirs = map[string]bool{
	".git":     true,
	"vendor":   true,
	"node_modules": true,
	"_examples": true,
}

// Discover walks root for *.go files (excluding _test.go) and returns one
// Symbol per top-level declaration found.
func (w *Walker) Discover(ctx context.Context, root string) ([]Symbol, error) {
	var symbols []Symbol

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		fileSymbols, err := w.parseFile(ctx, root, path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		symbols = append(symbols, fileSymbols...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return symbols, nil
}

func (w *Walker) parseFile(ctx context.Context, root, path string) ([]Symbol, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	tree, err := w.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed: %w", err)
	}
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned a nil tree")
	}

	namespace := packageNamespace(root, path)

	var symbols []Symbol
	root2 := tree.RootNode()
	for i := 0; i < int(root2.ChildCount()); i++ {
		child := root2.Child(i)
		if child == nil || !topLevelKinds[child.Type()] {
			continue
		}
		name := declarationName(child, source)
		if name == "" {
			continue
		}
		symbols = append(symbols, Symbol{
			Name:      name,
			Namespace: namespace,
			File:      path,
			StartLine: int(child.StartPoint().Row) + 1,
			EndLine:   int(child.EndPoint().Row) + 1,
			Text:      string(source[child.StartByte():child.EndByte()]),
		})
	}
	return symbols, nil
}

// declarationName extracts the identifying name from a top-level
// declaration node. For grouped const/var/type blocks it names the first
// spec, which is good enough for a heading label.
func declarationName(n *sitter.Node, source []byte) string {
	switch n.Type() {
	case "function_declaration":
		if id := n.ChildByFieldName("name"); id != nil {
			return string(source[id.StartByte():id.EndByte()])
		}
	case "method_declaration":
		if id := n.ChildByFieldName("name"); id != nil {
			recv := ""
			if r := n.ChildByFieldName("receiver"); r != nil {
				recv = receiverTypeName(r, source) + "."
			}
			return recv + string(source[id.StartByte():id.EndByte()])
		}
	case "type_declaration", "const_declaration", "var_declaration":
		return firstSpecName(n, source)
	}
	return ""
}

func receiverTypeName(receiver *sitter.Node, source []byte) string {
	for i := 0; i < int(receiver.ChildCount()); i++ {
		child := receiver.Child(i)
		if child == nil {
			continue
		}
		if child.Type() == "parameter_declaration" {
			if t := child.ChildByFieldName("type"); t != nil {
				text := string(source[t.StartByte():t.EndByte()])
				return strings.TrimPrefix(text, "*")
			}
		}
	}
	return ""
}

func firstSpecName(n *sitter.Node, source []byte) string {
	for i := 0; i < int(n.ChildCount()); i++ {
		spec := n.Child(i)
		if spec == nil {
			continue
		}
		switch spec.Type() {
		case "type_spec":
			if id := spec.ChildByFieldName("name"); id != nil {
				return string(source[id.StartByte():id.EndByte()])
			}
		case "const_spec", "var_spec":
			if id := spec.ChildByFieldName("name"); id != nil {
				return string(source[id.StartByte():id.EndByte()])
			}
		}
	}
	return ""
}

// packageNamespace derives an import-style path from a file's location
// relative to root, e.g. root/internal/query/engine.go -> "internal/query".
func packageNamespace(root, path string) string {
	rel, err := filepath.Rel(root, filepath.Dir(path))
	if err != nil || rel == "." {
		return filepath.Base(root)
	}
	return filepath.ToSlash(rel)
}

// ToDocuments converts discovered symbols into pack.Documents, one per
// symbol, ready for pack.Build.
func ToDocuments(symbols []Symbol) []pack.Document {
	docs := make([]pack.Document, len(symbols))
	for i, s := range symbols {
		docs[i] = pack.Document{
			Text:      s.Text,
			ID:        fmt.Sprintf("%s:%d", s.File, s.StartLine),
			Heading:   s.Name,
			Namespace: s.Namespace,
		}
	}
	return docs
}
