package parser

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/inobulles/flamingo/pkg/syntax"
)

// ModuleParser wraps a tree-sitter parser loaded with a compiled flamingo
// grammar.
type ModuleParser struct {
	parser *sitter.Parser
}

// NewModuleParser constructs a parser for lang. Hosts obtain lang from their
// generated grammar bindings, e.g. sitter.NewLanguage(tree_sitter_flamingo()).
func NewModuleParser(lang *sitter.Language) (*ModuleParser, error) {
	if lang == nil {
		return nil, fmt.Errorf("parser: flamingo language not available")
	}

	p := sitter.NewParser()
	if err := p.SetLanguage(lang); err != nil {
		p.Close()
		return nil, fmt.Errorf("parser: %w", err)
	}

	return &ModuleParser{parser: p}, nil
}

// Close releases parser resources. Trees already returned stay valid.
func (p *ModuleParser) Close() {
	if p == nil || p.parser == nil {
		return
	}
	p.parser.Close()
	p.parser = nil
}

// Parse parses source into a tree. The tree keeps the tree-sitter tree alive
// until its Close is called.
func (p *ModuleParser) Parse(source []byte) (*syntax.Tree, error) {
	if p == nil || p.parser == nil {
		return nil, fmt.Errorf("parser: nil parser")
	}

	tree := p.parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("parser: failed to parse source")
	}

	root := tree.RootNode()
	if root == nil || root.Kind() != "source_file" {
		tree.Close()
		return nil, fmt.Errorf("parser: unexpected root node")
	}
	if root.HasError() {
		pos := firstErrorPosition(root)
		tree.Close()
		return nil, &SyntaxError{Line: pos.Row + 1, Column: pos.Column + 1, Msg: "syntax errors present"}
	}

	return syntax.NewTree(syntax.FromTreeSitter(root), tree.Close), nil
}

func firstErrorPosition(node *sitter.Node) syntax.Point {
	if node.IsError() || node.IsMissing() {
		p := node.StartPosition()
		return syntax.Point{Row: int(p.Row), Column: int(p.Column)}
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.HasError() {
			return firstErrorPosition(child)
		}
	}
	p := node.StartPosition()
	return syntax.Point{Row: int(p.Row), Column: int(p.Column)}
}
