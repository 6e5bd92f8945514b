// Package parser turns flamingo source into syntax trees. SourceParser is the
// built-in recursive descent parser; ModuleParser drives a compiled
// tree-sitter grammar supplied by the host. Both produce the node kinds and
// field names listed in pkg/syntax.
package parser

import (
	"errors"
	"fmt"

	"github.com/inobulles/flamingo/pkg/syntax"
)

// ErrIncomplete is wrapped by syntax errors caused by input ending inside an
// unterminated construct.
var ErrIncomplete = errors.New("parser: incomplete input")

// SyntaxError reports malformed source at a 1-based position.
type SyntaxError struct {
	Line       int
	Column     int
	Msg        string
	Incomplete bool
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at %d:%d: %s", e.Line, e.Column, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	if e.Incomplete {
		return ErrIncomplete
	}
	return nil
}

// Parser produces a syntax tree for a source unit.
type Parser interface {
	Parse(src []byte) (*syntax.Tree, error)
}

// SourceParser is the built-in parser.
type SourceParser struct{}

func NewSourceParser() *SourceParser {
	return &SourceParser{}
}

// Parse tokenizes and parses src into a source_file tree.
func (*SourceParser) Parse(src []byte) (*syntax.Tree, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	st := &state{src: src, toks: toks}
	root, err := st.sourceFile()
	if err != nil {
		return nil, err
	}
	return syntax.NewTree(root, nil), nil
}

var precedence = map[string]int{
	"||": 1,
	"^^": 2,
	"&&": 3,
	"==": 4, "!=": 4,
	"<": 5, "<=": 5, ">": 5, ">=": 5,
	"+": 6, "-": 6,
	"*": 7, "/": 7, "%": 7,
	"**": 8,
}

var qualifierKeywords = map[string]bool{"pub": true, "static": true, "pure": true}

type state struct {
	src  []byte
	toks []token
	pos  int
}

func (p *state) raw() token {
	return p.toks[p.pos]
}

// lookahead finds the next token that is not a comment. Comments inside
// statements are dropped; only statement-level comments reach the tree.
func (p *state) lookahead() int {
	i := p.pos
	for p.toks[i].kind == tokComment || p.toks[i].kind == tokDocComment {
		i++
	}
	return i
}

func (p *state) peek() token {
	return p.toks[p.lookahead()]
}

func (p *state) advance() token {
	i := p.lookahead()
	t := p.toks[i]
	if t.kind != tokEOF {
		p.pos = i + 1
	}
	return t
}

func (p *state) accept(kind tokenKind, text string) (token, bool) {
	t := p.peek()
	if t.is(kind, text) {
		p.advance()
		return t, true
	}
	return t, false
}

func (p *state) expect(kind tokenKind, text string) (token, error) {
	t, ok := p.accept(kind, text)
	if !ok {
		return t, p.errorAt(t, "expected %q, got %s", text, t)
	}
	return t, nil
}

func (p *state) expectIdent(what string) (token, error) {
	t := p.peek()
	if t.kind != tokIdent {
		return t, p.errorAt(t, "expected %s, got %s", what, t)
	}
	p.advance()
	return t, nil
}

func (p *state) errorAt(t token, format string, args ...any) error {
	return &SyntaxError{
		Line:       t.point.Row + 1,
		Column:     t.point.Column + 1,
		Msg:        fmt.Sprintf(format, args...),
		Incomplete: t.kind == tokEOF,
	}
}

func leaf(kind string, t token) *syntax.Branch {
	return syntax.NewBranch(kind, t.start, t.end, t.point)
}

func wrap(kind string, inner *syntax.Branch) *syntax.Branch {
	return syntax.NewBranch(kind, inner.StartByte(), inner.EndByte(), inner.StartPoint()).Append("", inner)
}

//-----------------------------------------------------------------------------
// Statements
//-----------------------------------------------------------------------------

func (p *state) sourceFile() (*syntax.Branch, error) {
	root := syntax.NewBranch("source_file", 0, len(p.src), syntax.Point{})
	for {
		if stmt := p.comment(); stmt != nil {
			root.Append("", stmt)
			continue
		}
		if p.peek().kind == tokEOF {
			return root, nil
		}
		if _, ok := p.accept(tokPunct, ";"); ok {
			continue
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		root.Append("", stmt)
	}
}

func (p *state) comment() *syntax.Branch {
	t := p.raw()
	switch t.kind {
	case tokComment:
		p.pos++
		return wrap("statement", leaf("comment", t))
	case tokDocComment:
		p.pos++
		return wrap("statement", leaf("doc_comment", t))
	}
	return nil
}

func (p *state) block() (*syntax.Branch, error) {
	open, err := p.expect(tokPunct, "{")
	if err != nil {
		return nil, err
	}
	node := leaf("block", open)
	for {
		if stmt := p.comment(); stmt != nil {
			node.Append("", stmt)
			continue
		}
		if closing, ok := p.accept(tokPunct, "}"); ok {
			node.SetEnd(closing.end)
			return node, nil
		}
		if t := p.peek(); t.kind == tokEOF {
			return nil, p.errorAt(t, "unterminated block")
		}
		if _, ok := p.accept(tokPunct, ";"); ok {
			continue
		}
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		node.Append("", stmt)
	}
}

func (p *state) statement() (*syntax.Branch, error) {
	t := p.peek()
	var (
		inner *syntax.Branch
		err   error
	)
	switch {
	case t.kind == tokKeyword && (t.text == "fn" || t.text == "class" || t.text == "proto" || qualifierKeywords[t.text]):
		inner, err = p.declaration()
	case t.is(tokKeyword, "let"):
		inner, err = p.varDecl()
	case t.is(tokKeyword, "import"):
		inner, err = p.importStatement()
	case t.is(tokKeyword, "print"):
		inner, err = p.keywordStatement("print", "msg")
	case t.is(tokKeyword, "assert"):
		inner, err = p.keywordStatement("assert", "test")
	case t.is(tokKeyword, "return"):
		inner, err = p.returnStatement()
	case t.is(tokKeyword, "if"):
		inner, err = p.ifChain()
	case t.is(tokKeyword, "for"):
		inner, err = p.forLoop()
	case t.is(tokPunct, "{"):
		inner, err = p.block()
	default:
		inner, err = p.expressionStatement()
	}
	if err != nil {
		return nil, err
	}
	return wrap("statement", inner), nil
}

func (p *state) expressionStatement() (*syntax.Branch, error) {
	target, err := p.binary(0)
	if err != nil {
		return nil, err
	}
	if _, ok := p.accept(tokOperator, "="); !ok {
		return wrap("expression", target), nil
	}
	if target.Kind() != "identifier" && target.Kind() != "access" {
		return nil, &SyntaxError{
			Line:   target.StartPoint().Row + 1,
			Column: target.StartPoint().Column + 1,
			Msg:    fmt.Sprintf("cannot assign to %s", target.Kind()),
		}
	}
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	node := syntax.NewBranch("assignment", target.StartByte(), target.EndByte(), target.StartPoint())
	return node.Append("left", target).Append("right", value), nil
}

func (p *state) keywordStatement(kind, field string) (*syntax.Branch, error) {
	node := leaf(kind, p.advance())
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	return node.Append(field, value), nil
}

func (p *state) returnStatement() (*syntax.Branch, error) {
	node := leaf("return", p.advance())
	next := p.peek()
	if next.kind == tokEOF || next.newline || next.is(tokPunct, "}") || next.is(tokPunct, ";") {
		return node, nil
	}
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	return node.Append("value", value), nil
}

func (p *state) varDecl() (*syntax.Branch, error) {
	node := leaf("var_decl", p.advance())
	name, err := p.expectIdent("variable name")
	if err != nil {
		return nil, err
	}
	node.Append("name", leaf("identifier", name))
	if _, ok := p.accept(tokPunct, ":"); ok {
		typ, err := p.typeName()
		if err != nil {
			return nil, err
		}
		node.Append("type", typ)
	}
	if _, ok := p.accept(tokOperator, "="); ok {
		value, err := p.expression()
		if err != nil {
			return nil, err
		}
		node.Append("initial", value)
	}
	return node, nil
}

func (p *state) typeName() (*syntax.Branch, error) {
	t := p.peek()
	if t.kind != tokIdent && !t.is(tokKeyword, "none") {
		return nil, p.errorAt(t, "expected type name, got %s", t)
	}
	p.advance()
	return leaf("type", t), nil
}

func (p *state) declaration() (*syntax.Branch, error) {
	first := p.peek()
	var quals *syntax.Branch
	for qualifierKeywords[p.peek().text] && p.peek().kind == tokKeyword {
		q := p.advance()
		if quals == nil {
			quals = leaf("qualifier_list", q)
		}
		quals.Append("", leaf("qualifier", q))
	}

	t := p.advance()
	var kind string
	switch {
	case t.is(tokKeyword, "fn"):
		kind = "function_declaration"
	case t.is(tokKeyword, "class"):
		kind = "class_declaration"
	case t.is(tokKeyword, "proto"):
		kind = "proto"
	default:
		return nil, p.errorAt(t, "expected fn, class or proto, got %s", t)
	}

	node := leaf(kind, first)
	if quals != nil {
		node.Append("qualifiers", quals)
	}
	name, err := p.expectIdent("name")
	if err != nil {
		return nil, err
	}
	node.Append("name", leaf("identifier", name))

	if p.peek().is(tokPunct, "(") {
		params, err := p.paramList()
		if err != nil {
			return nil, err
		}
		node.Append("params", params)
	}

	switch kind {
	case "proto":
		return node, nil
	case "function_declaration":
		if _, ok := p.accept(tokOperator, "="); ok {
			body, err := p.expression()
			if err != nil {
				return nil, err
			}
			return node.Append("body", body), nil
		}
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return node.Append("body", body), nil
}

func (p *state) paramList() (*syntax.Branch, error) {
	open := p.advance()
	list := leaf("param_list", open)
	for {
		if closing, ok := p.accept(tokPunct, ")"); ok {
			list.SetEnd(closing.end)
			return list, nil
		}
		if list.NamedChildCount() > 0 {
			if _, err := p.expect(tokPunct, ","); err != nil {
				return nil, err
			}
			if closing, ok := p.accept(tokPunct, ")"); ok {
				list.SetEnd(closing.end)
				return list, nil
			}
		}
		ident, err := p.expectIdent("parameter name")
		if err != nil {
			return nil, err
		}
		param := leaf("param", ident).Append("ident", leaf("identifier", ident))
		if _, ok := p.accept(tokPunct, ":"); ok {
			typ, err := p.typeName()
			if err != nil {
				return nil, err
			}
			param.Append("type", typ)
		}
		list.Append("", param)
	}
}

func (p *state) importStatement() (*syntax.Branch, error) {
	node := leaf("import", p.advance())
	if dot, ok := p.accept(tokPunct, "."); ok {
		node.Append("relative", leaf("relative", dot))
	}
	first, err := p.expectIdent("import path")
	if err != nil {
		return nil, err
	}
	path := leaf("import_path", first).Append("", leaf("identifier", first))
	for {
		next := p.peek()
		if next.newline || !next.is(tokPunct, ".") {
			break
		}
		p.advance()
		bit, err := p.expectIdent("import path component")
		if err != nil {
			return nil, err
		}
		path.Append("", leaf("identifier", bit))
	}
	return node.Append("path", path), nil
}

func (p *state) ifChain() (*syntax.Branch, error) {
	node := leaf("if_chain", p.advance())
	if err := p.conditional(node, "condition", "body"); err != nil {
		return nil, err
	}
	for {
		if _, ok := p.accept(tokKeyword, "elif"); !ok {
			break
		}
		if err := p.conditional(node, "elif_condition", "elif_body"); err != nil {
			return nil, err
		}
	}
	if _, ok := p.accept(tokKeyword, "else"); ok {
		body, err := p.block()
		if err != nil {
			return nil, err
		}
		node.Append("else_body", body)
	}
	return node, nil
}

func (p *state) conditional(node *syntax.Branch, condField, bodyField string) error {
	cond, err := p.expression()
	if err != nil {
		return err
	}
	body, err := p.block()
	if err != nil {
		return err
	}
	node.Append(condField, cond).Append(bodyField, body)
	return nil
}

func (p *state) forLoop() (*syntax.Branch, error) {
	node := leaf("for_loop", p.advance())
	name, err := p.expectIdent("loop variable")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokKeyword, "in"); err != nil {
		return nil, err
	}
	iter, err := p.expression()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return node.Append("cur_var_name", leaf("identifier", name)).Append("iterator", iter).Append("body", body), nil
}

//-----------------------------------------------------------------------------
// Expressions
//-----------------------------------------------------------------------------

func (p *state) expression() (*syntax.Branch, error) {
	inner, err := p.binary(0)
	if err != nil {
		return nil, err
	}
	return wrap("expression", inner), nil
}

func (p *state) binary(minPrec int) (*syntax.Branch, error) {
	left, err := p.postfix()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		prec, ok := precedence[op.text]
		if op.kind != tokOperator || !ok || prec < minPrec {
			return left, nil
		}
		p.advance()
		next := prec + 1
		if op.text == "**" {
			next = prec
		}
		right, err := p.binary(next)
		if err != nil {
			return nil, err
		}
		node := syntax.NewBranch("binary_expression", left.StartByte(), left.EndByte(), left.StartPoint())
		node.Append("left", wrap("expression", left)).
			Append("operator", leaf("operator", op)).
			Append("right", wrap("expression", right))
		left = node
	}
}

func (p *state) postfix() (*syntax.Branch, error) {
	node, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.newline {
			return node, nil
		}
		switch {
		case t.is(tokPunct, "("):
			args, err := p.argList()
			if err != nil {
				return nil, err
			}
			call := syntax.NewBranch("call", node.StartByte(), node.EndByte(), node.StartPoint())
			node = call.Append("callable", wrap("expression", node)).Append("args", args)
		case t.is(tokPunct, "."):
			p.advance()
			name, err := p.expectIdent("member name")
			if err != nil {
				return nil, err
			}
			access := syntax.NewBranch("access", node.StartByte(), node.EndByte(), node.StartPoint())
			node = access.Append("accessed", wrap("expression", node)).Append("accessor", leaf("identifier", name))
		case t.is(tokPunct, "["):
			p.advance()
			idx, err := p.expression()
			if err != nil {
				return nil, err
			}
			closing, err := p.expect(tokPunct, "]")
			if err != nil {
				return nil, err
			}
			index := syntax.NewBranch("index", node.StartByte(), node.EndByte(), node.StartPoint())
			node = index.Append("indexed", wrap("expression", node)).Append("index", idx)
			node.SetEnd(closing.end)
		default:
			return node, nil
		}
	}
}

func (p *state) argList() (*syntax.Branch, error) {
	open := p.advance()
	list := leaf("arg_list", open)
	for {
		if closing, ok := p.accept(tokPunct, ")"); ok {
			list.SetEnd(closing.end)
			return list, nil
		}
		if list.NamedChildCount() > 0 {
			if _, err := p.expect(tokPunct, ","); err != nil {
				return nil, err
			}
			if closing, ok := p.accept(tokPunct, ")"); ok {
				list.SetEnd(closing.end)
				return list, nil
			}
		}
		arg, err := p.expression()
		if err != nil {
			return nil, err
		}
		list.Append("", arg)
	}
}

func (p *state) primary() (*syntax.Branch, error) {
	t := p.advance()
	switch {
	case t.kind == tokNumber:
		return leaf("literal", t).Append("", leaf("number", t)), nil
	case t.is(tokOperator, "-"):
		num := p.peek()
		if num.kind != tokNumber || num.start != t.end {
			return nil, p.errorAt(t, "unexpected %s", t)
		}
		p.advance()
		neg := t
		neg.end = num.end
		return leaf("literal", neg).Append("", leaf("number", neg)), nil
	case t.kind == tokString:
		return leaf("literal", t).Append("", leaf("string", t)), nil
	case t.is(tokKeyword, "true"), t.is(tokKeyword, "false"):
		return leaf("literal", t).Append("", leaf("bool", t)), nil
	case t.is(tokKeyword, "none"):
		return leaf("literal", t).Append("", leaf("none", t)), nil
	case t.kind == tokIdent:
		return leaf("identifier", t), nil
	case t.is(tokPunct, "("):
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		closing, err := p.expect(tokPunct, ")")
		if err != nil {
			return nil, err
		}
		node := leaf("parenthesized_expression", t).Append("", inner)
		node.SetEnd(closing.end)
		return node, nil
	case t.is(tokPunct, "["):
		return p.vector(t)
	default:
		return nil, p.errorAt(t, "unexpected %s", t)
	}
}

func (p *state) vector(open token) (*syntax.Branch, error) {
	node := leaf("vec", open)
	for {
		if closing, ok := p.accept(tokPunct, "]"); ok {
			node.SetEnd(closing.end)
			return node, nil
		}
		if node.NamedChildCount() > 0 {
			if _, err := p.expect(tokPunct, ","); err != nil {
				return nil, err
			}
			if closing, ok := p.accept(tokPunct, "]"); ok {
				node.SetEnd(closing.end)
				return node, nil
			}
		}
		elem, err := p.expression()
		if err != nil {
			return nil, err
		}
		node.Append("", elem)
	}
}
