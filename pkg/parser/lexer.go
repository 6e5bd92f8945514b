package parser

import (
	"fmt"

	"github.com/inobulles/flamingo/pkg/syntax"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokKeyword
	tokPunct
	tokOperator
	tokComment
	tokDocComment
)

var keywords = map[string]bool{
	"let":    true,
	"fn":     true,
	"class":  true,
	"proto":  true,
	"import": true,
	"print":  true,
	"assert": true,
	"return": true,
	"if":     true,
	"elif":   true,
	"else":   true,
	"for":    true,
	"in":     true,
	"true":   true,
	"false":  true,
	"none":   true,
	"pub":    true,
	"static": true,
	"pure":   true,
}

// Longest operators first so "**" wins over "*".
var operators = []string{
	"**", "==", "!=", "<=", ">=", "&&", "||", "^^",
	"+", "-", "*", "/", "%", "<", ">", "=",
}

type token struct {
	kind  tokenKind
	text  string
	start int
	end   int
	point syntax.Point
	// newline is set when a line break separates this token from the
	// previous one.
	newline bool
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokString:
		return "string literal"
	case tokComment, tokDocComment:
		return "comment"
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

type lexer struct {
	src     []byte
	pos     int
	row     int
	lineAt  int
	newline bool
}

func tokenize(src []byte) ([]token, error) {
	lx := &lexer{src: src}
	var toks []token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.kind == tokEOF {
			return toks, nil
		}
	}
}

func (lx *lexer) point() syntax.Point {
	return syntax.Point{Row: lx.row, Column: lx.pos - lx.lineAt}
}

func (lx *lexer) errorf(point syntax.Point, incomplete bool, format string, args ...any) error {
	return &SyntaxError{
		Line:       point.Row + 1,
		Column:     point.Column + 1,
		Msg:        fmt.Sprintf(format, args...),
		Incomplete: incomplete,
	}
}

func (lx *lexer) skipSpace() {
	for lx.pos < len(lx.src) {
		switch lx.src[lx.pos] {
		case '\n':
			lx.pos++
			lx.row++
			lx.lineAt = lx.pos
			lx.newline = true
		case ' ', '\t', '\r':
			lx.pos++
		default:
			return
		}
	}
}

func (lx *lexer) next() (token, error) {
	lx.skipSpace()
	start := lx.pos
	point := lx.point()
	tok := token{start: start, point: point, newline: lx.newline}
	lx.newline = false

	if lx.pos >= len(lx.src) {
		tok.kind = tokEOF
		tok.end = start
		return tok, nil
	}

	c := lx.src[lx.pos]
	switch {
	case c == '/' && lx.peekByte(1) == '/':
		tok.kind = tokComment
		if lx.peekByte(2) == '/' {
			tok.kind = tokDocComment
		}
		for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
			lx.pos++
		}
	case isIdentStart(c):
		for lx.pos < len(lx.src) && isIdentPart(lx.src[lx.pos]) {
			lx.pos++
		}
		tok.kind = tokIdent
		if keywords[string(lx.src[start:lx.pos])] {
			tok.kind = tokKeyword
		}
	case isDigit(c):
		for lx.pos < len(lx.src) && isDigit(lx.src[lx.pos]) {
			lx.pos++
		}
		if lx.pos < len(lx.src) && isIdentStart(lx.src[lx.pos]) {
			return tok, lx.errorf(lx.point(), false, "malformed number literal")
		}
		tok.kind = tokNumber
	case c == '"':
		if err := lx.scanString(point); err != nil {
			return tok, err
		}
		tok.kind = tokString
	case isPunct(c):
		lx.pos++
		tok.kind = tokPunct
	default:
		op := lx.matchOperator()
		if op == "" {
			return tok, lx.errorf(point, false, "unexpected character %q", c)
		}
		lx.pos += len(op)
		tok.kind = tokOperator
	}

	tok.end = lx.pos
	tok.text = string(lx.src[start:lx.pos])
	return tok, nil
}

func (lx *lexer) scanString(start syntax.Point) error {
	lx.pos++
	for lx.pos < len(lx.src) {
		switch lx.src[lx.pos] {
		case '\\':
			lx.pos += 2
			continue
		case '"':
			lx.pos++
			return nil
		case '\n':
			return lx.errorf(start, false, "unterminated string literal")
		}
		lx.pos++
	}
	return lx.errorf(start, true, "unterminated string literal")
}

func (lx *lexer) matchOperator() string {
	for _, op := range operators {
		end := lx.pos + len(op)
		if end <= len(lx.src) && string(lx.src[lx.pos:end]) == op {
			return op
		}
	}
	return ""
}

func (lx *lexer) peekByte(offset int) byte {
	if lx.pos+offset >= len(lx.src) {
		return 0
	}
	return lx.src[lx.pos+offset]
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isPunct(c byte) bool {
	switch c {
	case '(', ')', '{', '}', '[', ']', ',', '.', ':', ';':
		return true
	}
	return false
}
