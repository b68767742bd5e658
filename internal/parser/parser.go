// Package parser provides a recursive-descent parser for MeTTa source text.
//
// The parser builds a typed syntax tree whose nodes carry byte ranges into
// the source text. It recognises the exec marker (!), comments, variables,
// strings, words and parenthesised groups, and tags groups that open with
// "=" (rules) or ":" (type declarations).
package parser

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	// ErrUnclosedGroup is returned when input ends inside a parenthesised group.
	ErrUnclosedGroup = errors.New("unclosed expression")
	// ErrUnexpectedCloseParen is returned for a ')' outside of any group.
	ErrUnexpectedCloseParen = errors.New("unexpected ')' at top level")
	// ErrMissingExecExpr is returned when '!' is not followed by a group.
	ErrMissingExecExpr = errors.New("expected an expression after '!'")
)

// Error reports a structural parse failure at a byte offset.
type Error struct {
	Offset int
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("parse error at byte %d: %v", e.Offset, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Parser turns source text into top-level syntax nodes.
type Parser struct {
	sc *Scanner
}

// NewParser creates a parser over text.
func NewParser(text string) *Parser {
	return &Parser{sc: NewScanner(text)}
}

// Parse parses text and returns its top-level nodes in source order.
func Parse(text string) ([]Node, error) {
	p := NewParser(text)
	var roots []Node
	for {
		n, err := p.Next()
		if err != nil {
			return nil, err
		}
		if n == nil {
			return roots, nil
		}
		roots = append(roots, n)
	}
}

// Next parses the next top-level node. It returns nil, nil at end of input.
func (p *Parser) Next() (Node, error) {
	p.skipSpace()

	off, c, ok := p.sc.Peek()
	if !ok {
		return nil, nil
	}

	switch c {
	case '!':
		return p.parseExec()
	case ';':
		return p.parseComment(), nil
	case '$':
		return p.parseVariable(), nil
	case '(':
		return p.parseGroup()
	case ')':
		return nil, &Error{Offset: off, Err: ErrUnexpectedCloseParen}
	case '"':
		return p.parseString(), nil
	default:
		return p.parseWord(), nil
	}
}

func (p *Parser) skipSpace() {
	for {
		_, c, ok := p.sc.Peek()
		if !ok || !unicode.IsSpace(c) {
			return
		}
		p.sc.Advance()
	}
}

func isWordEnd(c rune) bool {
	return unicode.IsSpace(c) || c == '(' || c == ')' || c == ';'
}

func (p *Parser) parseExec() (Node, error) {
	start := p.sc.Offset()
	bang := p.parseWord()

	p.skipSpace()
	off, c, ok := p.sc.Peek()
	if !ok || c != '(' {
		return nil, &Error{Offset: off, Err: ErrMissingExecExpr}
	}

	expr, err := p.parseGroup()
	if err != nil {
		return nil, err
	}

	return newGroup(KindCallGroup, start, p.sc.Offset(), []Node{bang, expr}), nil
}

func (p *Parser) parseComment() Node {
	start := p.sc.Offset()
	p.sc.Advance() // ';'

	var b strings.Builder
	for {
		_, c, ok := p.sc.Peek()
		if !ok || c == '\n' {
			break
		}
		b.WriteRune(c)
		p.sc.Advance()
	}
	return newToken(KindComment, start, p.sc.Offset(), b.String())
}

func (p *Parser) parseGroup() (Node, error) {
	start, _, _ := p.sc.Advance() // '('
	children := []Node{newToken(KindOpenParen, start, start+1, "(")}
	kind := KindExpressionGroup

	for {
		// whitespace and inline comments
		for {
			p.skipSpace()
			_, c, ok := p.sc.Peek()
			if !ok || c != ';' {
				break
			}
			children = append(children, p.parseComment())
		}

		off, c, ok := p.sc.Peek()
		if !ok {
			return nil, &Error{Offset: start, Err: ErrUnclosedGroup}
		}

		switch {
		case c == ')':
			p.sc.Advance()
			children = append(children, newToken(KindCloseParen, off, off+1, ")"))
			return newGroup(kind, start, p.sc.Offset(), children), nil

		case c == ':' && len(children) == 1:
			p.sc.Advance()
			children = append(children, newToken(KindWordToken, off, off+1, ":"))
			kind = KindTypeCheckGroup

		case c == '=' && len(children) == 1:
			p.sc.Advance()
			end := p.sc.Offset()
			p.skipSpace()
			if _, c2, ok := p.sc.Peek(); ok && c2 == '=' {
				// "==" declares a function type, not a rule
				p.sc.Advance()
				children = append(children, newToken(KindWordToken, off, p.sc.Offset(), "=="))
			} else {
				children = append(children, newToken(KindWordToken, off, end, "="))
				kind = KindRuleGroup
			}

		default:
			child, err := p.Next()
			if err != nil {
				return nil, err
			}
			if child == nil {
				return nil, &Error{Offset: start, Err: ErrUnclosedGroup}
			}
			children = append(children, child)
		}
	}
}

func (p *Parser) parseString() Node {
	start := p.sc.Offset()
	p.sc.Advance() // opening quote

	var b strings.Builder
	for {
		_, c, ok := p.sc.Advance()
		if !ok || c == '"' {
			break
		}
		b.WriteRune(c)
	}
	return newToken(KindStringToken, start, p.sc.Offset(), b.String())
}

func (p *Parser) parseWord() Node {
	start := p.sc.Offset()
	text := p.readUntilWordEnd()
	return newToken(KindWordToken, start, p.sc.Offset(), text)
}

func (p *Parser) parseVariable() Node {
	start := p.sc.Offset()
	p.sc.Advance() // '$'
	text := p.readUntilWordEnd()
	return newToken(KindVariableToken, start, p.sc.Offset(), text)
}

func (p *Parser) readUntilWordEnd() string {
	var b strings.Builder
	for {
		_, c, ok := p.sc.Peek()
		if !ok || isWordEnd(c) {
			return b.String()
		}
		b.WriteRune(c)
		p.sc.Advance()
	}
}
