package parser

import "fmt"

// Kind identifies the syntactic role of a node.
type Kind int

const (
	KindComment Kind = iota
	KindVariableToken
	KindStringToken
	KindWordToken
	KindOpenParen
	KindCloseParen
	KindWhitespace
	KindLeftoverText
	KindErrorGroup
	KindExpressionGroup
	KindCallGroup
	KindRuleGroup
	KindTypeCheckGroup
)

var kindNames = [...]string{
	KindComment:         "Comment",
	KindVariableToken:   "VariableToken",
	KindStringToken:     "StringToken",
	KindWordToken:       "WordToken",
	KindOpenParen:       "OpenParen",
	KindCloseParen:      "CloseParen",
	KindWhitespace:      "Whitespace",
	KindLeftoverText:    "LeftoverText",
	KindErrorGroup:      "ErrorGroup",
	KindExpressionGroup: "ExpressionGroup",
	KindCallGroup:       "CallGroup",
	KindRuleGroup:       "RuleGroup",
	KindTypeCheckGroup:  "TypeCheckGroup",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsGroup reports whether nodes of this kind carry children.
func (k Kind) IsGroup() bool {
	return k >= KindErrorGroup
}

// IsLeaf reports whether the kind is treated as a unit when classifying
// forms. Call, rule and type-check groups are leaves even though they have
// children; only plain expressions and error groups are not.
func (k Kind) IsLeaf() bool {
	return k != KindExpressionGroup && k != KindErrorGroup
}

// Range is a half-open byte range [Start, End) into the source text.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Node is a syntax tree node. It is implemented by *Token and *Group only.
type Node interface {
	Kind() Kind
	Range() Range
	Children() []Node
	node()
}

// Token is a childless node holding the literal text it was parsed from.
type Token struct {
	kind Kind
	rng  Range
	Text string
}

// Group is a node made of child nodes whose ranges it spans.
type Group struct {
	kind     Kind
	rng      Range
	children []Node
}

func newToken(kind Kind, start, end int, text string) *Token {
	return &Token{kind: kind, rng: Range{Start: start, End: end}, Text: text}
}

func newGroup(kind Kind, start, end int, children []Node) *Group {
	return &Group{kind: kind, rng: Range{Start: start, End: end}, children: children}
}

func (t *Token) Kind() Kind       { return t.kind }
func (t *Token) Range() Range     { return t.rng }
func (t *Token) Children() []Node { return nil }
func (t *Token) node()            {}

func (g *Group) Kind() Kind       { return g.kind }
func (g *Group) Range() Range     { return g.rng }
func (g *Group) Children() []Node { return g.children }
func (g *Group) node()            {}

// Size returns the byte length of a node's source range.
func Size(n Node) int {
	return n.Range().Len()
}

// Text returns the exact source text covered by n.
func Text(n Node, source string) string {
	r := n.Range()
	return source[r.Start:r.End]
}
