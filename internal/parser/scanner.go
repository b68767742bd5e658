package parser

import "unicode/utf8"

// Scanner is a single-pass cursor over source text with one rune of
// lookahead. Offsets are byte offsets, so multi-byte runes advance the
// cursor by their encoded width.
type Scanner struct {
	src    string
	offset int

	// buffered lookahead
	next     rune
	nextSize int
}

// NewScanner creates a scanner positioned at the start of src.
func NewScanner(src string) *Scanner {
	s := &Scanner{src: src}
	s.fill()
	return s
}

func (s *Scanner) fill() {
	if s.offset >= len(s.src) {
		s.next, s.nextSize = 0, 0
		return
	}
	s.next, s.nextSize = utf8.DecodeRuneInString(s.src[s.offset:])
}

// Offset returns the byte offset of the next unconsumed rune.
func (s *Scanner) Offset() int {
	return s.offset
}

// Peek returns the next rune and its offset without consuming it.
func (s *Scanner) Peek() (offset int, r rune, ok bool) {
	if s.nextSize == 0 {
		return s.offset, 0, false
	}
	return s.offset, s.next, true
}

// Advance consumes and returns the next rune and its offset.
func (s *Scanner) Advance() (offset int, r rune, ok bool) {
	offset, r, ok = s.Peek()
	if !ok {
		return offset, 0, false
	}
	s.offset += s.nextSize
	s.fill()
	return offset, r, true
}
