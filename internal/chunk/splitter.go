package chunk

import (
	"fmt"

	"github.com/randalmurphal/metta-indexer/internal/parser"
)

// MergeStrategy controls how sibling fragments are packed while splitting.
type MergeStrategy string

const (
	// MergePair joins at most the first fragment of each child onto the
	// previous tail.
	MergePair MergeStrategy = "pair"
	// MergeRun keeps joining a child's leading fragments while they fit.
	MergeRun MergeStrategy = "run"
)

// Splitter breaks oversized syntax trees into fragments within MaxSize
// bytes. Fragments are contiguous spans of the source: each child's span
// starts where its previous sibling ended, so the whitespace between
// siblings travels with the following fragment and concatenating every
// fragment reproduces the input exactly.
type Splitter struct {
	MaxSize int
	Merge   MergeStrategy
}

// Split returns the spans of n (an element of a tree parsed from some
// source) in source order. A childless node that exceeds MaxSize is
// returned whole; the whitespace before it never is.
func (s Splitter) Split(n parser.Node) []parser.Range {
	return s.split(n, n.Range().Start)
}

// SplitText parses text and splits every top-level node in it.
func (s Splitter) SplitText(text string) ([]string, error) {
	nodes, err := parser.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("re-parse fragment: %w", err)
	}
	if len(nodes) == 0 {
		if text == "" {
			return nil, nil
		}
		return []string{text}, nil
	}

	spans := s.splitSeq(nodes, 0)
	if end := spans[len(spans)-1].End; end < len(text) {
		spans = s.merge(spans, s.gap(end, len(text)))
	}

	out := make([]string, len(spans))
	for i, r := range spans {
		out[i] = text[r.Start:r.End]
	}
	return out, nil
}

func (s Splitter) split(n parser.Node, from int) []parser.Range {
	r := n.Range()
	whole := []parser.Range{{Start: from, End: r.End}}

	if r.End-from <= s.MaxSize {
		return whole
	}

	// The node fits once the gap before it is cut off. Childless nodes are
	// accepted oversized, but only their own bytes may exceed MaxSize.
	children := n.Children()
	if r.Len() <= s.MaxSize || len(children) == 0 {
		return append(s.gap(from, r.Start), r)
	}

	out := s.splitSeq(children, from)
	if last := &out[len(out)-1]; last.End < r.End {
		last.End = r.End
	}
	return out
}

// gap cuts the whitespace in [from, to) into spans of at most MaxSize.
func (s Splitter) gap(from, to int) []parser.Range {
	if s.MaxSize <= 0 {
		if from == to {
			return nil
		}
		return []parser.Range{{Start: from, End: to}}
	}
	var out []parser.Range
	for from < to {
		end := min(from+s.MaxSize, to)
		out = append(out, parser.Range{Start: from, End: end})
		from = end
	}
	return out
}

func (s Splitter) splitSeq(nodes []parser.Node, from int) []parser.Range {
	var out []parser.Range
	cur := from
	for _, n := range nodes {
		sub := s.split(n, cur)
		cur = n.Range().End
		out = s.merge(out, sub)
	}
	return out
}

func (s Splitter) merge(out, sub []parser.Range) []parser.Range {
	if len(out) == 0 {
		return append(out, sub...)
	}

	limit := 1
	if s.Merge == MergeRun {
		limit = len(sub)
	}

	i := 0
	for ; i < limit && i < len(sub); i++ {
		tail := &out[len(out)-1]
		if tail.Len()+sub[i].Len() > s.MaxSize {
			break
		}
		tail.End = sub[i].End
	}

	return append(out, sub[i:]...)
}
