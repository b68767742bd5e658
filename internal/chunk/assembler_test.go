package chunk

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/randalmurphal/metta-indexer/internal/parser"
	"github.com/randalmurphal/metta-indexer/internal/symbol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// indexSource runs parse and extraction over src the way the indexer does.
func indexSource(t *testing.T, idx symbol.Index, scope, path, src string) {
	t.Helper()
	nodes, err := parser.Parse(src)
	require.NoError(t, err)

	for i, n := range nodes {
		head := symbol.Extract(n, src, i)
		if !head.Indexable() {
			continue
		}
		frag := symbol.Fragment{Path: path, Text: parser.Text(n, src)}
		require.NoError(t, idx.Add(context.Background(), scope, head.Name, head.Role, frag))
	}
}

func assembleSource(t *testing.T, src string, maxSize int) []Chunk {
	t.Helper()
	ctx := context.Background()
	idx := symbol.NewMemoryIndex()
	indexSource(t, idx, "repo", "repo/main.metta", src)

	rows, err := idx.Rows(ctx, "repo")
	require.NoError(t, err)

	chunks, err := NewAssembler(AssemblerConfig{MaxSize: maxSize}).Assemble(ctx, rows)
	require.NoError(t, err)
	return chunks
}

func frags(texts ...string) []symbol.Fragment {
	out := make([]symbol.Fragment, len(texts))
	for i, text := range texts {
		out[i] = symbol.Fragment{Path: "repo/f.metta", Text: text}
	}
	return out
}

// form returns a parseable expression of exactly size bytes.
func form(size int) string {
	return "(x " + strings.Repeat("a", size-4) + ")"
}

func TestAssembleSingleRule(t *testing.T) {
	src := `(= (double $x) (* $x 2))`

	chunks := assembleSource(t, src, 100)
	require.Len(t, chunks, 1)
	assert.Equal(t, src, chunks[0].Text)
	assert.Equal(t, []string{"repo/main.metta"}, chunks[0].OriginPaths)
}

func TestAssembleGroupsBySymbol(t *testing.T) {
	src := `!(double 5)
(: double (-> Number Number))
(= (triple $x) (* $x 3))
!(assertEqual (double 5) 10)
(= (double $x) (* $x 2))
; a note
`
	chunks := assembleSource(t, src, 500)
	require.Len(t, chunks, 3)

	assert.Equal(t, strings.Join([]string{
		"(= (double $x) (* $x 2))",
		"!(double 5)",
		"!(assertEqual (double 5) 10)",
		"(: double (-> Number Number))",
	}, "\n"), chunks[0].Text)
	assert.Equal(t, "(= (triple $x) (* $x 3))", chunks[1].Text)
	assert.Equal(t, "; a note", chunks[2].Text)
}

func TestAssembleRowOverflowKeepsFragment(t *testing.T) {
	a := NewAssembler(AssemblerConfig{MaxSize: 90})
	f1, f2, f3 := form(40), form(40), form(40)

	chunks, err := a.AssembleRow(context.Background(), frags(f1, f2, f3))
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, f1+"\n"+f2, chunks[0].Text)
	assert.Equal(t, f3, chunks[1].Text)
}

func TestAssembleRowCountsJoiningNewline(t *testing.T) {
	a := NewAssembler(AssemblerConfig{MaxSize: 100})

	chunks, err := a.AssembleRow(context.Background(), frags(form(50), form(50)))
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	chunks, err = a.AssembleRow(context.Background(), frags(form(50), form(49)))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 100, chunks[0].Size())
}

func TestAssembleRowSplitsOversizedFragment(t *testing.T) {
	a := NewAssembler(AssemblerConfig{MaxSize: 100})
	big := bigRule(400)
	before, after := form(20), form(30)

	chunks, err := a.AssembleRow(context.Background(), frags(before, big, after))
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 4)

	assert.Equal(t, before, chunks[0].Text)
	assert.Equal(t, after, chunks[len(chunks)-1].Text)

	var pieces []string
	for _, c := range chunks[1 : len(chunks)-1] {
		assert.LessOrEqual(t, c.Size(), 100)
		pieces = append(pieces, c.Text)
	}
	assert.Equal(t, big, strings.Join(pieces, ""))
}

func TestAssembleRowKeepsUnparseableFragment(t *testing.T) {
	a := NewAssembler(AssemblerConfig{MaxSize: 10})
	broken := strings.Repeat("(", 30)

	chunks, err := a.AssembleRow(context.Background(), frags(broken))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, broken, chunks[0].Text)
}

func TestAssembleRowMergesOriginPaths(t *testing.T) {
	a := NewAssembler(AssemblerConfig{MaxSize: 100, Version: "abc123"})
	row := []symbol.Fragment{
		{Path: "repo/b.metta", Text: "(= (f) 1)"},
		{Path: "repo/sub/a.metta", Text: "!(f)"},
		{Path: "repo/b.metta", Text: "!(f 2)"},
	}

	chunks, err := a.AssembleRow(context.Background(), row)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, []string{"repo/b.metta", "repo/sub/a.metta"}, chunks[0].OriginPaths)
	assert.Equal(t, []string{"b.metta", "a.metta"}, chunks[0].Files)
	assert.Equal(t, "abc123", chunks[0].Version)
}

func TestAssembleRowEmpty(t *testing.T) {
	a := NewAssembler(AssemblerConfig{})
	assert.Equal(t, DefaultMaxSize, a.MaxSize())

	chunks, err := a.AssembleRow(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)

	chunks, err = a.AssembleRow(context.Background(), frags("", ""))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

type mapResolver map[string]string

func (m mapResolver) ResolveText(_ context.Context, id string) (string, error) {
	text, ok := m[id]
	if !ok {
		return "", fmt.Errorf("text node %s not found", id)
	}
	return text, nil
}

func TestAssembleResolvesNodeIDs(t *testing.T) {
	resolver := mapResolver{"n1": "(= (f) 1)", "n2": "!(f)"}
	a := NewAssembler(AssemblerConfig{MaxSize: 100, Resolver: resolver})

	row := []symbol.Fragment{{Path: "r/a.metta", NodeID: "n1"}, {Path: "r/a.metta", NodeID: "n2"}}
	chunks, err := a.AssembleRow(context.Background(), row)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "(= (f) 1)\n!(f)", chunks[0].Text)

	_, err = a.AssembleRow(context.Background(), []symbol.Fragment{{NodeID: "missing"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")

	_, err = NewAssembler(AssemblerConfig{}).AssembleRow(context.Background(), row)
	assert.Error(t, err)
}

func TestAssembleWhitespaceHeavyRule(t *testing.T) {
	rule := "(= (f $x)" + strings.Repeat(" ", 40) + "(g $x))"

	a := NewAssembler(AssemblerConfig{MaxSize: 20})
	chunks, err := a.AssembleRow(context.Background(), frags(rule))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	var parts []string
	for _, c := range chunks {
		assert.LessOrEqual(t, c.Size(), 20, "chunk %q", c.Text)
		parts = append(parts, c.Text)
	}
	assert.Equal(t, rule, strings.Join(parts, ""))
}

func TestAssembleSizeInvariant(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "(: fn%d (-> Number Number))\n", i%7)
		fmt.Fprintf(&b, "(= (fn%d $x) (+ $x %d))\n", i%7, i)
		fmt.Fprintf(&b, "!(fn%d %d)\n", i%7, i)
		if i%5 == 0 {
			b.WriteString(bigRule(700))
			b.WriteString("\n; spacer\n")
		}
	}
	src := b.String()

	for _, maxSize := range []int{60, 150, 500, 1500} {
		t.Run(fmt.Sprint(maxSize), func(t *testing.T) {
			for _, c := range assembleSource(t, src, maxSize) {
				assert.LessOrEqual(t, c.Size(), maxSize)
				assert.NotEmpty(t, c.Text)
			}
		})
	}
}
