package symbol

import (
	"testing"

	"github.com/randalmurphal/metta-indexer/internal/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractAll(t *testing.T, src string) []Head {
	t.Helper()
	nodes, err := parser.Parse(src)
	require.NoError(t, err)

	heads := make([]Head, len(nodes))
	for i, n := range nodes {
		heads[i] = Extract(n, src, i)
	}
	return heads
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want Head
	}{
		{"rule", `(= (double $x) (* $x 2))`, Head{Name: "double", Role: RoleDefinition}},
		{"rule with spacing", "(=  ( my-fn_2 $x) $x)", Head{Name: "my-fn_2", Role: RoleDefinition}},
		{"call", `!(double 5)`, Head{Name: "double", Role: RoleCall}},
		{"spaced call", `! ( double 5)`, Head{Name: "double", Role: RoleCall}},
		{"assert", `!(assertEqual (double 5) 10)`, Head{Name: "double", Role: RoleAssert}},
		{"assert without inner form", `!(assertEqual 5 5)`, Head{Role: RoleAssert}},
		{"type", `(: double (-> Number Number))`, Head{Name: "double", Role: RoleType}},
		{"rule over a non-call head", `(= foo bar)`, Head{Role: RoleUnknown}},
		{"plain expression", `(double 5)`, Head{Role: RoleUnknown}},
		{"function type marker", `(== (f $x) Number)`, Head{Role: RoleUnknown}},
		{"word", `bare`, Head{Role: RoleUnknown}},
		{"call of a non-name", `!("str" 1)`, Head{Role: RoleUnknown}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			heads := extractAll(t, tc.src)
			require.Len(t, heads, 1)
			assert.Equal(t, tc.want, heads[0])
		})
	}
}

func TestExtractComment(t *testing.T) {
	src := "(= (f) 1)\n!(f)\n; note\n"

	heads := extractAll(t, src)
	require.Len(t, heads, 3)
	assert.Equal(t, Head{Name: "comment_2", Role: RoleDefinition}, heads[2])
	assert.True(t, heads[2].Indexable())
}

func TestHeadIndexable(t *testing.T) {
	assert.True(t, Head{Name: "f", Role: RoleCall}.Indexable())
	assert.False(t, Head{Role: RoleAssert}.Indexable())
	assert.False(t, Head{Name: "f", Role: RoleUnknown}.Indexable())
}
