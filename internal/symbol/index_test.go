package symbol

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIndexSetSemantics(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	frag := Fragment{Path: "repo/a.metta", Text: "(= (f) 1)"}
	require.NoError(t, idx.Add(ctx, "repo", "f", RoleDefinition, frag))
	require.NoError(t, idx.Add(ctx, "repo", "f", RoleDefinition, frag))

	rows, err := idx.Rows(ctx, "repo")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0].Definitions, 1)

	// same text from another path is a different fragment
	require.NoError(t, idx.Add(ctx, "repo", "f", RoleDefinition, Fragment{Path: "repo/b.metta", Text: frag.Text}))
	// same fragment in another bucket is kept
	require.NoError(t, idx.Add(ctx, "repo", "f", RoleCall, frag))

	rows, err = idx.Rows(ctx, "repo")
	require.NoError(t, err)
	assert.Len(t, rows[0].Definitions, 2)
	assert.Len(t, rows[0].Calls, 1)
}

func TestMemoryIndexBucketOrder(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	add := func(role Role, text string) {
		require.NoError(t, idx.Add(ctx, "s", "double", role, Fragment{Path: "p", Text: text}))
	}
	add(RoleType, "(: double (-> Number Number))")
	add(RoleAssert, "!(assertEqual (double 5) 10)")
	add(RoleCall, "!(double 5)")
	add(RoleDefinition, "(= (double $x) (* $x 2))")

	rows, err := idx.Rows(ctx, "s")
	require.NoError(t, err)
	require.Len(t, rows, 1)

	var texts []string
	for _, f := range rows[0].Fragments() {
		texts = append(texts, f.Text)
	}
	assert.Equal(t, []string{
		"(= (double $x) (* $x 2))",
		"!(double 5)",
		"!(assertEqual (double 5) 10)",
		"(: double (-> Number Number))",
	}, texts)
}

func TestMemoryIndexRowOrderAndScopes(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, idx.Add(ctx, "one", name, RoleCall, Fragment{Text: name}))
	}
	require.NoError(t, idx.Add(ctx, "two", "alpha", RoleCall, Fragment{Text: "other"}))

	rows, err := idx.Rows(ctx, "one")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "zeta", rows[0].Name)
	assert.Equal(t, "alpha", rows[1].Name)
	assert.Equal(t, "mid", rows[2].Name)

	require.NoError(t, idx.Clear(ctx, "one"))

	rows, err = idx.Rows(ctx, "one")
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = idx.Rows(ctx, "two")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "other", rows[0].Calls[0].Text)
}

func TestMemoryIndexRejects(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	assert.Error(t, idx.Add(ctx, "s", "", RoleCall, Fragment{Text: "x"}))
	assert.Error(t, idx.Add(ctx, "s", "f", RoleUnknown, Fragment{Text: "x"}))
}

func TestMemoryIndexRowsAreCopies(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()
	require.NoError(t, idx.Add(ctx, "s", "f", RoleCall, Fragment{Text: "a"}))

	rows, err := idx.Rows(ctx, "s")
	require.NoError(t, err)
	rows[0].Calls[0].Text = "mutated"

	rows, err = idx.Rows(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "a", rows[0].Calls[0].Text)
}

func TestMemoryIndexConcurrent(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			// every worker adds the same fragment plus one of its own
			_ = idx.Add(ctx, "s", "shared", RoleCall, Fragment{Text: "same"})
			_ = idx.Add(ctx, "s", "shared", RoleCall, Fragment{Text: fmt.Sprintf("own-%d", n)})
		}(i)
	}
	wg.Wait()

	rows, err := idx.Rows(ctx, "s")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0].Calls, 11)
}

func TestMemoryIndexAddAllIsAtomic(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	err := idx.AddAll(ctx, "repo", []Addition{
		{Name: "first", Role: RoleDefinition, Fragment: Fragment{Path: "p", Text: "(= (first) 1)"}},
		{Name: "second", Role: RoleUnknown, Fragment: Fragment{Path: "p", Text: "(second)"}},
	})
	require.Error(t, err)

	rows, err := idx.Rows(ctx, "repo")
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, idx.AddAll(ctx, "repo", nil))
	require.NoError(t, idx.AddAll(ctx, "repo", []Addition{
		{Name: "first", Role: RoleDefinition, Fragment: Fragment{Path: "p", Text: "(= (first) 1)"}},
		{Name: "first", Role: RoleCall, Fragment: Fragment{Path: "p", Text: "!(first)"}},
	}))
	rows, err = idx.Rows(ctx, "repo")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0].Fragments(), 2)
}
