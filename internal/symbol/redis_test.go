package symbol

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisIndex(t *testing.T) *RedisIndex {
	t.Helper()
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	idx, err := NewRedisIndex(redisURL)
	if err != nil {
		t.Skip("Redis not available")
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestRedisIndex(t *testing.T) {
	idx := newTestRedisIndex(t)
	ctx := context.Background()
	scope := "test-scope[1]"

	_ = idx.Clear(ctx, scope)
	defer func() { _ = idx.Clear(ctx, scope) }()

	def := Fragment{Path: "repo/a.metta", Text: "(= (f $x) $x)"}
	require.NoError(t, idx.Add(ctx, scope, "f", RoleCall, Fragment{Path: "repo/a.metta", Text: "!(f 1)"}))
	require.NoError(t, idx.Add(ctx, scope, "f", RoleDefinition, def))
	require.NoError(t, idx.Add(ctx, scope, "f", RoleDefinition, def))
	require.NoError(t, idx.Add(ctx, scope, "g", RoleType, Fragment{NodeID: "abc"}))

	rows, err := idx.Rows(ctx, scope)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "f", rows[0].Name)
	assert.Equal(t, []Fragment{def}, rows[0].Definitions)
	assert.Len(t, rows[0].Calls, 1)
	assert.Equal(t, "(= (f $x) $x)", rows[0].Fragments()[0].Text)

	assert.Equal(t, "g", rows[1].Name)
	assert.Equal(t, "abc", rows[1].Types[0].NodeID)

	require.NoError(t, idx.Clear(ctx, scope))
	rows, err = idx.Rows(ctx, scope)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRedisIndexClearKeepsNestedScope(t *testing.T) {
	idx := newTestRedisIndex(t)
	ctx := context.Background()

	for _, scope := range []string{"r", "r:x"} {
		_ = idx.Clear(ctx, scope)
		defer func(scope string) { _ = idx.Clear(ctx, scope) }(scope)
		require.NoError(t, idx.Add(ctx, scope, "f", RoleDefinition, Fragment{Path: scope, Text: "(= (f) 1)"}))
	}

	require.NoError(t, idx.Clear(ctx, "r"))

	rows, err := idx.Rows(ctx, "r:x")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "r:x", rows[0].Definitions[0].Path)
}

func TestScopeKeysDoNotSharePrefixes(t *testing.T) {
	r := &RedisIndex{prefix: "symidx:"}
	pairs := [][2]string{{"r", "r:x"}, {"r", "r:"}, {"a:b", "a:b:c"}, {"", ":"}}
	for _, p := range pairs {
		assert.False(t, strings.HasPrefix(r.scopeKey(p[1]), r.scopeKey(p[0])), "%q vs %q", p[0], p[1])
		assert.False(t, strings.HasPrefix(r.scopeKey(p[0]), r.scopeKey(p[1])), "%q vs %q", p[1], p[0])
	}
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `symidx:a\*b\?\[c\]:`, escapeGlob("symidx:a*b?[c]:"))
	assert.Equal(t, "plain", escapeGlob("plain"))
}
