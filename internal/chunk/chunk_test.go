package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path    string
		repo    string
		section string
		file    string
	}{
		{"metta-moses/reduct/rules.metta", "metta-moses", "reduct", "rules.metta"},
		{"repo/a/b/c.metta", "repo", "a/b", "c.metta"},
		{"repo/top.metta", "repo", "", "top.metta"},
		{"single.metta", "single.metta", "", "single.metta"},
		{`repo\win\path.metta`, "repo", "win", "path.metta"},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			repo, section, file := SplitPath(tc.path)
			assert.Equal(t, tc.repo, repo)
			assert.Equal(t, tc.section, section)
			assert.Equal(t, tc.file, file)
		})
	}
}

func TestNewChunk(t *testing.T) {
	c := New("(= (f) 1)", []string{"repo/lib/b.metta", "repo/a.metta", "repo/lib/b.metta"}, "")

	assert.Equal(t, SourceCode, c.Source)
	assert.Equal(t, "repo", c.Repo)
	assert.Equal(t, "repo", c.Project)
	assert.Equal(t, "1", c.Version)
	assert.Equal(t, []string{"repo/a.metta", "repo/lib/b.metta"}, c.OriginPaths)
	assert.Equal(t, []string{"", "lib"}, c.Sections)
	assert.Equal(t, []string{"a.metta", "b.metta"}, c.Files)
	assert.Equal(t, 9, c.Size())
	assert.False(t, c.IsEmbedded)
	assert.Len(t, c.ID, 16)
}

func TestNewChunkWithoutPaths(t *testing.T) {
	c := New("x", nil, "v2")
	assert.Equal(t, "unknown-repo", c.Repo)
	assert.Equal(t, "v2", c.Version)
	assert.Empty(t, c.Files)
}

func TestGenerateIDDeterministic(t *testing.T) {
	a := New("text", []string{"r/a.metta", "r/b.metta"}, "")
	b := New("text", []string{"r/b.metta", "r/a.metta"}, "")
	assert.Equal(t, a.ID, b.ID)

	c := New("other", []string{"r/a.metta", "r/b.metta"}, "")
	assert.NotEqual(t, a.ID, c.ID)

	d := New("text", []string{"r/a.metta"}, "")
	assert.NotEqual(t, a.ID, d.ID)
}
