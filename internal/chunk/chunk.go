// Package chunk assembles size-bounded text chunks from indexed MeTTa
// fragments.
package chunk

import (
	"crypto/sha256"
	"fmt"
	"path"
	"sort"
	"strings"
)

// SourceCode marks chunks produced from source files.
const SourceCode = "code"

// Chunk is a finished, size-bounded unit of text ready for persistence.
type Chunk struct {
	// Identity
	ID     string `json:"chunk_id"` // hash of origin paths + text
	Source string `json:"source"`

	// Content
	Text string `json:"chunk"`

	// Origin, derived from "repo/section.../file" relative paths
	OriginPaths []string `json:"origin_paths"`
	Project     string   `json:"project"`
	Repo        string   `json:"repo"`
	Sections    []string `json:"section"`
	Files       []string `json:"file"`
	Version     string   `json:"version"`

	// Downstream state
	IsEmbedded  bool   `json:"is_embedded"`
	Description string `json:"description,omitempty"`

	// Vector (populated after embedding)
	Vector []float32 `json:"-"`
}

// Size returns the byte length of the chunk text.
func (c *Chunk) Size() int {
	return len(c.Text)
}

// New builds a chunk record for text gathered from paths. Paths are
// deduplicated and sorted so the id does not depend on discovery order.
func New(text string, paths []string, version string) Chunk {
	paths = normalizePaths(paths)
	if version == "" {
		version = "1"
	}

	c := Chunk{
		ID:          GenerateID(paths, text),
		Source:      SourceCode,
		Text:        text,
		OriginPaths: paths,
		Version:     version,
	}

	c.Repo = "unknown-repo"
	if len(paths) > 0 {
		c.Repo, _, _ = SplitPath(paths[0])
	}
	c.Project = c.Repo

	for _, p := range paths {
		_, section, file := SplitPath(p)
		c.Sections = append(c.Sections, section)
		c.Files = append(c.Files, file)
	}

	return c
}

// GenerateID creates a deterministic id from origin paths and text.
func GenerateID(paths []string, text string) string {
	data := fmt.Sprintf("%s:%s", strings.Join(paths, ","), text)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash[:8])
}

// SplitPath splits a relative path on its first segment: the repo name,
// the directory inside the repo, and the file name.
// e.g., "metta-moses/reduct/rules.metta" -> ("metta-moses", "reduct", "rules.metta")
func SplitPath(relPath string) (repo, section, file string) {
	relPath = strings.ReplaceAll(relPath, "\\", "/")
	parts := strings.SplitN(relPath, "/", 2)
	repo = parts[0]
	if len(parts) < 2 || parts[1] == "" {
		return repo, "", relPath
	}

	inside := parts[1]
	section = path.Dir(inside)
	if section == "." {
		section = ""
	}
	return repo, section, path.Base(inside)
}

func normalizePaths(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
