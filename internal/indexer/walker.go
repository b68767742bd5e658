// Package indexer runs the chunking pipeline over a repository: file
// discovery, parsing, symbol indexing, chunk assembly and storage.
package indexer

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultInclude matches MeTTa sources.
var DefaultInclude = []string{"**/*.metta"}

// Default excludes for common non-source directories
var defaultExcludes = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/venv/**",
	"**/.venv/**",
	"**/__pycache__/**",
	"**/dist/**",
	"**/build/**",
	"**/.idea/**",
	"**/.vscode/**",
}

// Walker traverses directories respecting include/exclude patterns.
type Walker struct {
	includes []string
	excludes []string
}

// NewWalker creates a new file walker with the given include and exclude patterns.
// If no includes are specified, only .metta files are visited.
func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = DefaultInclude
	}

	all := make([]string, 0, len(defaultExcludes)+len(excludes))
	all = append(all, defaultExcludes...)
	all = append(all, excludes...)

	return &Walker{
		includes: includes,
		excludes: all,
	}
}

// Walk traverses the directory tree rooted at root in lexical order. fn
// receives the file path and its slash-separated path relative to root.
func (w *Walker) Walk(root string, fn func(path, relPath string) error) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		// Normalize to forward slashes for pattern matching
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath != "." && w.shouldExcludeDir(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if w.isExcluded(relPath) || !w.isIncluded(relPath) {
			return nil
		}
		return fn(path, relPath)
	})
}

// Files returns every matching file under root.
func (w *Walker) Files(root string) ([]string, error) {
	var files []string
	err := w.Walk(root, func(path, _ string) error {
		files = append(files, path)
		return nil
	})
	return files, err
}

func (w *Walker) shouldExcludeDir(relPath string) bool {
	// Check directory exclusion patterns (with trailing slash)
	dirPath := relPath + "/"
	for _, pattern := range w.excludes {
		if matched, _ := doublestar.Match(pattern, dirPath); matched {
			return true
		}
		// Also check if the dir itself matches (e.g., "**/.git/**" should match ".git")
		if matched, _ := doublestar.Match(pattern, relPath); matched {
			return true
		}
	}
	return false
}

func (w *Walker) isExcluded(relPath string) bool {
	return matchAny(w.excludes, relPath)
}

func (w *Walker) isIncluded(relPath string) bool {
	return matchAny(w.includes, relPath)
}

func matchAny(patterns []string, relPath string) bool {
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, relPath); matched {
			return true
		}
	}
	return false
}
