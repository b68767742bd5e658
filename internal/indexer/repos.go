package indexer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// DetectRepos lists the immediate subdirectories of root that hold at
// least one file the walker would visit. Each becomes its own repo, named
// after the directory.
func DetectRepos(root string, w *Walker) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var repos []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		name := entry.Name()
		if strings.HasPrefix(name, ".") || name == "node_modules" || name == "venv" || name == "__pycache__" {
			continue
		}

		if hasSources(filepath.Join(root, name), w) {
			repos = append(repos, name)
		}
	}

	return repos, nil
}

var errFound = errors.New("found")

func hasSources(dir string, w *Walker) bool {
	err := w.Walk(dir, func(string, string) error {
		return errFound
	})
	return errors.Is(err, errFound)
}
