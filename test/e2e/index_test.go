package e2e

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mettaSource = `; arithmetic helpers
(: double (-> Number Number))
(= (double $x) (* $x 2))

(= (fact 0) 1)
(= (fact $n) (* $n (fact (- $n 1))))

!(assertEqual (double 2) 4)
!(fact 5)
`

func buildCLI(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not in PATH")
	}

	bin := filepath.Join(t.TempDir(), "metta-indexer")
	cmd := exec.Command("go", "build", "-o", bin, "./cmd/metta-indexer")
	cmd.Dir = getProjectRoot()
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build failed: %s", output)
	return bin
}

func run(t *testing.T, bin string, args ...string) string {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Env = append(os.Environ(), "VOYAGE_API_KEY=")
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "%v failed: %s", args, output)
	return string(output)
}

func TestIndexEndToEnd(t *testing.T) {
	bin := buildCLI(t)

	tmpDir := t.TempDir()
	testRepo := filepath.Join(tmpDir, "maths")
	require.NoError(t, os.MkdirAll(filepath.Join(testRepo, "lib"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(testRepo, "lib", "maths.metta"), []byte(mettaSource), 0644))

	cfgPath := filepath.Join(tmpDir, "config.yaml")
	cfg := "storage:\n" +
		"  sqlite_path: " + filepath.Join(tmpDir, "index.db") + "\n" +
		"logging:\n" +
		"  level: warn\n" +
		"  metrics_path: " + filepath.Join(tmpDir, "metrics.jsonl") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	output := run(t, bin, "init", testRepo)
	assert.Contains(t, output, "Created")
	_, err := os.Stat(filepath.Join(testRepo, ".metta-indexer.yaml"))
	require.NoError(t, err, "config file should exist")

	output = run(t, bin, "--config", cfgPath, "index", testRepo)
	assert.Contains(t, output, "Files processed: 1")
	assert.Contains(t, output, "Chunks created:")

	// A second run finds every chunk already stored
	output = run(t, bin, "--config", cfgPath, "index", testRepo)
	assert.Contains(t, output, "Chunks stored:   0")

	output = run(t, bin, "--config", cfgPath, "status")
	assert.Contains(t, output, "Chunks:")
	assert.NotContains(t, output, "Chunks:     0")

	output = run(t, bin, "--config", cfgPath, "metrics")
	assert.Contains(t, output, "Index runs:      2")
}

func TestChunkCommand(t *testing.T) {
	bin := buildCLI(t)

	file := filepath.Join(t.TempDir(), "maths.metta")
	require.NoError(t, os.WriteFile(file, []byte(mettaSource), 0644))

	cfgPath := filepath.Join(t.TempDir(), "missing.yaml")
	cmd := exec.Command(bin, "--config", cfgPath, "chunk", "--repo", "maths", "--max-size", "60", file)
	output, err := cmd.Output()
	require.NoError(t, err)

	var chunks []struct {
		ID          string   `json:"chunk_id"`
		Text        string   `json:"chunk"`
		OriginPaths []string `json:"origin_paths"`
	}
	require.NoError(t, json.Unmarshal(output, &chunks))
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Text), 60, "chunk %s", c.ID)
		assert.Equal(t, []string{"maths/maths.metta"}, c.OriginPaths)
	}
}

func getProjectRoot() string {
	// Walk up until we find go.mod
	dir, _ := os.Getwd()
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "."
		}
		dir = parent
	}
}
