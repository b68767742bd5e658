// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// RepoConfigFile is the per-repository config file name.
const RepoConfigFile = ".metta-indexer.yaml"

// Scope values decide how long symbol-index rows accumulate.
const (
	ScopeRepo = "repo"
	ScopeFile = "file"
)

// Config holds global configuration
type Config struct {
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ChunkingConfig struct {
	MaxSize int    `yaml:"max_size"` // bytes
	Scope   string `yaml:"scope"`    // repo|file
	Merge   string `yaml:"merge"`    // pair|run
	Workers int    `yaml:"workers"`  // file scope only
}

type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "voyage"
	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batch_size"`
}

type StorageConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
	QdrantURL  string `yaml:"qdrant_url"` // empty disables vectors
	RedisURL   string `yaml:"redis_url"`  // empty keeps the index in memory
	Collection string `yaml:"collection"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"` // error|warn|info|debug
	MetricsPath string `yaml:"metrics_path"`
}

// RepoConfig holds per-repository configuration
type RepoConfig struct {
	Name    string   `yaml:"name"`
	Version string   `yaml:"version"`
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			MaxSize: 1500,
			Scope:   ScopeRepo,
			Merge:   "pair",
			Workers: 4,
		},
		Embedding: EmbeddingConfig{
			Provider:  "voyage",
			Model:     "voyage-code-3",
			BatchSize: 64,
		},
		Storage: StorageConfig{
			SQLitePath: "~/.local/share/metta-indexer/index.db",
			Collection: "metta_chunks",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks values that would otherwise fail deep in the pipeline.
func (c *Config) Validate() error {
	var errs []error
	if c.Chunking.MaxSize <= 0 {
		errs = append(errs, fmt.Errorf("chunking.max_size must be positive, got %d", c.Chunking.MaxSize))
	}
	switch c.Chunking.Scope {
	case ScopeRepo, ScopeFile:
	default:
		errs = append(errs, fmt.Errorf("chunking.scope must be %q or %q, got %q", ScopeRepo, ScopeFile, c.Chunking.Scope))
	}
	switch c.Chunking.Merge {
	case "pair", "run":
	default:
		errs = append(errs, fmt.Errorf("chunking.merge must be \"pair\" or \"run\", got %q", c.Chunking.Merge))
	}
	if c.Chunking.Workers < 1 {
		errs = append(errs, fmt.Errorf("chunking.workers must be at least 1, got %d", c.Chunking.Workers))
	}
	switch c.Logging.Level {
	case "error", "warn", "info", "debug":
	default:
		errs = append(errs, fmt.Errorf("logging.level %q is not one of error|warn|info|debug", c.Logging.Level))
	}
	return errors.Join(errs...)
}

// LoadConfig loads config from file or returns defaults
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// DefaultRepoConfig returns the config used when a repo has none.
func DefaultRepoConfig(repoPath string) *RepoConfig {
	return &RepoConfig{
		Name:    filepath.Base(repoPath),
		Include: []string{"**/*.metta"},
	}
}

// LoadRepoConfig loads .metta-indexer.yaml from repo root. A missing file
// yields the defaults.
func LoadRepoConfig(repoPath string) (*RepoConfig, error) {
	cfg := DefaultRepoConfig(repoPath)
	path := filepath.Join(repoPath, RepoConfigFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(cfg.Include) == 0 {
		cfg.Include = []string{"**/*.metta"}
	}

	return cfg, nil
}

// SaveRepoConfig writes cfg to the repo root.
func SaveRepoConfig(repoPath string, cfg *RepoConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(repoPath, RepoConfigFile), data, 0644)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
