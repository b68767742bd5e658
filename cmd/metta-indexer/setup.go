package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/randalmurphal/metta-indexer/internal/config"
	"github.com/randalmurphal/metta-indexer/internal/embedding"
	"github.com/randalmurphal/metta-indexer/internal/indexer"
	"github.com/randalmurphal/metta-indexer/internal/metrics"
	"github.com/randalmurphal/metta-indexer/internal/security"
	"github.com/randalmurphal/metta-indexer/internal/store"
	"github.com/randalmurphal/metta-indexer/internal/symbol"
)

func getGlobalConfigPath() string {
	if configPath != "" {
		return configPath
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory config
		return ".metta-indexer-config.yaml"
	}
	return filepath.Join(homeDir, ".config", "metta-indexer", "config.yaml")
}

// loadConfig reads the global config, applies flag overrides and installs
// the default slog logger at the configured level.
func loadConfig(w io.Writer) (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig(getGlobalConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load global config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(w, cfg.Logging.Level)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "error":
		l = slog.LevelError
	case "warn":
		l = slog.LevelWarn
	case "debug":
		l = slog.LevelDebug
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

// backendOptions selects which stores a command connects to.
type backendOptions struct {
	store bool
	embed bool
}

// backends holds the connections opened for a command.
type backends struct {
	deps    indexer.Deps
	closers []io.Closer
}

func (b *backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i].Close())
	}
	return errors.Join(errs...)
}

// openBackends connects what cfg configures. Redis backs the symbol index
// when storage.redis_url is set; Qdrant and Voyage are used only when both
// a Qdrant URL and VOYAGE_API_KEY are present.
func openBackends(cfg *config.Config, logger *slog.Logger, opts backendOptions) (*backends, error) {
	b := &backends{deps: indexer.Deps{Logger: logger, Secrets: security.NewDetector()}}

	fail := func(err error) (*backends, error) {
		_ = b.Close()
		return nil, err
	}

	if cfg.Storage.RedisURL != "" {
		idx, err := symbol.NewRedisIndex(cfg.Storage.RedisURL)
		if err != nil {
			return fail(err)
		}
		b.closers = append(b.closers, idx)
		b.deps.Index = idx
	} else {
		b.deps.Index = symbol.NewMemoryIndex()
	}

	if cfg.Logging.MetricsPath != "" {
		m, err := metrics.NewLogger(config.ExpandHome(cfg.Logging.MetricsPath))
		if err != nil {
			return fail(fmt.Errorf("failed to open metrics log: %w", err))
		}
		b.closers = append(b.closers, m)
		b.deps.Metrics = m
	}

	if opts.store {
		db, err := store.NewSQLiteStore(config.ExpandHome(cfg.Storage.SQLitePath))
		if err != nil {
			return fail(err)
		}
		b.closers = append(b.closers, db)
		b.deps.Store = db
	}

	if opts.embed && cfg.Storage.QdrantURL != "" {
		voyageKey := os.Getenv("VOYAGE_API_KEY")
		if voyageKey == "" {
			logger.Warn("VOYAGE_API_KEY not set, skipping embeddings")
			return b, nil
		}

		q, err := store.NewQdrantStore(cfg.Storage.QdrantURL)
		if err != nil {
			return fail(err)
		}
		b.closers = append(b.closers, q)
		b.deps.Vectors = q
		b.deps.Embedder = embedding.NewVoyageClient(voyageKey, cfg.Embedding.Model)
	}

	return b, nil
}
