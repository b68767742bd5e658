// cmd/metta-indexer/watch.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/randalmurphal/metta-indexer/internal/config"
	"github.com/randalmurphal/metta-indexer/internal/indexer"
	"github.com/randalmurphal/metta-indexer/internal/sync"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch repositories and re-index on changes",
	Long: `Run a daemon that polls repositories and re-indexes them when the git
HEAD moves, or when the source files change outside git.`,
	RunE: runWatch,
}

var (
	watchRepos    string
	watchInterval string
)

func init() {
	watchCmd.Flags().StringVar(&watchRepos, "repos", "", "Comma-separated repo paths to watch")
	watchCmd.Flags().StringVar(&watchInterval, "interval", "60s", "Check interval (e.g., 30s, 5m)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchRepos == "" {
		return fmt.Errorf("--repos is required")
	}

	interval, err := time.ParseDuration(watchInterval)
	if err != nil {
		return fmt.Errorf("invalid interval: %w", err)
	}

	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	var repos []sync.RepoWatch
	for _, p := range strings.Split(watchRepos, ",") {
		repoPath, err := filepath.Abs(strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("invalid path %q: %w", p, err)
		}
		if _, err := os.Stat(repoPath); os.IsNotExist(err) {
			logger.Warn("repo path not found", "path", repoPath)
			continue
		}

		repoCfg, err := config.LoadRepoConfig(repoPath)
		if err != nil {
			return fmt.Errorf("failed to load repo config for %s: %w", repoPath, err)
		}

		repos = append(repos, sync.RepoWatch{
			Name:   repoCfg.Name,
			Path:   repoPath,
			Config: repoCfg,
		})
	}

	if len(repos) == 0 {
		return fmt.Errorf("no valid repos found")
	}

	b, err := openBackends(cfg, logger, backendOptions{store: true, embed: true})
	if err != nil {
		return err
	}
	defer b.Close()

	idx, err := indexer.NewIndexer(cfg, b.deps)
	if err != nil {
		return fmt.Errorf("failed to create indexer: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return sync.NewDaemon(repos, interval, idx, logger).Run(ctx)
}
