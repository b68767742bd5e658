// Package sync re-indexes watched repositories when they change.
package sync

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/randalmurphal/metta-indexer/internal/config"
	"github.com/randalmurphal/metta-indexer/internal/indexer"
)

// Runner indexes one repository.
type Runner interface {
	Index(ctx context.Context, repoPath string, repoCfg *config.RepoConfig) (*indexer.IndexResult, error)
}

// Daemon watches repositories and syncs on changes.
type Daemon struct {
	repos    []RepoWatch
	interval time.Duration
	runner   Runner
	logger   *slog.Logger
	revision map[string]string // repo name -> last indexed revision
}

// RepoWatch defines a repository to watch.
type RepoWatch struct {
	Name   string
	Path   string
	Config *config.RepoConfig
}

// NewDaemon creates a new sync daemon.
func NewDaemon(repos []RepoWatch, interval time.Duration, runner Runner, logger *slog.Logger) *Daemon {
	if logger == nil {
		logger = slog.Default()
	}
	return &Daemon{
		repos:    repos,
		interval: interval,
		runner:   runner,
		logger:   logger,
		revision: make(map[string]string),
	}
}

// Run syncs every repo at once and then on each tick until ctx ends.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("starting sync daemon", "interval", d.interval, "repos", len(d.repos))

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	d.syncAll(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon shutting down")
			return ctx.Err()
		case <-ticker.C:
			d.syncAll(ctx)
		}
	}
}

func (d *Daemon) syncAll(ctx context.Context) {
	for _, repo := range d.repos {
		if ctx.Err() != nil {
			return
		}
		if _, err := d.syncRepo(ctx, repo); err != nil {
			d.logger.Error("sync failed", "repo", repo.Name, "error", err)
		}
	}
}

// syncRepo re-indexes repo if its revision moved. It reports whether an
// index run happened.
func (d *Daemon) syncRepo(ctx context.Context, repo RepoWatch) (bool, error) {
	current, err := d.revisionOf(ctx, repo)
	if err != nil {
		return false, fmt.Errorf("failed to read revision: %w", err)
	}

	previous := d.revision[repo.Name]
	if current == previous {
		d.logger.Debug("repo unchanged", "name", repo.Name)
		return false, nil
	}

	d.logger.Info("repo changed, syncing", "name", repo.Name,
		"old", truncateHash(previous), "new", truncateHash(current))

	result, err := d.runner.Index(ctx, repo.Path, repo.Config)
	if err != nil {
		return true, fmt.Errorf("indexing failed: %w", err)
	}

	d.logger.Info("sync complete",
		"repo", repo.Name,
		"files", result.FilesProcessed,
		"chunks", result.ChunksCreated,
		"stored", result.ChunksStored,
		"errors", len(result.Errors),
	)

	d.revision[repo.Name] = current
	return true, nil
}

// revisionOf identifies the repo state: the git HEAD when the repo is a
// git checkout, otherwise a fingerprint of the indexed files.
func (d *Daemon) revisionOf(ctx context.Context, repo RepoWatch) (string, error) {
	if head, err := getGitHead(ctx, repo.Path); err == nil {
		return head, nil
	}
	return fingerprint(repo)
}

// getGitHead returns the current HEAD commit hash.
func getGitHead(ctx context.Context, repoPath string) (string, error) {
	output, err := exec.CommandContext(ctx, "git", "-C", repoPath, "rev-parse", "HEAD").Output()
	if err == nil {
		return strings.TrimSpace(string(output)), nil
	}

	// Fallback: read .git/HEAD directly
	headData, err := os.ReadFile(filepath.Join(repoPath, ".git", "HEAD"))
	if err != nil {
		return "", err
	}

	content := strings.TrimSpace(string(headData))
	if !strings.HasPrefix(content, "ref: ") {
		// Detached HEAD, content is the hash
		return content, nil
	}

	refData, err := os.ReadFile(filepath.Join(repoPath, ".git", strings.TrimPrefix(content, "ref: ")))
	if err != nil {
		// Might be a packed ref, hash the ref name as fallback
		h := sha256.Sum256([]byte(content))
		return fmt.Sprintf("%x", h[:8]), nil
	}
	return strings.TrimSpace(string(refData)), nil
}

// fingerprint hashes the path, size and modification time of every file
// the indexer would read.
func fingerprint(repo RepoWatch) (string, error) {
	var include, exclude []string
	if repo.Config != nil {
		include, exclude = repo.Config.Include, repo.Config.Exclude
	}

	h := sha256.New()
	err := indexer.NewWalker(include, exclude).Walk(repo.Path, func(path, rel string) error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(h, "%s\x00%d\x00%d\n", rel, info.Size(), info.ModTime().UnixNano())
		return nil
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

func truncateHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
