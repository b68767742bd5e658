// cmd/metta-indexer/index.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/randalmurphal/metta-indexer/internal/config"
	"github.com/randalmurphal/metta-indexer/internal/indexer"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index [repo-path]",
	Short: "Index a repository",
	Long: `Walk a repository, chunk its MeTTa sources and store the chunks.

With --all, every subdirectory of the path that holds sources is indexed
as its own repo.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

var (
	indexAll     bool
	indexScope   string
	indexMaxSize int
	indexNoStore bool
)

func init() {
	indexCmd.Flags().BoolVar(&indexAll, "all", false, "Index each subdirectory as a separate repo")
	indexCmd.Flags().StringVar(&indexScope, "scope", "", "Override chunking.scope (repo|file)")
	indexCmd.Flags().IntVar(&indexMaxSize, "max-size", 0, "Override chunking.max_size in bytes")
	indexCmd.Flags().BoolVar(&indexNoStore, "no-store", false, "Chunk without writing to SQLite, Qdrant or Voyage")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	absPath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return fmt.Errorf("repository not found: %s", absPath)
	}

	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if indexScope != "" {
		cfg.Chunking.Scope = indexScope
	}
	if indexMaxSize != 0 {
		cfg.Chunking.MaxSize = indexMaxSize
	}

	b, err := openBackends(cfg, logger, backendOptions{store: !indexNoStore, embed: !indexNoStore})
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

	repos := []string{absPath}
	if indexAll {
		names, err := indexer.DetectRepos(absPath, indexer.NewWalker(nil, nil))
		if err != nil {
			return fmt.Errorf("failed to list repos: %w", err)
		}
		if len(names) == 0 {
			return fmt.Errorf("no repos with MeTTa sources under %s", absPath)
		}
		repos = repos[:0]
		for _, name := range names {
			repos = append(repos, filepath.Join(absPath, name))
		}
	}

	out := cmd.OutOrStdout()
	for _, repoPath := range repos {
		repoCfg, err := config.LoadRepoConfig(repoPath)
		if err != nil {
			return fmt.Errorf("failed to load repo config: %w", err)
		}

		fmt.Fprintf(out, "Indexing %s (%s)...\n", repoCfg.Name, repoPath)
		result, err := idx.Index(ctx, repoPath, repoCfg)
		if err != nil {
			return fmt.Errorf("indexing %s failed: %w", repoCfg.Name, err)
		}
		printResult(out, result)
	}

	backlog, err := idx.EmbedPending(ctx)
	if err != nil {
		return fmt.Errorf("embedding stored chunks failed: %w", err)
	}
	if backlog > 0 {
		fmt.Fprintf(out, "\nEmbedded %d chunks stored by earlier runs\n", backlog)
	}

	return nil
}

func printResult(w io.Writer, result *indexer.IndexResult) {
	fmt.Fprintf(w, "\nIndexing complete:\n")
	fmt.Fprintf(w, "  Files processed: %d\n", result.FilesProcessed)
	fmt.Fprintf(w, "  Symbols indexed: %d\n", result.SymbolsIndexed)
	fmt.Fprintf(w, "  Chunks created:  %d\n", result.ChunksCreated)
	fmt.Fprintf(w, "  Chunks stored:   %d\n", result.ChunksStored)
	fmt.Fprintf(w, "  Chunks embedded: %d\n", result.ChunksEmbedded)
	if result.FlaggedChunks > 0 {
		fmt.Fprintf(w, "  Possible secrets in %d chunks (see warnings)\n", result.FlaggedChunks)
	}

	if len(result.Errors) > 0 {
		fmt.Fprintf(w, "  Errors: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Fprintf(w, "    - %v\n", e)
		}
	}
}
