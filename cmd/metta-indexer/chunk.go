// cmd/metta-indexer/chunk.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/randalmurphal/metta-indexer/internal/indexer"
	"github.com/randalmurphal/metta-indexer/internal/security"
	"github.com/randalmurphal/metta-indexer/internal/symbol"
	"github.com/spf13/cobra"
)

var chunkCmd = &cobra.Command{
	Use:   "chunk [file]",
	Short: "Chunk one file and print the chunks as JSON",
	Long: `Chunk a single MeTTa file without touching any store. The file is
treated as the only file of a repo named by --repo.`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

var (
	chunkRepo    string
	chunkMaxSize int
	chunkMerge   string
)

func init() {
	chunkCmd.Flags().StringVar(&chunkRepo, "repo", "local", "Repo name recorded in chunk metadata")
	chunkCmd.Flags().IntVar(&chunkMaxSize, "max-size", 0, "Override chunking.max_size in bytes")
	chunkCmd.Flags().StringVar(&chunkMerge, "merge", "", "Override chunking.merge (pair|run)")
	rootCmd.AddCommand(chunkCmd)
}

func runChunk(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if chunkMaxSize != 0 {
		cfg.Chunking.MaxSize = chunkMaxSize
	}
	if chunkMerge != "" {
		cfg.Chunking.Merge = chunkMerge
	}

	idx, err := indexer.NewIndexer(cfg, indexer.Deps{
		Index:   symbol.NewMemoryIndex(),
		Secrets: security.NewDetector(),
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	relPath := path.Join(chunkRepo, filepath.Base(args[0]))
	chunks, err := idx.ChunkSource(context.Background(), relPath, string(data), "")
	if err != nil {
		return fmt.Errorf("chunk %s: %w", args[0], err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(chunks)
}
