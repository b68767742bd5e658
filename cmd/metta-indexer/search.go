// cmd/metta-indexer/search.go
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/randalmurphal/metta-indexer/internal/embedding"
	"github.com/randalmurphal/metta-indexer/internal/store"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed chunks by meaning",
	Long:  `Embed the query with Voyage and return the nearest chunks from Qdrant.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var (
	searchLimit int
	searchRepo  string
)

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 5, "Maximum results")
	searchCmd.Flags().StringVar(&searchRepo, "repo", "", "Only return chunks from this repo")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchLimit < 1 {
		return fmt.Errorf("--limit must be at least 1")
	}

	cfg, _, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if cfg.Storage.QdrantURL == "" {
		return fmt.Errorf("storage.qdrant_url is not set")
	}
	voyageKey := os.Getenv("VOYAGE_API_KEY")
	if voyageKey == "" {
		return fmt.Errorf("VOYAGE_API_KEY not set")
	}

	ctx := context.Background()
	query := strings.Join(args, " ")

	vectors, err := embedding.NewVoyageClient(voyageKey, cfg.Embedding.Model).Embed(ctx, []string{query})
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}

	qdrantStore, err := store.NewQdrantStore(cfg.Storage.QdrantURL)
	if err != nil {
		return err
	}
	defer qdrantStore.Close()

	results, err := qdrantStore.Search(ctx, cfg.Storage.Collection, vectors[0], searchLimit, searchRepo)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(out, "%d. [%.3f] %s\n", i+1, r.Score, strings.Join(r.Chunk.OriginPaths, ", "))
		fmt.Fprintf(out, "%s\n\n", r.Chunk.Text)
	}
	return nil
}
