// cmd/metta-indexer/status.go
package main

import (
	"context"
	"fmt"

	"github.com/randalmurphal/metta-indexer/internal/config"
	"github.com/randalmurphal/metta-indexer/internal/store"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	ctx := context.Background()
	out := cmd.OutOrStdout()

	dbPath := config.ExpandHome(cfg.Storage.SQLitePath)
	db, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	st, err := db.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Index Status:")
	fmt.Fprintf(out, "  Database:   %s\n", dbPath)
	fmt.Fprintf(out, "  Text nodes: %d\n", st.TextNodes)
	fmt.Fprintf(out, "  Chunks:     %d\n", st.Chunks)
	fmt.Fprintf(out, "  Embedded:   %d\n", st.Embedded)

	if cfg.Storage.QdrantURL == "" {
		return nil
	}

	qdrantStore, err := store.NewQdrantStore(cfg.Storage.QdrantURL)
	if err != nil {
		return fmt.Errorf("failed to connect to Qdrant at %s: %w", cfg.Storage.QdrantURL, err)
	}
	defer qdrantStore.Close()

	info, err := qdrantStore.CollectionInfo(ctx, cfg.Storage.Collection)
	if err != nil {
		fmt.Fprintf(out, "\nNo vector collection %q yet.\n", cfg.Storage.Collection)
		return nil
	}

	fmt.Fprintf(out, "\nVector Collection: %s\n", cfg.Storage.Collection)
	fmt.Fprintf(out, "  Points:     %d\n", info.PointsCount)
	fmt.Fprintf(out, "  Vectors:    %d dimensions\n", info.VectorSize)
	fmt.Fprintf(out, "  Status:     %s\n", info.Status)

	return nil
}
