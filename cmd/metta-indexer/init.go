// cmd/metta-indexer/init.go
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/randalmurphal/metta-indexer/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [repo-path]",
	Short: "Initialize indexing configuration for a repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	absPath, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", absPath)
	}

	out := cmd.OutOrStdout()
	cfgPath := filepath.Join(absPath, config.RepoConfigFile)
	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Fprintf(out, "Config already exists at %s\n", cfgPath)
		return nil
	}

	repoCfg := config.DefaultRepoConfig(absPath)
	repoCfg.Version = detectVersion(absPath)
	repoCfg.Exclude = []string{}

	if err := config.SaveRepoConfig(absPath, repoCfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(out, "Created %s\n", cfgPath)
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintf(out, "  1. Review and customize the config file\n")
	fmt.Fprintf(out, "  2. Run: metta-indexer index %s\n", absPath)

	return nil
}

// detectVersion names the chunk version after the checked-out branch, or
// "1" outside git.
func detectVersion(repoPath string) string {
	data, err := os.ReadFile(filepath.Join(repoPath, ".git", "HEAD"))
	if err != nil {
		return "1"
	}
	// Parse "ref: refs/heads/main" or similar
	content := strings.TrimSpace(string(data))
	if branch, ok := strings.CutPrefix(content, "ref: refs/heads/"); ok {
		return branch
	}
	if len(content) > 8 {
		return content[:8]
	}
	return "1"
}
