// cmd/metta-indexer/metrics.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/randalmurphal/metta-indexer/internal/config"
	"github.com/randalmurphal/metta-indexer/internal/metrics"
	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Summarize indexing metrics",
	Long:  `Summarize indexing runs from the metrics log set by logging.metrics_path.`,
	RunE:  runMetrics,
}

var (
	metricsSince string
	metricsJSON  bool
)

func init() {
	metricsCmd.Flags().StringVar(&metricsSince, "last", "7d", "Time period (e.g., 1h, 24h, 7d, 30d)")
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(metricsCmd)
}

func runMetrics(cmd *cobra.Command, args []string) error {
	duration, err := parseDuration(metricsSince)
	if err != nil {
		return fmt.Errorf("invalid time period: %w", err)
	}

	cfg, _, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if cfg.Logging.MetricsPath == "" {
		fmt.Fprintln(out, "Metrics are disabled. Set logging.metrics_path to record them.")
		return nil
	}

	metricsPath := config.ExpandHome(cfg.Logging.MetricsPath)
	if _, err := os.Stat(metricsPath); os.IsNotExist(err) {
		fmt.Fprintln(out, "No metrics data found. Run the index command to generate metrics.")
		return nil
	}

	summary, err := metrics.NewAnalyzer(metricsPath).Analyze(duration)
	if err != nil {
		return err
	}

	if metricsJSON {
		data, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "Metrics Summary (last %s):\n\n", metricsSince)
	fmt.Fprintf(out, "  Index runs:      %d\n", summary.Runs)
	fmt.Fprintf(out, "  Files indexed:   %d\n", summary.FilesIndexed)
	fmt.Fprintf(out, "  Symbols:         %d\n", summary.Symbols)
	fmt.Fprintf(out, "  Scopes flushed:  %d\n", summary.ScopesFlushed)
	fmt.Fprintf(out, "  Chunks:          %d\n", summary.Chunks)
	fmt.Fprintf(out, "  Parse errors:    %d\n", summary.ParseErrors)
	fmt.Fprintf(out, "  Errors:          %d\n", summary.Errors)

	if len(summary.FailingFiles) > 0 {
		fmt.Fprintln(out, "\n  Files failing to parse:")
		for _, f := range summary.FailingFiles {
			fmt.Fprintf(out, "    - %s (%d times)\n", f.Path, f.Count)
		}
	}

	return nil
}

func parseDuration(s string) (time.Duration, error) {
	// Handle day suffix
	if len(s) > 0 && s[len(s)-1] == 'd' {
		var d int
		if _, err := fmt.Sscanf(s[:len(s)-1], "%d", &d); err == nil {
			return time.Duration(d) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}
