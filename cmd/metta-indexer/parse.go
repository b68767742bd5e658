// cmd/metta-indexer/parse.go
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/randalmurphal/metta-indexer/internal/parser"
	"github.com/randalmurphal/metta-indexer/internal/symbol"
	"github.com/spf13/cobra"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Print the syntax tree of a MeTTa file",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	source := string(data)

	nodes, err := parser.Parse(source)
	if err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	for i, n := range nodes {
		head := symbol.Extract(n, source, i)
		if head.Indexable() {
			fmt.Fprintf(out, "# %s %s\n", head.Role, head.Name)
		}
		printNode(out, n, 0)
	}
	return nil
}

func printNode(w io.Writer, n parser.Node, depth int) {
	r := n.Range()
	indent := strings.Repeat("  ", depth)

	if tok, ok := n.(*parser.Token); ok {
		fmt.Fprintf(w, "%s%s [%d,%d) %q\n", indent, n.Kind(), r.Start, r.End, tok.Text)
		return
	}

	fmt.Fprintf(w, "%s%s [%d,%d)\n", indent, n.Kind(), r.Start, r.End)
	for _, c := range n.Children() {
		printNode(w, c, depth+1)
	}
}
