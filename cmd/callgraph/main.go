package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"callgraph/cmd/callgraph/commands"
	"callgraph/internal/errors"
	"callgraph/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "callgraph",
	Short: "Draw call graphs, type hierarchies and file hierarchies from a language server",
	Long: `callgraph asks the workspace language server how code is related and prints
the result as a graph for an external renderer.

Available commands:
  callgraph - Who calls whom, from a file, a folder or a symbol
  types     - Supertypes and subtypes, from a file, a folder or a symbol
  files     - Which files reference which
  rollup    - Fold a stored file hierarchy into folders
  snapshots - List, show and delete stored graphs
  watch     - Redraw the call graph of a file whenever it is saved
  serve     - Serve the tools over MCP on stdio

Examples:
  callgraph callgraph symbol internal/graph/builder.go:120:6
  callgraph files folder ./internal
  callgraph rollup --expand internal`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbosity, _ := cmd.Flags().GetCount("verbose")
		jsonLogs, _ := cmd.Flags().GetBool("json-logs")
		if err := logger.Initialize(jsonLogs, verbosity); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (-v, -vv, -vvv)")
	rootCmd.PersistentFlags().String("config", "", "Path to a callgraph.toml (default: nearest one above the working directory)")
	rootCmd.PersistentFlags().Bool("json-logs", false, "Write logs to stderr as JSON")
	rootCmd.PersistentFlags().StringP("output", "o", "", "Output format: json or yaml (default from config)")

	rootCmd.AddCommand(commands.CallgraphCmd)
	rootCmd.AddCommand(commands.TypesCmd)
	rootCmd.AddCommand(commands.FilesCmd)
	rootCmd.AddCommand(commands.RollupCmd)
	rootCmd.AddCommand(commands.TreeCmd)
	rootCmd.AddCommand(commands.SnapshotsCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.ServeCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logger.Sync()
	if err != nil {
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
