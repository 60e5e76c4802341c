package cmd

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewRootCmd assembles the hanndb command tree.
func NewRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "hanndb",
		Short: "Embeddable HNSW vector database",
		Long: `hanndb - build, query and maintain HNSW vector collection snapshots.

Records are read as JSON lines: {"id": "a", "vector": [0.1, 0.2], "data": {...}}.
Records without an id get a random UUID.

Examples:
  # Build a snapshot from records
  hanndb build -i records.jsonl -o vectors.hndb

  # Query it
  hanndb search -f vectors.hndb --vector 0.1,0.2 -k 5

  # Benchmark on synthetic data and expose /metrics
  hanndb bench --train 10000 --dim 64 --listen :9090`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen})
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newBuildCmd(),
		newInsertCmd(),
		newSearchCmd(),
		newGetCmd(),
		newDeleteCmd(),
		newStatsCmd(),
		newCompactCmd(),
		newBenchCmd(),
	)
	return root
}

// Execute runs the root command with os.Args until ctx is cancelled.
func Execute(ctx context.Context) error {
	root := NewRootCmd()
	root.SetArgs(os.Args[1:])
	return root.ExecuteContext(ctx)
}
