package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/patrikhermansson/hanndb/collection"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newBuildCmd() *cobra.Command {
	var (
		pf        paramFlags
		input     string
		output    string
		name      string
		dimension int
		normalize bool
		quiet     bool
	)
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a snapshot from JSON line records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := pf.params(cmd)
			if err != nil {
				return err
			}
			opts, err := pf.options(name)
			if err != nil {
				return err
			}
			records, err := readRecordsFile(input, cmd.InOrStdin(), normalize)
			if err != nil {
				return err
			}
			if dimension == 0 {
				if len(records) == 0 {
					return fmt.Errorf("no records to infer the dimension from, pass --dimension")
				}
				dimension = len(records[0].Vector)
			}

			c, err := collection.New[string](dimension, params, opts...)
			if err != nil {
				return err
			}
			start := time.Now()
			var progress io.Writer
			if !quiet {
				progress = cmd.ErrOrStderr()
			}
			if err := insertAll(cmd.Context(), c, records, progress, false); err != nil {
				return err
			}
			if err := c.SaveFile(output); err != nil {
				return err
			}
			stats := c.Stats()
			log.Info().Msgf("Built %s in %.2fs", output, time.Since(start).Seconds())
			fmt.Fprintf(cmd.OutOrStdout(), "built %d records (%d dimensions, %s, top level %d) into %s\n",
				stats.Count, stats.Dimension, stats.Distance, stats.TopLevel, output)
			return nil
		},
	}
	pf.register(cmd)
	f := cmd.Flags()
	f.StringVarP(&input, "input", "i", "-", "records file, - for stdin")
	f.StringVarP(&output, "output", "o", "", "snapshot file to write")
	f.StringVar(&name, "name", "default", "collection name")
	f.IntVar(&dimension, "dimension", 0, "vector dimension, 0 to take it from the first record")
	f.BoolVar(&normalize, "normalize", false, "scale vectors to unit length before indexing")
	f.BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// insertAll inserts records in order. With upsert, existing ids are updated instead.
func insertAll(ctx context.Context, c *collection.Collection[string], records []collection.Record[string], progress io.Writer, upsert bool) error {
	var bar *progressbar.ProgressBar
	if progress != nil {
		bar = progressbar.NewOptions(len(records),
			progressbar.OptionSetWriter(progress),
			progressbar.OptionSetDescription("indexing"),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if upsert {
			found, err := c.Update(r.ID, r.Vector, r.Data)
			if err != nil {
				return fmt.Errorf("failed to update %q: %w", r.ID, err)
			}
			if found {
				if bar != nil {
					_ = bar.Add(1)
				}
				continue
			}
		}
		if err := c.Insert(r.ID, r.Vector, r.Data); err != nil {
			return fmt.Errorf("failed to insert %q: %w", r.ID, err)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return nil
}
