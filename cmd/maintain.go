package cmd

import (
	"fmt"

	"github.com/patrikhermansson/hanndb/collection"
	"github.com/patrikhermansson/hanndb/core"
	"github.com/spf13/cobra"
)

func newGetCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "get ID...",
		Short: "Print stored records by id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := collection.LoadFile[string](file)
			if err != nil {
				return err
			}
			var missing []string
			for _, id := range args {
				r, ok := c.Get(id)
				if !ok {
					missing = append(missing, id)
					continue
				}
				out := jsonRecord{ID: r.ID, Vector: r.Vector, Data: core.ToAny(r.Data)}
				if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
					return fmt.Errorf("failed to write record: %w", err)
				}
			}
			if len(missing) > 0 {
				return fmt.Errorf("%w: %v", core.ErrNotFound, missing)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "snapshot file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var (
		file    string
		compact bool
	)
	cmd := &cobra.Command{
		Use:   "delete ID...",
		Short: "Delete records by id and rewrite the snapshot",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := collection.LoadFile[string](file)
			if err != nil {
				return err
			}
			deleted := 0
			for _, id := range args {
				if c.Delete(id) {
					deleted++
				}
			}
			removed := 0
			if compact {
				removed = c.Compact()
			}
			if err := c.SaveFile(file); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d of %d ids, %d remaining\n", deleted, len(args), c.Len())
			if compact {
				fmt.Fprintf(cmd.OutOrStdout(), "compacted %d tombstones\n", removed)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "snapshot file")
	f.BoolVar(&compact, "compact", false, "drop tombstones before saving")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newCompactCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Drop tombstones from a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := collection.LoadFile[string](file)
			if err != nil {
				return err
			}
			removed := c.Compact()
			if err := c.SaveFile(file); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "compacted %d tombstones, %d records\n", removed, c.Len())
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "snapshot file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var (
		file   string
		verify bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print snapshot statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := collection.LoadFile[string](file)
			if err != nil {
				return err
			}
			s := c.Stats()
			p := c.Params()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "name:        %s\n", c.Name())
			fmt.Fprintf(w, "records:     %d\n", s.Count)
			fmt.Fprintf(w, "tombstones:  %d\n", s.Tombstones)
			fmt.Fprintf(w, "dimension:   %d\n", s.Dimension)
			fmt.Fprintf(w, "distance:    %s\n", s.Distance)
			fmt.Fprintf(w, "selection:   %s\n", p.Selection)
			fmt.Fprintf(w, "top level:   %d\n", s.TopLevel)
			fmt.Fprintf(w, "m / m0:      %d / %d\n", s.M, s.M0)
			fmt.Fprintf(w, "ef:          %d construction, %d search\n", p.EfConstruction, p.EfSearch)
			fmt.Fprintf(w, "edges:       %d\n", s.Edges)
			fmt.Fprintf(w, "seed:        %d\n", p.Seed)
			if verify {
				if err := c.Verify(); err != nil {
					return fmt.Errorf("verification failed: %w", err)
				}
				fmt.Fprintln(w, "verify:      ok")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "snapshot file")
	f.BoolVar(&verify, "verify", false, "check graph invariants")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
