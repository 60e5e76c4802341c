package cmd

import (
	"fmt"

	"github.com/patrikhermansson/hanndb/collection"
	"github.com/patrikhermansson/hanndb/core"
	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var (
		file      string
		vector    string
		k         int
		ef        int
		normalize bool
	)
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Find the records nearest to a query vector",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, err := parseVector(vector)
			if err != nil {
				return err
			}
			if normalize {
				core.NormalizeVector(query)
			}
			c, err := collection.LoadFile[string](file)
			if err != nil {
				return err
			}
			results, err := c.SearchWithEf(query, k, ef)
			if err != nil {
				return err
			}
			for _, r := range results {
				dist := r.Distance
				out := jsonRecord{ID: r.ID, Data: core.ToAny(r.Data), Distance: &dist}
				if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
					return fmt.Errorf("failed to write result: %w", err)
				}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "snapshot file")
	f.StringVar(&vector, "vector", "", "query vector, comma separated")
	f.IntVarP(&k, "k", "k", 10, "number of neighbors")
	f.IntVar(&ef, "ef", 0, "beam width, 0 for the snapshot's ef_search")
	f.BoolVar(&normalize, "normalize", false, "scale the query to unit length")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("vector")
	return cmd
}
