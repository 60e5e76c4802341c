package cmd

import (
	"fmt"

	"github.com/patrikhermansson/hanndb/collection"
	"github.com/spf13/cobra"
)

func newInsertCmd() *cobra.Command {
	var (
		file      string
		input     string
		normalize bool
		upsert    bool
	)
	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Add JSON line records to an existing snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := collection.LoadFile[string](file)
			if err != nil {
				return err
			}
			records, err := readRecordsFile(input, cmd.InOrStdin(), normalize)
			if err != nil {
				return err
			}
			before := c.Len()
			if err := insertAll(cmd.Context(), c, records, nil, upsert); err != nil {
				return err
			}
			if err := c.SaveFile(file); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records, %d new, %d total\n",
				len(records), c.Len()-before, c.Len())
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "snapshot file")
	f.StringVarP(&input, "input", "i", "-", "records file, - for stdin")
	f.BoolVar(&normalize, "normalize", false, "scale vectors to unit length before indexing")
	f.BoolVar(&upsert, "upsert", false, "update records whose id already exists")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
