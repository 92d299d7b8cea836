package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the vector index from the corpus directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			meta, err := a.Builder.Build(cmd.Context(), c.cfg.Corpus.Dir)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Loaded %d documents from %s\n", meta.Documents, c.cfg.Corpus.Dir)
			fmt.Fprintf(out, "Created %d chunks (%s, %d dimensions)\n", meta.Chunks, meta.EmbeddingModel, meta.Dimensions)
			fmt.Fprintf(out, "Index %s written to %s\n", meta.BuildID, a.Store.Path())
			return nil
		},
	}
}
