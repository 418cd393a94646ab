package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quoteindex/quoteindex/internal/quote/splitter"
)

func newSplitCmd(g *globals) *cobra.Command {
	var (
		out   string
		first int
	)

	cmd := &cobra.Command{
		Use:   "split <file>",
		Short: "Split a quote collection into one document per quote",
		Long: `Read a text file of quotes separated by blank lines and write each
quote to its own numbered document. --out defaults to the configured
local corpus directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = g.cfg.Storage.LocalDir
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()

			n, err := splitter.WriteDir(out, splitter.Blocks(f), first)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d documents to %s\n", n, out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "Output directory")
	cmd.Flags().IntVar(&first, "first", 1, "ID of the first document")
	return cmd
}
