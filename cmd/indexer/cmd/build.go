package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quoteindex/quoteindex/pkg/metrics"
)

func newBuildCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Rebuild the index from the whole corpus",
		Long: `Scan every document in the corpus, build the inverted index and the
word-ID table, and persist both as timestamped snapshots.

An empty corpus writes nothing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := newPipeline(ctx, g.cfg, metrics.New(nil))
			if err != nil {
				return err
			}
			defer p.Close()

			report, err := p.engine.Rebuild(ctx)
			if err != nil {
				return fmt.Errorf("rebuilding index: %w", err)
			}
			out := cmd.OutOrStdout()
			if report.Empty() {
				fmt.Fprintln(out, "corpus is empty, no snapshots written")
				return nil
			}
			fmt.Fprintf(out, "indexed %d words from %d documents (%d lines)\n", report.Words, report.Documents, report.Lines)
			fmt.Fprintf(out, "index:    %s\n", report.IndexKey)
			fmt.Fprintf(out, "word ids: %s\n", report.WordIDsKey)
			return nil
		},
	}
}
