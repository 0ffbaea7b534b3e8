package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSummarizeCmd(c *cli) *cobra.Command {
	var (
		limit   int
		arxivID string
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Summarize papers missing a summary, or refresh one paper",
		Long: `Summarize runs one batch over papers that lack a summary or PDF hash.

With --paper it re-fetches a single paper's PDF and re-summarizes it when the
PDF changed. --force re-summarizes even when the PDF is unchanged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if force && arxivID == "" {
				return fmt.Errorf("--force requires --paper")
			}
			if limit > 0 {
				c.cfg.Pipeline.BatchSize = limit
			}

			a, err := newApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()
			out := cmd.OutOrStdout()

			if arxivID != "" {
				pr, err := a.runner.Refresh(cmd.Context(), arxivID, force)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %s", pr.ArxivID, pr.Outcome)
				if pr.Error != "" {
					fmt.Fprintf(out, " (%s)", pr.Error)
				}
				fmt.Fprintln(out)
				return nil
			}

			report, err := a.runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, describe(report))
			for _, pr := range report.Results {
				if pr.Error != "" {
					fmt.Fprintf(out, "  %s failed: %s\n", pr.ArxivID, pr.Error)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "papers per batch (default pipeline.batch_size)")
	cmd.Flags().StringVar(&arxivID, "paper", "", "arXiv id of a single paper to refresh")
	cmd.Flags().BoolVar(&force, "force", false, "re-summarize even if the PDF is unchanged")
	return cmd
}
