// Command researchtldr ingests arXiv papers, summarizes their PDFs and serves
// the results over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ryosukesatoh/researchtldr/internal/config"
	"github.com/ryosukesatoh/researchtldr/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}

// cli is the state shared by every subcommand.
type cli struct {
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "researchtldr",
		Short: "Summarize arXiv papers from their PDFs",
		Long: `researchtldr ingests arXiv submissions, summarizes each paper's PDF with a
language model and records SHA-256 provenance for every summary.

Example usage:
  researchtldr serve                        # HTTP API plus scheduled ingest and batches
  researchtldr ingest                       # pull recent submissions once
  researchtldr summarize --limit 5          # summarize one batch
  researchtldr summarize --paper 2501.01234 # refresh a single paper
  researchtldr summarize-file paper.txt     # summarize a local text file`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "config.yaml", "path to config file")

	root.AddCommand(
		newServeCmd(c),
		newIngestCmd(c),
		newSummarizeCmd(c),
		newSummarizeFileCmd(c),
		newTokenCmd(c),
	)
	return root
}

func (c *cli) init() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = log
	return nil
}
