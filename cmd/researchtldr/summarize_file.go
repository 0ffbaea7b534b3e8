package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ryosukesatoh/researchtldr/internal/fingerprint"
	"github.com/ryosukesatoh/researchtldr/internal/summarizer"
	"github.com/ryosukesatoh/researchtldr/internal/textnorm"
)

func newSummarizeFileCmd(c *cli) *cobra.Command {
	var (
		out  string
		year int
		meta summarizer.Metadata
	)
	cmd := &cobra.Command{
		Use:   "summarize-file <text-file>",
		Short: "Summarize a local plain-text file and write the JSON result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			if year > 0 {
				meta.Year = &year
			}

			model, err := summarizer.New(c.cfg.Summarizer)
			if err != nil {
				return err
			}
			text := textnorm.Normalize(string(raw))
			req := summarizer.Request{
				Chunks: textnorm.Chunk(text, c.cfg.Summarizer.MaxCharsPerChunk),
				Meta:   meta,
			}
			if text != "" {
				req.TextSHA256 = fingerprint.Text(text)
			}

			summary, err := summarizer.NewClient(model).Summarize(cmd.Context(), req)
			if err != nil {
				return err
			}
			if summary.SchemaErr != nil {
				c.logger.Warn("summary does not match the expected shape", zap.Strings("problems", summary.SchemaErr.Problems))
			}

			var pretty bytes.Buffer
			if err := json.Indent(&pretty, []byte(summary.JSON), "", "  "); err != nil {
				return fmt.Errorf("format summary: %w", err)
			}
			pretty.WriteByte('\n')
			if err := os.WriteFile(out, pretty.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d chunks, model %s)\n", out, len(req.Chunks), summary.Model)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&out, "out", "summary.json", "output path")
	f.StringVar(&meta.Title, "title", "", "paper title")
	f.StringSliceVar(&meta.Authors, "authors", nil, "comma-separated author names")
	f.StringVar(&meta.Venue, "venue", "", "publication venue")
	f.IntVar(&year, "year", 0, "publication year")
	f.StringVar(&meta.DOI, "doi", "", "DOI")
	f.StringVar(&meta.ArxivID, "arxiv-id", "", "arXiv id")
	f.StringVar(&meta.URL, "url", "", "landing page URL")
	f.StringVar(&meta.PDFURL, "pdf-url", "", "PDF URL")
	return cmd
}
