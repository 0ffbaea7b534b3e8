package publisher

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ryosukesatoh/researchtldr/internal/pipeline"
)

// StdoutPublisher prints the report as plain text.
type StdoutPublisher struct {
	w io.Writer
}

// NewStdoutPublisher writes to w, or os.Stdout when w is nil.
func NewStdoutPublisher(w io.Writer) *StdoutPublisher {
	if w == nil {
		w = os.Stdout
	}
	return &StdoutPublisher{w: w}
}

func (p *StdoutPublisher) Publish(_ context.Context, report *pipeline.BatchReport) error {
	var b strings.Builder
	b.WriteString(strings.Repeat("=", 72) + "\n")
	fmt.Fprintf(&b, "ResearchTLDR batch %s\n", report.RunID)
	fmt.Fprintf(&b, "Finished: %s (%s)\n", report.FinishedAt.Format("2006-01-02 15:04"), report.Duration().Round(time.Millisecond))
	fmt.Fprintf(&b, "Result: %s\n", headline(report))
	b.WriteString(strings.Repeat("=", 72) + "\n")

	for i, e := range entries(report) {
		b.WriteString(strings.Repeat("-", 72) + "\n")
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, e.Outcome, e.Title)
		if u := e.absURL(); u != "" {
			fmt.Fprintf(&b, "   URL: %s\n", u)
		}
		if e.Error != "" {
			fmt.Fprintf(&b, "   Error: %s\n", e.Error)
			continue
		}
		if e.TLDR != "" {
			fmt.Fprintf(&b, "\n   %s\n", e.TLDR)
		}
		if len(e.WhatsNew) > 0 {
			b.WriteString("\n   What's new:\n")
			for _, w := range e.WhatsNew {
				fmt.Fprintf(&b, "   - %s\n", w)
			}
		}
		if e.Model != "" {
			fmt.Fprintf(&b, "   Model: %s\n", e.Model)
		}
	}
	b.WriteString(strings.Repeat("=", 72) + "\n")

	_, err := io.WriteString(p.w, b.String())
	return err
}
