package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/ryosukesatoh/researchtldr/internal/retry"
)

// Paper is one arXiv entry as returned by the export API.
type Paper struct {
	ArxivID         string
	Title           string
	Abstract        string
	Authors         []string
	URL             string
	PDFURL          string
	Published       time.Time
	Updated         time.Time
	PrimaryCategory string
	Categories      []string
	DOI             string
	JournalRef      string
	Comment         string
}

// Query selects submissions in [From, To] (dates only) restricted to
// Categories when non-empty.
type Query struct {
	Categories []string
	From       time.Time
	To         time.Time
	Start      int
	MaxResults int
}

// Feed lists paper metadata from a catalogue.
type Feed interface {
	Search(ctx context.Context, q Query) ([]Paper, error)
}

// FetchError reports a failed HTTP retrieval.
type FetchError struct {
	URL        string
	StatusCode int
	Reason     string
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is transient: server errors, rate
// limiting, and transport errors.
func (e *FetchError) Retryable() bool {
	if e.StatusCode != 0 {
		return retry.HTTPStatusRetryable(e.StatusCode)
	}
	return e.Err != nil
}
