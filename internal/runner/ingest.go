package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ryosukesatoh/researchtldr/internal/fetcher"
	"github.com/ryosukesatoh/researchtldr/internal/metrics"
)

// ingestPageSize is the arXiv API page size used while ingesting.
const ingestPageSize = 100

// PaperSaver stores feed entries, ignoring ones already known.
type PaperSaver interface {
	SavePapers(ctx context.Context, papers []fetcher.Paper) (int, error)
}

// IngestOptions select which submissions an Ingester pulls.
type IngestOptions struct {
	Categories   []string
	LookbackDays int
	MaxResults   int
}

// Ingester copies recent arXiv submissions into storage.
type Ingester struct {
	feed   fetcher.Feed
	store  PaperSaver
	opts   IngestOptions
	logger *zap.Logger
	now    func() time.Time
}

func NewIngester(feed fetcher.Feed, store PaperSaver, opts IngestOptions, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{feed: feed, store: store, opts: opts, logger: logger, now: time.Now}
}

// Run fetches submissions from the last LookbackDays days (today included),
// up to MaxResults entries, and returns how many new papers were stored.
func (in *Ingester) Run(ctx context.Context) (int, error) {
	to := in.now().UTC()
	from := to.AddDate(0, 0, -max(in.opts.LookbackDays-1, 0))
	q := fetcher.Query{Categories: in.opts.Categories, From: from, To: to}

	in.logger.Info("ingesting arXiv submissions",
		zap.Strings("categories", in.opts.Categories),
		zap.String("from", from.Format(time.DateOnly)),
		zap.String("to", to.Format(time.DateOnly)),
	)

	var papers []fetcher.Paper
	for in.opts.MaxResults <= 0 || len(papers) < in.opts.MaxResults {
		q.Start = len(papers)
		q.MaxResults = ingestPageSize
		if in.opts.MaxResults > 0 {
			q.MaxResults = min(ingestPageSize, in.opts.MaxResults-len(papers))
		}
		page, err := in.feed.Search(ctx, q)
		if err != nil {
			return 0, fmt.Errorf("runner: ingest failed: %w", err)
		}
		papers = append(papers, page...)
		if len(page) < q.MaxResults {
			break
		}
	}
	in.logger.Info("fetched arXiv entries", zap.Int("entries", len(papers)))

	stored, err := in.store.SavePapers(ctx, papers)
	if err != nil {
		return 0, fmt.Errorf("runner: store papers failed: %w", err)
	}
	metrics.PapersIngested.Add(float64(stored))
	in.logger.Info("ingest finished", zap.Int("stored", stored), zap.Int("fetched", len(papers)))
	return stored, nil
}
