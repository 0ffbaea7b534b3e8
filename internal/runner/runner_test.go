package runner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ryosukesatoh/researchtldr/internal/fetcher"
	"github.com/ryosukesatoh/researchtldr/internal/lock"
	"github.com/ryosukesatoh/researchtldr/internal/pipeline"
	"github.com/ryosukesatoh/researchtldr/internal/publisher"
)

type stubRepo struct {
	mu        sync.Mutex
	papers    []pipeline.Paper
	commits   map[uint]*pipeline.Result
	commitErr map[uint]error
	selectErr error
}

func newStubRepo(papers ...pipeline.Paper) *stubRepo {
	return &stubRepo{papers: papers, commits: map[uint]*pipeline.Result{}, commitErr: map[uint]error{}}
}

func (r *stubRepo) PapersToSummarize(_ context.Context, limit int) ([]pipeline.Paper, error) {
	if r.selectErr != nil {
		return nil, r.selectErr
	}
	if limit > 0 && len(r.papers) > limit {
		return r.papers[:limit], nil
	}
	return r.papers, nil
}

func (r *stubRepo) CommitSummary(_ context.Context, id uint, res *pipeline.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.commitErr[id]; err != nil {
		return err
	}
	r.commits[id] = res
	return nil
}

func (r *stubRepo) PaperByArxivID(_ context.Context, arxivID string) (*pipeline.Paper, error) {
	for _, p := range r.papers {
		if p.ArxivID == arxivID {
			return &p, nil
		}
	}
	return nil, errors.New("not found")
}

type stubProcessor struct {
	mu    sync.Mutex
	seen  []pipeline.Paper
	fail  map[uint]error
	run   func(ctx context.Context, p pipeline.Paper) (*pipeline.Result, error)
	calls atomic.Int32
}

func (s *stubProcessor) Run(ctx context.Context, p pipeline.Paper) (*pipeline.Result, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.seen = append(s.seen, p)
	s.mu.Unlock()
	if s.run != nil {
		return s.run(ctx, p)
	}
	if err := s.fail[p.ID]; err != nil {
		return nil, err
	}
	return &pipeline.Result{SummaryText: "{}", SummaryModel: "stub", PDFSHA256: "hash"}, nil
}

type stubPublisher struct {
	reports []*pipeline.BatchReport
	err     error
}

func (p *stubPublisher) Publish(_ context.Context, r *pipeline.BatchReport) error {
	p.reports = append(p.reports, r)
	return p.err
}

func strPtr(s string) *string { return &s }

func papers(n int) []pipeline.Paper {
	out := make([]pipeline.Paper, n)
	for i := range out {
		out[i] = pipeline.Paper{ID: uint(i + 1), ArxivID: "2501.0000" + string(rune('1'+i)), Title: "Paper"}
	}
	return out
}

func TestRunUpdatesAllPapers(t *testing.T) {
	repo := newStubRepo(papers(3)...)
	proc := &stubProcessor{}
	pub := &stubPublisher{}
	r := New(repo, proc, Options{BatchSize: 10, Publishers: []publisher.Publisher{pub}}, nil)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 3, report.Updated())
	assert.Len(t, repo.commits, 3)
	for i, pr := range report.Results {
		assert.Equal(t, uint(i+1), pr.PaperID, "results keep selection order")
		assert.NotNil(t, pr.Result)
	}
	require.Len(t, pub.reports, 1)
	assert.Same(t, report, pub.reports[0])
}

func TestRunSkipsPaperWithStoredHash(t *testing.T) {
	p := pipeline.Paper{ID: 1, ArxivID: "2501.00001", PDFSHA256: strPtr("abc123")}
	repo := newStubRepo(p)
	proc := &stubProcessor{}
	r := New(repo, proc, Options{BatchSize: 10}, nil)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped())
	assert.Zero(t, proc.calls.Load())
	assert.Empty(t, repo.commits)
	assert.Equal(t, "abc123", *repo.papers[0].PDFSHA256)
}

func TestRunIsolatesFailures(t *testing.T) {
	repo := newStubRepo(papers(4)...)
	fetchErr := &pipeline.StageError{Stage: pipeline.StageFetch, Err: errors.New("unexpected status 404")}
	proc := &stubProcessor{fail: map[uint]error{2: fetchErr}}
	r := New(repo, proc, Options{BatchSize: 10, Concurrency: 2}, nil)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Updated())
	assert.Equal(t, 1, report.Failed())
	failed := report.Results[1]
	assert.Equal(t, pipeline.OutcomeFailed, failed.Outcome)
	assert.Equal(t, pipeline.StageFetch, failed.Stage)
	assert.ErrorIs(t, failed.Err, fetchErr)
	assert.Contains(t, failed.Error, "404")
	assert.NotContains(t, repo.commits, uint(2))
}

func TestRunCommitFailure(t *testing.T) {
	repo := newStubRepo(papers(2)...)
	repo.commitErr[1] = errors.New("database is locked")
	r := New(repo, &stubProcessor{}, Options{BatchSize: 10}, nil)

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, pipeline.OutcomeFailed, report.Results[0].Outcome)
	assert.Equal(t, "commit: database is locked", report.Results[0].Error)
	assert.Empty(t, report.Results[0].Stage)
	assert.Equal(t, pipeline.OutcomeUpdated, report.Results[1].Outcome)
}

func TestRunRespectsBatchSize(t *testing.T) {
	repo := newStubRepo(papers(5)...)
	proc := &stubProcessor{}
	r := New(repo, proc, Options{BatchSize: 2}, nil)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Results, 2)
	assert.Equal(t, int32(2), proc.calls.Load())
}

func TestRunConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	proc := &stubProcessor{run: func(context.Context, pipeline.Paper) (*pipeline.Result, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return &pipeline.Result{PDFSHA256: "h"}, nil
	}}
	r := New(newStubRepo(papers(6)...), proc, Options{BatchSize: 10, Concurrency: 2}, nil)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, report.Updated())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunCancellationStopsScheduling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := newStubRepo(papers(3)...)
	proc := &stubProcessor{run: func(ctx context.Context, p pipeline.Paper) (*pipeline.Result, error) {
		if p.ID == 1 {
			cancel()
		}
		return &pipeline.Result{PDFSHA256: "h"}, ctx.Err()
	}}
	r := New(repo, proc, Options{BatchSize: 10, Concurrency: 1}, nil)

	report, err := r.Run(ctx)
	require.NoError(t, err)

	require.NotEmpty(t, report.Results)
	assert.Less(t, len(report.Results), 3)
	assert.Equal(t, pipeline.OutcomeUpdated, report.Results[0].Outcome, "started papers run to completion")
	for _, p := range proc.seen {
		assert.NotEqual(t, uint(3), p.ID)
	}
}

func TestRunBatchInProgress(t *testing.T) {
	locker := lock.NewLocal()
	unlock, err := locker.TryLock(context.Background(), BatchLockKey)
	require.NoError(t, err)

	r := New(newStubRepo(papers(1)...), &stubProcessor{}, Options{Locker: locker}, nil)
	_, err = r.Run(context.Background())
	assert.ErrorIs(t, err, ErrBatchInProgress)

	require.NoError(t, unlock())
	_, err = r.Run(context.Background())
	assert.NoError(t, err)
}

type failingReleaseLocker struct {
	released int
}

func (l *failingReleaseLocker) TryLock(context.Context, string) (func() error, error) {
	return func() error {
		l.released++
		return errors.New("connection refused")
	}, nil
}

func TestRunLogsLockReleaseFailure(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	locker := &failingReleaseLocker{}
	r := New(newStubRepo(papers(1)...), &stubProcessor{}, Options{Locker: locker}, zap.New(core))

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Results, 1)
	assert.Equal(t, 1, locker.released)

	entries := logs.FilterMessage("batch lock not released").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "connection refused", entries[0].ContextMap()["error"])
}

func TestRunSelectError(t *testing.T) {
	repo := newStubRepo()
	repo.selectErr = errors.New("no such table")
	_, err := New(repo, &stubProcessor{}, Options{}, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "select papers failed")
}

func TestRunPublishFailureDoesNotFail(t *testing.T) {
	bad := &stubPublisher{err: errors.New("webhook down")}
	good := &stubPublisher{}
	r := New(newStubRepo(papers(1)...), &stubProcessor{}, Options{
		BatchSize:  10,
		Publishers: []publisher.Publisher{bad, good},
	}, nil)

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated())
	assert.Len(t, bad.reports, 1)
	assert.Len(t, good.reports, 1)
}

func TestRefresh(t *testing.T) {
	stored := pipeline.Paper{ID: 7, ArxivID: "2501.00007", PDFSHA256: strPtr("old")}

	t.Run("force clears stored hash", func(t *testing.T) {
		repo := newStubRepo(stored)
		proc := &stubProcessor{}
		pr, err := New(repo, proc, Options{}, nil).Refresh(context.Background(), "2501.00007", true)
		require.NoError(t, err)

		assert.Equal(t, pipeline.OutcomeUpdated, pr.Outcome)
		require.Len(t, proc.seen, 1)
		assert.Nil(t, proc.seen[0].PDFSHA256)
		assert.Contains(t, repo.commits, uint(7))
		assert.Equal(t, "old", *repo.papers[0].PDFSHA256)
	})

	t.Run("unchanged pdf is skipped", func(t *testing.T) {
		repo := newStubRepo(stored)
		proc := &stubProcessor{run: func(_ context.Context, p pipeline.Paper) (*pipeline.Result, error) {
			assert.Equal(t, "old", *p.PDFSHA256)
			return nil, pipeline.ErrUnchanged
		}}
		pr, err := New(repo, proc, Options{}, nil).Refresh(context.Background(), "2501.00007", false)
		require.NoError(t, err)
		assert.Equal(t, pipeline.OutcomeSkipped, pr.Outcome)
		assert.Empty(t, repo.commits)
	})

	t.Run("stage failure", func(t *testing.T) {
		proc := &stubProcessor{fail: map[uint]error{7: &pipeline.StageError{Stage: pipeline.StageExtract, Err: errors.New("bad pdf")}}}
		pr, err := New(newStubRepo(stored), proc, Options{}, nil).Refresh(context.Background(), "2501.00007", true)
		require.NoError(t, err)
		assert.Equal(t, pipeline.OutcomeFailed, pr.Outcome)
		assert.Equal(t, pipeline.StageExtract, pr.Stage)
	})

	t.Run("unknown paper", func(t *testing.T) {
		_, err := New(newStubRepo(), &stubProcessor{}, Options{}, nil).Refresh(context.Background(), "nope", false)
		assert.Error(t, err)
	})
}

type stubFeed struct {
	queries []fetcher.Query
	total   int
	err     error
}

func (f *stubFeed) Search(_ context.Context, q fetcher.Query) ([]fetcher.Paper, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	n := min(q.MaxResults, max(f.total-q.Start, 0))
	out := make([]fetcher.Paper, n)
	for i := range out {
		out[i] = fetcher.Paper{ArxivID: "x"}
	}
	return out, nil
}

type stubSaver struct {
	saved []fetcher.Paper
	err   error
}

func (s *stubSaver) SavePapers(_ context.Context, p []fetcher.Paper) (int, error) {
	s.saved = p
	return len(p), s.err
}

func TestIngesterPaging(t *testing.T) {
	feed := &stubFeed{total: 250}
	saver := &stubSaver{}
	in := NewIngester(feed, saver, IngestOptions{Categories: []string{"cs.LG"}, LookbackDays: 3, MaxResults: 1000}, nil)
	in.now = func() time.Time { return time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC) }

	n, err := in.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 250, n)
	assert.Len(t, saver.saved, 250)

	require.Len(t, feed.queries, 3)
	assert.Equal(t, 0, feed.queries[0].Start)
	assert.Equal(t, 100, feed.queries[1].Start)
	assert.Equal(t, 200, feed.queries[2].Start)

	q := feed.queries[0]
	assert.Equal(t, []string{"cs.LG"}, q.Categories)
	assert.Equal(t, time.Date(2025, 1, 13, 12, 0, 0, 0, time.UTC), q.From)
	assert.Equal(t, time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC), q.To)
}

func TestIngesterMaxResults(t *testing.T) {
	feed := &stubFeed{total: 500}
	saver := &stubSaver{}
	in := NewIngester(feed, saver, IngestOptions{LookbackDays: 1, MaxResults: 150}, nil)

	n, err := in.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 150, n)
	require.Len(t, feed.queries, 2)
	assert.Equal(t, 50, feed.queries[1].MaxResults)
}

func TestIngesterErrors(t *testing.T) {
	_, err := NewIngester(&stubFeed{err: errors.New("boom")}, &stubSaver{}, IngestOptions{MaxResults: 10}, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest failed")

	_, err = NewIngester(&stubFeed{total: 1}, &stubSaver{err: errors.New("disk full")}, IngestOptions{MaxResults: 10}, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store papers failed")
}
