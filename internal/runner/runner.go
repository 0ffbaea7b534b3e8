package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ryosukesatoh/researchtldr/internal/lock"
	"github.com/ryosukesatoh/researchtldr/internal/metrics"
	"github.com/ryosukesatoh/researchtldr/internal/pipeline"
	"github.com/ryosukesatoh/researchtldr/internal/publisher"
)

// BatchLockKey names the lock held while a batch runs.
const BatchLockKey = "researchtldr:summarize-batch"

// ErrBatchInProgress is returned by Run when another batch holds the lock.
var ErrBatchInProgress = errors.New("runner: a summarization batch is already running")

// Repository is the storage the runner reads papers from and commits
// summaries to.
type Repository interface {
	// PapersToSummarize returns up to limit papers lacking a summary or a PDF
	// hash, most recently published first.
	PapersToSummarize(ctx context.Context, limit int) ([]pipeline.Paper, error)
	CommitSummary(ctx context.Context, paperID uint, res *pipeline.Result) error
	PaperByArxivID(ctx context.Context, arxivID string) (*pipeline.Paper, error)
}

// Processor runs the pipeline for one paper.
type Processor interface {
	Run(ctx context.Context, paper pipeline.Paper) (*pipeline.Result, error)
}

// Options tune a Runner.
type Options struct {
	BatchSize   int
	Concurrency int
	Locker      lock.Locker
	Publishers  []publisher.Publisher
}

// Runner orchestrates the select -> summarize -> commit -> publish batch.
type Runner struct {
	repo        Repository
	proc        Processor
	batchSize   int
	concurrency int
	locker      lock.Locker
	publishers  []publisher.Publisher
	logger      *zap.Logger
}

func New(repo Repository, proc Processor, opts Options, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Locker == nil {
		opts.Locker = lock.NewLocal()
	}
	return &Runner{
		repo:        repo,
		proc:        proc,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		locker:      opts.Locker,
		publishers:  opts.Publishers,
		logger:      logger,
	}
}

// Run summarizes one batch of papers. Papers that already carry a PDF hash
// are skipped without any network or model work; a failing paper never
// stops the others. Cancelling ctx stops scheduling new papers, while papers
// already started run to completion.
func (r *Runner) Run(ctx context.Context) (*pipeline.BatchReport, error) {
	unlock, err := r.locker.TryLock(ctx, BatchLockKey)
	if errors.Is(err, lock.ErrHeld) {
		return nil, ErrBatchInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}
	defer r.release(unlock)

	report := &pipeline.BatchReport{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := r.logger.With(zap.String("run_id", report.RunID))

	papers, err := r.repo.PapersToSummarize(ctx, r.batchSize)
	if err != nil {
		return nil, fmt.Errorf("runner: select papers failed: %w", err)
	}
	log.Info("starting summarization batch", zap.Int("papers", len(papers)), zap.Int("batch_size", r.batchSize))

	results := make([]pipeline.PaperResult, len(papers))
	scheduled := 0
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, paper := range papers {
		if ctx.Err() != nil {
			log.Warn("batch cancelled, not scheduling remaining papers", zap.Int("remaining", len(papers)-i))
			break
		}
		scheduled++
		g.Go(func() error {
			results[i] = r.process(context.WithoutCancel(ctx), paper, log)
			return nil
		})
	}
	g.Wait()
	report.Results = results[:scheduled]
	report.FinishedAt = time.Now().UTC()
	metrics.BatchDuration.Observe(report.Duration().Seconds())

	log.Info("summarization batch finished",
		zap.Int("updated", report.Updated()),
		zap.Int("skipped", report.Skipped()),
		zap.Int("failed", report.Failed()),
		zap.Duration("duration", report.Duration()),
	)

	r.publish(context.WithoutCancel(ctx), report, log)
	return report, nil
}

// process handles one paper and never returns an error: every failure ends
// up in the PaperResult.
func (r *Runner) process(ctx context.Context, paper pipeline.Paper, log *zap.Logger) pipeline.PaperResult {
	start := time.Now()
	pr := pipeline.PaperResult{PaperID: paper.ID, ArxivID: paper.ArxivID, Title: paper.Title}
	log = log.With(zap.Uint("paper_id", paper.ID), zap.String("arxiv_id", paper.ArxivID))

	defer func() {
		pr.Duration = time.Since(start)
		metrics.RecordOutcome(string(pr.Outcome))
	}()

	if paper.PDFSHA256 != nil {
		pr.Outcome = pipeline.OutcomeSkipped
		log.Debug("pdf hash already stored, skipping")
		return pr
	}

	res, err := r.proc.Run(ctx, paper)
	if err != nil {
		r.fail(&pr, err, log)
		return pr
	}
	if err := r.repo.CommitSummary(ctx, paper.ID, res); err != nil {
		r.fail(&pr, fmt.Errorf("commit: %w", err), log)
		return pr
	}

	pr.Outcome = pipeline.OutcomeUpdated
	pr.Result = res
	log.Info("summary updated", zap.String("model", res.SummaryModel), zap.String("pdf_sha256", res.PDFSHA256))
	return pr
}

func (r *Runner) fail(pr *pipeline.PaperResult, err error, log *zap.Logger) {
	pr.Outcome = pipeline.OutcomeFailed
	pr.Err = err
	pr.Error = err.Error()
	var se *pipeline.StageError
	if errors.As(err, &se) {
		pr.Stage = se.Stage
	}
	log.Error("paper not updated", zap.String("stage", pr.Stage), zap.Error(err))
}

func (r *Runner) release(unlock func() error) {
	if err := unlock(); err != nil {
		r.logger.Error("batch lock not released", zap.String("key", BatchLockKey), zap.Error(err))
	}
}

// Refresh re-runs the pipeline for one paper regardless of whether it has a
// summary. Unless force is set, an unchanged PDF leaves the stored summary
// alone and reports OutcomeSkipped.
func (r *Runner) Refresh(ctx context.Context, arxivID string, force bool) (*pipeline.PaperResult, error) {
	unlock, err := r.locker.TryLock(ctx, BatchLockKey)
	if errors.Is(err, lock.ErrHeld) {
		return nil, ErrBatchInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("runner: %w", err)
	}
	defer r.release(unlock)

	paper, err := r.repo.PaperByArxivID(ctx, arxivID)
	if err != nil {
		return nil, fmt.Errorf("runner: lookup %s: %w", arxivID, err)
	}
	p := *paper
	if force {
		p.PDFSHA256 = nil
	}

	log := r.logger.With(zap.Uint("paper_id", p.ID), zap.String("arxiv_id", p.ArxivID))
	start := time.Now()
	pr := &pipeline.PaperResult{PaperID: p.ID, ArxivID: p.ArxivID, Title: p.Title}

	res, err := r.proc.Run(ctx, p)
	switch {
	case errors.Is(err, pipeline.ErrUnchanged):
		pr.Outcome = pipeline.OutcomeSkipped
		log.Info("pdf unchanged, keeping stored summary")
	case err != nil:
		r.fail(pr, err, log)
	default:
		if err := r.repo.CommitSummary(ctx, p.ID, res); err != nil {
			r.fail(pr, fmt.Errorf("commit: %w", err), log)
		} else {
			pr.Outcome = pipeline.OutcomeUpdated
			pr.Result = res
			log.Info("summary refreshed", zap.String("model", res.SummaryModel))
		}
	}
	pr.Duration = time.Since(start)
	metrics.RecordOutcome(string(pr.Outcome))
	return pr, nil
}

// publish hands the report to every publisher; failures are logged only.
func (r *Runner) publish(ctx context.Context, report *pipeline.BatchReport, log *zap.Logger) {
	failed := 0
	for _, pub := range r.publishers {
		if err := pub.Publish(ctx, report); err != nil {
			failed++
			log.Warn("publish failed", zap.String("publisher", fmt.Sprintf("%T", pub)), zap.Error(err))
			continue
		}
		log.Debug("published report", zap.String("publisher", fmt.Sprintf("%T", pub)))
	}
	if failed > 0 {
		log.Warn("batch report published with failures", zap.Int("failed", failed), zap.Int("publishers", len(r.publishers)))
	}
}
