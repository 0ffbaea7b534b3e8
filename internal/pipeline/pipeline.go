// Package pipeline turns one paper's PDF into a stored-ready summary with
// content-addressed provenance.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ryosukesatoh/researchtldr/internal/extract"
	"github.com/ryosukesatoh/researchtldr/internal/fingerprint"
	"github.com/ryosukesatoh/researchtldr/internal/metrics"
	"github.com/ryosukesatoh/researchtldr/internal/summarizer"
	"github.com/ryosukesatoh/researchtldr/internal/textnorm"
)

// Paper is the part of a stored paper the pipeline reads.
type Paper struct {
	ID        uint
	ArxivID   string
	Title     string
	Authors   []string
	Year      *int
	Venue     string
	DOI       string
	URL       string
	PDFURL    string
	PDFSHA256 *string
	Summary   *string
	Published time.Time
}

// Result is the outcome of a successful run. It is never modified after Run
// returns it.
type Result struct {
	SummaryText  string
	SummaryModel string
	SummarizedAt time.Time
	PDFSHA256    string
	// TextSHA256 is nil when the normalized text is empty.
	TextSHA256 *string

	ExtractionTool        string
	ExtractionToolVersion string
	NormalizationSpec     textnorm.Spec
	PromptVersion         string
	Chunks                int
	PagesTotal            int
	PagesFailed           int
	SchemaValid           bool
	SchemaProblems        []string
}

// Fetcher downloads PDF bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Extractor reads the text of a PDF.
type Extractor interface {
	Extract(data []byte) (*extract.Document, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func([]byte) (*extract.Document, error)

func (f ExtractorFunc) Extract(data []byte) (*extract.Document, error) { return f(data) }

// Summarizer produces a summary from normalized chunks.
type Summarizer interface {
	Summarize(ctx context.Context, req summarizer.Request) (*summarizer.Summary, error)
}

// Stage names used in errors, logs, and metrics.
const (
	StageFetch     = "fetch"
	StageExtract   = "extract"
	StageSummarize = "summarize"
)

// ErrUnchanged is returned by Run when the fetched PDF hashes to the value
// already stored on the paper.
var ErrUnchanged = errors.New("pipeline: pdf unchanged since last summary")

// StageError wraps the failure of one stage. The cause stays reachable with
// errors.As.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline: %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Pipeline runs fetch, extract, normalize, chunk, and summarize for one
// paper, in that order.
type Pipeline struct {
	fetcher    Fetcher
	extractor  Extractor
	summarizer Summarizer
	maxChars   int
	logger     *zap.Logger
	now        func() time.Time
}

// New builds a Pipeline. maxChars bounds each chunk; zero or less sends the
// text as a single chunk.
func New(f Fetcher, e Extractor, s Summarizer, maxChars int, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		fetcher:    f,
		extractor:  e,
		summarizer: s,
		maxChars:   maxChars,
		logger:     logger,
		now:        time.Now,
	}
}

// Run summarizes paper from its PDF. It returns ErrUnchanged without calling
// the model when paper already carries the hash of the fetched PDF.
func (p *Pipeline) Run(ctx context.Context, paper Paper) (*Result, error) {
	log := p.logger.With(zap.Uint("paper_id", paper.ID), zap.String("arxiv_id", paper.ArxivID))

	var pdf []byte
	err := p.stage(StageFetch, func() error {
		var err error
		pdf, err = p.fetcher.Fetch(ctx, paper.PDFURL)
		return err
	})
	if err != nil {
		return nil, err
	}
	pdfHash := fingerprint.Bytes(pdf)
	if paper.PDFSHA256 != nil && *paper.PDFSHA256 == pdfHash {
		return nil, ErrUnchanged
	}
	log.Debug("fetched pdf", zap.Int("bytes", len(pdf)), zap.String("pdf_sha256", pdfHash))

	var doc *extract.Document
	err = p.stage(StageExtract, func() error {
		var err error
		doc, err = p.extractor.Extract(pdf)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(doc.FailedPages) > 0 {
		log.Warn("pages failed to extract", zap.Ints("pages", doc.FailedPages), zap.Int("pages_total", doc.Pages))
	}

	text := textnorm.Normalize(doc.Text)
	var textHash *string
	if text != "" {
		h := fingerprint.Text(text)
		textHash = &h
	}
	chunks := textnorm.Chunk(text, p.maxChars)

	req := summarizer.Request{Chunks: chunks, Meta: metadata(paper)}
	if textHash != nil {
		req.TextSHA256 = *textHash
	}

	var sum *summarizer.Summary
	err = p.stage(StageSummarize, func() error {
		var err error
		sum, err = p.summarizer.Summarize(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	res := &Result{
		SummaryText:           sum.JSON,
		SummaryModel:          sum.Model,
		SummarizedAt:          p.now().UTC(),
		PDFSHA256:             pdfHash,
		TextSHA256:            textHash,
		ExtractionTool:        extract.Tool,
		ExtractionToolVersion: extract.Version(),
		NormalizationSpec:     textnorm.CurrentSpec,
		PromptVersion:         summarizer.PromptVersion,
		Chunks:                len(chunks),
		PagesTotal:            doc.Pages,
		PagesFailed:           len(doc.FailedPages),
		SchemaValid:           sum.SchemaErr == nil,
	}
	if sum.SchemaErr != nil {
		res.SchemaProblems = sum.SchemaErr.Problems
		metrics.SchemaInvalid.Inc()
		log.Warn("summary failed shape validation, storing anyway", zap.Strings("problems", sum.SchemaErr.Problems))
	}
	return res, nil
}

func (p *Pipeline) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStage(name, time.Since(start).Seconds(), err != nil)
	if err != nil {
		return &StageError{Stage: name, Err: err}
	}
	return nil
}

func metadata(p Paper) summarizer.Metadata {
	return summarizer.Metadata{
		Title:   p.Title,
		Authors: p.Authors,
		Venue:   p.Venue,
		Year:    p.Year,
		DOI:     p.DOI,
		ArxivID: p.ArxivID,
		URL:     p.URL,
		PDFURL:  p.PDFURL,
	}
}
