package pipeline

import (
	"time"
)

// Outcome is what a batch did with one paper.
type Outcome string

const (
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// PaperResult records one paper's run within a batch.
type PaperResult struct {
	PaperID  uint          `json:"paper_id"`
	ArxivID  string        `json:"arxiv_id"`
	Title    string        `json:"title"`
	Outcome  Outcome       `json:"outcome"`
	Stage    string        `json:"stage,omitempty"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Result   *Result       `json:"-"`
	Duration time.Duration `json:"duration_ns"`
}

// BatchReport collects the per-paper results of one batch run, in selection
// order.
type BatchReport struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Results    []PaperResult `json:"results"`
}

func (r *BatchReport) count(o Outcome) int {
	n := 0
	for _, pr := range r.Results {
		if pr.Outcome == o {
			n++
		}
	}
	return n
}

// Updated is the number of papers whose summary was committed.
func (r *BatchReport) Updated() int { return r.count(OutcomeUpdated) }

// Skipped is the number of papers left alone because their PDF hash was
// already stored.
func (r *BatchReport) Skipped() int { return r.count(OutcomeSkipped) }

// Failed is the number of papers whose run or commit failed.
func (r *BatchReport) Failed() int { return r.count(OutcomeFailed) }

// Duration is the wall time of the batch.
func (r *BatchReport) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }
