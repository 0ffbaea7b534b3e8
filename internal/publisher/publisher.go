package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ryosukesatoh/researchtldr/internal/config"
	"github.com/ryosukesatoh/researchtldr/internal/pipeline"
)

// Publisher delivers a finished batch report somewhere.
type Publisher interface {
	Publish(ctx context.Context, report *pipeline.BatchReport) error
}

// New builds the publisher selected by cfg.Type. "none" yields nil.
func New(cfg config.PublisherConfig) (Publisher, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "stdout":
		return NewStdoutPublisher(nil), nil
	case "email":
		e := cfg.Email
		return NewEmailPublisher(e.SMTPHost, e.SMTPPort, e.Username, e.Password, e.From, e.To), nil
	case "discord":
		return NewDiscordPublisher(cfg.Discord.WebhookURL), nil
	case "web":
		return NewWebPublisher(), nil
	default:
		return nil, fmt.Errorf("publisher: unsupported type %q", cfg.Type)
	}
}

// entry is one report line in the form every publisher renders.
type entry struct {
	Title    string
	ArxivID  string
	Outcome  pipeline.Outcome
	Model    string
	TLDR     string
	WhatsNew []string
	Error    string
}

func (e entry) absURL() string {
	if e.ArxivID == "" {
		return ""
	}
	return "https://arxiv.org/abs/" + e.ArxivID
}

// summaryJSON picks the fields publishers show out of a stored summary.
type summaryJSON struct {
	Summary struct {
		TLDR     string   `json:"tldr"`
		WhatsNew []string `json:"whats_new"`
	} `json:"summary"`
}

// entries lists updated papers first, then failures. Skipped papers are
// counted in the headline only.
func entries(report *pipeline.BatchReport) []entry {
	var updated, failed []entry
	for _, pr := range report.Results {
		e := entry{Title: pr.Title, ArxivID: pr.ArxivID, Outcome: pr.Outcome, Error: pr.Error}
		switch pr.Outcome {
		case pipeline.OutcomeUpdated:
			if pr.Result != nil {
				e.Model = pr.Result.SummaryModel
				var s summaryJSON
				if json.Unmarshal([]byte(pr.Result.SummaryText), &s) == nil {
					e.TLDR = s.Summary.TLDR
					e.WhatsNew = s.Summary.WhatsNew
				}
			}
			updated = append(updated, e)
		case pipeline.OutcomeFailed:
			failed = append(failed, e)
		}
	}
	return append(updated, failed...)
}

func headline(report *pipeline.BatchReport) string {
	return fmt.Sprintf("%d updated, %d skipped, %d failed", report.Updated(), report.Skipped(), report.Failed())
}
