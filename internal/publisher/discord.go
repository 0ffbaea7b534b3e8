package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ryosukesatoh/researchtldr/internal/pipeline"
	"github.com/ryosukesatoh/researchtldr/internal/retry"
)

type discordEmbedFooter struct {
	Text string `json:"text"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbed struct {
	Title       string              `json:"title,omitempty"`
	URL         string              `json:"url,omitempty"`
	Description string              `json:"description,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Footer      *discordEmbedFooter `json:"footer,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
}

type discordWebhookPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

const (
	colorInfo    = 0x5865F2
	colorFailure = 0xED4245
)

// Discord message limits.
const (
	maxEmbedsPerMessage = 10
	maxCharsPerMessage  = 6000
)

// webhookStatusError carries a non-2xx webhook response.
type webhookStatusError struct {
	status int
}

func (e *webhookStatusError) Error() string   { return fmt.Sprintf("unexpected status %d", e.status) }
func (e *webhookStatusError) Retryable() bool { return retry.HTTPStatusRetryable(e.status) }

// DiscordPublisher posts batch reports to a Discord channel via webhook.
type DiscordPublisher struct {
	webhookURL  string
	client      *http.Client
	retryConfig retry.Config
	batchDelay  time.Duration
}

func NewDiscordPublisher(webhookURL string) *DiscordPublisher {
	return &DiscordPublisher{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 30 * time.Second},
		retryConfig: retry.Config{
			MaxRetries: 3,
			BaseDelay:  time.Second,
			MaxDelay:   10 * time.Second,
		},
		batchDelay: 500 * time.Millisecond,
	}
}

// Publish sends the report as a headline embed plus one embed per updated
// or failed paper. Reports where nothing happened are not sent.
func (d *DiscordPublisher) Publish(ctx context.Context, report *pipeline.BatchReport) error {
	if report.Updated() == 0 && report.Failed() == 0 {
		return nil
	}
	batches := batchEmbeds(buildEmbeds(report))

	for i, batch := range batches {
		err := retry.Do(ctx, d.retryConfig, func(ctx context.Context) error {
			return d.sendWebhook(ctx, batch)
		})
		if err != nil {
			return fmt.Errorf("discord: failed to send batch %d: %w", i+1, err)
		}

		if i < len(batches)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.batchDelay):
			}
		}
	}
	return nil
}

func buildEmbeds(report *pipeline.BatchReport) []discordEmbed {
	list := entries(report)
	embeds := make([]discordEmbed, 0, len(list)+1)

	embeds = append(embeds, discordEmbed{
		Title:       "ResearchTLDR: new summaries",
		Description: headline(report),
		Color:       colorInfo,
		Footer:      &discordEmbedFooter{Text: "run " + report.RunID},
		Timestamp:   report.FinishedAt.Format(time.RFC3339),
	})

	for i, e := range list {
		embed := discordEmbed{
			Title: truncate(fmt.Sprintf("%d. %s", i+1, e.Title), 256),
			URL:   e.absURL(),
			Color: colorInfo,
		}
		if e.Outcome == pipeline.OutcomeFailed {
			embed.Color = colorFailure
			embed.Description = truncate("Failed: "+e.Error, 4096)
		} else {
			embed.Description = truncate(e.TLDR, 4096)
			if len(e.WhatsNew) > 0 {
				embed.Fields = []discordEmbedField{{
					Name:  "What's new",
					Value: truncate(formatBullets(e.WhatsNew), 1024),
				}}
			}
		}

		var footer []string
		if e.ArxivID != "" {
			footer = append(footer, "arXiv:"+e.ArxivID)
		}
		if e.Model != "" {
			footer = append(footer, e.Model)
		}
		if len(footer) > 0 {
			embed.Footer = &discordEmbedFooter{Text: truncate(strings.Join(footer, " | "), 2048)}
		}
		embeds = append(embeds, embed)
	}
	return embeds
}

// batchEmbeds splits embeds into messages within Discord's per-message
// embed and character limits.
func batchEmbeds(embeds []discordEmbed) [][]discordEmbed {
	var batches [][]discordEmbed
	var current []discordEmbed
	currentChars := 0

	for _, e := range embeds {
		ec := embedCharCount(e)
		if len(current) > 0 && (len(current) >= maxEmbedsPerMessage || currentChars+ec > maxCharsPerMessage) {
			batches = append(batches, current)
			current = nil
			currentChars = 0
		}
		current = append(current, e)
		currentChars += ec
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func (d *DiscordPublisher) sendWebhook(ctx context.Context, embeds []discordEmbed) error {
	body, err := json.Marshal(discordWebhookPayload{Embeds: embeds})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &webhookStatusError{status: resp.StatusCode}
	}
	return nil
}

// truncate shortens s to at most max characters, preferring a sentence
// boundary.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	cut := string([]rune(s)[:max-1])
	if idx := strings.LastIndexAny(cut, ".!?"); idx > len(cut)/2 {
		return cut[:idx+1]
	}
	return cut + "…"
}

func formatBullets(items []string) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("• ")
		b.WriteString(item)
	}
	return b.String()
}

// embedCharCount is the character total Discord counts against a message.
func embedCharCount(e discordEmbed) int {
	n := utf8.RuneCountInString(e.Title) + utf8.RuneCountInString(e.Description)
	for _, f := range e.Fields {
		n += utf8.RuneCountInString(f.Name) + utf8.RuneCountInString(f.Value)
	}
	if e.Footer != nil {
		n += utf8.RuneCountInString(e.Footer.Text)
	}
	return n
}
