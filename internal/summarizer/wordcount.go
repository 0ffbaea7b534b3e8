package summarizer

import (
	"context"
	"fmt"
	"strings"
)

// WordCount is an offline Model for development. It answers with a
// schema-shaped object whose TL;DR reports the number of words in the paper
// text.
type WordCount struct{}

const wordCountModel = "wordcount-v1"

const paperTextMarker = "Paper text (concatenated, normalized):\n"

func (WordCount) Name() string { return wordCountModel }

func (WordCount) Complete(_ context.Context, _, user string) (string, error) {
	text := user
	if i := strings.Index(user, paperTextMarker); i >= 0 {
		text = user[i+len(paperTextMarker):]
	}
	text = strings.TrimSuffix(text, "\n\nReturn ONLY the JSON per the required schema.")

	data := map[string]any{
		"meta": map[string]any{
			"title": "", "authors": []any{}, "venue": "", "year": nil,
			"doi": "", "arxiv_id": "", "url": "", "pdf_url": "",
		},
		"classification": map[string]any{
			"paper_type": "other", "area_tags": []any{}, "novelty_level": "", "confidence": 0.0,
		},
		"summary": map[string]any{
			"tldr":               fmt.Sprintf("Word count: %d", len(strings.Fields(text))),
			"whats_new":          []any{},
			"method":             "",
			"evidence_setup":     []any{},
			"results":            []any{},
			"limitations":        []any{},
			"risks_ethics":       []any{},
			"reproducibility":    []any{},
			"audience_fit":       []any{},
			"practical_takeaway": "",
		},
		"provenance": map[string]any{
			"page_citations":         []any{},
			"extracted_text_sha256":  "",
			"summary_model":          wordCountModel,
			"summary_prompt_version": PromptVersion,
		},
	}
	return encodeJSON(data)
}
