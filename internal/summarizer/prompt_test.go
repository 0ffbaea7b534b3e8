package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildUserPrompt(t *testing.T) {
	year := 2024
	meta := Metadata{
		Title:   "Attention Is All You Need",
		Authors: []string{"A. Vaswani", "N. Shazeer"},
		Venue:   "NeurIPS",
		Year:    &year,
		DOI:     "10.1/abc",
		ArxivID: "1706.03762",
		URL:     "https://arxiv.org/abs/1706.03762",
		PDFURL:  "https://arxiv.org/pdf/1706.03762",
	}

	want := "Paper metadata:\n" +
		"title: Attention Is All You Need\n" +
		"authors: A. Vaswani, N. Shazeer\n" +
		"venue: NeurIPS\n" +
		"year: 2024\n" +
		"doi: 10.1/abc\n" +
		"arxiv_id: 1706.03762\n" +
		"url: https://arxiv.org/abs/1706.03762\n" +
		"pdf_url: https://arxiv.org/pdf/1706.03762\n\n" +
		"Paper text (concatenated, normalized):\n" +
		"chunk one\n\nchunk two\n\n" +
		"Return ONLY the JSON per the required schema."
	assert.Equal(t, want, BuildUserPrompt(meta, "chunk one\n\nchunk two"))
}

func TestBuildUserPromptEmptyMetadata(t *testing.T) {
	got := BuildUserPrompt(Metadata{}, "text")
	assert.Contains(t, got, "\nyear: \n")
	assert.Contains(t, got, "\nauthors: \n")
	assert.True(t, strings.HasSuffix(got, "Return ONLY the JSON per the required schema."))
}

func TestSystemPromptNamesEverySchemaKey(t *testing.T) {
	for _, sec := range outputSchema {
		assert.Contains(t, SystemPrompt, `"`+sec.name+`"`)
		for _, f := range sec.fields {
			assert.Contains(t, SystemPrompt, `"`+f.name+`"`, "%s.%s", sec.name, f.name)
		}
	}
}
