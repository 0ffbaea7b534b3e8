package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validOutput = `{
  "meta": {"title": "T", "authors": ["A"], "venue": "", "year": 2024, "doi": "", "arxiv_id": "2501.00001", "url": "", "pdf_url": ""},
  "classification": {"paper_type": "empirical", "area_tags": ["nlp"], "novelty_level": "incremental", "confidence": 0.7},
  "summary": {"tldr": "Short.", "whats_new": [], "method": "M.", "evidence_setup": [], "results": [], "limitations": [],
              "risks_ethics": [], "reproducibility": [], "audience_fit": [], "practical_takeaway": "P."},
  "provenance": {"page_citations": ["p. 3"], "extracted_text_sha256": "abc", "summary_model": "m", "summary_prompt_version": "v1"}
}`

func mustParse(t *testing.T, raw string) map[string]any {
	t.Helper()
	obj, err := ExtractJSON(raw)
	require.NoError(t, err)
	return obj
}

func TestValidateShapeAcceptsValidOutput(t *testing.T) {
	assert.Nil(t, ValidateShape(mustParse(t, validOutput)))
}

func TestValidateShapeYearMayBeNull(t *testing.T) {
	obj := mustParse(t, validOutput)
	obj["meta"].(map[string]any)["year"] = nil
	assert.Nil(t, ValidateShape(obj))
}

func TestValidateShapeConfidenceMayBeInteger(t *testing.T) {
	obj := mustParse(t, validOutput)
	obj["classification"].(map[string]any)["confidence"] = mustParse(t, `{"c": 1}`)["c"]
	assert.Nil(t, ValidateShape(obj))
}

func TestValidateShapeReportsEveryProblem(t *testing.T) {
	obj := mustParse(t, validOutput)
	delete(obj, "classification")
	obj["meta"].(map[string]any)["year"] = "2024"
	obj["summary"].(map[string]any)["results"] = "none"
	delete(obj["provenance"].(map[string]any), "page_citations")

	err := ValidateShape(obj)
	require.NotNil(t, err)
	assert.ElementsMatch(t, []string{
		`missing top-level key "classification"`,
		`key "meta.year" must be an integer or null`,
		`key "summary.results" must be a list`,
		`missing key "page_citations" in section "provenance"`,
	}, err.Problems)
	assert.Contains(t, err.Error(), "output shape invalid")
}

func TestValidateShapeRejectsFractionalYearAndNonObjectSection(t *testing.T) {
	obj := mustParse(t, validOutput)
	obj["meta"].(map[string]any)["year"] = mustParse(t, `{"y": 2024.5}`)["y"]
	obj["summary"] = []any{"not", "an", "object"}

	err := ValidateShape(obj)
	require.NotNil(t, err)
	assert.ElementsMatch(t, []string{
		`key "meta.year" must be an integer or null`,
		`section "summary" must be an object`,
	}, err.Problems)
}

func TestValidateShapeIgnoresExtraKeys(t *testing.T) {
	obj := mustParse(t, validOutput)
	obj["extra"] = true
	obj["meta"].(map[string]any)["note"] = "x"
	assert.Nil(t, ValidateShape(obj))
}
