package summarizer

import (
	"encoding/json"
	"fmt"
	"strings"
)

type kind int

const (
	kindString kind = iota
	kindList
	kindNumber
	kindIntOrNull
)

func (k kind) String() string {
	switch k {
	case kindString:
		return "a string"
	case kindList:
		return "a list"
	case kindNumber:
		return "a number"
	default:
		return "an integer or null"
	}
}

type field struct {
	name string
	kind kind
}

type section struct {
	name   string
	fields []field
}

// outputSchema is the shape the system prompt asks for.
var outputSchema = []section{
	{"meta", []field{
		{"title", kindString},
		{"authors", kindList},
		{"venue", kindString},
		{"year", kindIntOrNull},
		{"doi", kindString},
		{"arxiv_id", kindString},
		{"url", kindString},
		{"pdf_url", kindString},
	}},
	{"classification", []field{
		{"paper_type", kindString},
		{"area_tags", kindList},
		{"novelty_level", kindString},
		{"confidence", kindNumber},
	}},
	{"summary", []field{
		{"tldr", kindString},
		{"whats_new", kindList},
		{"method", kindString},
		{"evidence_setup", kindList},
		{"results", kindList},
		{"limitations", kindList},
		{"risks_ethics", kindList},
		{"reproducibility", kindList},
		{"audience_fit", kindList},
		{"practical_takeaway", kindString},
	}},
	{"provenance", []field{
		{"page_citations", kindList},
		{"extracted_text_sha256", kindString},
		{"summary_model", kindString},
		{"summary_prompt_version", kindString},
	}},
}

// SchemaValidationError lists every way an output object deviates from the
// documented shape.
type SchemaValidationError struct {
	Problems []string
}

func (e *SchemaValidationError) Error() string {
	return "summarizer: output shape invalid: " + strings.Join(e.Problems, "; ")
}

// ValidateShape checks that obj has every documented section and key with
// the documented coarse type. Extra keys are not reported.
func ValidateShape(obj map[string]any) *SchemaValidationError {
	var problems []string
	for _, sec := range outputSchema {
		raw, ok := obj[sec.name]
		if !ok {
			problems = append(problems, fmt.Sprintf("missing top-level key %q", sec.name))
			continue
		}
		m, ok := raw.(map[string]any)
		if !ok {
			problems = append(problems, fmt.Sprintf("section %q must be an object", sec.name))
			continue
		}
		for _, f := range sec.fields {
			v, ok := m[f.name]
			if !ok {
				problems = append(problems, fmt.Sprintf("missing key %q in section %q", f.name, sec.name))
				continue
			}
			if !f.kind.matches(v) {
				problems = append(problems, fmt.Sprintf("key %q must be %s", sec.name+"."+f.name, f.kind))
			}
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return &SchemaValidationError{Problems: problems}
}

func (k kind) matches(v any) bool {
	switch k {
	case kindString:
		_, ok := v.(string)
		return ok
	case kindList:
		_, ok := v.([]any)
		return ok
	case kindNumber:
		switch v.(type) {
		case json.Number, float64:
			return true
		}
		return false
	default:
		switch n := v.(type) {
		case nil:
			return true
		case json.Number:
			_, err := n.Int64()
			return err == nil
		case float64:
			return n == float64(int64(n))
		}
		return false
	}
}
