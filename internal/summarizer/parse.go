package summarizer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const excerptLimit = 1000

// ModelOutputError reports model output with no recoverable JSON object.
type ModelOutputError struct {
	// Excerpt is the start of the raw output, for logs.
	Excerpt string
	Err     error
}

func (e *ModelOutputError) Error() string {
	return fmt.Sprintf("summarizer: model output is not a JSON object: %v", e.Err)
}

func (e *ModelOutputError) Unwrap() error { return e.Err }

// ExtractJSON parses the text between the first '{' and the last '}' of raw
// as a JSON object. Models often wrap the object in prose or code fences.
func ExtractJSON(raw string) (map[string]any, error) {
	first := strings.IndexByte(raw, '{')
	last := strings.LastIndexByte(raw, '}')
	if first < 0 || last < first {
		return nil, &ModelOutputError{Excerpt: excerpt(raw), Err: errors.New("no braces in output")}
	}

	dec := json.NewDecoder(strings.NewReader(raw[first : last+1]))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, &ModelOutputError{Excerpt: excerpt(raw), Err: err}
	}
	if dec.More() {
		return nil, &ModelOutputError{Excerpt: excerpt(raw), Err: errors.New("trailing data after object")}
	}
	if obj == nil {
		return nil, &ModelOutputError{Excerpt: excerpt(raw), Err: errors.New("null object")}
	}
	return obj, nil
}

func excerpt(s string) string {
	if len(s) <= excerptLimit {
		return s
	}
	cut := excerptLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// encodeJSON renders obj without HTML escaping, keeping non-ASCII text as is.
func encodeJSON(obj map[string]any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(obj); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
