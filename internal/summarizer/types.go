package summarizer

import "context"

// Metadata describes the paper being summarized. It is rendered into the
// prompt as given.
type Metadata struct {
	Title   string
	Authors []string
	Venue   string
	Year    *int
	DOI     string
	ArxivID string
	URL     string
	PDFURL  string
}

// Request is one summarization call.
type Request struct {
	// Chunks are normalized text pieces in reading order.
	Chunks []string
	Meta   Metadata
	// TextSHA256 is the fingerprint of the normalized text, recorded in the
	// output provenance when the model omits it or leaves it empty.
	TextSHA256 string
}

// Summary is the parsed model output.
type Summary struct {
	// JSON is the re-encoded output object, provenance defaults included.
	JSON string
	// Data is the decoded output object. Numbers are json.Number.
	Data  map[string]any
	Model string
	// SchemaErr is non-nil when Data does not have the documented shape.
	SchemaErr *SchemaValidationError
}

// Model completes a system/user prompt pair with free-form text.
type Model interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Name() string
}
