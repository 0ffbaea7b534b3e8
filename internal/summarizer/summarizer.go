// Package summarizer turns normalized paper text into a structured JSON
// summary through a language model.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ryosukesatoh/researchtldr/internal/config"
)

// ErrUnsupportedSummarizerType is returned when an unsupported summarizer type is specified
var ErrUnsupportedSummarizerType = errors.New("unsupported summarizer type")

// New creates the model backend named by cfg.Type.
func New(cfg config.SummarizerConfig) (Model, error) {
	switch cfg.Type {
	case "openai":
		return NewOpenAIModel(cfg), nil
	case "anthropic":
		return NewAnthropicModel(cfg), nil
	case "wordcount":
		return WordCount{}, nil
	default:
		return nil, fmt.Errorf("summarizer: %w %q", ErrUnsupportedSummarizerType, cfg.Type)
	}
}

// Client sends one prompt per paper and parses the reply. It never retries.
type Client struct {
	model Model
}

func NewClient(model Model) *Client {
	return &Client{model: model}
}

// ModelName identifies the backing model.
func (c *Client) ModelName() string {
	return c.model.Name()
}

// Summarize joins the request chunks, calls the model, and parses the JSON
// object from its reply. Output that fails shape validation is returned with
// SchemaErr set; only transport failures and unparseable output are errors.
func (c *Client) Summarize(ctx context.Context, req Request) (*Summary, error) {
	user := BuildUserPrompt(req.Meta, strings.Join(req.Chunks, "\n\n"))

	raw, err := c.model.Complete(ctx, SystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("summarizer: %s: %w", c.model.Name(), err)
	}

	data, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	schemaErr := ValidateShape(data)
	applyProvenanceDefaults(data, c.model.Name(), req.TextSHA256)

	text, err := encodeJSON(data)
	if err != nil {
		return nil, &ModelOutputError{Excerpt: excerpt(raw), Err: err}
	}

	return &Summary{
		JSON:      text,
		Data:      data,
		Model:     c.model.Name(),
		SchemaErr: schemaErr,
	}, nil
}

// applyProvenanceDefaults fills provenance keys the model left out. An empty
// text hash is replaced as well. A provenance value that is not an object is
// left untouched.
func applyProvenanceDefaults(data map[string]any, model, textSHA string) {
	raw, ok := data["provenance"]
	if !ok {
		raw = map[string]any{}
		data["provenance"] = raw
	}
	prov, ok := raw.(map[string]any)
	if !ok {
		return
	}
	setDefault(prov, "summary_model", model)
	setDefault(prov, "summary_prompt_version", PromptVersion)
	if textSHA != "" {
		if v, _ := prov["extracted_text_sha256"].(string); v == "" {
			prov["extracted_text_sha256"] = textSHA
		}
	}
}

func setDefault(m map[string]any, key string, v any) {
	if _, ok := m[key]; !ok {
		m[key] = v
	}
}
