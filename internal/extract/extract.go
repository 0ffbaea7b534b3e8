// Package extract pulls plain text out of PDF bytes.
package extract

import (
	"bytes"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
)

// Tool identifies the extraction library in provenance records.
const Tool = "github.com/ledongthuc/pdf"

// Document is the text of a PDF, page by page.
type Document struct {
	// Text is the page texts joined with a blank line, carriage returns removed.
	Text string
	// Pages is the number of pages in the file.
	Pages int
	// FailedPages lists the 1-based pages that produced no text because the
	// extractor failed on them.
	FailedPages []int
}

// ExtractionError reports bytes that could not be opened as a PDF.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract: not a readable pdf: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extract returns the text of every page of the PDF in data. A page that
// fails contributes an empty string and is listed in FailedPages.
func Extract(data []byte) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, &ExtractionError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ExtractionError{Err: err}
	}

	return joinPages(r.NumPage(), func(i int) (string, error) {
		p := r.Page(i)
		if p.V.IsNull() {
			return "", fmt.Errorf("page %d: missing", i)
		}
		return p.GetPlainText(nil)
	}), nil
}

// joinPages assembles a Document from n pages read through page, which is
// called with 1-based page numbers.
func joinPages(n int, page func(int) (string, error)) *Document {
	doc := &Document{Pages: n}
	texts := make([]string, n)
	for i := 1; i <= n; i++ {
		text, err := safePage(page, i)
		if err != nil {
			doc.FailedPages = append(doc.FailedPages, i)
			continue
		}
		texts[i-1] = text
	}
	doc.Text = strings.ReplaceAll(strings.Join(texts, "\n\n"), "\r", "")
	return doc
}

func safePage(page func(int) (string, error), i int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("page %d: panic: %v", i, r)
		}
	}()
	return page(i)
}

var version = sync.OnceValue(func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	for _, dep := range info.Deps {
		if dep.Path == Tool {
			return dep.Version
		}
	}
	return "unknown"
})

// Version returns the module version of the extraction library linked into
// the binary, or "unknown".
func Version() string {
	return version()
}
